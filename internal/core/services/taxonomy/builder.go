package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	apperrors "github.com/alejandroruanova/preference-engine/internal/pkg/errors"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
)

const systemPrompt = `You design parameter taxonomies for AI image generation.
Return ONLY a JSON object. Each key is a parameter category name in snake_case and each value is an array of 4 to 6 short option strings.
Return between 11 and 14 categories.
Category names must be content-agnostic (e.g. lighting, camera_angle, color_palette); option values should fit the content category.
Do not include explanations or markdown.`

// Builder implements TaxonomyBuilder
type Builder struct {
	config    Config
	generator TextGenerator
	logger    *slog.Logger
}

// NewBuilder creates a new taxonomy builder
func NewBuilder(config Config, generator TextGenerator, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		config:    config,
		generator: generator,
		logger:    logger,
	}
}

// Build returns the taxonomy for a content category.
// The dating category is served from the fixed table; every other category
// costs exactly one text generation call.
func (b *Builder) Build(ctx context.Context, category, userIntent string) (*BuildResult, error) {
	if domain.IsDatingCategory(category) {
		return &BuildResult{
			Taxonomy: DatingTaxonomy(),
			Source:   SourceStatic,
		}, nil
	}

	startTime := time.Now()

	b.logger.Info("generating taxonomy",
		slog.String("category", category),
		slog.Bool("has_intent", strings.TrimSpace(userIntent) != ""))

	if b.generator == nil {
		return nil, apperrors.TaxonomyBuildFailed(
			apperrors.ExternalGenerationFailed(errors.New("no text generator configured"), "taxonomy"),
			category)
	}

	raw, err := b.generator.GenerateStructuredText(ctx, systemPrompt, userPrompt(category, userIntent))
	if err != nil {
		b.logger.Error("taxonomy generation failed",
			slog.String("category", category),
			logger.Err(err))
		return nil, apperrors.TaxonomyBuildFailed(apperrors.ExternalGenerationFailed(err, "taxonomy"), category)
	}

	tax, warnings, err := Normalize(raw)
	if err != nil {
		b.logger.Error("taxonomy output could not be normalized",
			slog.String("category", category),
			slog.Int("output_length", len(raw)),
			logger.Err(err))
		return nil, apperrors.TaxonomyBuildFailed(err, category)
	}

	warnings = append(warnings, b.checkBounds(tax)...)
	for _, w := range warnings {
		b.logger.Warn("taxonomy normalization warning",
			slog.String("category", category),
			slog.String("warning", w))
	}

	b.logger.Info("taxonomy generated",
		slog.String("category", category),
		slog.Int("categories", tax.Len()),
		slog.Int("pairs", tax.PairCount()),
		slog.Int("warnings", len(warnings)),
		slog.Int64("processing_time_ms", time.Since(startTime).Milliseconds()))

	return &BuildResult{
		Taxonomy: tax,
		Source:   SourceGenerated,
		Warnings: warnings,
	}, nil
}

// checkBounds reports category and value counts outside the configured ranges
func (b *Builder) checkBounds(tax domain.Taxonomy) []string {
	var warnings []string

	if n := tax.Len(); n < b.config.MinCategories || (b.config.MaxCategories > 0 && n > b.config.MaxCategories) {
		warnings = append(warnings, fmt.Sprintf("taxonomy has %d categories, expected %d-%d",
			n, b.config.MinCategories, b.config.MaxCategories))
	}

	for _, c := range tax.Categories {
		n := len(c.Values)
		if n < b.config.MinValues || (b.config.MaxValues > 0 && n > b.config.MaxValues) {
			warnings = append(warnings, fmt.Sprintf("category %q has %d values, expected %d-%d",
				c.Name, n, b.config.MinValues, b.config.MaxValues))
		}
	}

	return warnings
}

func userPrompt(category, userIntent string) string {
	var sb strings.Builder
	sb.WriteString("Content category: ")
	sb.WriteString(strings.TrimSpace(category))
	if intent := strings.TrimSpace(userIntent); intent != "" {
		sb.WriteString("\nUser intent: ")
		sb.WriteString(intent)
	}
	return sb.String()
}
