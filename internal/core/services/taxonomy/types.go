package taxonomy

import (
	"context"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
)

// Source tells where a taxonomy came from
type Source string

const (
	SourceStatic    Source = "static"    // hand-authored table, no external call
	SourceGenerated Source = "generated" // produced by the text model and normalized
)

// TextGenerator produces a structured (JSON) text answer for a system/user prompt pair
type TextGenerator interface {
	GenerateStructuredText(ctx context.Context, system, user string) (string, error)
}

// BuildResult is the output of a taxonomy build
type BuildResult struct {
	Taxonomy domain.Taxonomy `json:"taxonomy"`
	Source   Source          `json:"source"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Config bounds the shape expected from generated taxonomies.
// Bounds are advisory: violations produce warnings, never failures.
type Config struct {
	MinCategories int `json:"min_categories"`
	MaxCategories int `json:"max_categories"`
	MinValues     int `json:"min_values"`
	MaxValues     int `json:"max_values"`
}

// DefaultConfig returns the default taxonomy bounds
func DefaultConfig() Config {
	return Config{
		MinCategories: 11,
		MaxCategories: 14,
		MinValues:     4,
		MaxValues:     6,
	}
}

// TaxonomyBuilder builds the parameter taxonomy for a content category
type TaxonomyBuilder interface {
	Build(ctx context.Context, category, userIntent string) (*BuildResult, error)
}
