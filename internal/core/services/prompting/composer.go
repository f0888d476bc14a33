package prompting

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
)

// BaseSystemPrompt is the system prompt used before any preferences are learned
const BaseSystemPrompt = `You write prompts for a photorealistic image model.
Merge the user's request with the given visual parameters into one vivid, concrete prompt of at most 80 words.
Every parameter must be reflected. Return only the prompt text.`

// TextGenerator produces free-form text for a system/user prompt pair
type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
}

// Request is everything that goes into one final image prompt
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Choices      []domain.ParameterUse

	// Emphasize and Avoid carry the session's learned likes and dislikes
	Emphasize []string
	Avoid     []string
}

// Composer turns a user prompt and a parameter selection into the final image prompt
type Composer struct {
	generator TextGenerator
	logger    *slog.Logger
}

// NewComposer creates a new prompt composer. A nil generator always uses the template.
func NewComposer(generator TextGenerator, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Composer{
		generator: generator,
		logger:    logger,
	}
}

// Compose asks the text model for the final prompt and falls back to the
// deterministic template when the call fails or returns nothing usable.
// The returned bool reports whether the template was used.
func (c *Composer) Compose(ctx context.Context, req Request) (string, bool) {
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = BaseSystemPrompt
	}

	if c.generator != nil {
		text, err := c.generator.GenerateText(ctx, systemPrompt, renderRequest(req))
		if err == nil {
			if prompt := cleanPrompt(text); prompt != "" {
				return prompt, false
			}
			c.logger.Warn("prompt composition returned empty text, using template")
		} else {
			c.logger.Warn("prompt composition failed, using template", logger.Err(err))
		}
	}

	return Template(req), true
}

// Template renders "<user prompt>. <param>: <value>, ..." with underscores
// shown as spaces, followed by the learned preferences when there are any.
func Template(req Request) string {
	base := strings.TrimRight(strings.TrimSpace(req.UserPrompt), ".")

	sentences := make([]string, 0, 4)
	if base != "" {
		sentences = append(sentences, base)
	}
	if len(req.Choices) > 0 {
		parts := make([]string, 0, len(req.Choices))
		for _, ch := range req.Choices {
			parts = append(parts, humanize(ch.Parameter)+": "+humanize(ch.Value))
		}
		sentences = append(sentences, strings.Join(parts, ", "))
	}
	if len(req.Emphasize) > 0 {
		sentences = append(sentences, "Emphasize: "+strings.Join(req.Emphasize, ", "))
	}
	if len(req.Avoid) > 0 {
		sentences = append(sentences, "Avoid: "+strings.Join(req.Avoid, ", "))
	}
	return strings.Join(sentences, ". ")
}

func renderRequest(req Request) string {
	var sb strings.Builder
	sb.WriteString("User request: ")
	sb.WriteString(strings.TrimSpace(req.UserPrompt))
	sb.WriteString("\nVisual parameters:\n")
	for _, ch := range req.Choices {
		sb.WriteString("- ")
		sb.WriteString(humanize(ch.Parameter))
		sb.WriteString(": ")
		sb.WriteString(humanize(ch.Value))
		sb.WriteByte('\n')
	}
	writeList(&sb, "Emphasize", req.Emphasize)
	writeList(&sb, "Avoid", req.Avoid)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(title)
	sb.WriteString(":\n")
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteByte('\n')
	}
}

// cleanPrompt strips fences and wrapping quotes the model sometimes adds
func cleanPrompt(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"")
	return strings.TrimSpace(text)
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
