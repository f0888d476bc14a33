package adaptive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	apperrors "github.com/alejandroruanova/preference-engine/internal/pkg/errors"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/google/uuid"
)

const analysisSystemPrompt = `You analyze how a user rated AI-generated images.
Each item lists whether it was liked or disliked, the visual parameters used, and the user's comment if any.
Return ONLY a JSON object with three arrays of short phrases:
{"loves": [...], "hates": [...], "suggestions": [...]}
"loves" are visual traits the user responds well to, "hates" are traits to avoid, "suggestions" are concrete directions for the next images.
Use at most 7 entries per array. Do not include explanations or markdown.`

// Synthesizer mines ratings and comments into an Insight
type Synthesizer struct {
	config    Config
	history   RatedHistory
	generator TextGenerator
	logger    *slog.Logger
	now       func() time.Time
}

// NewSynthesizer creates a new adaptive preference synthesizer
func NewSynthesizer(config Config, history RatedHistory, generator TextGenerator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	if config.MaxPerList <= 0 {
		config.MaxPerList = DefaultConfig().MaxPerList
	}

	return &Synthesizer{
		config:    config,
		history:   history,
		generator: generator,
		logger:    logger,
		now:       time.Now,
	}
}

// Analyze summarizes the most recent rated generations of a session.
//
// Without rated items the result has HasHistory false. Rated items without
// any comment yield a statistical-only insight and no model call. Otherwise
// exactly one text generation call produces loves, hates and suggestions.
func (s *Synthesizer) Analyze(ctx context.Context, sessionID uuid.UUID, limit int) (*Insight, error) {
	if limit <= 0 {
		limit = s.config.Window
	}

	rated, err := s.history.ListRecentRated(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load rated generations: %w", err)
	}

	insight := &Insight{
		Loves:         []string{},
		Hates:         []string{},
		Suggestions:   []string{},
		ItemsAnalyzed: len(rated),
		GeneratedAt:   s.now().UTC(),
	}
	if len(rated) == 0 {
		return insight, nil
	}
	insight.HasHistory = true
	insight.LatestRatedAt = rated[0].RatedAt

	for _, gen := range rated {
		switch gen.Sentiment() {
		case domain.SentimentLiked:
			insight.LikedCount++
		case domain.SentimentDisliked:
			insight.DislikedCount++
		}
		if strings.TrimSpace(gen.Comment) != "" {
			insight.CommentCount++
		}
	}

	if insight.CommentCount == 0 {
		insight.StatisticalOnly = true
		s.logger.Debug("no comments to analyze, returning statistical insight",
			slog.String("session_id", sessionID.String()),
			slog.Int("items", len(rated)))
		return insight, nil
	}

	if s.generator == nil {
		return nil, apperrors.ExternalGenerationFailed(errors.New("no text generator configured"), "insight")
	}

	raw, err := s.generator.GenerateStructuredText(ctx, analysisSystemPrompt, renderHistory(rated))
	if err != nil {
		s.logger.Error("insight generation failed",
			slog.String("session_id", sessionID.String()),
			logger.Err(err))
		return nil, apperrors.ExternalGenerationFailed(err, "insight")
	}

	lists, err := parseInsightLists(raw)
	if err != nil {
		s.logger.Error("insight output could not be parsed",
			slog.String("session_id", sessionID.String()),
			logger.Err(err))
		return nil, err
	}

	insight.Loves = capList(lists["loves"], s.config.MaxPerList)
	insight.Hates = capList(lists["hates"], s.config.MaxPerList)
	insight.Suggestions = capList(lists["suggestions"], s.config.MaxPerList)

	s.logger.Info("adaptive insight generated",
		slog.String("session_id", sessionID.String()),
		slog.Int("items", insight.ItemsAnalyzed),
		slog.Int("liked", insight.LikedCount),
		slog.Int("disliked", insight.DislikedCount),
		slog.Int("comments", insight.CommentCount))

	return insight, nil
}

// LatestRatedAt returns when the session was last rated, nil when it never was
func (s *Synthesizer) LatestRatedAt(ctx context.Context, sessionID uuid.UUID) (*time.Time, error) {
	rated, err := s.history.ListRecentRated(ctx, sessionID, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest rating: %w", err)
	}
	if len(rated) == 0 {
		return nil, nil
	}
	return rated[0].RatedAt, nil
}

// renderHistory formats rated items for the analysis prompt
func renderHistory(rated []domain.Generation) string {
	var sb strings.Builder
	for i, gen := range rated {
		label := "NEUTRAL"
		switch gen.Sentiment() {
		case domain.SentimentLiked:
			label = "LIKED"
		case domain.SentimentDisliked:
			label = "DISLIKED"
		}

		fmt.Fprintf(&sb, "%d. [%s] rating=%d", i+1, label, gen.SignedRating())
		if len(gen.ParametersUsed) > 0 {
			params := make([]string, 0, len(gen.ParametersUsed))
			for _, p := range gen.ParametersUsed {
				params = append(params, p.Parameter+"="+p.Value)
			}
			sb.WriteString(" params: ")
			sb.WriteString(strings.Join(params, ", "))
		}
		if c := strings.TrimSpace(gen.Comment); c != "" {
			sb.WriteString(" comment: ")
			sb.WriteString(strconv.Quote(c))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// parseInsightLists reads {"loves": [...], "hates": [...], "suggestions": [...]}
// tolerating fences, surrounding prose and scalar values in place of arrays
func parseInsightLists(raw string) (map[string][]string, error) {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, apperrors.MalformedExternalOutput("insight output contains no JSON object")
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err != nil {
		return nil, apperrors.MalformedExternalOutput("insight output is not valid JSON")
	}

	lists := make(map[string][]string, 3)
	for _, key := range []string{"loves", "hates", "suggestions"} {
		lists[key] = flatten(fields[key])
	}
	return lists, nil
}

func flatten(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []interface{}:
		var out []string
		for _, item := range t {
			out = append(out, flatten(item)...)
		}
		return out
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var out []string
		for _, k := range keys {
			out = append(out, flatten(t[k])...)
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

// capList trims, deduplicates case-insensitively and keeps at most max entries
func capList(values []string, max int) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if len(out) == max {
			break
		}
	}
	return out
}
