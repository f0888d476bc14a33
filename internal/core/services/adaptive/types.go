package adaptive

import (
	"context"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/google/uuid"
)

// Insight is the learned preference summary of a session
type Insight struct {
	HasHistory      bool      `json:"has_history"`
	Loves           []string  `json:"loves"`
	Hates           []string  `json:"hates"`
	Suggestions     []string  `json:"suggestions"`
	ItemsAnalyzed   int       `json:"items_analyzed"`
	LikedCount      int       `json:"liked_count"`
	DislikedCount   int       `json:"disliked_count"`
	CommentCount    int       `json:"comment_count"`
	StatisticalOnly bool      `json:"statistical_only"`
	GeneratedAt     time.Time `json:"generated_at"`

	// LatestRatedAt is the newest rating the insight was computed from
	LatestRatedAt *time.Time `json:"latest_rated_at,omitempty"`
}

// HasGuidance reports whether the insight carries anything worth injecting into a prompt
func (i *Insight) HasGuidance() bool {
	if i == nil || !i.HasHistory {
		return false
	}
	return len(i.Loves) > 0 || len(i.Hates) > 0 || len(i.Suggestions) > 0
}

// Config for the adaptive synthesizer
type Config struct {
	Window     int           `json:"window"`       // rated items analyzed per session
	MaxPerList int           `json:"max_per_list"` // cap for loves, hates and suggestions
	CacheTTL   time.Duration `json:"cache_ttl"`    // insight cache lifetime
}

// DefaultConfig returns default synthesizer configuration
func DefaultConfig() Config {
	return Config{
		Window:     20,
		MaxPerList: 7,
		CacheTTL:   10 * time.Minute,
	}
}

// TextGenerator produces a structured (JSON) text answer for a system/user prompt pair
type TextGenerator interface {
	GenerateStructuredText(ctx context.Context, system, user string) (string, error)
}

// RatedHistory gives access to a session's rated generations
type RatedHistory interface {
	// ListRecentRated returns up to limit rated generations, newest rating first
	ListRecentRated(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Generation, error)
}

// InsightCache stores computed insights per session
type InsightCache interface {
	GetInsight(ctx context.Context, sessionID uuid.UUID) (*Insight, bool, error)
	SetInsight(ctx context.Context, sessionID uuid.UUID, insight *Insight, ttl time.Duration) error
	InvalidateInsight(ctx context.Context, sessionID uuid.UUID) error
}
