package engine

import (
	"context"
	"errors"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/core/services/adaptive"
	"github.com/alejandroruanova/preference-engine/internal/core/services/prompting"
	"github.com/alejandroruanova/preference-engine/internal/core/services/taxonomy"
	"github.com/alejandroruanova/preference-engine/internal/core/services/weights"
	"github.com/google/uuid"
)

// ProjectRepository defines the interface for project storage
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error

	// GetByID returns nil when the project does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)

	// ListByUser returns a user's projects, newest first
	ListByUser(ctx context.Context, userID string) ([]domain.Project, error)
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	// CreateInitialized persists a session and its weight rows in one transaction
	CreateInitialized(ctx context.Context, session *domain.Session, entries []domain.WeightEntry) error

	// GetByID returns nil when the session does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	// ListByProject returns a project's sessions in creation order
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Session, error)
}

// GenerationRepository defines the interface for generation record storage
type GenerationRepository interface {
	Create(ctx context.Context, generation *domain.Generation) error

	// GetByID returns nil when the generation does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Generation, error)

	// ListBySession returns a session's generations ordered by created_at
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Generation, error)
}

// ErrNoImage is returned by image generators that produced no output
var ErrNoImage = errors.New("no image returned")

// Image is the output of an image generation call
type Image struct {
	Data          []byte
	MimeType      string
	RevisedPrompt string
	Model         string
}

// ImageGenerator produces an image for a prompt
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}

// StoredAsset is where a generated image was written
type StoredAsset struct {
	Path string
	URL  string
	Size int64
	Hash string
}

// AssetStore persists generated images
type AssetStore interface {
	SaveAsset(ctx context.Context, sessionID uuid.UUID, name string, data []byte) (*StoredAsset, error)
}

// TaskEnqueuer schedules background work
type TaskEnqueuer interface {
	EnqueueAdaptiveRefresh(ctx context.Context, sessionID uuid.UUID) error
}

// Config for the engine
type Config struct {
	BatchMaxItems    int           `json:"batch_max_items"`
	BatchConcurrency int           `json:"batch_concurrency"`
	ImageTimeout     time.Duration `json:"image_timeout"`
	BaseSystemPrompt string        `json:"-"`
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		BatchMaxItems:    10,
		BatchConcurrency: 4,
		ImageTimeout:     90 * time.Second,
		BaseSystemPrompt: prompting.BaseSystemPrompt,
	}
}

// Dependencies groups the collaborators of the engine.
// Images, Assets, Tasks and Insights may be nil.
type Dependencies struct {
	Projects    ProjectRepository
	Sessions    SessionRepository
	Generations GenerationRepository
	Taxonomies  taxonomy.TaxonomyBuilder
	Store       *weights.Store
	Selector    *weights.Selector
	Updater     *weights.Updater
	Insights    *adaptive.Service
	Composer    *prompting.Composer
	Images      ImageGenerator
	Assets      AssetStore
	Tasks       TaskEnqueuer
}

// CreateProjectInput holds the fields of a new project
type CreateProjectInput struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateSessionInput holds the fields of a new session
type CreateSessionInput struct {
	ProjectID  uuid.UUID `json:"project_id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	UserIntent string    `json:"user_intent"`
}

// SessionResult is the outcome of session creation
type SessionResult struct {
	Session            *domain.Session `json:"session"`
	Taxonomy           domain.Taxonomy `json:"taxonomy"`
	TaxonomySource     taxonomy.Source `json:"taxonomy_source"`
	Warnings           []string        `json:"warnings,omitempty"`
	WeightsInitialized int             `json:"weights_initialized"`
}

// SelectionResult is a parameter draw plus the snapshot to persist with a generation
type SelectionResult struct {
	Selection *weights.Selection    `json:"selection"`
	Snapshot  []domain.ParameterUse `json:"snapshot"`
}

// RecordGenerationInput holds a generation produced outside a batch
type RecordGenerationInput struct {
	SessionID      uuid.UUID             `json:"session_id"`
	UserID         string                `json:"user_id"`
	OriginalPrompt string                `json:"original_prompt"`
	FinalPrompt    string                `json:"final_prompt"`
	Model          string                `json:"model"`
	AssetURL       string                `json:"asset_url"`
	Snapshot       []domain.ParameterUse `json:"snapshot"`
}

// GenerateBatchInput describes a batch request
type GenerateBatchInput struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    string    `json:"user_id"`
	Prompt    string    `json:"prompt"`
	Count     int       `json:"count"`
}

// ItemStatus is the outcome of one batch item
type ItemStatus string

const (
	ItemSucceeded ItemStatus = "succeeded"
	ItemFailed    ItemStatus = "failed"
)

// Stage names the step a batch item was in
type Stage string

const (
	StageSelect   Stage = "select"
	StageGenerate Stage = "generate"
	StageStore    Stage = "store"
	StagePersist  Stage = "persist"
)

// BatchItem is the outcome of one generation in a batch
type BatchItem struct {
	Index            int                `json:"index"`
	Status           ItemStatus         `json:"status"`
	Stage            Stage              `json:"stage,omitempty"`
	Error            string             `json:"error,omitempty"`
	UsedTemplate     bool               `json:"used_template,omitempty"`
	Generation       *domain.Generation `json:"generation,omitempty"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

// BatchResult reports partial success of a batch
type BatchResult struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Adaptive   bool        `json:"adaptive"`
	Items      []BatchItem `json:"items"`
}

// RateResult is the outcome of a rating action
type RateResult struct {
	Generation     *domain.Generation    `json:"generation"`
	UpdatedWeights []domain.WeightChange `json:"updated_weights"`
	NoSnapshot     bool                  `json:"no_snapshot,omitempty"`
}
