package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/core/services/adaptive"
	"github.com/alejandroruanova/preference-engine/internal/core/services/prompting"
	apperrors "github.com/alejandroruanova/preference-engine/internal/pkg/errors"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service orchestrates projects, sessions, generations and ratings
type Service struct {
	config Config
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new engine service
func NewService(config Config, deps Dependencies, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if config.BatchMaxItems <= 0 {
		config.BatchMaxItems = defaults.BatchMaxItems
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = defaults.BatchConcurrency
	}
	if config.ImageTimeout <= 0 {
		config.ImageTimeout = defaults.ImageTimeout
	}
	if config.BaseSystemPrompt == "" {
		config.BaseSystemPrompt = defaults.BaseSystemPrompt
	}

	return &Service{
		config: config,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

// CreateProject creates an empty project
func (s *Service) CreateProject(ctx context.Context, input CreateProjectInput) (*domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.BadRequest("project name is required")
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, apperrors.BadRequest("user_id is required")
	}

	project := &domain.Project{
		UserID:      input.UserID,
		Name:        name,
		Description: input.Description,
	}
	if err := s.deps.Projects.Create(ctx, project); err != nil {
		s.logger.Error("failed to create project", logger.Err(err))
		return nil, apperrors.DatabaseError(err)
	}

	s.logger.Info("project created",
		slog.String("project_id", project.ID.String()),
		slog.String("user_id", project.UserID))

	return project, nil
}

// ListProjects returns the projects owned by a user
func (s *Service) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.BadRequest("user_id is required")
	}

	projects, err := s.deps.Projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

// ListSessions returns the sessions of a project in creation order
func (s *Service) ListSessions(ctx context.Context, projectID uuid.UUID) ([]domain.Session, error) {
	project, err := s.deps.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if project == nil {
		return nil, apperrors.RecordNotFound("project")
	}

	sessions, err := s.deps.Sessions.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return sessions, nil
}

// CreateSession builds the session taxonomy, seeds its weights and persists
// both in one transaction. Nothing is persisted when any step fails.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (*SessionResult, error) {
	if strings.TrimSpace(input.Category) == "" {
		return nil, apperrors.BadRequest("category is required")
	}

	startTime := time.Now()

	project, err := s.deps.Projects.GetByID(ctx, input.ProjectID)
	if err != nil {
		return nil, apperrors.SessionInitFailed(apperrors.DatabaseError(err))
	}
	if project == nil {
		return nil, apperrors.SessionInitFailed(apperrors.RecordNotFound("project"))
	}

	built, err := s.deps.Taxonomies.Build(ctx, input.Category, input.UserIntent)
	if err != nil {
		s.logger.Error("session taxonomy build failed",
			slog.String("project_id", project.ID.String()),
			slog.String("category", input.Category),
			logger.Err(err))
		return nil, apperrors.SessionInitFailed(err)
	}

	userID := input.UserID
	if userID == "" {
		userID = project.UserID
	}

	session := &domain.Session{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		UserID:     userID,
		Name:       input.Name,
		Category:   strings.TrimSpace(input.Category),
		UserIntent: input.UserIntent,
	}
	session.SetTaxonomy(built.Taxonomy)

	entries, err := s.deps.Store.Seed(ctx, project.ID, built.Taxonomy, session.ID)
	if err != nil {
		return nil, apperrors.SessionInitFailed(apperrors.DatabaseError(err))
	}

	if err := s.deps.Sessions.CreateInitialized(ctx, session, entries); err != nil {
		s.logger.Error("failed to persist session",
			slog.String("session_id", session.ID.String()),
			logger.Err(err))
		return nil, apperrors.SessionInitFailed(apperrors.DatabaseError(err))
	}

	s.logger.Info("session created",
		slog.String("session_id", session.ID.String()),
		slog.String("project_id", project.ID.String()),
		slog.String("category", session.Category),
		slog.String("taxonomy_source", string(built.Source)),
		slog.Int("categories", built.Taxonomy.Len()),
		slog.Int("weights", len(entries)),
		slog.Int64("processing_time_ms", time.Since(startTime).Milliseconds()))

	return &SessionResult{
		Session:            session,
		Taxonomy:           built.Taxonomy,
		TaxonomySource:     built.Source,
		Warnings:           built.Warnings,
		WeightsInitialized: len(entries),
	}, nil
}

// SelectAndRecordGeneration draws one value per category and returns the
// snapshot to persist with the generation it produces. Weights are not changed.
func (s *Service) SelectAndRecordGeneration(ctx context.Context, sessionID uuid.UUID) (*SelectionResult, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	selection, err := s.deps.Selector.Select(ctx, session.ID, session.GetTaxonomy())
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	return &SelectionResult{
		Selection: selection,
		Snapshot:  selection.Snapshot(),
	}, nil
}

// RecordGeneration persists a generation produced by the caller together with its snapshot.
// Every snapshot entry must name a pair of the session taxonomy with a weight inside the bounds.
func (s *Service) RecordGeneration(ctx context.Context, input RecordGenerationInput) (*domain.Generation, error) {
	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if err := validateSnapshot(session.GetTaxonomy(), input.Snapshot); err != nil {
		return nil, err
	}

	userID := input.UserID
	if userID == "" {
		userID = session.UserID
	}

	gen := &domain.Generation{
		SessionID:      session.ID,
		ProjectID:      session.ProjectID,
		UserID:         userID,
		OriginalPrompt: input.OriginalPrompt,
		FinalPrompt:    input.FinalPrompt,
		Model:          input.Model,
		AssetURL:       input.AssetURL,
		ParametersUsed: append([]domain.ParameterUse(nil), input.Snapshot...),
	}
	if err := s.deps.Generations.Create(ctx, gen); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return gen, nil
}

func validateSnapshot(taxonomy domain.Taxonomy, snapshot []domain.ParameterUse) error {
	for _, use := range snapshot {
		if !taxonomy.Contains(use.Parameter, use.Value) {
			return apperrors.BadRequest(fmt.Sprintf("snapshot entry %s=%s is not part of the session taxonomy", use.Parameter, use.Value))
		}
		if use.Weight < domain.MinWeight || use.Weight > domain.MaxWeight {
			return apperrors.BadRequest(fmt.Sprintf("snapshot weight %v for %s=%s is outside [%v, %v]",
				use.Weight, use.Parameter, use.Value, domain.MinWeight, domain.MaxWeight))
		}
	}
	return nil
}

// GenerateBatch runs count independent generations concurrently.
// An item failure is recorded on that item and never aborts its siblings.
func (s *Service) GenerateBatch(ctx context.Context, input GenerateBatchInput) (*BatchResult, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, apperrors.BadRequest("prompt is required")
	}
	if input.Count < 1 || input.Count > s.config.BatchMaxItems {
		return nil, apperrors.BadRequest(fmt.Sprintf("count must be between 1 and %d", s.config.BatchMaxItems))
	}
	if s.deps.Images == nil {
		return nil, apperrors.Internal("image generator is not configured")
	}

	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if input.UserID == "" {
		input.UserID = session.UserID
	}

	startTime := time.Now()
	prefs := s.preferences(ctx, session.ID)
	adaptiveUsed := prefs.SystemPrompt != s.config.BaseSystemPrompt

	s.logger.Info("starting batch generation",
		slog.String("session_id", session.ID.String()),
		slog.Int("count", input.Count),
		slog.Bool("adaptive", adaptiveUsed))

	items := make([]BatchItem, input.Count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.BatchConcurrency)

	for i := 0; i < input.Count; i++ {
		g.Go(func() error {
			items[i] = s.generateOne(gctx, session, input, prefs, i)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{
		Total:    input.Count,
		Adaptive: adaptiveUsed,
		Items:    items,
	}
	for _, item := range items {
		if item.Status == ItemSucceeded {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	s.logger.Info("batch generation completed",
		slog.String("session_id", session.ID.String()),
		slog.Int("total", result.Total),
		slog.Int("successful", result.Successful),
		slog.Int("failed", result.Failed),
		slog.Int64("processing_time_ms", time.Since(startTime).Milliseconds()))

	return result, nil
}

// generateOne runs select, compose, generate, store and persist for one item
func (s *Service) generateOne(ctx context.Context, session *domain.Session, input GenerateBatchInput, prefs prompting.Request, index int) BatchItem {
	startTime := time.Now()
	item := BatchItem{Index: index}

	fail := func(stage Stage, err error) BatchItem {
		item.Status = ItemFailed
		item.Stage = stage
		item.Error = err.Error()
		item.ProcessingTimeMs = time.Since(startTime).Milliseconds()
		s.logger.Warn("batch item failed",
			slog.String("session_id", session.ID.String()),
			slog.Int("index", index),
			slog.String("stage", string(stage)),
			logger.Err(err))
		return item
	}

	selection, err := s.deps.Selector.Select(ctx, session.ID, session.GetTaxonomy())
	if err != nil {
		return fail(StageSelect, err)
	}

	req := prefs
	req.UserPrompt = input.Prompt
	req.Choices = selection.Choices
	finalPrompt, usedTemplate := s.deps.Composer.Compose(ctx, req)
	item.UsedTemplate = usedTemplate

	imgCtx, cancel := context.WithTimeout(ctx, s.config.ImageTimeout)
	img, err := s.deps.Images.GenerateImage(imgCtx, finalPrompt)
	cancel()
	if err != nil {
		return fail(StageGenerate, apperrors.ExternalGenerationFailed(err, "image"))
	}
	if img == nil || len(img.Data) == 0 {
		return fail(StageGenerate, apperrors.MalformedExternalOutput("image generator returned no data"))
	}

	gen := &domain.Generation{
		ID:             uuid.New(),
		SessionID:      session.ID,
		ProjectID:      session.ProjectID,
		UserID:         input.UserID,
		OriginalPrompt: input.Prompt,
		FinalPrompt:    finalPrompt,
		Model:          img.Model,
		ParametersUsed: selection.Snapshot(),
	}

	if s.deps.Assets != nil {
		asset, err := s.deps.Assets.SaveAsset(ctx, session.ID, gen.ID.String()+extensionFor(img.MimeType), img.Data)
		if err != nil {
			return fail(StageStore, err)
		}
		gen.AssetPath = asset.Path
		gen.AssetURL = asset.URL
	}

	if err := s.deps.Generations.Create(ctx, gen); err != nil {
		return fail(StagePersist, err)
	}

	item.Status = ItemSucceeded
	item.Generation = gen
	item.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	return item
}

// preferences returns the adaptive system prompt and the learned likes and
// dislikes of a session, or just the base prompt when no insight is available
func (s *Service) preferences(ctx context.Context, sessionID uuid.UUID) prompting.Request {
	base := prompting.Request{SystemPrompt: s.config.BaseSystemPrompt}
	if s.deps.Insights == nil {
		return base
	}

	insight, err := s.deps.Insights.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("adaptive insight unavailable, using base prompt",
			slog.String("session_id", sessionID.String()),
			logger.Err(err))
		return base
	}

	return prompting.Request{
		SystemPrompt: adaptive.BuildAdaptiveSystemPrompt(base.SystemPrompt, insight),
		Emphasize:    insight.Loves,
		Avoid:        insight.Hates,
	}
}

// Rate records a rating on a generation and applies it to the session
// weights in one transaction. A generation without a snapshot still gets its
// rating recorded.
func (s *Service) Rate(ctx context.Context, generationID uuid.UUID, rating int, comment string) (*RateResult, error) {
	if !domain.IsValidRating(rating) {
		return nil, apperrors.InvalidRating(rating)
	}

	outcome, err := s.deps.Updater.ApplyRating(ctx, generationID, domain.RatingWrite{
		Rating:  rating,
		Scale:   domain.ScaleSigned,
		Comment: strings.TrimSpace(comment),
		RatedAt: s.now().UTC(),
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.DatabaseError(err)
	}
	gen := outcome.Generation

	if s.deps.Insights != nil {
		s.deps.Insights.Invalidate(ctx, gen.SessionID)
	}
	if s.deps.Tasks != nil {
		if err := s.deps.Tasks.EnqueueAdaptiveRefresh(ctx, gen.SessionID); err != nil {
			s.logger.Warn("failed to enqueue adaptive refresh",
				slog.String("session_id", gen.SessionID.String()),
				logger.Err(err))
		}
	}

	s.logger.Info("generation rated",
		slog.String("generation_id", generationID.String()),
		slog.String("session_id", gen.SessionID.String()),
		slog.Int("rating", rating),
		slog.Int("weights_changed", len(outcome.Changes)),
		slog.Bool("no_snapshot", outcome.NoSnapshot))

	return &RateResult{
		Generation:     gen,
		UpdatedWeights: outcome.Changes,
		NoSnapshot:     outcome.NoSnapshot,
	}, nil
}

// GetAdaptiveInsight returns the learned preferences of a session
func (s *Service) GetAdaptiveInsight(ctx context.Context, sessionID uuid.UUID) (*adaptive.Insight, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.deps.Insights == nil {
		return nil, apperrors.Internal("adaptive insights are not configured")
	}
	return s.deps.Insights.Get(ctx, sessionID)
}

// ListWeights returns the weight rows of a session
func (s *Service) ListWeights(ctx context.Context, sessionID uuid.UUID) ([]domain.WeightEntry, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	entries, err := s.deps.Store.List(ctx, sessionID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return entries, nil
}

// GetWeight returns one weight of a session, 100 when the row does not exist
func (s *Service) GetWeight(ctx context.Context, sessionID uuid.UUID, parameter, value string) (float64, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return 0, err
	}

	w, err := s.deps.Store.GetOne(ctx, sessionID, parameter, value)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return w, nil
}

// SetWeight overrides one weight of a session. The pair must belong to the
// session taxonomy; the stored value is clamped to the weight bounds.
func (s *Service) SetWeight(ctx context.Context, sessionID uuid.UUID, parameter, value string, weight float64) (float64, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if !session.GetTaxonomy().Contains(parameter, value) {
		return 0, apperrors.BadRequest(fmt.Sprintf("%s=%s is not part of the session taxonomy", parameter, value))
	}

	stored, err := s.deps.Store.SetOne(ctx, sessionID, parameter, value, weight)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}

	if s.deps.Insights != nil {
		s.deps.Insights.Invalidate(ctx, sessionID)
	}

	s.logger.Info("weight overridden",
		slog.String("session_id", sessionID.String()),
		slog.String("parameter", parameter),
		slog.String("value", value),
		slog.Float64("weight", stored))

	return stored, nil
}

// ListGenerations returns the generations of a session ordered by creation
func (s *Service) ListGenerations(ctx context.Context, sessionID uuid.UUID) ([]domain.Generation, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	gens, err := s.deps.Generations.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return gens, nil
}

// GetSession returns a session with its taxonomy
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	return s.getSession(ctx, sessionID)
}

func (s *Service) getSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	session, err := s.deps.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if session == nil {
		return nil, apperrors.RecordNotFound("session")
	}
	return session, nil
}

// extensionFor maps an image mime type to a file extension
func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/png", "":
		return ".png"
	default:
		return ".bin"
	}
}
