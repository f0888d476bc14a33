package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/core/services/adaptive"
	"github.com/alejandroruanova/preference-engine/internal/core/services/prompting"
	"github.com/alejandroruanova/preference-engine/internal/core/services/taxonomy"
	"github.com/alejandroruanova/preference-engine/internal/core/services/weights"
	apperrors "github.com/alejandroruanova/preference-engine/internal/pkg/errors"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingText struct{}

func (failingText) GenerateStructuredText(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("model unavailable")
}

func (failingText) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("model unavailable")
}

type testEnv struct {
	svc    *Service
	db     *memoryDB
	images *mockImageGenerator
	assets *mockAssetStore
	tasks  *mockTasks
}

func newTestEnv(t *testing.T, text textModel) *testEnv {
	t.Helper()

	db := newMemoryDB()
	log := logger.Discard()
	gens := generationRepo{db: db}
	wrepo := weightRepo{db: db}

	store := weights.NewStore(wrepo, gens, log)
	synth := adaptive.NewSynthesizer(adaptive.DefaultConfig(), gens, text, log)

	env := &testEnv{
		db:     db,
		images: &mockImageGenerator{failures: map[int]bool{}},
		assets: &mockAssetStore{},
		tasks:  &mockTasks{},
	}

	env.svc = NewService(DefaultConfig(), Dependencies{
		Projects:    projectRepo{db: db},
		Sessions:    sessionRepo{db: db},
		Generations: gens,
		Taxonomies:  taxonomy.NewBuilder(taxonomy.DefaultConfig(), text, log),
		Store:       store,
		Selector:    weights.NewSelector(store, rand.New(rand.NewPCG(3, 4)), log),
		Updater:     weights.NewUpdater(gens, log),
		Insights:    adaptive.NewService(adaptive.DefaultConfig(), synth, nil, log),
		Composer:    prompting.NewComposer(text, log),
		Images:      env.images,
		Assets:      env.assets,
		Tasks:       env.tasks,
	}, log)

	return env
}

func (e *testEnv) project(t *testing.T) *domain.Project {
	p, err := e.svc.CreateProject(context.Background(), CreateProjectInput{UserID: "user-1", Name: "Profile"})
	require.NoError(t, err)
	return p
}

func (e *testEnv) datingSession(t *testing.T, projectID uuid.UUID) *SessionResult {
	res, err := e.svc.CreateSession(context.Background(), CreateSessionInput{ProjectID: projectID, Category: "dating"})
	require.NoError(t, err)
	return res
}

func TestService_EndToEndDating(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()

	project := env.project(t)
	session := env.datingSession(t, project.ID)
	assert.Equal(t, 11, session.Taxonomy.Len())
	assert.Equal(t, taxonomy.SourceStatic, session.TaxonomySource)
	assert.Equal(t, session.Taxonomy.PairCount(), session.WeightsInitialized)

	sel, err := env.svc.SelectAndRecordGeneration(ctx, session.Session.ID)
	require.NoError(t, err)
	require.Len(t, sel.Snapshot, 11)
	for i, use := range sel.Snapshot {
		assert.Equal(t, session.Taxonomy.Categories[i].Name, use.Parameter)
		assert.Equal(t, 100.0, use.Weight)
	}

	gen, err := env.svc.RecordGeneration(ctx, RecordGenerationInput{
		SessionID:      session.Session.ID,
		OriginalPrompt: "me at a coffee shop",
		Snapshot:       sel.Snapshot,
	})
	require.NoError(t, err)

	rated, err := env.svc.Rate(ctx, gen.ID, 1, "nice")
	require.NoError(t, err)
	assert.Len(t, rated.UpdatedWeights, 11)
	require.NotNil(t, rated.Generation.Rating)
	assert.Equal(t, 1, *rated.Generation.Rating)
	assert.NotNil(t, rated.Generation.RatedAt)

	entries, err := env.svc.ListWeights(ctx, session.Session.ID)
	require.NoError(t, err)
	chosen := make(map[domain.ParameterKey]bool)
	for _, use := range sel.Snapshot {
		chosen[domain.ParameterKey{Parameter: use.Parameter, Value: use.Value}] = true
	}
	for _, e := range entries {
		if chosen[e.Key()] {
			assert.Equal(t, 105.0, e.Weight, e.Key())
		} else {
			assert.Equal(t, 100.0, e.Weight, e.Key())
		}
	}

	assert.Equal(t, []uuid.UUID{session.Session.ID}, env.tasks.enqueued)
}

func TestService_SessionInheritsProjectWeights(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()

	project := env.project(t)
	first := env.datingSession(t, project.ID)

	snapshot := []domain.ParameterUse{{Parameter: "lighting", Value: "golden_hour", Weight: 100}}
	gen, err := env.svc.RecordGeneration(ctx, RecordGenerationInput{SessionID: first.Session.ID, OriginalPrompt: "p", Snapshot: snapshot})
	require.NoError(t, err)
	_, err = env.svc.Rate(ctx, gen.ID, 3, "")
	require.NoError(t, err)

	second := env.datingSession(t, project.ID)
	entries, err := env.svc.ListWeights(ctx, second.Session.ID)
	require.NoError(t, err)

	for _, e := range entries {
		if e.ParameterName == "lighting" && e.ParameterValue == "golden_hour" {
			assert.Equal(t, 115.0, e.Weight)
		} else {
			assert.Equal(t, 100.0, e.Weight)
		}
	}
}

func TestService_GenerateBatchPartialSuccess(t *testing.T) {
	env := newTestEnv(t, &indexedText{})
	env.images.failures = map[int]bool{2: true, 4: true}
	ctx := context.Background()

	project := env.project(t)
	session := env.datingSession(t, project.ID)

	result, err := env.svc.GenerateBatch(ctx, GenerateBatchInput{SessionID: session.Session.ID, Prompt: "portrait", Count: 5})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 5, env.images.calls)

	for i, item := range result.Items {
		assert.Equal(t, i, item.Index)
		if item.Status == ItemFailed {
			assert.Equal(t, StageGenerate, item.Stage)
			assert.NotEmpty(t, item.Error)
			assert.Nil(t, item.Generation)
		}
	}

	gens, err := env.svc.ListGenerations(ctx, session.Session.ID)
	require.NoError(t, err)
	require.Len(t, gens, 3)
	for _, g := range gens {
		assert.Len(t, g.ParametersUsed, 11)
		assert.NotEmpty(t, g.AssetURL)
		assert.Equal(t, "portrait", g.OriginalPrompt)
	}
	assert.Len(t, env.assets.saved, 3)
}

func TestService_GenerateBatchValidation(t *testing.T) {
	env := newTestEnv(t, failingText{})
	project := env.project(t)
	session := env.datingSession(t, project.ID)

	_, err := env.svc.GenerateBatch(context.Background(), GenerateBatchInput{SessionID: session.Session.ID, Prompt: "p", Count: 0})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))

	_, err = env.svc.GenerateBatch(context.Background(), GenerateBatchInput{SessionID: session.Session.ID, Prompt: "p", Count: 11})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))

	_, err = env.svc.GenerateBatch(context.Background(), GenerateBatchInput{SessionID: uuid.New(), Prompt: "p", Count: 1})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRecordNotFound))
}

func TestService_GenerateBatchTemplateFallback(t *testing.T) {
	env := newTestEnv(t, failingText{})
	project := env.project(t)
	session := env.datingSession(t, project.ID)

	result, err := env.svc.GenerateBatch(context.Background(), GenerateBatchInput{SessionID: session.Session.ID, Prompt: "portrait", Count: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Successful)
	for _, item := range result.Items {
		assert.True(t, item.UsedTemplate)
		assert.Contains(t, item.Generation.FinalPrompt, "portrait. setting: ")
	}
}

func TestService_CreateSessionFailures(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()
	project := env.project(t)

	_, err := env.svc.CreateSession(ctx, CreateSessionInput{ProjectID: project.ID, Category: "landscapes"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionInitFailed))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTaxonomyBuildFailed))
	assert.Empty(t, env.db.sessions, "nothing persisted on failure")

	_, err = env.svc.CreateSession(ctx, CreateSessionInput{ProjectID: uuid.New(), Category: "dating"})
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeSessionInitFailed, appErr.Code)
	assert.Equal(t, 404, appErr.StatusCode)

	env.db.failCreate = true
	_, err = env.svc.CreateSession(ctx, CreateSessionInput{ProjectID: project.ID, Category: "dating"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionInitFailed))
	assert.Empty(t, env.db.sessions)
	assert.Empty(t, env.db.weights)
}

func TestService_RateValidationAndNoSnapshot(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()
	project := env.project(t)
	session := env.datingSession(t, project.ID)

	_, err := env.svc.Rate(ctx, uuid.New(), 2, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRating))

	_, err = env.svc.Rate(ctx, uuid.New(), 1, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRecordNotFound))

	legacy, err := env.svc.RecordGeneration(ctx, RecordGenerationInput{SessionID: session.Session.ID, OriginalPrompt: "old"})
	require.NoError(t, err)

	res, err := env.svc.Rate(ctx, legacy.ID, -3, "meh")
	require.NoError(t, err)
	assert.True(t, res.NoSnapshot)
	assert.Empty(t, res.UpdatedWeights)
	require.NotNil(t, res.Generation.Rating)
	assert.Equal(t, -3, *res.Generation.Rating)
	assert.Equal(t, "meh", res.Generation.Comment)
}

func TestService_GetAdaptiveInsight(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()
	project := env.project(t)
	session := env.datingSession(t, project.ID)

	insight, err := env.svc.GetAdaptiveInsight(ctx, session.Session.ID)
	require.NoError(t, err)
	assert.False(t, insight.HasHistory)

	sel, err := env.svc.SelectAndRecordGeneration(ctx, session.Session.ID)
	require.NoError(t, err)
	gen, err := env.svc.RecordGeneration(ctx, RecordGenerationInput{SessionID: session.Session.ID, OriginalPrompt: "p", Snapshot: sel.Snapshot})
	require.NoError(t, err)
	_, err = env.svc.Rate(ctx, gen.ID, 3, "")
	require.NoError(t, err)

	insight, err = env.svc.GetAdaptiveInsight(ctx, session.Session.ID)
	require.NoError(t, err)
	assert.True(t, insight.HasHistory)
	assert.True(t, insight.StatisticalOnly)
	assert.Equal(t, 1, insight.LikedCount)

	_, err = env.svc.GetAdaptiveInsight(ctx, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRecordNotFound))
}

func TestService_CreateProjectValidation(t *testing.T) {
	env := newTestEnv(t, failingText{})

	_, err := env.svc.CreateProject(context.Background(), CreateProjectInput{UserID: "u"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))

	_, err = env.svc.CreateProject(context.Background(), CreateProjectInput{Name: "n"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))
}

func TestService_WeightOverride(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()

	session := env.datingSession(t, env.project(t).ID)
	sessionID := session.Session.ID
	category := session.Taxonomy.Categories[0]

	w, err := env.svc.GetWeight(ctx, sessionID, category.Name, category.Values[0])
	require.NoError(t, err)
	assert.Equal(t, 100.0, w)

	stored, err := env.svc.SetWeight(ctx, sessionID, category.Name, category.Values[0], 240)
	require.NoError(t, err)
	assert.Equal(t, 200.0, stored)

	w, err = env.svc.GetWeight(ctx, sessionID, category.Name, category.Values[0])
	require.NoError(t, err)
	assert.Equal(t, 200.0, w)

	_, err = env.svc.SetWeight(ctx, sessionID, category.Name, "not_a_value", 50)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))

	_, err = env.svc.GetWeight(ctx, uuid.New(), category.Name, category.Values[0])
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRecordNotFound))
}

func TestService_RateFailureLeavesWeightsUntouched(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()
	project := env.project(t)
	session := env.datingSession(t, project.ID)
	sessionID := session.Session.ID

	snapshot := []domain.ParameterUse{{Parameter: "lighting", Value: "golden_hour", Weight: 100}}
	gen, err := env.svc.RecordGeneration(ctx, RecordGenerationInput{SessionID: sessionID, OriginalPrompt: "p", Snapshot: snapshot})
	require.NoError(t, err)

	env.db.failRating = errors.New("connection reset")
	_, err = env.svc.Rate(ctx, gen.ID, 1, "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseError))

	w, err := env.svc.GetWeight(ctx, sessionID, "lighting", "golden_hour")
	require.NoError(t, err)
	assert.Equal(t, 100.0, w)
	stored, err := generationRepo{db: env.db}.GetByID(ctx, gen.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Rating)
	assert.Empty(t, env.tasks.enqueued)

	res, err := env.svc.Rate(ctx, gen.ID, 3, "")
	require.NoError(t, err)
	require.NotNil(t, res.Generation.Rating)
	assert.Equal(t, 3, *res.Generation.Rating)

	w, err = env.svc.GetWeight(ctx, sessionID, "lighting", "golden_hour")
	require.NoError(t, err)
	assert.Equal(t, 115.0, w)

	next := env.datingSession(t, project.ID)
	w, err = env.svc.GetWeight(ctx, next.Session.ID, "lighting", "golden_hour")
	require.NoError(t, err)
	assert.Equal(t, 115.0, w)
}

func TestService_ReRatingReplacesPreviousRating(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()
	session := env.datingSession(t, env.project(t).ID)
	sessionID := session.Session.ID

	snapshot := []domain.ParameterUse{{Parameter: "lighting", Value: "golden_hour", Weight: 100}}
	gen, err := env.svc.RecordGeneration(ctx, RecordGenerationInput{SessionID: sessionID, OriginalPrompt: "p", Snapshot: snapshot})
	require.NoError(t, err)

	steps := []struct {
		rating int
		want   float64
	}{
		{3, 115},
		{3, 115},
		{-1, 95},
		{1, 105},
	}
	for _, step := range steps {
		_, err := env.svc.Rate(ctx, gen.ID, step.rating, "")
		require.NoError(t, err)

		w, err := env.svc.GetWeight(ctx, sessionID, "lighting", "golden_hour")
		require.NoError(t, err)
		assert.Equal(t, step.want, w, "after rating %d", step.rating)
	}
}

func TestService_RecordGenerationValidatesSnapshot(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()
	session := env.datingSession(t, env.project(t).ID)

	tests := []struct {
		name     string
		snapshot []domain.ParameterUse
	}{
		{"unknown parameter", []domain.ParameterUse{{Parameter: "mood", Value: "happy", Weight: 100}}},
		{"unknown value", []domain.ParameterUse{{Parameter: "lighting", Value: "neon", Weight: 100}}},
		{"weight above bound", []domain.ParameterUse{{Parameter: "lighting", Value: "golden_hour", Weight: 250}}},
		{"negative weight", []domain.ParameterUse{{Parameter: "lighting", Value: "golden_hour", Weight: -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.RecordGeneration(ctx, RecordGenerationInput{
				SessionID:      session.Session.ID,
				OriginalPrompt: "p",
				Snapshot:       tt.snapshot,
			})
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))
		})
	}

	gens, err := env.svc.ListGenerations(ctx, session.Session.ID)
	require.NoError(t, err)
	assert.Empty(t, gens)
}

func TestService_GenerateBatchUsesLearnedPreferences(t *testing.T) {
	text := &recordingText{}
	env := newTestEnv(t, text)
	ctx := context.Background()
	session := env.datingSession(t, env.project(t).ID)

	snapshot := []domain.ParameterUse{{Parameter: "lighting", Value: "golden_hour", Weight: 100}}
	gen, err := env.svc.RecordGeneration(ctx, RecordGenerationInput{SessionID: session.Session.ID, OriginalPrompt: "p", Snapshot: snapshot})
	require.NoError(t, err)
	_, err = env.svc.Rate(ctx, gen.ID, 3, "love the warm light")
	require.NoError(t, err)

	result, err := env.svc.GenerateBatch(ctx, GenerateBatchInput{SessionID: session.Session.ID, Prompt: "portrait", Count: 1})
	require.NoError(t, err)
	require.Equal(t, 1, result.Successful)
	assert.True(t, result.Adaptive)
	assert.False(t, result.Items[0].UsedTemplate)

	assert.Contains(t, text.lastUser, "Emphasize:\n- warm light\n")
	assert.Contains(t, text.lastUser, "Avoid:\n- harsh shadows\n")
}

func TestService_ListProjectsAndSessions(t *testing.T) {
	env := newTestEnv(t, failingText{})
	ctx := context.Background()

	project := env.project(t)
	_, err := env.svc.CreateProject(ctx, CreateProjectInput{UserID: "user-2", Name: "Other"})
	require.NoError(t, err)

	projects, err := env.svc.ListProjects(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)

	projects, err = env.svc.ListProjects(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, projects)

	_, err = env.svc.ListProjects(ctx, " ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))

	session := env.datingSession(t, project.ID)
	sessions, err := env.svc.ListSessions(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.Session.ID, sessions[0].ID)

	_, err = env.svc.ListSessions(ctx, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRecordNotFound))
}
