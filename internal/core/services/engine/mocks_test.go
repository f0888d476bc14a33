package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/core/services/prompting"
	"github.com/alejandroruanova/preference-engine/internal/core/services/taxonomy"
	"github.com/google/uuid"
)

// textModel answers both structured and free-form text requests
type textModel interface {
	taxonomy.TextGenerator
	prompting.TextGenerator
}

// memoryDB implements every repository the engine needs, in memory
type memoryDB struct {
	mu          sync.Mutex
	projects    map[uuid.UUID]*domain.Project
	sessions    map[uuid.UUID]*domain.Session
	weights     map[uuid.UUID]map[domain.ParameterKey]float64
	generations map[uuid.UUID]*domain.Generation
	order       []uuid.UUID
	failCreate  bool

	// failRating fails the next rating after its weight changes were planned
	failRating error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		projects:    make(map[uuid.UUID]*domain.Project),
		sessions:    make(map[uuid.UUID]*domain.Session),
		weights:     make(map[uuid.UUID]map[domain.ParameterKey]float64),
		generations: make(map[uuid.UUID]*domain.Generation),
	}
}

type projectRepo struct{ db *memoryDB }

func (r projectRepo) Create(ctx context.Context, p *domain.Project) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.db.projects[p.ID] = p
	return nil
}

func (r projectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.projects[id], nil
}

func (r projectRepo) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Project
	for _, p := range r.db.projects {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type sessionRepo struct{ db *memoryDB }

func (r sessionRepo) CreateInitialized(ctx context.Context, s *domain.Session, entries []domain.WeightEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failCreate {
		return fmt.Errorf("insert failed")
	}
	r.db.sessions[s.ID] = s
	rows := make(map[domain.ParameterKey]float64, len(entries))
	for _, e := range entries {
		rows[e.Key()] = e.Weight
	}
	r.db.weights[s.ID] = rows
	return nil
}

func (r sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.sessions[id], nil
}

func (r sessionRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Session
	for _, s := range r.db.sessions {
		if s.ProjectID == projectID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type weightRepo struct{ db *memoryDB }

func (r weightRepo) rows(sessionID uuid.UUID) map[domain.ParameterKey]float64 {
	if r.db.weights[sessionID] == nil {
		r.db.weights[sessionID] = make(map[domain.ParameterKey]float64)
	}
	return r.db.weights[sessionID]
}

func (r weightRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.WeightEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entries := make([]domain.WeightEntry, 0)
	for k, w := range r.db.weights[sessionID] {
		entries = append(entries, domain.WeightEntry{SessionID: sessionID, ParameterName: k.Parameter, ParameterValue: k.Value, Weight: w})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ParameterName != entries[j].ParameterName {
			return entries[i].ParameterName < entries[j].ParameterName
		}
		return entries[i].ParameterValue < entries[j].ParameterValue
	})
	return entries, nil
}

func (r weightRepo) Get(ctx context.Context, sessionID uuid.UUID, parameter, value string) (*domain.WeightEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w, ok := r.db.weights[sessionID][domain.ParameterKey{Parameter: parameter, Value: value}]
	if !ok {
		return nil, nil
	}
	return &domain.WeightEntry{SessionID: sessionID, ParameterName: parameter, ParameterValue: value, Weight: w}, nil
}

func (r weightRepo) Upsert(ctx context.Context, sessionID uuid.UUID, parameter, value string, weight float64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.rows(sessionID)[domain.ParameterKey{Parameter: parameter, Value: value}] = weight
	return nil
}

type generationRepo struct{ db *memoryDB }

func (r generationRepo) Create(ctx context.Context, g *domain.Generation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.RatingScale == "" {
		g.RatingScale = domain.ScaleSigned
	}
	g.CreatedAt = time.Now()
	copied := *g
	r.db.generations[g.ID] = &copied
	r.db.order = append(r.db.order, g.ID)
	return nil
}

func (r generationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.generations[id]
	if !ok {
		return nil, nil
	}
	copied := *g
	return &copied, nil
}

// ApplyRating commits the planned weights and the rating together, or neither
func (r generationRepo) ApplyRating(ctx context.Context, id uuid.UUID, write domain.RatingWrite, plan domain.RatingPlanner) (*domain.Generation, []domain.WeightChange, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.generations[id]
	if !ok {
		return nil, nil, nil
	}
	gen := *stored

	keys, weightPlan, err := plan(&gen)
	if err != nil {
		return nil, nil, err
	}

	rows := r.db.weights[gen.SessionID]
	next := make(map[domain.ParameterKey]float64, len(keys))
	changes := make([]domain.WeightChange, 0, len(keys))
	applied := make([]domain.WeightDelta, 0, len(keys))
	for _, k := range keys {
		old, ok := rows[k]
		if !ok {
			old = domain.DefaultWeight
		}
		w, contributed := weightPlan(k, old)
		next[k] = w
		changes = append(changes, domain.WeightChange{Parameter: k.Parameter, Value: k.Value, OldWeight: old, NewWeight: w})
		applied = append(applied, domain.WeightDelta{Parameter: k.Parameter, Value: k.Value, Delta: contributed})
	}

	if r.db.failRating != nil {
		err := r.db.failRating
		r.db.failRating = nil
		return nil, nil, err
	}

	if rows == nil {
		rows = make(map[domain.ParameterKey]float64)
		r.db.weights[gen.SessionID] = rows
	}
	for k, w := range next {
		rows[k] = w
	}

	rating := write.Rating
	ratedAt := write.RatedAt
	gen.Rating = &rating
	gen.RatingScale = write.Scale
	gen.Comment = write.Comment
	gen.RatedAt = &ratedAt
	if len(keys) > 0 {
		gen.AppliedDeltas = applied
	}
	r.db.generations[id] = &gen

	out := gen
	return &out, changes, nil
}

func (r generationRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Generation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]domain.Generation, 0)
	for _, id := range r.db.order {
		if g := r.db.generations[id]; g.SessionID == sessionID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r generationRepo) ListRatedByProject(ctx context.Context, projectID, excludeSessionID uuid.UUID) ([]domain.Generation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]domain.Generation, 0)
	for _, id := range r.db.order {
		g := r.db.generations[id]
		if g.ProjectID == projectID && g.SessionID != excludeSessionID && g.Rating != nil {
			out = append(out, *g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RatedAt.Before(*out[j].RatedAt) })
	return out, nil
}

func (r generationRepo) ListRecentRated(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Generation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]domain.Generation, 0)
	for i := len(r.db.order) - 1; i >= 0; i-- {
		g := r.db.generations[r.db.order[i]]
		if g.SessionID == sessionID && g.Rating != nil {
			out = append(out, *g)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// mockImageGenerator fails every call whose prompt contains a marker
type mockImageGenerator struct {
	mu       sync.Mutex
	calls    int
	failures map[int]bool
}

func (m *mockImageGenerator) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	for idx := range m.failures {
		if strings.Contains(prompt, fmt.Sprintf("#%d", idx)) {
			return nil, fmt.Errorf("content policy violation")
		}
	}
	return &Image{Data: []byte("png-bytes"), MimeType: "image/png", Model: "test-image-model"}, nil
}

type mockAssetStore struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (m *mockAssetStore) SaveAsset(ctx context.Context, sessionID uuid.UUID, name string, data []byte) (*StoredAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[name] = data
	return &StoredAsset{Path: "/tmp/" + name, URL: "/assets/" + sessionID.String() + "/" + name, Size: int64(len(data))}, nil
}

type mockTasks struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
}

func (m *mockTasks) EnqueueAdaptiveRefresh(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, sessionID)
	return nil
}

// indexedText numbers every composed prompt so the image mock can fail specific items
type indexedText struct {
	mu   sync.Mutex
	next int
}

func (m *indexedText) GenerateText(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	return fmt.Sprintf("prompt #%d", m.next), nil
}

func (m *indexedText) GenerateStructuredText(ctx context.Context, system, user string) (string, error) {
	return "", fmt.Errorf("structured output unavailable")
}

// recordingText answers insight analysis with fixed lists and remembers the last composition request
type recordingText struct {
	mu       sync.Mutex
	lastUser string
}

func (m *recordingText) GenerateText(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUser = user
	return "composed prompt", nil
}

func (m *recordingText) GenerateStructuredText(ctx context.Context, system, user string) (string, error) {
	return `{"loves": ["warm light"], "hates": ["harsh shadows"], "suggestions": []}`, nil
}
