package weights

import (
	"context"
	"sync"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/google/uuid"
)

// mockWeightRepository implements WeightRepository in memory
type mockWeightRepository struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]map[domain.ParameterKey]float64
	writes  int
	failErr error
}

func newMockWeightRepository() *mockWeightRepository {
	return &mockWeightRepository{rows: make(map[uuid.UUID]map[domain.ParameterKey]float64)}
}

func (m *mockWeightRepository) session(id uuid.UUID) map[domain.ParameterKey]float64 {
	if m.rows[id] == nil {
		m.rows[id] = make(map[domain.ParameterKey]float64)
	}
	return m.rows[id]
}

func (m *mockWeightRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.WeightEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]domain.WeightEntry, 0, len(m.rows[sessionID]))
	for k, w := range m.rows[sessionID] {
		entries = append(entries, domain.WeightEntry{
			SessionID:      sessionID,
			ParameterName:  k.Parameter,
			ParameterValue: k.Value,
			Weight:         w,
		})
	}
	return entries, nil
}

func (m *mockWeightRepository) Get(ctx context.Context, sessionID uuid.UUID, parameter, value string) (*domain.WeightEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.rows[sessionID][domain.ParameterKey{Parameter: parameter, Value: value}]
	if !ok {
		return nil, nil
	}
	return &domain.WeightEntry{SessionID: sessionID, ParameterName: parameter, ParameterValue: value, Weight: w}, nil
}

func (m *mockWeightRepository) Upsert(ctx context.Context, sessionID uuid.UUID, parameter, value string, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(sessionID)[domain.ParameterKey{Parameter: parameter, Value: value}] = weight
	m.writes++
	return nil
}

func (m *mockWeightRepository) weight(sessionID uuid.UUID, parameter, value string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.rows[sessionID][domain.ParameterKey{Parameter: parameter, Value: value}]
	return w, ok
}

// mockGenerations implements RatingHistory
type mockGenerations struct {
	byID  map[uuid.UUID]*domain.Generation
	rated []domain.Generation
}

func newMockGenerations() *mockGenerations {
	return &mockGenerations{byID: make(map[uuid.UUID]*domain.Generation)}
}

func (m *mockGenerations) add(g *domain.Generation) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	m.byID[g.ID] = g
	if g.Rating != nil {
		m.rated = append(m.rated, *g)
	}
}

func (m *mockGenerations) ListRatedByProject(ctx context.Context, projectID, excludeSessionID uuid.UUID) ([]domain.Generation, error) {
	out := make([]domain.Generation, 0, len(m.rated))
	for _, g := range m.rated {
		if g.ProjectID == projectID && g.SessionID != excludeSessionID {
			out = append(out, g)
		}
	}
	return out, nil
}

// mockRatings implements RatingRepository over the weight and generation mocks.
// A failErr on the weight repository rolls the whole rating back.
type mockRatings struct {
	weights     *mockWeightRepository
	generations *mockGenerations
}

func newMockRatings(weights *mockWeightRepository, generations *mockGenerations) *mockRatings {
	return &mockRatings{weights: weights, generations: generations}
}

func (m *mockRatings) ApplyRating(ctx context.Context, id uuid.UUID, write domain.RatingWrite, plan domain.RatingPlanner) (*domain.Generation, []domain.WeightChange, error) {
	m.weights.mu.Lock()
	defer m.weights.mu.Unlock()

	stored, ok := m.generations.byID[id]
	if !ok {
		return nil, nil, nil
	}
	gen := *stored

	keys, weightPlan, err := plan(&gen)
	if err != nil {
		return nil, nil, err
	}
	if m.weights.failErr != nil {
		return nil, nil, m.weights.failErr
	}

	rows := m.weights.session(gen.SessionID)
	changes := make([]domain.WeightChange, 0, len(keys))
	applied := make([]domain.WeightDelta, 0, len(keys))
	for _, k := range keys {
		old, ok := rows[k]
		if !ok {
			old = domain.DefaultWeight
		}
		next, contributed := weightPlan(k, old)
		rows[k] = next
		m.weights.writes++
		changes = append(changes, domain.WeightChange{Parameter: k.Parameter, Value: k.Value, OldWeight: old, NewWeight: next})
		applied = append(applied, domain.WeightDelta{Parameter: k.Parameter, Value: k.Value, Delta: contributed})
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
	m.generations.byID[id] = &gen

	out := gen
	return &out, changes, nil
}

func intPtr(v int) *int { return &v }
