package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WeightRepository implements weights.WeightRepository using GORM
type WeightRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewWeightRepository creates a new repository instance
func NewWeightRepository(db *gorm.DB, logger *slog.Logger) *WeightRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &WeightRepository{
		db:     db,
		logger: logger,
	}
}

// upsertWeight resolves conflicts on the (session, parameter, value) key
var upsertWeight = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "session_id"},
		{Name: "parameter_name"},
		{Name: "parameter_value"},
	},
	DoUpdates: clause.AssignmentColumns([]string{"weight", "updated_at"}),
}

// ListBySession returns every weight row of a session ordered by parameter then value
func (r *WeightRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.WeightEntry, error) {
	var entries []domain.WeightEntry

	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("parameter_name ASC, parameter_value ASC").
		Find(&entries).
		Error

	if err != nil {
		r.logger.Error("failed to list weights",
			slog.String("session_id", sessionID.String()),
			logger.Err(err))
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return entries, nil
}

// Get returns one weight row, or nil when it does not exist
func (r *WeightRepository) Get(ctx context.Context, sessionID uuid.UUID, parameter, value string) (*domain.WeightEntry, error) {
	var entry domain.WeightEntry

	err := r.db.WithContext(ctx).
		Where("session_id = ? AND parameter_name = ? AND parameter_value = ?", sessionID, parameter, value).
		First(&entry).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return &entry, nil
}

// Upsert writes an absolute weight, creating the row if needed
func (r *WeightRepository) Upsert(ctx context.Context, sessionID uuid.UUID, parameter, value string, weight float64) error {
	entry := domain.WeightEntry{
		SessionID:      sessionID,
		ParameterName:  parameter,
		ParameterValue: value,
		Weight:         weight,
	}

	if err := r.db.WithContext(ctx).Clauses(upsertWeight).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to upsert weight: %w", err)
	}
	return nil
}

// mutateWeights applies plan to every key inside tx.
// Existing rows are locked with SELECT ... FOR UPDATE; missing rows start at
// domain.DefaultWeight and are inserted.
func mutateWeights(tx *gorm.DB, sessionID uuid.UUID, keys []domain.ParameterKey, plan domain.WeightPlan) ([]domain.WeightChange, []domain.WeightDelta, error) {
	names := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k.Parameter] {
			seen[k.Parameter] = true
			names = append(names, k.Parameter)
		}
	}

	var rows []domain.WeightEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ? AND parameter_name IN ?", sessionID, names).
		Find(&rows).
		Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock weights: %w", err)
	}

	existing := make(map[domain.ParameterKey]*domain.WeightEntry, len(rows))
	for i := range rows {
		existing[rows[i].Key()] = &rows[i]
	}

	changes := make([]domain.WeightChange, 0, len(keys))
	applied := make([]domain.WeightDelta, 0, len(keys))
	now := time.Now().UTC()
	for _, k := range keys {
		old := domain.DefaultWeight
		row, ok := existing[k]
		if ok {
			old = row.Weight
		}
		next, contributed := plan(k, old)

		if ok {
			err = tx.Model(&domain.WeightEntry{}).
				Where("id = ?", row.ID).
				Updates(map[string]interface{}{"weight": next, "updated_at": now}).
				Error
		} else {
			err = tx.Clauses(upsertWeight).Create(&domain.WeightEntry{
				SessionID:      sessionID,
				ParameterName:  k.Parameter,
				ParameterValue: k.Value,
				Weight:         next,
			}).Error
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to write weight %s=%s: %w", k.Parameter, k.Value, err)
		}

		changes = append(changes, domain.WeightChange{
			Parameter: k.Parameter,
			Value:     k.Value,
			OldWeight: old,
			NewWeight: next,
		})
		applied = append(applied, domain.WeightDelta{
			Parameter: k.Parameter,
			Value:     k.Value,
			Delta:     contributed,
		})
	}

	return changes, applied, nil
}
