// Package repositories provides pgx-backed data access for the decision
// engine's aggregates. All methods read their connection (or transaction)
// from the database scope stored in context.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
	"github.com/synapse-dte/decision-engine/pkg/database"
	"github.com/synapse-dte/decision-engine/pkg/models"
)

// PhaseInstanceRepository provides data access for phase instances.
type PhaseInstanceRepository interface {
	// Create inserts a phase instance. Fails with ErrConflict if the
	// (cycle, report, phase) tuple already exists.
	Create(ctx context.Context, instance *models.PhaseInstance) error

	// GetByID returns a phase instance by id.
	GetByID(ctx context.Context, id uuid.UUID) (*models.PhaseInstance, error)

	// GetByKey returns the phase instance for a (cycle, report, phase) tuple.
	GetByKey(ctx context.Context, cycleID, reportID uuid.UUID, phase models.PhaseKind) (*models.PhaseInstance, error)
}

type phaseInstanceRepository struct{}

// NewPhaseInstanceRepository creates a new PhaseInstanceRepository.
func NewPhaseInstanceRepository() PhaseInstanceRepository {
	return &phaseInstanceRepository{}
}

var _ PhaseInstanceRepository = (*phaseInstanceRepository)(nil)

func (r *phaseInstanceRepository) Create(ctx context.Context, instance *models.PhaseInstance) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		INSERT INTO phase_instances (cycle_id, report_id, phase, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	now := time.Now()
	err := scope.Conn.QueryRow(ctx, query,
		instance.CycleID,
		instance.ReportID,
		string(instance.Phase),
		now,
	).Scan(&instance.ID, &instance.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("phase instance already exists: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create phase instance: %w", err)
	}

	return nil
}

func (r *phaseInstanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PhaseInstance, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT id, cycle_id, report_id, phase, created_at
		FROM phase_instances
		WHERE id = $1`

	return scanPhaseInstance(scope.Conn.QueryRow(ctx, query, id))
}

func (r *phaseInstanceRepository) GetByKey(ctx context.Context, cycleID, reportID uuid.UUID, phase models.PhaseKind) (*models.PhaseInstance, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT id, cycle_id, report_id, phase, created_at
		FROM phase_instances
		WHERE cycle_id = $1 AND report_id = $2 AND phase = $3`

	return scanPhaseInstance(scope.Conn.QueryRow(ctx, query, cycleID, reportID, string(phase)))
}

func scanPhaseInstance(row pgx.Row) (*models.PhaseInstance, error) {
	var instance models.PhaseInstance
	var phase string

	err := row.Scan(
		&instance.ID,
		&instance.CycleID,
		&instance.ReportID,
		&phase,
		&instance.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("phase instance: %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan phase instance: %w", err)
	}

	instance.Phase = models.PhaseKind(phase)
	return &instance, nil
}
