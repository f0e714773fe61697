package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
	"github.com/synapse-dte/decision-engine/pkg/models"
	"github.com/synapse-dte/decision-engine/pkg/repositories"
)

// PhaseService registers phase instances: one per (cycle, report, phase)
// tuple. Opening is idempotent so orchestration retries are harmless.
type PhaseService struct {
	logger         *zap.Logger
	runInTx        TxRunner
	phaseInstances repositories.PhaseInstanceRepository
}

// NewPhaseService creates a new PhaseService.
func NewPhaseService(logger *zap.Logger, runInTx TxRunner, phaseInstances repositories.PhaseInstanceRepository) *PhaseService {
	return &PhaseService{
		logger:         logger,
		runInTx:        runInTx,
		phaseInstances: phaseInstances,
	}
}

// OpenPhase registers a phase instance for a cycle/report pair, returning the
// existing instance when the tuple was opened before.
func (s *PhaseService) OpenPhase(ctx context.Context, cycleID, reportID uuid.UUID, phase models.PhaseKind) (*models.PhaseInstance, error) {
	if cycleID == uuid.Nil || reportID == uuid.Nil {
		return nil, fmt.Errorf("cycle id and report id are required: %w", apperrors.ErrValidation)
	}
	kind, err := models.ParsePhaseKind(string(phase))
	if err != nil {
		return nil, err
	}

	var instance *models.PhaseInstance
	err = s.runInTx(ctx, func(ctx context.Context) error {
		existing, err := s.phaseInstances.GetByKey(ctx, cycleID, reportID, kind)
		if err == nil {
			instance = existing
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		instance = &models.PhaseInstance{
			CycleID:  cycleID,
			ReportID: reportID,
			Phase:    kind,
		}
		err = s.phaseInstances.Create(ctx, instance)
		if err != nil && errors.Is(err, apperrors.ErrConflict) {
			// Lost a race with a concurrent opener; adopt its instance.
			instance, err = s.phaseInstances.GetByKey(ctx, cycleID, reportID, kind)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("phase instance open",
		zap.String("phase_instance_id", instance.ID.String()),
		zap.String("cycle_id", cycleID.String()),
		zap.String("report_id", reportID.String()),
		zap.String("phase", string(kind)))
	return instance, nil
}

// GetPhase returns a phase instance by id.
func (s *PhaseService) GetPhase(ctx context.Context, id uuid.UUID) (*models.PhaseInstance, error) {
	return s.phaseInstances.GetByID(ctx, id)
}
