package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
	"github.com/synapse-dte/decision-engine/pkg/database"
	"github.com/synapse-dte/decision-engine/pkg/models"
)

// VersionRepository provides data access for decision versions. Status
// transitions are guarded UPDATEs conditioned on the expected current
// status, so racing callers are serialized by the database: exactly one
// transition wins and the loser observes zero affected rows.
type VersionRepository interface {
	// Create inserts a version. The partial unique index over active
	// versions turns a racing creation into ErrConflict.
	Create(ctx context.Context, version *models.Version) error

	// GetByID returns a version by id.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Version, error)

	// GetActive returns the draft or pending-approval version of a phase
	// instance, or nil when none exists.
	GetActive(ctx context.Context, phaseInstanceID uuid.UUID) (*models.Version, error)

	// ListByPhaseInstance returns all versions of a phase instance, newest
	// first.
	ListByPhaseInstance(ctx context.Context, phaseInstanceID uuid.UUID) ([]*models.Version, error)

	// MaxVersionNumber returns the highest version number assigned within a
	// phase instance, or 0 when no versions exist.
	MaxVersionNumber(ctx context.Context, phaseInstanceID uuid.UUID) (int, error)

	// MarkSubmitted moves a draft version to pending_approval. Returns
	// false without error when the version was not in draft (lost race or
	// invalid state; the caller decides which).
	MarkSubmitted(ctx context.Context, id, actorID uuid.UUID, at time.Time) (bool, error)

	// MarkApproved moves a pending-approval version to approved.
	MarkApproved(ctx context.Context, id, actorID uuid.UUID, notes *string, at time.Time) (bool, error)

	// MarkRejected moves a pending-approval version to rejected.
	MarkRejected(ctx context.Context, id, actorID uuid.UUID, reason string, requestedChanges map[string]any, at time.Time) (bool, error)

	// MarkSuperseded marks a version superseded. Used when its successor
	// is approved.
	MarkSuperseded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// UpdateSummary writes the recomputed item counters.
	UpdateSummary(ctx context.Context, id uuid.UUID, summary models.VersionSummary) error
}

type versionRepository struct{}

// NewVersionRepository creates a new VersionRepository.
func NewVersionRepository() VersionRepository {
	return &versionRepository{}
}

var _ VersionRepository = (*versionRepository)(nil)

const versionColumns = `
	id, phase_instance_id, version_number, status, parent_version_id,
	total_items, approved_items, rejected_items, pending_items,
	needs_resubmission_items, override_items, auto_approved_items,
	carried_items, reviewer_undecided_items,
	submitted_by, submitted_at, approved_by, approved_at, approval_notes,
	rejected_by, rejected_at, rejection_reason, requested_changes,
	created_by, created_at, updated_at`

func (r *versionRepository) Create(ctx context.Context, version *models.Version) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		INSERT INTO decision_versions (
			phase_instance_id, version_number, status, parent_version_id, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	err := scope.Conn.QueryRow(ctx, query,
		version.PhaseInstanceID,
		version.VersionNumber,
		string(version.Status),
		version.ParentVersionID,
		version.CreatedBy,
		now,
	).Scan(&version.ID, &version.CreatedAt, &version.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("phase instance already has an active version: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create version: %w", err)
	}

	return nil
}

func (r *versionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT ` + versionColumns + ` FROM decision_versions WHERE id = $1`
	version, err := scanVersion(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, fmt.Errorf("version %s: %w", id, apperrors.ErrNotFound)
	}
	return version, nil
}

func (r *versionRepository) GetActive(ctx context.Context, phaseInstanceID uuid.UUID) (*models.Version, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + versionColumns + `
		FROM decision_versions
		WHERE phase_instance_id = $1 AND status IN ('draft', 'pending_approval')`

	return scanVersion(scope.Conn.QueryRow(ctx, query, phaseInstanceID))
}

func (r *versionRepository) ListByPhaseInstance(ctx context.Context, phaseInstanceID uuid.UUID) ([]*models.Version, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + versionColumns + `
		FROM decision_versions
		WHERE phase_instance_id = $1
		ORDER BY version_number DESC`

	rows, err := scope.Conn.Query(ctx, query, phaseInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.Version
	for rows.Next() {
		version, err := scanVersionFromRows(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

func (r *versionRepository) MaxVersionNumber(ctx context.Context, phaseInstanceID uuid.UUID) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, database.ErrNoScope
	}

	query := `
		SELECT COALESCE(MAX(version_number), 0)
		FROM decision_versions
		WHERE phase_instance_id = $1`

	var max int
	if err := scope.Conn.QueryRow(ctx, query, phaseInstanceID).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get max version number: %w", err)
	}
	return max, nil
}

func (r *versionRepository) MarkSubmitted(ctx context.Context, id, actorID uuid.UUID, at time.Time) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, database.ErrNoScope
	}

	query := `
		UPDATE decision_versions
		SET status = 'pending_approval', submitted_by = $2, submitted_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'draft'`

	result, err := scope.Conn.Exec(ctx, query, id, actorID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark version submitted: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *versionRepository) MarkApproved(ctx context.Context, id, actorID uuid.UUID, notes *string, at time.Time) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, database.ErrNoScope
	}

	query := `
		UPDATE decision_versions
		SET status = 'approved', approved_by = $2, approved_at = $3, approval_notes = $4, updated_at = $3
		WHERE id = $1 AND status = 'pending_approval'`

	result, err := scope.Conn.Exec(ctx, query, id, actorID, at, notes)
	if err != nil {
		return false, fmt.Errorf("failed to mark version approved: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *versionRepository) MarkRejected(ctx context.Context, id, actorID uuid.UUID, reason string, requestedChanges map[string]any, at time.Time) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, database.ErrNoScope
	}

	var changes any
	if len(requestedChanges) > 0 {
		changes = requestedChanges
	}

	query := `
		UPDATE decision_versions
		SET status = 'rejected', rejected_by = $2, rejected_at = $3, rejection_reason = $4,
		    requested_changes = $5, updated_at = $3
		WHERE id = $1 AND status = 'pending_approval'`

	result, err := scope.Conn.Exec(ctx, query, id, actorID, at, reason, changes)
	if err != nil {
		return false, fmt.Errorf("failed to mark version rejected: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *versionRepository) MarkSuperseded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, database.ErrNoScope
	}

	query := `
		UPDATE decision_versions
		SET status = 'superseded', updated_at = $2
		WHERE id = $1 AND status IN ('approved', 'rejected')`

	result, err := scope.Conn.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark version superseded: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *versionRepository) UpdateSummary(ctx context.Context, id uuid.UUID, summary models.VersionSummary) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		UPDATE decision_versions
		SET total_items = $2, approved_items = $3, rejected_items = $4, pending_items = $5,
		    needs_resubmission_items = $6, override_items = $7, auto_approved_items = $8,
		    carried_items = $9, reviewer_undecided_items = $10, updated_at = $11
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query, id,
		summary.TotalItems,
		summary.ApprovedItems,
		summary.RejectedItems,
		summary.PendingItems,
		summary.NeedsResubmission,
		summary.OverrideItems,
		summary.AutoApprovedItems,
		summary.CarriedItems,
		summary.ReviewerUndecided,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update version summary: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("version %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// Helper functions

func scanVersion(row pgx.Row) (*models.Version, error) {
	version, err := scanVersionInto(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return version, nil
}

func scanVersionFromRows(rows pgx.Rows) (*models.Version, error) {
	return scanVersionInto(rows.Scan)
}

func scanVersionInto(scan func(dest ...any) error) (*models.Version, error) {
	var v models.Version
	var status string
	var requestedChanges []byte

	err := scan(
		&v.ID,
		&v.PhaseInstanceID,
		&v.VersionNumber,
		&status,
		&v.ParentVersionID,
		&v.Summary.TotalItems,
		&v.Summary.ApprovedItems,
		&v.Summary.RejectedItems,
		&v.Summary.PendingItems,
		&v.Summary.NeedsResubmission,
		&v.Summary.OverrideItems,
		&v.Summary.AutoApprovedItems,
		&v.Summary.CarriedItems,
		&v.Summary.ReviewerUndecided,
		&v.SubmittedBy,
		&v.SubmittedAt,
		&v.ApprovedBy,
		&v.ApprovedAt,
		&v.ApprovalNotes,
		&v.RejectedBy,
		&v.RejectedAt,
		&v.RejectionReason,
		&requestedChanges,
		&v.CreatedBy,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	v.Status = models.VersionStatus(status)

	if len(requestedChanges) > 0 && string(requestedChanges) != "null" {
		if err := json.Unmarshal(requestedChanges, &v.RequestedChanges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal requested_changes: %w", err)
		}
	}

	return &v, nil
}
