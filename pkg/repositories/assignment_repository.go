package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-dte/decision-engine/pkg/database"
	"github.com/synapse-dte/decision-engine/pkg/models"
)

// AssignmentRepository records which role a version is waiting on. Written
// when a version is submitted or resubmitted; the host application resolves
// role names to people.
type AssignmentRepository interface {
	// Create inserts a review assignment.
	Create(ctx context.Context, assignment *models.ReviewAssignment) error

	// ListByVersion returns assignments for a version, newest first.
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]*models.ReviewAssignment, error)
}

type assignmentRepository struct{}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository() AssignmentRepository {
	return &assignmentRepository{}
}

var _ AssignmentRepository = (*assignmentRepository)(nil)

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.ReviewAssignment) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		INSERT INTO review_assignments (version_id, role, assigned_by, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	now := time.Now()
	err := scope.Conn.QueryRow(ctx, query,
		assignment.VersionID,
		assignment.Role,
		assignment.AssignedBy,
		assignment.Reason,
		now,
	).Scan(&assignment.ID, &assignment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create review assignment: %w", err)
	}

	return nil
}

func (r *assignmentRepository) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]*models.ReviewAssignment, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT id, version_id, role, assigned_by, reason, created_at
		FROM review_assignments
		WHERE version_id = $1
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.ReviewAssignment
	for rows.Next() {
		var a models.ReviewAssignment
		if err := rows.Scan(&a.ID, &a.VersionID, &a.Role, &a.AssignedBy, &a.Reason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review assignments: %w", err)
	}

	return assignments, nil
}
