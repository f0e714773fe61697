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

// DecisionItemRepository provides data access for decision items.
type DecisionItemRepository interface {
	// CreateBatch inserts multiple items efficiently. IDs and timestamps
	// are written back into the given models.
	CreateBatch(ctx context.Context, items []*models.DecisionItem) error

	// GetByID returns an item by id.
	GetByID(ctx context.Context, id uuid.UUID) (*models.DecisionItem, error)

	// ListByVersion returns all items of a version in creation order.
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]*models.DecisionItem, error)

	// ListLineage walks parent_item_id references from the given item back
	// to the first version it appeared in, newest first.
	ListLineage(ctx context.Context, id uuid.UUID) ([]*models.DecisionItem, error)

	// SetReviewerDecision writes the internal reviewer decision fields.
	SetReviewerDecision(ctx context.Context, item *models.DecisionItem) error

	// SetOwnerDecision writes the external owner decision fields.
	SetOwnerDecision(ctx context.Context, item *models.DecisionItem) error
}

type decisionItemRepository struct{}

// NewDecisionItemRepository creates a new DecisionItemRepository.
func NewDecisionItemRepository() DecisionItemRepository {
	return &decisionItemRepository{}
}

var _ DecisionItemRepository = (*decisionItemRepository)(nil)

const decisionItemColumns = `
	id, version_id, subject_kind, subject_id, recommendation,
	is_critical_data_element, is_primary_key, is_public_classification,
	has_data_source, has_business_metadata,
	reviewer_decision, reviewer_rationale, reviewer_decided_by, reviewer_decided_at,
	owner_decision, owner_notes, owner_decided_by, owner_decided_at, owner_auto_approved,
	is_override, override_rationale, resubmission_requested,
	parent_item_id, resubmission_count, created_at, updated_at`

func (r *decisionItemRepository) CreateBatch(ctx context.Context, items []*models.DecisionItem) error {
	if len(items) == 0 {
		return nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		INSERT INTO decision_items (
			version_id, subject_kind, subject_id, recommendation,
			is_critical_data_element, is_primary_key, is_public_classification,
			has_data_source, has_business_metadata,
			reviewer_decision, reviewer_rationale, reviewer_decided_by, reviewer_decided_at,
			owner_decision, owner_notes, owner_decided_by, owner_decided_at, owner_auto_approved,
			is_override, override_rationale, resubmission_requested,
			parent_item_id, resubmission_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $24
		)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	batch := &pgx.Batch{}
	for _, item := range items {
		rec, err := marshalRecommendation(item.Recommendation)
		if err != nil {
			return err
		}
		batch.Queue(query,
			item.VersionID,
			string(item.SubjectKind),
			item.SubjectID,
			rec,
			item.Traits.IsCriticalDataElement,
			item.Traits.IsPrimaryKey,
			item.Traits.IsPublicClassification,
			item.Traits.HasDataSource,
			item.Traits.HasBusinessMetadata,
			string(item.ReviewerDecision),
			item.ReviewerRationale,
			item.ReviewerDecidedBy,
			item.ReviewerDecidedAt,
			string(item.OwnerDecision),
			item.OwnerNotes,
			item.OwnerDecidedBy,
			item.OwnerDecidedAt,
			item.OwnerAutoApproved,
			item.IsOverride,
			item.OverrideRationale,
			item.ResubmissionRequested,
			item.ParentItemID,
			item.ResubmissionCount,
			now,
		)
	}

	results := scope.Conn.SendBatch(ctx, batch)
	defer results.Close()

	for i := range items {
		err := results.QueryRow().Scan(&items[i].ID, &items[i].CreatedAt, &items[i].UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create decision item %d: %w", i, err)
		}
	}

	return nil
}

func (r *decisionItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DecisionItem, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT ` + decisionItemColumns + ` FROM decision_items WHERE id = $1`
	item, err := scanDecisionItemInto(scope.Conn.QueryRow(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("decision item %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return item, nil
}

func (r *decisionItemRepository) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]*models.DecisionItem, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + decisionItemColumns + `
		FROM decision_items
		WHERE version_id = $1
		ORDER BY created_at, id`

	rows, err := scope.Conn.Query(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decision items: %w", err)
	}
	defer rows.Close()

	var items []*models.DecisionItem
	for rows.Next() {
		item, err := scanDecisionItemInto(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decision items: %w", err)
	}

	return items, nil
}

func (r *decisionItemRepository) ListLineage(ctx context.Context, id uuid.UUID) ([]*models.DecisionItem, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	// Recursive walk over parent_item_id. Lineage chains are short (one hop
	// per resubmission), so depth is bounded by the resubmission count.
	query := `
		WITH RECURSIVE lineage AS (
			SELECT d.*, 0 AS depth FROM decision_items d WHERE d.id = $1
			UNION ALL
			SELECT d.*, l.depth + 1 FROM decision_items d
			JOIN lineage l ON d.id = l.parent_item_id
		)
		SELECT ` + decisionItemColumns + ` FROM lineage ORDER BY depth`

	rows, err := scope.Conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list item lineage: %w", err)
	}
	defer rows.Close()

	var items []*models.DecisionItem
	for rows.Next() {
		item, err := scanDecisionItemInto(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item lineage: %w", err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("decision item %s: %w", id, apperrors.ErrNotFound)
	}

	return items, nil
}

func (r *decisionItemRepository) SetReviewerDecision(ctx context.Context, item *models.DecisionItem) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		UPDATE decision_items
		SET reviewer_decision = $2, reviewer_rationale = $3, reviewer_decided_by = $4,
		    reviewer_decided_at = $5, is_override = $6, override_rationale = $7, updated_at = $8
		WHERE id = $1`

	now := time.Now()
	result, err := scope.Conn.Exec(ctx, query,
		item.ID,
		string(item.ReviewerDecision),
		item.ReviewerRationale,
		item.ReviewerDecidedBy,
		item.ReviewerDecidedAt,
		item.IsOverride,
		item.OverrideRationale,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to set reviewer decision: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("decision item %s: %w", item.ID, apperrors.ErrNotFound)
	}

	item.UpdatedAt = now
	return nil
}

func (r *decisionItemRepository) SetOwnerDecision(ctx context.Context, item *models.DecisionItem) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		UPDATE decision_items
		SET owner_decision = $2, owner_notes = $3, owner_decided_by = $4,
		    owner_decided_at = $5, owner_auto_approved = $6,
		    resubmission_requested = $7, updated_at = $8
		WHERE id = $1`

	now := time.Now()
	result, err := scope.Conn.Exec(ctx, query,
		item.ID,
		string(item.OwnerDecision),
		item.OwnerNotes,
		item.OwnerDecidedBy,
		item.OwnerDecidedAt,
		item.OwnerAutoApproved,
		item.ResubmissionRequested,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to set owner decision: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("decision item %s: %w", item.ID, apperrors.ErrNotFound)
	}

	item.UpdatedAt = now
	return nil
}

// Helper functions

func scanDecisionItemInto(scan func(dest ...any) error) (*models.DecisionItem, error) {
	var i models.DecisionItem
	var subjectKind, reviewerDecision, ownerDecision string
	var recommendation []byte

	err := scan(
		&i.ID,
		&i.VersionID,
		&subjectKind,
		&i.SubjectID,
		&recommendation,
		&i.Traits.IsCriticalDataElement,
		&i.Traits.IsPrimaryKey,
		&i.Traits.IsPublicClassification,
		&i.Traits.HasDataSource,
		&i.Traits.HasBusinessMetadata,
		&reviewerDecision,
		&i.ReviewerRationale,
		&i.ReviewerDecidedBy,
		&i.ReviewerDecidedAt,
		&ownerDecision,
		&i.OwnerNotes,
		&i.OwnerDecidedBy,
		&i.OwnerDecidedAt,
		&i.OwnerAutoApproved,
		&i.IsOverride,
		&i.OverrideRationale,
		&i.ResubmissionRequested,
		&i.ParentItemID,
		&i.ResubmissionCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan decision item: %w", err)
	}

	i.SubjectKind = models.SubjectKind(subjectKind)
	i.ReviewerDecision = models.ReviewerDecision(reviewerDecision)
	i.OwnerDecision = models.OwnerDecision(ownerDecision)

	if len(recommendation) > 0 && string(recommendation) != "null" {
		if err := json.Unmarshal(recommendation, &i.Recommendation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recommendation: %w", err)
		}
	}

	return &i, nil
}

func marshalRecommendation(rec *models.Recommendation) (any, error) {
	if rec == nil {
		return nil, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendation: %w", err)
	}
	return data, nil
}
