package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/synapse-dte/decision-engine/pkg/database"
	"github.com/synapse-dte/decision-engine/pkg/models"
)

// ApprovalRuleRepository provides data access for auto-approval rules.
type ApprovalRuleRepository interface {
	// Create inserts a rule.
	Create(ctx context.Context, rule *models.ApprovalRule) error

	// ListForPhase returns active rules applicable to a phase kind
	// (phase-scoped plus global), sorted by ascending priority.
	ListForPhase(ctx context.Context, phase models.PhaseKind) ([]*models.ApprovalRule, error)
}

type approvalRuleRepository struct{}

// NewApprovalRuleRepository creates a new ApprovalRuleRepository.
func NewApprovalRuleRepository() ApprovalRuleRepository {
	return &approvalRuleRepository{}
}

var _ ApprovalRuleRepository = (*approvalRuleRepository)(nil)

func (r *approvalRuleRepository) Create(ctx context.Context, rule *models.ApprovalRule) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		INSERT INTO approval_rules (
			name, priority, phase, min_confidence, require_data_source,
			require_business_metadata, auto_approve_cde, auto_approve_pk,
			auto_approve_public, max_risk_score, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id, created_at, updated_at`

	var phase *string
	if rule.Phase != nil {
		p := string(*rule.Phase)
		phase = &p
	}

	now := time.Now()
	err := scope.Conn.QueryRow(ctx, query,
		rule.Name,
		rule.Priority,
		phase,
		rule.MinConfidence,
		rule.RequireDataSource,
		rule.RequireBusinessMetadata,
		rule.AutoApproveCDE,
		rule.AutoApprovePK,
		rule.AutoApprovePublic,
		rule.MaxRiskScore,
		rule.IsActive,
		now,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create approval rule: %w", err)
	}

	return nil
}

func (r *approvalRuleRepository) ListForPhase(ctx context.Context, phase models.PhaseKind) ([]*models.ApprovalRule, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT id, name, priority, phase, min_confidence, require_data_source,
		       require_business_metadata, auto_approve_cde, auto_approve_pk,
		       auto_approve_public, max_risk_score, is_active, created_at, updated_at
		FROM approval_rules
		WHERE is_active AND (phase IS NULL OR phase = $1)
		ORDER BY priority, created_at`

	rows, err := scope.Conn.Query(ctx, query, string(phase))
	if err != nil {
		return nil, fmt.Errorf("failed to list approval rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.ApprovalRule
	for rows.Next() {
		rule, err := scanApprovalRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval rules: %w", err)
	}

	return rules, nil
}

func scanApprovalRule(rows pgx.Rows) (*models.ApprovalRule, error) {
	var rule models.ApprovalRule
	var phase *string

	err := rows.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Priority,
		&phase,
		&rule.MinConfidence,
		&rule.RequireDataSource,
		&rule.RequireBusinessMetadata,
		&rule.AutoApproveCDE,
		&rule.AutoApprovePK,
		&rule.AutoApprovePublic,
		&rule.MaxRiskScore,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan approval rule: %w", err)
	}

	if phase != nil {
		kind := models.PhaseKind(*phase)
		rule.Phase = &kind
	}

	return &rule, nil
}
