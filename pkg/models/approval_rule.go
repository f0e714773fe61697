package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultAutoApprovalConfidence is the fallback threshold used when no
// approval rules are defined at all. Defining any rule overrides it.
const DefaultAutoApprovalConfidence = 85.0

// ApprovalRule describes the conditions under which an item may skip manual
// owner review. Rules are evaluated in ascending priority order; the first
// matching rule wins.
type ApprovalRule struct {
	ID       uuid.UUID `json:"id" yaml:"-"`
	Name     string    `json:"name" yaml:"name"`
	Priority int       `json:"priority" yaml:"priority"`

	// Phase scopes the rule to one phase family. Nil means the rule is
	// global and applies to every phase instance.
	Phase *PhaseKind `json:"phase,omitempty" yaml:"phase,omitempty"`

	// Gating conditions: all must hold before the rule is considered.
	MinConfidence           float64 `json:"min_confidence" yaml:"min_confidence"`
	RequireDataSource       bool    `json:"require_data_source" yaml:"require_data_source"`
	RequireBusinessMetadata bool    `json:"require_business_metadata" yaml:"require_business_metadata"`

	// Attribute-class shortcuts: if a configured flag matches the item's
	// traits, auto-approval is granted immediately.
	AutoApproveCDE       bool `json:"auto_approve_cde" yaml:"auto_approve_cde"`
	AutoApprovePK        bool `json:"auto_approve_pk" yaml:"auto_approve_pk"`
	AutoApprovePublic    bool `json:"auto_approve_public" yaml:"auto_approve_public"`

	// MaxRiskScore caps the item's risk score when no shortcut applies.
	// Zero means no ceiling.
	MaxRiskScore float64 `json:"max_risk_score" yaml:"max_risk_score"`

	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// AppliesTo returns true if the rule is in scope for the given phase kind.
func (r *ApprovalRule) AppliesTo(phase PhaseKind) bool {
	return r.Phase == nil || *r.Phase == phase
}
