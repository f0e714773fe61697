package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Subject Kinds
// ============================================================================

// SubjectKind identifies what a decision item is about. The subject itself
// lives outside the engine; items hold a weak reference for lookup only.
type SubjectKind string

const (
	SubjectKindAttribute SubjectKind = "attribute" // scoping: planning attribute
	SubjectKindSample    SubjectKind = "sample"    // sample selection: sample record
	SubjectKindEvidence  SubjectKind = "evidence"  // request-info: test case evidence
)

// IsValidSubjectKind checks if the given kind is valid.
func IsValidSubjectKind(k SubjectKind) bool {
	switch k {
	case SubjectKindAttribute, SubjectKindSample, SubjectKindEvidence:
		return true
	default:
		return false
	}
}

// ============================================================================
// Reviewer Decision
// ============================================================================

// ReviewerDecision is the internal reviewer's (e.g. Tester's) decision on an
// item. The zero value means no decision has been recorded yet.
type ReviewerDecision string

const (
	ReviewerDecisionNone     ReviewerDecision = ""
	ReviewerDecisionApprove  ReviewerDecision = "approve"
	ReviewerDecisionReject   ReviewerDecision = "reject"
	ReviewerDecisionOverride ReviewerDecision = "override"
)

// IsValidReviewerDecision checks if the given decision is a recordable value.
// ReviewerDecisionNone is the initial state, not a recordable decision.
func IsValidReviewerDecision(d ReviewerDecision) bool {
	switch d {
	case ReviewerDecisionApprove, ReviewerDecisionReject, ReviewerDecisionOverride:
		return true
	default:
		return false
	}
}

// IsAffirmative returns true for decisions that accept the item, with or
// without an exception.
func (d ReviewerDecision) IsAffirmative() bool {
	return d == ReviewerDecisionApprove || d == ReviewerDecisionOverride
}

// ============================================================================
// Owner Decision
// ============================================================================

// OwnerDecision is the external owner's (e.g. Report Owner's) decision on an
// item. The zero value means no decision has been recorded yet.
type OwnerDecision string

const (
	OwnerDecisionNone           OwnerDecision = ""
	OwnerDecisionApproved       OwnerDecision = "approved"
	OwnerDecisionRejected       OwnerDecision = "rejected"
	OwnerDecisionRequestChanges OwnerDecision = "request_changes"
)

// IsValidOwnerDecision checks if the given decision is a recordable value.
func IsValidOwnerDecision(d OwnerDecision) bool {
	switch d {
	case OwnerDecisionApproved, OwnerDecisionRejected, OwnerDecisionRequestChanges:
		return true
	default:
		return false
	}
}

// ============================================================================
// Item Status
// ============================================================================

// ItemStatus is the derived resolution of an item's dual decisions. It is
// computed on every read from the two decision fields and never stored, which
// eliminates drift between the decisions and their resolution.
type ItemStatus string

const (
	ItemStatusPending           ItemStatus = "pending"
	ItemStatusApproved          ItemStatus = "approved"
	ItemStatusRejected          ItemStatus = "rejected"
	ItemStatusNeedsResubmission ItemStatus = "needs_resubmission"
)

// ============================================================================
// Recommendation
// ============================================================================

// Recommendation is an automated suggestion attached to an item, typically
// LLM-generated. Informational only: it never gates a state transition.
type Recommendation struct {
	Source     string  `json:"source"`               // provider identifier, e.g. "anthropic"
	Decision   string  `json:"decision"`             // suggested outcome, e.g. "include"
	Confidence float64 `json:"confidence"`           // 0-100
	Rationale  string  `json:"rationale,omitempty"`
	RiskScore  float64 `json:"risk_score,omitempty"` // 0-100
}

// SubjectTraits carries the attribute-class facts the auto-approval
// evaluator inspects. Captured at item creation from the underlying subject.
type SubjectTraits struct {
	IsCriticalDataElement  bool `json:"is_critical_data_element"`
	IsPrimaryKey           bool `json:"is_primary_key"`
	IsPublicClassification bool `json:"is_public_classification"`
	HasDataSource          bool `json:"has_data_source"`
	HasBusinessMetadata    bool `json:"has_business_metadata"`
}

// ============================================================================
// Decision Item Model
// ============================================================================

// DecisionItem is one reviewable unit inside a version: a scoping attribute,
// a selected sample or a piece of RFI evidence. It carries two independent
// decisions (reviewer and owner) plus resubmission lineage. Items are never
// deleted once created.
type DecisionItem struct {
	ID          uuid.UUID   `json:"id"`
	VersionID   uuid.UUID   `json:"version_id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	SubjectID   uuid.UUID   `json:"subject_id"`

	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Traits         SubjectTraits   `json:"traits"`

	ReviewerDecision  ReviewerDecision `json:"reviewer_decision,omitempty"`
	ReviewerRationale *string          `json:"reviewer_rationale,omitempty"`
	ReviewerDecidedBy *uuid.UUID       `json:"reviewer_decided_by,omitempty"`
	ReviewerDecidedAt *time.Time       `json:"reviewer_decided_at,omitempty"`

	OwnerDecision     OwnerDecision `json:"owner_decision,omitempty"`
	OwnerNotes        *string       `json:"owner_notes,omitempty"`
	OwnerDecidedBy    *uuid.UUID    `json:"owner_decided_by,omitempty"`
	OwnerDecidedAt    *time.Time    `json:"owner_decided_at,omitempty"`
	OwnerAutoApproved bool          `json:"owner_auto_approved"`

	IsOverride            bool    `json:"is_override"`
	OverrideRationale     *string `json:"override_rationale,omitempty"`
	ResubmissionRequested bool    `json:"resubmission_requested"`

	ParentItemID      *uuid.UUID `json:"parent_item_id,omitempty"`
	ResubmissionCount int        `json:"resubmission_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasReviewerDecision returns true once the internal reviewer has decided.
func (i *DecisionItem) HasReviewerDecision() bool {
	return i.ReviewerDecision != ReviewerDecisionNone
}

// HasOwnerDecision returns true once the external owner has decided (or the
// item was auto-approved).
func (i *DecisionItem) HasOwnerDecision() bool {
	return i.OwnerDecision != OwnerDecisionNone
}

// FinalStatus derives the item's resolution from the dual decisions:
//
//	rejected            either decision is negative
//	needs_resubmission  the owner requested changes, or resubmission was
//	                    explicitly flagged
//	approved            reviewer affirmative and owner approved; an override
//	                    with no owner decision also counts, since overrides
//	                    explicitly bypass owner review
//	pending             otherwise (no reviewer decision, or owner outstanding)
func (i *DecisionItem) FinalStatus() ItemStatus {
	if i.ReviewerDecision == ReviewerDecisionReject || i.OwnerDecision == OwnerDecisionRejected {
		return ItemStatusRejected
	}
	if i.OwnerDecision == OwnerDecisionRequestChanges || i.ResubmissionRequested {
		return ItemStatusNeedsResubmission
	}
	if i.ReviewerDecision.IsAffirmative() {
		if i.OwnerDecision == OwnerDecisionApproved {
			return ItemStatusApproved
		}
		if i.ReviewerDecision == ReviewerDecisionOverride && i.OwnerDecision == OwnerDecisionNone {
			return ItemStatusApproved
		}
	}
	return ItemStatusPending
}

// IsResolved returns true when the item no longer blocks version approval:
// its final status is anything but pending.
func (i *DecisionItem) IsResolved() bool {
	return i.FinalStatus() != ItemStatusPending
}

// CarryForward builds the successor item for a resubmission version. The
// reset is selective: a negative reviewer decision is cleared so the item
// can be re-decided, a negative or changes-requesting owner decision is
// cleared while an affirmative reviewer decision is kept, and a fully
// approved item keeps both decisions untouched.
func (i *DecisionItem) CarryForward(versionID uuid.UUID) *DecisionItem {
	child := &DecisionItem{
		VersionID:         versionID,
		SubjectKind:       i.SubjectKind,
		SubjectID:         i.SubjectID,
		Recommendation:    i.Recommendation,
		Traits:            i.Traits,
		ParentItemID:      &i.ID,
		ResubmissionCount: i.ResubmissionCount + 1,
	}

	if i.ReviewerDecision == ReviewerDecisionReject {
		// Reviewer said no: both decisions start over.
		return child
	}

	child.ReviewerDecision = i.ReviewerDecision
	child.ReviewerRationale = i.ReviewerRationale
	child.ReviewerDecidedBy = i.ReviewerDecidedBy
	child.ReviewerDecidedAt = i.ReviewerDecidedAt
	child.IsOverride = i.IsOverride
	child.OverrideRationale = i.OverrideRationale

	if i.OwnerDecision == OwnerDecisionRejected || i.OwnerDecision == OwnerDecisionRequestChanges {
		// Owner pushed back: owner decision starts over, reviewer stands.
		return child
	}

	child.OwnerDecision = i.OwnerDecision
	child.OwnerNotes = i.OwnerNotes
	child.OwnerDecidedBy = i.OwnerDecidedBy
	child.OwnerDecidedAt = i.OwnerDecidedAt
	child.OwnerAutoApproved = i.OwnerAutoApproved
	return child
}
