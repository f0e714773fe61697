package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Version Status
// ============================================================================

// VersionStatus represents the lifecycle state of a decision version.
// State machine:
//
//	draft → pending_approval → {approved | rejected}
//	approved/rejected → superseded (once a successor version is approved)
//
// superseded and rejected are terminal for the version object. Versions are
// never physically deleted; the full audit trail is a hard requirement.
type VersionStatus string

const (
	VersionStatusDraft           VersionStatus = "draft"
	VersionStatusPendingApproval VersionStatus = "pending_approval"
	VersionStatusApproved        VersionStatus = "approved"
	VersionStatusRejected        VersionStatus = "rejected"
	VersionStatusSuperseded      VersionStatus = "superseded"
)

// ValidVersionStatuses contains all valid version status values.
var ValidVersionStatuses = []VersionStatus{
	VersionStatusDraft,
	VersionStatusPendingApproval,
	VersionStatusApproved,
	VersionStatusRejected,
	VersionStatusSuperseded,
}

// IsValidVersionStatus checks if the given status is valid.
func IsValidVersionStatus(s VersionStatus) bool {
	for _, v := range ValidVersionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsActive returns true while the version is the mutable/in-review version
// of its phase instance. At most one active version may exist per phase
// instance at any time.
func (s VersionStatus) IsActive() bool {
	return s == VersionStatusDraft || s == VersionStatusPendingApproval
}

// IsTerminal returns true if no further transition is possible for the
// version object itself. An approved version can still be superseded when a
// successor is approved, so approved is not terminal here.
func (s VersionStatus) IsTerminal() bool {
	return s == VersionStatusSuperseded || s == VersionStatusRejected
}

// CanTransitionTo returns true if transitioning from this status to the
// target is valid.
func (s VersionStatus) CanTransitionTo(target VersionStatus) bool {
	switch s {
	case VersionStatusDraft:
		return target == VersionStatusPendingApproval
	case VersionStatusPendingApproval:
		return target == VersionStatusApproved || target == VersionStatusRejected
	case VersionStatusApproved:
		return target == VersionStatusSuperseded
	case VersionStatusRejected, VersionStatusSuperseded:
		return false
	default:
		return false
	}
}

// ============================================================================
// Version Summary Counters
// ============================================================================

// VersionSummary holds the cached item counters of a version. These are
// derived fields: the versioning service is their only writer and recomputes
// them inside the same transaction as every item mutation, so they always
// equal a live recomputation over the version's items.
type VersionSummary struct {
	TotalItems         int `json:"total_items"`
	ApprovedItems      int `json:"approved_items"`
	RejectedItems      int `json:"rejected_items"`
	PendingItems       int `json:"pending_items"`
	NeedsResubmission  int `json:"needs_resubmission_items"`
	OverrideItems      int `json:"override_items"`
	AutoApprovedItems  int `json:"auto_approved_items"`
	CarriedItems       int `json:"carried_items"`
	ReviewerUndecided  int `json:"reviewer_undecided_items"`
}

// SummarizeItems recomputes a summary over a version's items. This is the
// single source of truth for counter values; cached counters on Version must
// always equal its output.
func SummarizeItems(items []*DecisionItem) VersionSummary {
	var s VersionSummary
	s.TotalItems = len(items)
	for _, item := range items {
		switch item.FinalStatus() {
		case ItemStatusApproved:
			s.ApprovedItems++
		case ItemStatusRejected:
			s.RejectedItems++
		case ItemStatusNeedsResubmission:
			s.NeedsResubmission++
		default:
			s.PendingItems++
		}
		if item.IsOverride {
			s.OverrideItems++
		}
		if item.OwnerAutoApproved {
			s.AutoApprovedItems++
		}
		if item.ParentItemID != nil {
			s.CarriedItems++
		}
		if item.ReviewerDecision == ReviewerDecisionNone {
			s.ReviewerUndecided++
		}
	}
	return s
}

// ============================================================================
// Version Model
// ============================================================================

// Version is a snapshot-in-progress of one phase's body of decisions. It is
// mutable while draft, frozen at submission, and carries lineage back to the
// version it was resubmitted from.
type Version struct {
	ID              uuid.UUID     `json:"id"`
	PhaseInstanceID uuid.UUID     `json:"phase_instance_id"`
	VersionNumber   int           `json:"version_number"`
	Status          VersionStatus `json:"status"`
	ParentVersionID *uuid.UUID    `json:"parent_version_id,omitempty"`

	Summary VersionSummary `json:"summary"`

	SubmittedBy      *uuid.UUID     `json:"submitted_by,omitempty"`
	SubmittedAt      *time.Time     `json:"submitted_at,omitempty"`
	ApprovedBy       *uuid.UUID     `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
	ApprovalNotes    *string        `json:"approval_notes,omitempty"`
	RejectedBy       *uuid.UUID     `json:"rejected_by,omitempty"`
	RejectedAt       *time.Time     `json:"rejected_at,omitempty"`
	RejectionReason  *string        `json:"rejection_reason,omitempty"`
	RequestedChanges map[string]any `json:"requested_changes,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDraft returns true while the version accepts new items and reviewer
// decisions.
func (v *Version) IsDraft() bool {
	return v.Status == VersionStatusDraft
}

// IsActive returns true while the version is draft or pending approval.
func (v *Version) IsActive() bool {
	return v.Status.IsActive()
}

// CanResubmit returns true if a resubmission version may be created from
// this version. Drafts are edited in place and superseded versions already
// have a successor, so only submitted outcomes qualify.
func (v *Version) CanResubmit() bool {
	return v.Status == VersionStatusApproved || v.Status == VersionStatusRejected
}

// ============================================================================
// Version Statistics
// ============================================================================

// VersionStatistics is the display-oriented view of a version's decision
// state. Always freshly recomputed; never read from cached counters.
type VersionStatistics struct {
	VersionID         uuid.UUID      `json:"version_id"`
	VersionNumber     int            `json:"version_number"`
	Status            VersionStatus  `json:"status"`
	Summary           VersionSummary `json:"summary"`
	ApprovalRate      float64        `json:"approval_rate"`
	RejectionRate     float64        `json:"rejection_rate"`
	OverrideRate      float64        `json:"override_rate"`
	FullyDecided      bool           `json:"fully_decided"`
	ComputedAt        time.Time      `json:"computed_at"`
}

// NewVersionStatistics computes statistics for a version from a fresh item
// listing.
func NewVersionStatistics(v *Version, items []*DecisionItem, now time.Time) *VersionStatistics {
	summary := SummarizeItems(items)
	stats := &VersionStatistics{
		VersionID:     v.ID,
		VersionNumber: v.VersionNumber,
		Status:        v.Status,
		Summary:       summary,
		FullyDecided:  summary.PendingItems == 0,
		ComputedAt:    now,
	}
	if summary.TotalItems > 0 {
		total := float64(summary.TotalItems)
		stats.ApprovalRate = float64(summary.ApprovedItems) / total * 100
		stats.RejectionRate = float64(summary.RejectedItems) / total * 100
		stats.OverrideRate = float64(summary.OverrideItems) / total * 100
	}
	return stats
}
