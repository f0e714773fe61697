// Package services orchestrates the decision engine: the versioning state
// machine, auto-approval evaluation and the collaborator ports.
package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/synapse-dte/decision-engine/pkg/models"
)

// Action names passed to the authorization port. Role-to-action mapping is
// owned by the host application.
type Action string

const (
	ActionCreateVersion      Action = "version:create"
	ActionAddItems           Action = "version:add_items"
	ActionRecordReviewer     Action = "item:record_reviewer_decision"
	ActionRecordOwner        Action = "item:record_owner_decision"
	ActionSubmitVersion      Action = "version:submit"
	ActionApproveVersion     Action = "version:approve"
	ActionRejectVersion      Action = "version:reject"
	ActionCreateResubmission Action = "version:resubmit"
)

// Resource identifies what an action targets. Zero-value fields mean "not
// applicable" for the action at hand.
type Resource struct {
	PhaseInstanceID uuid.UUID
	VersionID       uuid.UUID
	ItemID          uuid.UUID
}

// AuthorizationPort answers whether an actor may perform an action. The
// engine consults it before every mutating operation and treats the actor
// identity opaquely.
type AuthorizationPort interface {
	IsAuthorized(ctx context.Context, actor models.Actor, action Action, resource Resource) bool
}

// Notice describes a review handoff for the notification port.
type Notice struct {
	VersionID       uuid.UUID        `json:"version_id"`
	PhaseInstanceID uuid.UUID        `json:"phase_instance_id"`
	Phase           models.PhaseKind `json:"phase"`
	VersionNumber   int              `json:"version_number"`
	Reason          string           `json:"reason"`
}

// NotificationPort alerts the next human reviewer after a submission or
// resubmission. Best-effort: a failure here never rolls back the state
// transition it follows.
type NotificationPort interface {
	Notify(ctx context.Context, recipientRole string, notice Notice) error
}

// JobStatus is the lifecycle state of a delegated background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal returns true when the job will make no further progress.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobPort exposes the status of heavy computations (bulk evaluation,
// document validation, sample generation) executed by an external runner.
// The engine stores job ids and polls; it never runs the work itself.
type JobPort interface {
	Poll(ctx context.Context, jobID string) (JobStatus, error)
}

// TxRunner runs fn atomically with respect to persistence. Production
// wiring uses database.InTx; unit tests substitute a passthrough.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error
