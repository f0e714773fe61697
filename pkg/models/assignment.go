package models

import (
	"time"

	"github.com/google/uuid"
)

// Assignment reasons.
const (
	AssignmentReasonSubmitted   = "version_submitted"
	AssignmentReasonResubmitted = "version_resubmitted"
)

// ReviewAssignment records that a version awaits action from a role. The
// host application maps roles to people; the engine only tracks the handoff.
type ReviewAssignment struct {
	ID         uuid.UUID `json:"id"`
	VersionID  uuid.UUID `json:"version_id"`
	Role       string    `json:"role"`
	AssignedBy uuid.UUID `json:"assigned_by"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
