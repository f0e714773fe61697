// Package models contains domain types for the decision engine.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Phase Kinds
// ============================================================================

// PhaseKind identifies one of the nine workflow phases of a testing cycle.
// Phase names arriving from callers are resolved once at the boundary via
// ParsePhaseKind and never compared by string afterwards.
type PhaseKind string

const (
	PhasePlanning           PhaseKind = "planning"
	PhaseDataProfiling      PhaseKind = "data_profiling"
	PhaseScoping            PhaseKind = "scoping"
	PhaseSampleSelection    PhaseKind = "sample_selection"
	PhaseDataOwnerID        PhaseKind = "data_owner_identification"
	PhaseRequestInfo        PhaseKind = "request_info"
	PhaseTestExecution      PhaseKind = "test_execution"
	PhaseObservationMgmt    PhaseKind = "observation_management"
	PhaseFinalizeTestReport PhaseKind = "finalize_test_report"
)

// ValidPhaseKinds contains all valid phase kinds in workflow order.
var ValidPhaseKinds = []PhaseKind{
	PhasePlanning,
	PhaseDataProfiling,
	PhaseScoping,
	PhaseSampleSelection,
	PhaseDataOwnerID,
	PhaseRequestInfo,
	PhaseTestExecution,
	PhaseObservationMgmt,
	PhaseFinalizeTestReport,
}

// phaseAliases maps the display names used by upstream systems to phase kinds.
var phaseAliases = map[string]PhaseKind{
	"Planning":                  PhasePlanning,
	"Data Profiling":            PhaseDataProfiling,
	"Scoping":                   PhaseScoping,
	"Sample Selection":          PhaseSampleSelection,
	"Data Owner Identification": PhaseDataOwnerID,
	"Request Info":              PhaseRequestInfo,
	"Test Execution":            PhaseTestExecution,
	"Observation Management":    PhaseObservationMgmt,
	"Finalize Test Report":      PhaseFinalizeTestReport,
}

// ParsePhaseKind resolves a phase name (canonical or display form) to a
// PhaseKind. Returns an error for unknown names.
func ParsePhaseKind(name string) (PhaseKind, error) {
	if kind, ok := phaseAliases[name]; ok {
		return kind, nil
	}
	for _, kind := range ValidPhaseKinds {
		if string(kind) == name {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown phase name %q", name)
}

// IsValidPhaseKind checks if the given kind is valid.
func IsValidPhaseKind(k PhaseKind) bool {
	for _, v := range ValidPhaseKinds {
		if v == k {
			return true
		}
	}
	return false
}

// OwnsVersions returns true for the phase families that run the versioned
// approval workflow. The remaining phases only carry phase-instance identity.
func (k PhaseKind) OwnsVersions() bool {
	return k == PhaseScoping || k == PhaseSampleSelection || k == PhaseRequestInfo
}

// ============================================================================
// Phase Instance
// ============================================================================

// PhaseInstance identifies one occurrence of a workflow phase: the tuple of
// test cycle, report and phase kind. Versions hang off a phase instance, and
// at most one of them may be active (draft or pending approval) at a time.
type PhaseInstance struct {
	ID        uuid.UUID `json:"id"`
	CycleID   uuid.UUID `json:"cycle_id"`
	ReportID  uuid.UUID `json:"report_id"`
	Phase     PhaseKind `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
}
