package services

import "github.com/synapse-dte/decision-engine/pkg/models"

// ApprovalPolicy captures the per-phase choices the state machine leaves to
// configuration. Undecided items always block approval; whether rejected or
// changes-requesting items also block differs between phase families, so it
// is an explicit policy knob rather than a universal rule.
type ApprovalPolicy struct {
	// BlockOnRejectedItems refuses approval while any item is rejected.
	// When false, rejected items are simply excluded from approved counts.
	BlockOnRejectedItems bool

	// BlockOnResubmissionItems refuses approval while any item has an
	// outstanding request for changes.
	BlockOnResubmissionItems bool

	// ReviewerRole and OwnerRole are the host-defined role names notified
	// on resubmission and submission respectively.
	ReviewerRole string
	OwnerRole    string
}

// DefaultPolicies returns the policy set for the three versioned phase
// families. Scoping tolerates rejected attributes (they are descoped, not
// blocking); sample selection and RFI require a fully clean version.
func DefaultPolicies() map[models.PhaseKind]ApprovalPolicy {
	return map[models.PhaseKind]ApprovalPolicy{
		models.PhaseScoping: {
			BlockOnRejectedItems:     false,
			BlockOnResubmissionItems: true,
			ReviewerRole:             "Tester",
			OwnerRole:                "Report Owner",
		},
		models.PhaseSampleSelection: {
			BlockOnRejectedItems:     true,
			BlockOnResubmissionItems: true,
			ReviewerRole:             "Tester",
			OwnerRole:                "Report Owner",
		},
		models.PhaseRequestInfo: {
			BlockOnRejectedItems:     true,
			BlockOnResubmissionItems: true,
			ReviewerRole:             "Tester",
			OwnerRole:                "Data Owner",
		},
	}
}
