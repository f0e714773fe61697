package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
	"github.com/synapse-dte/decision-engine/pkg/models"
	"github.com/synapse-dte/decision-engine/pkg/repositories"
)

// ============================================================================
// Inputs
// ============================================================================

// ItemPayload describes one item to add to a draft version.
type ItemPayload struct {
	SubjectKind    SubjectKindArg
	SubjectID      uuid.UUID
	Recommendation *models.Recommendation
	Traits         models.SubjectTraits
}

// SubjectKindArg aliases the model type so callers construct payloads without
// importing models directly.
type SubjectKindArg = models.SubjectKind

// ReviewerDecisionInput carries an internal reviewer decision for one item.
type ReviewerDecisionInput struct {
	Decision          models.ReviewerDecision
	Rationale         *string
	OverrideRationale *string
}

// OwnerDecisionInput carries an external owner decision for one item.
type OwnerDecisionInput struct {
	Decision models.OwnerDecision
	Notes    *string
}

// CarryForwardPredicate selects which items of a parent version are carried
// into a resubmission.
type CarryForwardPredicate func(item *models.DecisionItem) bool

// CarryForwardAll carries every item of the parent version.
func CarryForwardAll(_ *models.DecisionItem) bool { return true }

// CarryForwardUnresolved carries only items that are not fully approved, so a
// resubmission contains just the work that remains.
func CarryForwardUnresolved(item *models.DecisionItem) bool {
	return item.FinalStatus() != models.ItemStatusApproved
}

// ============================================================================
// Service
// ============================================================================

// VersioningServiceDeps wires the versioning service's collaborators.
type VersioningServiceDeps struct {
	Logger         *zap.Logger
	RunInTx        TxRunner
	Authorizer     AuthorizationPort
	Notifier       NotificationPort
	PhaseInstances repositories.PhaseInstanceRepository
	Versions       repositories.VersionRepository
	Items          repositories.DecisionItemRepository
	Rules          repositories.ApprovalRuleRepository
	Assignments    repositories.AssignmentRepository

	// Policies maps phase kinds to approval policies. Nil falls back to
	// DefaultPolicies.
	Policies map[models.PhaseKind]ApprovalPolicy

	// Now overrides the clock for tests. Nil means time.Now.
	Now func() time.Time
}

// VersioningService drives the version lifecycle: creation, item intake with
// auto-approval, the dual decision model, submission, approval/rejection and
// resubmission with carry-forward. Every mutating operation is authorized
// first and executed atomically; notifications happen after commit and never
// fail the operation.
type VersioningService struct {
	logger         *zap.Logger
	runInTx        TxRunner
	authorizer     AuthorizationPort
	notifier       NotificationPort
	phaseInstances repositories.PhaseInstanceRepository
	versions       repositories.VersionRepository
	items          repositories.DecisionItemRepository
	rules          repositories.ApprovalRuleRepository
	assignments    repositories.AssignmentRepository
	policies       map[models.PhaseKind]ApprovalPolicy
	now            func() time.Time
}

// NewVersioningService creates a new VersioningService.
func NewVersioningService(deps VersioningServiceDeps) *VersioningService {
	policies := deps.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &VersioningService{
		logger:         deps.Logger,
		runInTx:        deps.RunInTx,
		authorizer:     deps.Authorizer,
		notifier:       deps.Notifier,
		phaseInstances: deps.PhaseInstances,
		versions:       deps.Versions,
		items:          deps.Items,
		rules:          deps.Rules,
		assignments:    deps.Assignments,
		policies:       policies,
		now:            now,
	}
}

// ============================================================================
// Version lifecycle
// ============================================================================

// CreateVersion opens version 1 for a phase instance, or the next draft when
// all prior versions are settled, optionally seeding it with initial items.
// Fails with ErrConflict while an active version exists.
func (s *VersioningService) CreateVersion(ctx context.Context, actor models.Actor, phaseInstanceID uuid.UUID, payloads []ItemPayload) (*models.Version, error) {
	if !s.authorizer.IsAuthorized(ctx, actor, ActionCreateVersion, Resource{PhaseInstanceID: phaseInstanceID}) {
		return nil, fmt.Errorf("actor %s may not create versions: %w", actor.ID, apperrors.ErrForbidden)
	}
	if err := validatePayloads(payloads); err != nil {
		return nil, err
	}

	var version *models.Version
	err := s.runInTx(ctx, func(ctx context.Context) error {
		instance, err := s.phaseInstances.GetByID(ctx, phaseInstanceID)
		if err != nil {
			return err
		}
		if !instance.Phase.OwnsVersions() {
			return fmt.Errorf("phase %s does not carry versioned decisions: %w", instance.Phase, apperrors.ErrValidation)
		}

		active, err := s.versions.GetActive(ctx, phaseInstanceID)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("phase instance %s already has version %d in status %s: %w",
				phaseInstanceID, active.VersionNumber, active.Status, apperrors.ErrConflict)
		}

		maxNumber, err := s.versions.MaxVersionNumber(ctx, phaseInstanceID)
		if err != nil {
			return err
		}

		version = &models.Version{
			PhaseInstanceID: phaseInstanceID,
			VersionNumber:   maxNumber + 1,
			Status:          models.VersionStatusDraft,
			CreatedBy:       actor.ID,
		}
		if err := s.versions.Create(ctx, version); err != nil {
			return err
		}

		if len(payloads) == 0 {
			return nil
		}
		items, err := s.buildItems(ctx, version.ID, instance.Phase, payloads)
		if err != nil {
			return err
		}
		if err := s.items.CreateBatch(ctx, items); err != nil {
			return err
		}
		return s.refreshSummary(ctx, version.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("version created",
		zap.String("version_id", version.ID.String()),
		zap.String("phase_instance_id", phaseInstanceID.String()),
		zap.Int("version_number", version.VersionNumber),
		zap.Int("items", len(payloads)))
	return version, nil
}

// GetVersion returns a version by id.
func (s *VersioningService) GetVersion(ctx context.Context, versionID uuid.UUID) (*models.Version, error) {
	return s.versions.GetByID(ctx, versionID)
}

// ListVersions returns the full version history of a phase instance, newest
// first.
func (s *VersioningService) ListVersions(ctx context.Context, phaseInstanceID uuid.UUID) ([]*models.Version, error) {
	return s.versions.ListByPhaseInstance(ctx, phaseInstanceID)
}

// ListItems returns the items of a version in creation order.
func (s *VersioningService) ListItems(ctx context.Context, versionID uuid.UUID) ([]*models.DecisionItem, error) {
	return s.items.ListByVersion(ctx, versionID)
}

// GetItemLineage walks an item's resubmission ancestry, newest first.
func (s *VersioningService) GetItemLineage(ctx context.Context, itemID uuid.UUID) ([]*models.DecisionItem, error) {
	return s.items.ListLineage(ctx, itemID)
}

// AddItems appends items to a draft version. Each item's recommendation is
// run through the auto-approval rules of the version's phase; matches receive
// a system owner approval immediately, so only the reviewer decision remains.
func (s *VersioningService) AddItems(ctx context.Context, actor models.Actor, versionID uuid.UUID, payloads []ItemPayload) ([]*models.DecisionItem, error) {
	if !s.authorizer.IsAuthorized(ctx, actor, ActionAddItems, Resource{VersionID: versionID}) {
		return nil, fmt.Errorf("actor %s may not add items: %w", actor.ID, apperrors.ErrForbidden)
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("no items given: %w", apperrors.ErrValidation)
	}
	if err := validatePayloads(payloads); err != nil {
		return nil, err
	}

	var created []*models.DecisionItem
	err := s.runInTx(ctx, func(ctx context.Context) error {
		version, err := s.versions.GetByID(ctx, versionID)
		if err != nil {
			return err
		}
		if !version.IsDraft() {
			return fmt.Errorf("version %d is %s, items can only be added to drafts: %w",
				version.VersionNumber, version.Status, apperrors.ErrConflict)
		}

		instance, err := s.phaseInstances.GetByID(ctx, version.PhaseInstanceID)
		if err != nil {
			return err
		}
		created, err = s.buildItems(ctx, versionID, instance.Phase, payloads)
		if err != nil {
			return err
		}

		if err := s.items.CreateBatch(ctx, created); err != nil {
			return err
		}
		return s.refreshSummary(ctx, versionID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("items added",
		zap.String("version_id", versionID.String()),
		zap.Int("count", len(created)))
	return created, nil
}

// ============================================================================
// Decisions
// ============================================================================

// RecordReviewerDecision records the internal reviewer's decision on an item
// of a draft version. Override decisions require an override rationale.
func (s *VersioningService) RecordReviewerDecision(ctx context.Context, actor models.Actor, itemID uuid.UUID, input ReviewerDecisionInput) (*models.DecisionItem, error) {
	if !s.authorizer.IsAuthorized(ctx, actor, ActionRecordReviewer, Resource{ItemID: itemID}) {
		return nil, fmt.Errorf("actor %s may not record reviewer decisions: %w", actor.ID, apperrors.ErrForbidden)
	}
	if !models.IsValidReviewerDecision(input.Decision) {
		return nil, fmt.Errorf("invalid reviewer decision %q: %w", input.Decision, apperrors.ErrValidation)
	}
	if input.Decision == models.ReviewerDecisionOverride &&
		(input.OverrideRationale == nil || *input.OverrideRationale == "") {
		return nil, fmt.Errorf("override decisions require a rationale: %w", apperrors.ErrValidation)
	}

	var item *models.DecisionItem
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}

		version, err := s.versions.GetByID(ctx, item.VersionID)
		if err != nil {
			return err
		}
		if !version.IsDraft() {
			return fmt.Errorf("version %d is %s, reviewer decisions require a draft: %w",
				version.VersionNumber, version.Status, apperrors.ErrBusinessLogic)
		}

		now := s.now()
		item.ReviewerDecision = input.Decision
		item.ReviewerRationale = input.Rationale
		item.ReviewerDecidedBy = &actor.ID
		item.ReviewerDecidedAt = &now
		item.IsOverride = input.Decision == models.ReviewerDecisionOverride
		if item.IsOverride {
			item.OverrideRationale = input.OverrideRationale
		} else {
			item.OverrideRationale = nil
		}

		if err := s.items.SetReviewerDecision(ctx, item); err != nil {
			return err
		}
		return s.refreshSummary(ctx, item.VersionID)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RecordOwnerDecision records the external owner's decision on an item. The
// reviewer must have decided first; the owner reviews the reviewer's
// decisions, not raw items. The version status is deliberately not checked:
// owner feedback routinely arrives after submission, or even after approval.
func (s *VersioningService) RecordOwnerDecision(ctx context.Context, actor models.Actor, itemID uuid.UUID, input OwnerDecisionInput) (*models.DecisionItem, error) {
	if !s.authorizer.IsAuthorized(ctx, actor, ActionRecordOwner, Resource{ItemID: itemID}) {
		return nil, fmt.Errorf("actor %s may not record owner decisions: %w", actor.ID, apperrors.ErrForbidden)
	}
	if !models.IsValidOwnerDecision(input.Decision) {
		return nil, fmt.Errorf("invalid owner decision %q: %w", input.Decision, apperrors.ErrValidation)
	}

	var item *models.DecisionItem
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.HasReviewerDecision() {
			return fmt.Errorf("item %s has no reviewer decision yet: %w", itemID, apperrors.ErrBusinessLogic)
		}

		now := s.now()
		item.OwnerDecision = input.Decision
		item.OwnerNotes = input.Notes
		item.OwnerDecidedBy = &actor.ID
		item.OwnerDecidedAt = &now
		item.OwnerAutoApproved = false
		item.ResubmissionRequested = input.Decision == models.OwnerDecisionRequestChanges

		if err := s.items.SetOwnerDecision(ctx, item); err != nil {
			return err
		}
		return s.refreshSummary(ctx, item.VersionID)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ============================================================================
// Submission and approval
// ============================================================================

// SubmitForApproval freezes a draft and hands it to the owner role. Every
// item must carry a reviewer decision; an empty version cannot be submitted.
// Racing submissions are serialized by the guarded status update: exactly one
// caller wins, the rest get ErrConflict.
func (s *VersioningService) SubmitForApproval(ctx context.Context, actor models.Actor, versionID uuid.UUID) (*models.Version, error) {
	if !s.authorizer.IsAuthorized(ctx, actor, ActionSubmitVersion, Resource{VersionID: versionID}) {
		return nil, fmt.Errorf("actor %s may not submit versions: %w", actor.ID, apperrors.ErrForbidden)
	}

	var version *models.Version
	var policy ApprovalPolicy
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		version, err = s.versions.GetByID(ctx, versionID)
		if err != nil {
			return err
		}
		if !version.IsDraft() {
			return fmt.Errorf("version %d is %s, only drafts can be submitted: %w",
				version.VersionNumber, version.Status, apperrors.ErrBusinessLogic)
		}

		items, err := s.items.ListByVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("version %d has no items: %w", version.VersionNumber, apperrors.ErrBusinessLogic)
		}
		summary := models.SummarizeItems(items)
		if summary.ReviewerUndecided > 0 {
			return fmt.Errorf("version %d has %d items without a reviewer decision: %w",
				version.VersionNumber, summary.ReviewerUndecided, apperrors.ErrBusinessLogic)
		}

		policy, err = s.policyFor(ctx, version.PhaseInstanceID)
		if err != nil {
			return err
		}

		now := s.now()
		moved, err := s.versions.MarkSubmitted(ctx, versionID, actor.ID, now)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("version %d was submitted concurrently: %w", version.VersionNumber, apperrors.ErrConflict)
		}
		version.Status = models.VersionStatusPendingApproval
		version.SubmittedBy = &actor.ID
		version.SubmittedAt = &now

		reason := models.AssignmentReasonSubmitted
		if version.ParentVersionID != nil {
			reason = models.AssignmentReasonResubmitted
		}
		return s.assignments.Create(ctx, &models.ReviewAssignment{
			VersionID:  versionID,
			Role:       policy.OwnerRole,
			AssignedBy: actor.ID,
			Reason:     reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, policy.OwnerRole, version, "submitted for approval")
	s.logger.Info("version submitted",
		zap.String("version_id", versionID.String()),
		zap.Int("version_number", version.VersionNumber))
	return version, nil
}

// Approve accepts a pending version. Pending items always block; whether
// rejected or changes-requesting items block depends on the phase policy.
// Approving supersedes the previously approved version of the phase instance,
// keeping at most one approved version current.
func (s *VersioningService) Approve(ctx context.Context, actor models.Actor, versionID uuid.UUID, notes *string) (*models.Version, error) {
	if !s.authorizer.IsAuthorized(ctx, actor, ActionApproveVersion, Resource{VersionID: versionID}) {
		return nil, fmt.Errorf("actor %s may not approve versions: %w", actor.ID, apperrors.ErrForbidden)
	}

	var version *models.Version
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		version, err = s.versions.GetByID(ctx, versionID)
		if err != nil {
			return err
		}
		if version.Status != models.VersionStatusPendingApproval {
			return fmt.Errorf("version %d is %s, only pending versions can be approved: %w",
				version.VersionNumber, version.Status, apperrors.ErrBusinessLogic)
		}

		items, err := s.items.ListByVersion(ctx, versionID)
		if err != nil {
			return err
		}
		summary := models.SummarizeItems(items)

		policy, err := s.policyFor(ctx, version.PhaseInstanceID)
		if err != nil {
			return err
		}
		if summary.PendingItems > 0 {
			return fmt.Errorf("version %d has %d undecided items: %w",
				version.VersionNumber, summary.PendingItems, apperrors.ErrBusinessLogic)
		}
		if policy.BlockOnRejectedItems && summary.RejectedItems > 0 {
			return fmt.Errorf("version %d has %d rejected items: %w",
				version.VersionNumber, summary.RejectedItems, apperrors.ErrBusinessLogic)
		}
		if policy.BlockOnResubmissionItems && summary.NeedsResubmission > 0 {
			return fmt.Errorf("version %d has %d items awaiting resubmission: %w",
				version.VersionNumber, summary.NeedsResubmission, apperrors.ErrBusinessLogic)
		}

		now := s.now()
		moved, err := s.versions.MarkApproved(ctx, versionID, actor.ID, notes, now)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("version %d changed state concurrently: %w", version.VersionNumber, apperrors.ErrConflict)
		}
		version.Status = models.VersionStatusApproved
		version.ApprovedBy = &actor.ID
		version.ApprovedAt = &now
		version.ApprovalNotes = notes

		if err := s.refreshSummary(ctx, versionID); err != nil {
			return err
		}
		version.Summary = summary

		return s.supersedePredecessors(ctx, version, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("version approved",
		zap.String("version_id", versionID.String()),
		zap.Int("version_number", version.VersionNumber))
	return version, nil
}

// Reject declines a pending version, recording the reason and optional
// structured change requests for the next resubmission.
func (s *VersioningService) Reject(ctx context.Context, actor models.Actor, versionID uuid.UUID, reason string, requestedChanges map[string]any) (*models.Version, error) {
	if !s.authorizer.IsAuthorized(ctx, actor, ActionRejectVersion, Resource{VersionID: versionID}) {
		return nil, fmt.Errorf("actor %s may not reject versions: %w", actor.ID, apperrors.ErrForbidden)
	}
	if reason == "" {
		return nil, fmt.Errorf("rejection reason is required: %w", apperrors.ErrValidation)
	}

	var version *models.Version
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		version, err = s.versions.GetByID(ctx, versionID)
		if err != nil {
			return err
		}
		if version.Status != models.VersionStatusPendingApproval {
			return fmt.Errorf("version %d is %s, only pending versions can be rejected: %w",
				version.VersionNumber, version.Status, apperrors.ErrBusinessLogic)
		}

		now := s.now()
		moved, err := s.versions.MarkRejected(ctx, versionID, actor.ID, reason, requestedChanges, now)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("version %d changed state concurrently: %w", version.VersionNumber, apperrors.ErrConflict)
		}
		version.Status = models.VersionStatusRejected
		version.RejectedBy = &actor.ID
		version.RejectedAt = &now
		version.RejectionReason = &reason
		version.RequestedChanges = requestedChanges
		return nil
	})
	if err != nil {
		return nil, err
	}

	policy, perr := s.policyForVersion(ctx, version)
	if perr == nil {
		s.notify(ctx, policy.ReviewerRole, version, "rejected, resubmission expected")
	}
	s.logger.Info("version rejected",
		zap.String("version_id", versionID.String()),
		zap.Int("version_number", version.VersionNumber),
		zap.String("reason", reason))
	return version, nil
}

// CreateResubmission opens a successor draft from a settled version, carrying
// forward the items the predicate selects with their decisions selectively
// reset, then merging in any fresh items. A nil predicate carries everything.
func (s *VersioningService) CreateResubmission(ctx context.Context, actor models.Actor, parentVersionID uuid.UUID, carry CarryForwardPredicate, newItems []ItemPayload) (*models.Version, error) {
	if !s.authorizer.IsAuthorized(ctx, actor, ActionCreateResubmission, Resource{VersionID: parentVersionID}) {
		return nil, fmt.Errorf("actor %s may not create resubmissions: %w", actor.ID, apperrors.ErrForbidden)
	}
	if carry == nil {
		carry = CarryForwardAll
	}
	if err := validatePayloads(newItems); err != nil {
		return nil, err
	}

	var version *models.Version
	err := s.runInTx(ctx, func(ctx context.Context) error {
		parent, err := s.versions.GetByID(ctx, parentVersionID)
		if err != nil {
			return err
		}
		if !parent.CanResubmit() {
			return fmt.Errorf("version %d is %s, resubmission requires an approved or rejected version: %w",
				parent.VersionNumber, parent.Status, apperrors.ErrBusinessLogic)
		}

		active, err := s.versions.GetActive(ctx, parent.PhaseInstanceID)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("phase instance %s already has version %d in status %s: %w",
				parent.PhaseInstanceID, active.VersionNumber, active.Status, apperrors.ErrConflict)
		}

		maxNumber, err := s.versions.MaxVersionNumber(ctx, parent.PhaseInstanceID)
		if err != nil {
			return err
		}

		version = &models.Version{
			PhaseInstanceID: parent.PhaseInstanceID,
			VersionNumber:   maxNumber + 1,
			Status:          models.VersionStatusDraft,
			ParentVersionID: &parent.ID,
			CreatedBy:       actor.ID,
		}
		if err := s.versions.Create(ctx, version); err != nil {
			return err
		}

		parentItems, err := s.items.ListByVersion(ctx, parentVersionID)
		if err != nil {
			return err
		}
		var carried []*models.DecisionItem
		for _, item := range parentItems {
			if carry(item) {
				carried = append(carried, item.CarryForward(version.ID))
			}
		}
		if len(carried) > 0 {
			if err := s.items.CreateBatch(ctx, carried); err != nil {
				return err
			}
		}

		if len(newItems) > 0 {
			instance, err := s.phaseInstances.GetByID(ctx, parent.PhaseInstanceID)
			if err != nil {
				return err
			}
			fresh, err := s.buildItems(ctx, version.ID, instance.Phase, newItems)
			if err != nil {
				return err
			}
			if err := s.items.CreateBatch(ctx, fresh); err != nil {
				return err
			}
		}
		return s.refreshSummary(ctx, version.ID)
	})
	if err != nil {
		return nil, err
	}

	if policy, perr := s.policyForVersion(ctx, version); perr == nil {
		s.notify(ctx, policy.ReviewerRole, version, "resubmission draft created")
	}
	s.logger.Info("resubmission created",
		zap.String("version_id", version.ID.String()),
		zap.String("parent_version_id", parentVersionID.String()),
		zap.Int("version_number", version.VersionNumber))
	return version, nil
}

// GetStatistics recomputes display statistics for a version from a fresh item
// listing. Repeated calls without intervening writes return identical values.
func (s *VersioningService) GetStatistics(ctx context.Context, versionID uuid.UUID) (*models.VersionStatistics, error) {
	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return models.NewVersionStatistics(version, items, s.now()), nil
}

// ============================================================================
// Internals
// ============================================================================

// AutoApprovalNote is recorded as the owner note on rule-matched items so the
// audit trail distinguishes system approvals from human ones.
const AutoApprovalNote = "auto-approved by rule evaluation"

func validatePayloads(payloads []ItemPayload) error {
	for _, p := range payloads {
		if !models.IsValidSubjectKind(p.SubjectKind) {
			return fmt.Errorf("invalid subject kind %q: %w", p.SubjectKind, apperrors.ErrValidation)
		}
		if p.SubjectID == uuid.Nil {
			return fmt.Errorf("subject id is required: %w", apperrors.ErrValidation)
		}
	}
	return nil
}

// buildItems materializes payloads as decision items, evaluating the phase's
// auto-approval rules for each. Matches receive a system owner approval so
// only the reviewer decision remains open.
func (s *VersioningService) buildItems(ctx context.Context, versionID uuid.UUID, phase models.PhaseKind, payloads []ItemPayload) ([]*models.DecisionItem, error) {
	rules, err := s.rules.ListForPhase(ctx, phase)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]*models.DecisionItem, 0, len(payloads))
	for _, p := range payloads {
		item := &models.DecisionItem{
			VersionID:      versionID,
			SubjectKind:    p.SubjectKind,
			SubjectID:      p.SubjectID,
			Recommendation: p.Recommendation,
			Traits:         p.Traits,
		}
		if EvaluateAutoApproval(p.Recommendation, p.Traits, rules) {
			systemID := models.SystemActorID
			at := now
			note := AutoApprovalNote
			item.OwnerDecision = models.OwnerDecisionApproved
			item.OwnerNotes = &note
			item.OwnerDecidedBy = &systemID
			item.OwnerDecidedAt = &at
			item.OwnerAutoApproved = true
		}
		items = append(items, item)
	}
	return items, nil
}

// refreshSummary recomputes the cached counters from the version's items.
// Must run inside the same transaction as the item mutation it follows.
func (s *VersioningService) refreshSummary(ctx context.Context, versionID uuid.UUID) error {
	items, err := s.items.ListByVersion(ctx, versionID)
	if err != nil {
		return err
	}
	return s.versions.UpdateSummary(ctx, versionID, models.SummarizeItems(items))
}

// supersedePredecessors marks every other approved version of the phase
// instance superseded once a successor is approved.
func (s *VersioningService) supersedePredecessors(ctx context.Context, approved *models.Version, at time.Time) error {
	versions, err := s.versions.ListByPhaseInstance(ctx, approved.PhaseInstanceID)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if v.ID == approved.ID || v.Status != models.VersionStatusApproved {
			continue
		}
		if _, err := s.versions.MarkSuperseded(ctx, v.ID, at); err != nil {
			return err
		}
	}
	return nil
}

func (s *VersioningService) policyFor(ctx context.Context, phaseInstanceID uuid.UUID) (ApprovalPolicy, error) {
	instance, err := s.phaseInstances.GetByID(ctx, phaseInstanceID)
	if err != nil {
		return ApprovalPolicy{}, err
	}
	policy, ok := s.policies[instance.Phase]
	if !ok {
		return ApprovalPolicy{}, fmt.Errorf("phase %s has no approval policy: %w", instance.Phase, apperrors.ErrBusinessLogic)
	}
	return policy, nil
}

func (s *VersioningService) policyForVersion(ctx context.Context, version *models.Version) (ApprovalPolicy, error) {
	return s.policyFor(ctx, version.PhaseInstanceID)
}

// notify delivers a review notice after the surrounding transaction has
// committed. Failures are logged and swallowed.
func (s *VersioningService) notify(ctx context.Context, role string, version *models.Version, reason string) {
	if s.notifier == nil {
		return
	}
	instance, err := s.phaseInstances.GetByID(ctx, version.PhaseInstanceID)
	phase := models.PhaseKind("")
	if err == nil {
		phase = instance.Phase
	}
	notice := Notice{
		VersionID:       version.ID,
		PhaseInstanceID: version.PhaseInstanceID,
		Phase:           phase,
		VersionNumber:   version.VersionNumber,
		Reason:          reason,
	}
	if err := s.notifier.Notify(ctx, role, notice); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("version_id", version.ID.String()),
			zap.String("role", role),
			zap.Error(err))
	}
}
