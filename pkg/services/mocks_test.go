package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
	"github.com/synapse-dte/decision-engine/pkg/models"
	"github.com/synapse-dte/decision-engine/pkg/repositories"
)

// fakeStore is an in-memory stand-in for the postgres repositories. It
// reproduces the store-level guarantees the service leans on: the active
// version uniqueness check, guarded status transitions and ErrNotFound
// sentinels.
type fakeStore struct {
	mu sync.Mutex

	instances   map[uuid.UUID]*models.PhaseInstance
	versions    map[uuid.UUID]*models.Version
	items       []*models.DecisionItem
	rules       []*models.ApprovalRule
	assignments []*models.ReviewAssignment

	// failMarkSubmitted forces MarkSubmitted to report a lost race.
	failMarkSubmitted bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		instances: make(map[uuid.UUID]*models.PhaseInstance),
		versions:  make(map[uuid.UUID]*models.Version),
	}
}

// ----------------------------------------------------------------------------
// PhaseInstanceRepository

type fakePhaseInstances struct{ s *fakeStore }

var _ repositories.PhaseInstanceRepository = (*fakePhaseInstances)(nil)

func (f *fakePhaseInstances) Create(_ context.Context, instance *models.PhaseInstance) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, existing := range f.s.instances {
		if existing.CycleID == instance.CycleID && existing.ReportID == instance.ReportID && existing.Phase == instance.Phase {
			return fmt.Errorf("phase instance exists: %w", apperrors.ErrConflict)
		}
	}
	instance.ID = uuid.New()
	instance.CreatedAt = time.Now()
	f.s.instances[instance.ID] = instance
	return nil
}

func (f *fakePhaseInstances) GetByID(_ context.Context, id uuid.UUID) (*models.PhaseInstance, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	instance, ok := f.s.instances[id]
	if !ok {
		return nil, fmt.Errorf("phase instance %s: %w", id, apperrors.ErrNotFound)
	}
	return instance, nil
}

func (f *fakePhaseInstances) GetByKey(_ context.Context, cycleID, reportID uuid.UUID, phase models.PhaseKind) (*models.PhaseInstance, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, instance := range f.s.instances {
		if instance.CycleID == cycleID && instance.ReportID == reportID && instance.Phase == phase {
			return instance, nil
		}
	}
	return nil, fmt.Errorf("phase instance: %w", apperrors.ErrNotFound)
}

// ----------------------------------------------------------------------------
// VersionRepository

type fakeVersions struct{ s *fakeStore }

var _ repositories.VersionRepository = (*fakeVersions)(nil)

func (f *fakeVersions) Create(_ context.Context, version *models.Version) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, existing := range f.s.versions {
		if existing.PhaseInstanceID == version.PhaseInstanceID && existing.Status.IsActive() {
			return fmt.Errorf("phase instance already has an active version: %w", apperrors.ErrConflict)
		}
	}
	version.ID = uuid.New()
	version.CreatedAt = time.Now()
	version.UpdatedAt = version.CreatedAt
	f.s.versions[version.ID] = version
	return nil
}

func (f *fakeVersions) GetByID(_ context.Context, id uuid.UUID) (*models.Version, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	version, ok := f.s.versions[id]
	if !ok {
		return nil, fmt.Errorf("version %s: %w", id, apperrors.ErrNotFound)
	}
	copied := *version
	return &copied, nil
}

func (f *fakeVersions) GetActive(_ context.Context, phaseInstanceID uuid.UUID) (*models.Version, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, version := range f.s.versions {
		if version.PhaseInstanceID == phaseInstanceID && version.Status.IsActive() {
			copied := *version
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeVersions) ListByPhaseInstance(_ context.Context, phaseInstanceID uuid.UUID) ([]*models.Version, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var versions []*models.Version
	for _, version := range f.s.versions {
		if version.PhaseInstanceID == phaseInstanceID {
			copied := *version
			versions = append(versions, &copied)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})
	return versions, nil
}

func (f *fakeVersions) MaxVersionNumber(_ context.Context, phaseInstanceID uuid.UUID) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	max := 0
	for _, version := range f.s.versions {
		if version.PhaseInstanceID == phaseInstanceID && version.VersionNumber > max {
			max = version.VersionNumber
		}
	}
	return max, nil
}

func (f *fakeVersions) MarkSubmitted(_ context.Context, id, actorID uuid.UUID, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failMarkSubmitted {
		return false, nil
	}
	version, ok := f.s.versions[id]
	if !ok || version.Status != models.VersionStatusDraft {
		return false, nil
	}
	version.Status = models.VersionStatusPendingApproval
	version.SubmittedBy = &actorID
	version.SubmittedAt = &at
	version.UpdatedAt = at
	return true, nil
}

func (f *fakeVersions) MarkApproved(_ context.Context, id, actorID uuid.UUID, notes *string, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	version, ok := f.s.versions[id]
	if !ok || version.Status != models.VersionStatusPendingApproval {
		return false, nil
	}
	version.Status = models.VersionStatusApproved
	version.ApprovedBy = &actorID
	version.ApprovedAt = &at
	version.ApprovalNotes = notes
	version.UpdatedAt = at
	return true, nil
}

func (f *fakeVersions) MarkRejected(_ context.Context, id, actorID uuid.UUID, reason string, requestedChanges map[string]any, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	version, ok := f.s.versions[id]
	if !ok || version.Status != models.VersionStatusPendingApproval {
		return false, nil
	}
	version.Status = models.VersionStatusRejected
	version.RejectedBy = &actorID
	version.RejectedAt = &at
	version.RejectionReason = &reason
	version.RequestedChanges = requestedChanges
	version.UpdatedAt = at
	return true, nil
}

func (f *fakeVersions) MarkSuperseded(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	version, ok := f.s.versions[id]
	if !ok || (version.Status != models.VersionStatusApproved && version.Status != models.VersionStatusRejected) {
		return false, nil
	}
	version.Status = models.VersionStatusSuperseded
	version.UpdatedAt = at
	return true, nil
}

func (f *fakeVersions) UpdateSummary(_ context.Context, id uuid.UUID, summary models.VersionSummary) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	version, ok := f.s.versions[id]
	if !ok {
		return fmt.Errorf("version %s: %w", id, apperrors.ErrNotFound)
	}
	version.Summary = summary
	version.UpdatedAt = time.Now()
	return nil
}

// ----------------------------------------------------------------------------
// DecisionItemRepository

type fakeItems struct{ s *fakeStore }

var _ repositories.DecisionItemRepository = (*fakeItems)(nil)

func (f *fakeItems) CreateBatch(_ context.Context, items []*models.DecisionItem) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	now := time.Now()
	for _, item := range items {
		item.ID = uuid.New()
		item.CreatedAt = now
		item.UpdatedAt = now
		copied := *item
		f.s.items = append(f.s.items, &copied)
	}
	return nil
}

func (f *fakeItems) GetByID(_ context.Context, id uuid.UUID) (*models.DecisionItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, item := range f.s.items {
		if item.ID == id {
			copied := *item
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("decision item %s: %w", id, apperrors.ErrNotFound)
}

func (f *fakeItems) ListByVersion(_ context.Context, versionID uuid.UUID) ([]*models.DecisionItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var items []*models.DecisionItem
	for _, item := range f.s.items {
		if item.VersionID == versionID {
			copied := *item
			items = append(items, &copied)
		}
	}
	return items, nil
}

func (f *fakeItems) ListLineage(_ context.Context, id uuid.UUID) ([]*models.DecisionItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	byID := make(map[uuid.UUID]*models.DecisionItem, len(f.s.items))
	for _, item := range f.s.items {
		byID[item.ID] = item
	}
	var lineage []*models.DecisionItem
	current, ok := byID[id]
	if !ok {
		return nil, fmt.Errorf("decision item %s: %w", id, apperrors.ErrNotFound)
	}
	for current != nil {
		copied := *current
		lineage = append(lineage, &copied)
		if current.ParentItemID == nil {
			break
		}
		current = byID[*current.ParentItemID]
	}
	return lineage, nil
}

// The decision setters copy exactly the columns the real repository updates,
// so a field the service mutates but the repository never writes shows up as
// a test failure rather than silently persisting.
func (f *fakeItems) SetReviewerDecision(_ context.Context, updated *models.DecisionItem) error {
	return f.apply(updated, func(stored *models.DecisionItem) {
		stored.ReviewerDecision = updated.ReviewerDecision
		stored.ReviewerRationale = updated.ReviewerRationale
		stored.ReviewerDecidedBy = updated.ReviewerDecidedBy
		stored.ReviewerDecidedAt = updated.ReviewerDecidedAt
		stored.IsOverride = updated.IsOverride
		stored.OverrideRationale = updated.OverrideRationale
	})
}

func (f *fakeItems) SetOwnerDecision(_ context.Context, updated *models.DecisionItem) error {
	return f.apply(updated, func(stored *models.DecisionItem) {
		stored.OwnerDecision = updated.OwnerDecision
		stored.OwnerNotes = updated.OwnerNotes
		stored.OwnerDecidedBy = updated.OwnerDecidedBy
		stored.OwnerDecidedAt = updated.OwnerDecidedAt
		stored.OwnerAutoApproved = updated.OwnerAutoApproved
		stored.ResubmissionRequested = updated.ResubmissionRequested
	})
}

func (f *fakeItems) apply(updated *models.DecisionItem, write func(stored *models.DecisionItem)) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, item := range f.s.items {
		if item.ID == updated.ID {
			write(item)
			item.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("decision item %s: %w", updated.ID, apperrors.ErrNotFound)
}

// ----------------------------------------------------------------------------
// ApprovalRuleRepository

type fakeRules struct{ s *fakeStore }

var _ repositories.ApprovalRuleRepository = (*fakeRules)(nil)

func (f *fakeRules) Create(_ context.Context, rule *models.ApprovalRule) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	rule.ID = uuid.New()
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	copied := *rule
	f.s.rules = append(f.s.rules, &copied)
	return nil
}

func (f *fakeRules) ListForPhase(_ context.Context, phase models.PhaseKind) ([]*models.ApprovalRule, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var rules []*models.ApprovalRule
	for _, rule := range f.s.rules {
		if rule.IsActive && rule.AppliesTo(phase) {
			copied := *rule
			rules = append(rules, &copied)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	return rules, nil
}

// ----------------------------------------------------------------------------
// AssignmentRepository

type fakeAssignments struct{ s *fakeStore }

var _ repositories.AssignmentRepository = (*fakeAssignments)(nil)

func (f *fakeAssignments) Create(_ context.Context, assignment *models.ReviewAssignment) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	assignment.ID = uuid.New()
	assignment.CreatedAt = time.Now()
	copied := *assignment
	f.s.assignments = append(f.s.assignments, &copied)
	return nil
}

func (f *fakeAssignments) ListByVersion(_ context.Context, versionID uuid.UUID) ([]*models.ReviewAssignment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var assignments []*models.ReviewAssignment
	for i := len(f.s.assignments) - 1; i >= 0; i-- {
		if f.s.assignments[i].VersionID == versionID {
			copied := *f.s.assignments[i]
			assignments = append(assignments, &copied)
		}
	}
	return assignments, nil
}

// ----------------------------------------------------------------------------
// Ports

type allowAllAuthorizer struct{}

func (allowAllAuthorizer) IsAuthorized(context.Context, models.Actor, Action, Resource) bool {
	return true
}

type denyAuthorizer struct{ denied Action }

func (d denyAuthorizer) IsAuthorized(_ context.Context, _ models.Actor, action Action, _ Resource) bool {
	return action != d.denied
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	roles   []string
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, role string, notice Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	n.roles = append(n.roles, role)
	return n.err
}

type scriptedJobs struct {
	mu       sync.Mutex
	statuses []JobStatus
	err      error
}

func (j *scriptedJobs) Poll(context.Context, string) (JobStatus, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return "", j.err
	}
	status := j.statuses[0]
	if len(j.statuses) > 1 {
		j.statuses = j.statuses[1:]
	}
	return status, nil
}

// passthroughTx runs fn directly; atomicity is the store's concern in these
// tests.
func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var errNotifierDown = errors.New("notifier down")
