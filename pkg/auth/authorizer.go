package auth

import (
	"context"

	"github.com/synapse-dte/decision-engine/pkg/models"
	"github.com/synapse-dte/decision-engine/pkg/services"
)

// RoleAuthorizer implements the engine's authorization port with a static
// action-to-role table. Reviewer-side actions belong to the Tester role,
// owner-side actions to the external owner roles.
type RoleAuthorizer struct {
	allowed map[services.Action][]string
}

// NewRoleAuthorizer creates an authorizer with the default role table.
func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{
		allowed: map[services.Action][]string{
			services.ActionCreateVersion:      {"Tester", "Test Executive"},
			services.ActionAddItems:           {"Tester", "Test Executive"},
			services.ActionRecordReviewer:     {"Tester", "Test Executive"},
			services.ActionSubmitVersion:      {"Tester", "Test Executive"},
			services.ActionCreateResubmission: {"Tester", "Test Executive"},
			services.ActionRecordOwner:        {"Report Owner", "Data Owner"},
			services.ActionApproveVersion:     {"Report Owner", "Data Owner"},
			services.ActionRejectVersion:      {"Report Owner", "Data Owner"},
		},
	}
}

var _ services.AuthorizationPort = (*RoleAuthorizer)(nil)

// IsAuthorized reports whether the actor holds a role allowed for the
// action. The system actor is always authorized; it only acts on behalf of
// rule evaluation and bootstrap.
func (a *RoleAuthorizer) IsAuthorized(_ context.Context, actor models.Actor, action services.Action, _ services.Resource) bool {
	if actor.ID == models.SystemActorID {
		return true
	}
	for _, role := range a.allowed[action] {
		if actor.HasRole(role) {
			return true
		}
	}
	return false
}
