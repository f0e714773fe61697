package models

import "github.com/google/uuid"

// Actor identifies the caller of an engine operation. Role names are defined
// by the host application (Tester, Report Owner, Data Executive, ...); the
// engine treats them opaquely and only forwards them to the authorization
// port and audit fields.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
	Roles []string  `json:"roles,omitempty"`
}

// SystemActorID marks decisions produced by the engine itself, such as
// auto-approved owner decisions. Distinct from any human actor so audit
// trails can tell the two apart.
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// SystemActor returns the synthetic actor used for engine-generated
// decisions.
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Email: "system@engine"}
}

// HasRole returns true if the actor carries the given role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
