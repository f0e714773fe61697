// Package auth resolves caller identity for the decision engine. It
// validates JWTs issued by the host platform using its JWKS endpoint and
// maps the claims to the engine's actor model.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/synapse-dte/decision-engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ActorKey is the context key for storing the authenticated actor.
const ActorKey contextKey = "actor"

// Claims represents the JWT claims issued by the host platform. It embeds
// RegisteredClaims for standard JWT fields (sub, iss, exp) and adds the
// role claims the engine's authorization port consults.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"` // e.g. "Tester", "Report Owner", "Data Owner"
}

// ToActor maps validated claims to the engine's actor model. The subject
// must be a UUID; the host platform guarantees this for its users.
func (c *Claims) ToActor() (models.Actor, error) {
	if c.Subject == "" {
		return models.Actor{}, fmt.Errorf("missing subject in JWT claims")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return models.Actor{}, fmt.Errorf("invalid subject format: %w", err)
	}
	return models.Actor{ID: id, Email: c.Email, Roles: c.Roles}, nil
}

// WithActor stores the authenticated actor in the context.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor retrieves the authenticated actor from the context.
// Returns the zero actor and false if none is present.
func GetActor(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(models.Actor)
	return actor, ok
}
