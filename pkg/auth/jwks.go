package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates a JWT token string and returns its claims.
// The abstraction enables testing with mock implementations.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// JWKSConfig contains configuration for the JWKS client.
type JWKSConfig struct {
	// EnableVerification controls whether JWT signatures are verified.
	// Set to false for development mode (parses tokens without verification).
	EnableVerification bool

	// JWKSURL is the JSON Web Key Set endpoint of the token issuer.
	// Required when verification is enabled.
	JWKSURL string
}

// JWKSClient validates JWT tokens against the issuer's JWKS endpoint. Public
// keys are fetched once at construction and refreshed by keyfunc in the
// background.
type JWKSClient struct {
	keys   keyfunc.Keyfunc
	config *JWKSConfig
}

var _ TokenValidator = (*JWKSClient)(nil)

// NewJWKSClient creates a new JWKS client with the given configuration.
// Returns an error when verification is enabled and the JWKS endpoint
// cannot be loaded.
func NewJWKSClient(ctx context.Context, config *JWKSConfig) (*JWKSClient, error) {
	client := &JWKSClient{config: config}

	if !config.EnableVerification {
		return client, nil
	}
	if config.JWKSURL == "" {
		return nil, errors.New("jwks url is required when verification is enabled")
	}

	keys, err := keyfunc.NewDefaultCtx(ctx, []string{config.JWKSURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", config.JWKSURL, err)
	}
	client.keys = keys
	return client, nil
}

// ValidateToken validates a JWT token and returns the claims. If
// verification is disabled, it parses the token without signature
// validation.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	if !c.config.EnableVerification {
		return c.parseUnverifiedToken(tokenString)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.keys.Keyfunc(token)
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

// parseUnverifiedToken parses a JWT without verifying the signature.
// Used in development mode when EnableVerification is false.
func (c *JWKSClient) parseUnverifiedToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
