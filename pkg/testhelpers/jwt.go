package testhelpers

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// GenerateTestJWT creates a test JWT token for use when verification is
// disabled. The token has a valid structure but no signature (alg: none).
func GenerateTestJWT(sub, email string, roles ...string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, sub)
	if email != "" {
		payload += fmt.Sprintf(`,"email":"%s"`, email)
	}
	if len(roles) > 0 {
		payload += fmt.Sprintf(`,"roles":["%s"]`, strings.Join(roles, `","`))
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns the token with a "Bearer " prefix for
// Authorization headers.
func GenerateTestJWTWithBearer(sub, email string, roles ...string) string {
	return "Bearer " + GenerateTestJWT(sub, email, roles...)
}
