// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"crypto/subtle"
	"errors"
	"log"
	"strings"

	"github.com/amirphl/future-messages/app/dto"
	"github.com/amirphl/future-messages/app/services"
	"github.com/amirphl/future-messages/utils"
	"github.com/gofiber/fiber/v3"
)

const (
	identityLocalKey   = "identity"
	credentialLocalKey = "credential"
	apiKeyHeader       = "X-API-Key"
)

// AuthMiddleware resolves credentials through the configured auth strategy
type AuthMiddleware struct {
	strategy services.AuthStrategy
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(strategy services.AuthStrategy) *AuthMiddleware {
	return &AuthMiddleware{
		strategy: strategy,
	}
}

// Authenticate rejects any request without a currently valid credential
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		credential := ExtractCredential(c, m.strategy.Transport())
		if credential == "" {
			return unauthorized(c, "Authentication required", "MISSING_CREDENTIAL")
		}

		identity, err := m.strategy.Resolve(c.Context(), credential)
		if err != nil {
			if !errors.Is(err, services.ErrUnauthenticated) {
				log.Printf("credential resolve failed (%s): %v", m.strategy.Name(), err)
			}
			if errors.Is(err, services.ErrTokenExpired) {
				return unauthorized(c, "Credential has expired", "CREDENTIAL_EXPIRED")
			}
			return unauthorized(c, "Invalid credential", "INVALID_CREDENTIAL")
		}

		c.Locals(identityLocalKey, *identity)
		c.Locals(credentialLocalKey, credential)

		return c.Next()
	}
}

// ExtractCredential reads the credential from where the transport carries it
func ExtractCredential(c fiber.Ctx, transport services.CredentialTransport) string {
	switch transport {
	case services.TransportCookie:
		return strings.TrimSpace(c.Cookies(utils.SessionCookieName))
	default:
		authHeader := c.Get("Authorization")
		if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
			return ""
		}
		return strings.TrimSpace(authHeader[7:])
	}
}

// GetIdentityFromContext extracts the authenticated caller from the request context
func GetIdentityFromContext(c fiber.Ctx) (services.Identity, bool) {
	identity, ok := c.Locals(identityLocalKey).(services.Identity)
	return identity, ok && identity.UserID != 0
}

// GetCredentialFromContext returns the credential the caller authenticated with
func GetCredentialFromContext(c fiber.Ctx) (string, bool) {
	credential, ok := c.Locals(credentialLocalKey).(string)
	return credential, ok
}

// RequireAPIKey guards worker-facing routes with a shared key in X-API-Key.
// With no keys configured every request is rejected.
func RequireAPIKey(keys []string) fiber.Handler {
	accepted := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			accepted = append(accepted, []byte(k))
		}
	}

	return func(c fiber.Ctx) error {
		presented := []byte(c.Get(apiKeyHeader))
		if len(presented) == 0 {
			return unauthorized(c, "API key required", "MISSING_API_KEY")
		}
		for _, k := range accepted {
			if subtle.ConstantTimeCompare(presented, k) == 1 {
				return c.Next()
			}
		}
		return unauthorized(c, "Invalid API key", "INVALID_API_KEY")
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}
