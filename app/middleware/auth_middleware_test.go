package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/future-messages/app/dto"
	"github.com/amirphl/future-messages/app/services"
	"github.com/amirphl/future-messages/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	transport services.CredentialTransport
	err       error
}

func (s *stubStrategy) Name() string                             { return "stub" }
func (s *stubStrategy) Transport() services.CredentialTransport { return s.transport }
func (s *stubStrategy) Issue(context.Context, services.Identity) (*services.Credential, error) {
	return nil, nil
}
func (s *stubStrategy) Resolve(context.Context, string) (*services.Identity, error) {
	return nil, s.err
}
func (s *stubStrategy) Revoke(context.Context, string) error { return nil }

func newProtectedApp(strategy services.AuthStrategy) *fiber.App {
	app := fiber.New()
	m := NewAuthMiddleware(strategy)
	app.Get("/me", m.Authenticate(), func(c fiber.Ctx) error {
		identity, ok := GetIdentityFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		credential, _ := GetCredentialFromContext(c)
		return c.JSON(fiber.Map{"phone": identity.Phone, "credential": credential})
	})
	return app
}

type errorBody struct {
	Success bool            `json:"success"`
	Error   dto.ErrorDetail `json:"error"`
}

func decode(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out errorBody
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestAuthenticate_SessionCookie(t *testing.T) {
	strategy := services.NewSessionStrategy(services.NewMemorySessionStore(), time.Hour)
	cred, err := strategy.Issue(context.Background(), services.Identity{UserID: 7, FirstName: "Ana", Phone: "11999990000"})
	require.NoError(t, err)

	app := newProtectedApp(strategy)

	t.Run("valid cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: utils.SessionCookieName, Value: cred.Value})
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "11999990000", body["phone"])
		assert.Equal(t, cred.Value, body["credential"])
	})

	t.Run("bearer header ignored in cookie mode", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+cred.Value)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "MISSING_CREDENTIAL", decode(t, resp).Error.Code)
	})

	t.Run("revoked session", func(t *testing.T) {
		require.NoError(t, strategy.Revoke(context.Background(), cred.Value))

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: utils.SessionCookieName, Value: cred.Value})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_CREDENTIAL", decode(t, resp).Error.Code)
	})
}

func TestAuthenticate_ErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"expired", fmt.Errorf("%w: %w", services.ErrUnauthenticated, services.ErrTokenExpired), "CREDENTIAL_EXPIRED"},
		{"invalid", services.ErrUnauthenticated, "INVALID_CREDENTIAL"},
		{"store failure", fmt.Errorf("redis: connection refused"), "INVALID_CREDENTIAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newProtectedApp(&stubStrategy{transport: services.TransportBearer, err: tt.err})
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "bearer some-token")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decode(t, resp).Error.Code)
		})
	}
}

func TestExtractCredential_Bearer(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString(ExtractCredential(c, services.TransportBearer))
	})

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(raw), tt.header)
	}
}

func TestRequireAPIKey(t *testing.T) {
	app := fiber.New()
	app.Post("/internal", RequireAPIKey([]string{" key-one ", "", "key-two"}), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	tests := []struct {
		key      string
		wantCode int
	}{
		{"key-one", http.StatusNoContent},
		{"key-two", http.StatusNoContent},
		{"key-three", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/internal", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.wantCode, resp.StatusCode, tt.key)
	}

	t.Run("no keys configured rejects everything", func(t *testing.T) {
		closed := fiber.New()
		closed.Post("/internal", RequireAPIKey(nil), func(c fiber.Ctx) error {
			return c.SendStatus(fiber.StatusNoContent)
		})
		req := httptest.NewRequest(http.MethodPost, "/internal", nil)
		req.Header.Set("X-API-Key", "anything")
		resp, err := closed.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
