package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/future-messages/utils"
	"github.com/google/uuid"
)

// ErrUnauthenticated is returned for any credential that is not currently valid
var ErrUnauthenticated = errors.New("unauthenticated")

// Auth strategy names accepted by configuration
const (
	AuthStrategyJWT     = "jwt"
	AuthStrategySession = "session"
)

// CredentialTransport tells the HTTP layer where a credential travels
type CredentialTransport string

const (
	TransportBearer CredentialTransport = "bearer"
	TransportCookie CredentialTransport = "cookie"
)

// Identity is the authenticated caller as seen by protected operations
type Identity struct {
	UserID    uint   `json:"user_id"`
	FirstName string `json:"first_name"`
	Phone     string `json:"phone"`
}

// Credential is what a client presents on later requests
type Credential struct {
	Value     string
	ExpiresAt time.Time
}

// AuthStrategy issues and resolves credentials. Exactly one strategy is
// active per deployment.
type AuthStrategy interface {
	Name() string
	Transport() CredentialTransport
	Issue(ctx context.Context, identity Identity) (*Credential, error)
	Resolve(ctx context.Context, credential string) (*Identity, error)
	Revoke(ctx context.Context, credential string) error
}

// JWTStrategy authenticates with stateless signed tokens. Tokens expire on
// their own; Revoke is a no-op.
type JWTStrategy struct {
	tokens TokenService
}

func NewJWTStrategy(tokens TokenService) *JWTStrategy {
	return &JWTStrategy{tokens: tokens}
}

func (s *JWTStrategy) Name() string                   { return AuthStrategyJWT }
func (s *JWTStrategy) Transport() CredentialTransport { return TransportBearer }

func (s *JWTStrategy) Issue(_ context.Context, identity Identity) (*Credential, error) {
	token, expiresAt, err := s.tokens.GenerateAccessToken(identity)
	if err != nil {
		return nil, err
	}
	return &Credential{Value: token, ExpiresAt: expiresAt}, nil
}

func (s *JWTStrategy) Resolve(_ context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.tokens.ValidateToken(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return &Identity{
		UserID:    claims.UserID,
		FirstName: claims.FirstName,
		Phone:     claims.Phone,
	}, nil
}

func (s *JWTStrategy) Revoke(context.Context, string) error { return nil }

// SessionStrategy authenticates with opaque handles held in a SessionStore
type SessionStrategy struct {
	store SessionStore
	ttl   time.Duration
}

func NewSessionStrategy(store SessionStore, ttl time.Duration) *SessionStrategy {
	if ttl <= 0 {
		ttl = utils.SessionTimeout
	}
	return &SessionStrategy{store: store, ttl: ttl}
}

func (s *SessionStrategy) Name() string                   { return AuthStrategySession }
func (s *SessionStrategy) Transport() CredentialTransport { return TransportCookie }

func (s *SessionStrategy) Issue(ctx context.Context, identity Identity) (*Credential, error) {
	handle, err := newSessionHandle()
	if err != nil {
		return nil, err
	}
	expiresAt := utils.UTCNowAdd(s.ttl)
	if err := s.store.Create(ctx, handle, identity, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return &Credential{Value: handle, ExpiresAt: expiresAt}, nil
}

func (s *SessionStrategy) Resolve(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}
	identity, err := s.store.Resolve(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return identity, nil
}

func (s *SessionStrategy) Revoke(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	return s.store.Destroy(ctx, credential)
}

// newSessionHandle returns a random v4 uuid; uuid reads from crypto/rand
func newSessionHandle() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate session handle: %w", err)
	}
	return id.String(), nil
}
