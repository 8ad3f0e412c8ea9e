package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/repository"
	"github.com/amirphl/future-messages/utils"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for unknown, destroyed or expired handles
var ErrSessionNotFound = errors.New("session not found")

// Session store names accepted by configuration
const (
	SessionStoreMemory   = "memory"
	SessionStoreRedis    = "redis"
	SessionStoreDatabase = "database"
)

// SessionStore maps opaque handles to identity snapshots
type SessionStore interface {
	Create(ctx context.Context, handle string, identity Identity, expiresAt time.Time) error
	Resolve(ctx context.Context, handle string) (*Identity, error)
	Destroy(ctx context.Context, handle string) error
}

type memorySession struct {
	identity  Identity
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in a mutex-guarded map. It is private to
// one process.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		now:      utils.UTCNow,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, handle string, identity Identity, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[handle] = memorySession{identity: identity, expiresAt: expiresAt}
	return nil
}

func (s *MemorySessionStore) Resolve(_ context.Context, handle string) (*Identity, error) {
	s.mu.RLock()
	entry, ok := s.sessions[handle]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		// re-check: the handle may have been replaced meanwhile
		if cur, ok := s.sessions[handle]; ok && !s.now().Before(cur.expiresAt) {
			delete(s.sessions, handle)
		}
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	identity := entry.identity
	return &identity, nil
}

func (s *MemorySessionStore) Destroy(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, handle)
	return nil
}

// Len returns the number of held sessions, expired ones included
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// PurgeExpired drops every expired session and returns how many were removed
func (s *MemorySessionStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for handle, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, handle)
			removed++
		}
	}
	return removed
}

// StartJanitor purges expired sessions every interval until the returned
// stop function is called.
func (s *MemorySessionStore) StartJanitor(parent context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.PurgeExpired(); n > 0 {
					log.Printf("Session janitor purged %d expired sessions", n)
				}
			}
		}
	}()
	return cancel
}

// RedisSessionStore keeps sessions as JSON values with a TTL, shared across
// processes.
type RedisSessionStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisSessionStore(client redis.Cmdable, prefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(handle string) string {
	return s.prefix + "session:" + handle
}

func (s *RedisSessionStore) Create(ctx context.Context, handle string, identity Identity, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(handle), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Resolve(ctx context.Context, handle string) (*Identity, error) {
	raw, err := s.client.Get(ctx, s.key(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session from redis: %w", err)
	}

	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &identity, nil
}

func (s *RedisSessionStore) Destroy(ctx context.Context, handle string) error {
	if err := s.client.Del(ctx, s.key(handle)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// DatabaseSessionStore keeps sessions in the user_sessions table
type DatabaseSessionStore struct {
	repo repository.UserSessionRepository
}

func NewDatabaseSessionStore(repo repository.UserSessionRepository) *DatabaseSessionStore {
	return &DatabaseSessionStore{repo: repo}
}

func (s *DatabaseSessionStore) Create(ctx context.Context, handle string, identity Identity, expiresAt time.Time) error {
	session := &models.UserSession{
		Handle:         handle,
		UserID:         identity.UserID,
		FirstName:      identity.FirstName,
		Phone:          identity.Phone,
		IsActive:       utils.ToPtr(true),
		CreatedAt:      utils.UTCNow(),
		LastAccessedAt: utils.UTCNow(),
		ExpiresAt:      expiresAt,
	}
	return s.repo.Save(ctx, session)
}

func (s *DatabaseSessionStore) Resolve(ctx context.Context, handle string) (*Identity, error) {
	session, err := s.repo.ByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsValid() {
		return nil, ErrSessionNotFound
	}

	if err := s.repo.Touch(ctx, session.ID); err != nil {
		log.Printf("Failed to touch session %d: %v", session.ID, err)
	}

	return &Identity{
		UserID:    session.UserID,
		FirstName: session.FirstName,
		Phone:     session.Phone,
	}, nil
}

func (s *DatabaseSessionStore) Destroy(ctx context.Context, handle string) error {
	return s.repo.Deactivate(ctx, handle)
}

// StartCleanup deactivates expired rows every interval until stopped
func (s *DatabaseSessionStore) StartCleanup(parent context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.repo.CleanupExpired(ctx)
				if err != nil {
					log.Printf("Session cleanup failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("Session cleanup deactivated %d expired sessions", n)
				}
			}
		}
	}()
	return cancel
}
