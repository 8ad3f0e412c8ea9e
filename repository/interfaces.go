// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/future-messages/models"
	"github.com/google/uuid"
)

var (
	// ErrDuplicatePhone is returned when a phone is already registered
	ErrDuplicatePhone = errors.New("phone already registered")
	// ErrStatusConflict is returned when a message is not in the expected status
	ErrStatusConflict = errors.New("message status conflict")
)

type Repository[T any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	Save(ctx context.Context, entity *T) error
}

// UserRepository defines operations for registered users
type UserRepository interface {
	Repository[models.User]
	ByPhone(ctx context.Context, phone string) (*models.User, error)
}

// MessageRepository defines operations for scheduled messages
type MessageRepository interface {
	Repository[models.Message]
	ByMessageID(ctx context.Context, messageID uuid.UUID) (*models.Message, error)
	ListBySender(ctx context.Context, senderID uint, limit, offset int) ([]*models.Message, error)
	UpdateStatus(ctx context.Context, messageID uuid.UUID, from, to models.MessageStatus) error
	RecordEnqueueFailure(ctx context.Context, messageID uuid.UUID, reason string) error
	ListStuckProcessing(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*models.Message, error)
	CountExhausted(ctx context.Context, olderThan time.Time, maxAttempts int) (int64, error)
}

// UserSessionRepository defines operations for database-held sessions
type UserSessionRepository interface {
	Repository[models.UserSession]
	ByHandle(ctx context.Context, handle string) (*models.UserSession, error)
	Deactivate(ctx context.Context, handle string) error
	Touch(ctx context.Context, id uint) error
	CleanupExpired(ctx context.Context) (int64, error)
}
