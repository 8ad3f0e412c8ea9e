// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/utils"
	"gorm.io/gorm"
)

// UserSessionRepositoryImpl implements UserSessionRepository interface
type UserSessionRepositoryImpl struct {
	*BaseRepository[models.UserSession]
}

// NewUserSessionRepository creates a new user session repository
func NewUserSessionRepository(db *gorm.DB) UserSessionRepository {
	return &UserSessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.UserSession](db),
	}
}

// ByHandle retrieves an active, unexpired session by its handle
func (r *UserSessionRepositoryImpl) ByHandle(ctx context.Context, handle string) (*models.UserSession, error) {
	db := r.getDB(ctx)

	var session models.UserSession
	err := db.Where("handle = ? AND is_active = ? AND expires_at > ?",
		handle, true, utils.UTCNow()).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session by handle: %w", err)
	}

	return &session, nil
}

// Deactivate marks a session inactive; unknown handles are ignored
func (r *UserSessionRepositoryImpl) Deactivate(ctx context.Context, handle string) (err error) {
	db, err := r.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finishWrite(db, err) }()

	err = db.Model(&models.UserSession{}).
		Where("handle = ? AND is_active = ?", handle, true).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}

	return nil
}

// Touch records the last access time of a session
func (r *UserSessionRepositoryImpl) Touch(ctx context.Context, id uint) error {
	db := r.getDB(ctx)

	err := db.Model(&models.UserSession{}).
		Where("id = ?", id).
		Update("last_accessed_at", utils.UTCNow()).Error
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

// CleanupExpired deactivates sessions that expired while still active
func (r *UserSessionRepositoryImpl) CleanupExpired(ctx context.Context) (n int64, err error) {
	db, err := r.beginWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { err = finishWrite(db, err) }()

	result := db.Model(&models.UserSession{}).
		Where("is_active = ? AND expires_at <= ?", true, utils.UTCNow()).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", result.Error)
	}

	return result.RowsAffected, nil
}
