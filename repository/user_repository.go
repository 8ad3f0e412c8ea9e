// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/future-messages/models"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User](db),
	}
}

// Save inserts a user; the unique phone index decides races between
// concurrent registrations.
func (r *UserRepositoryImpl) Save(ctx context.Context, user *models.User) (err error) {
	db, err := r.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finishWrite(db, err) }()

	if err = db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

// ByPhone retrieves a user by canonical phone
func (r *UserRepositoryImpl) ByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.first(ctx, "phone = ?", phone)
}

func (r *UserRepositoryImpl) first(ctx context.Context, query string, args ...any) (*models.User, error) {
	db := r.getDB(ctx)

	var user models.User
	err := db.Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &user, nil
}
