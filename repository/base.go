// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const uniqueViolationCode = "23505"

// BaseRepository provides the lookups and inserts shared by every table
type BaseRepository[T any] struct {
	DB *gorm.DB
}

// NewBaseRepository creates a new base repository instance
func NewBaseRepository[T any](db *gorm.DB) *BaseRepository[T] {
	return &BaseRepository[T]{
		DB: db,
	}
}

func (r *BaseRepository[T]) getDB(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx)
}

// beginWrite opens the transaction a write runs in
func (r *BaseRepository[T]) beginWrite(ctx context.Context) (*gorm.DB, error) {
	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	return tx, nil
}

// finishWrite commits tx, or rolls it back when err is set
func finishWrite(tx *gorm.DB, err error) error {
	if err != nil {
		tx.Rollback()
		return err
	}
	if cerr := tx.Commit().Error; cerr != nil {
		return fmt.Errorf("failed to commit transaction: %w", cerr)
	}
	return nil
}

// ByID retrieves an entity by its ID
func (r *BaseRepository[T]) ByID(ctx context.Context, id uint) (*T, error) {
	db := r.getDB(ctx)

	var entity T
	err := db.Last(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find entity by ID %d: %w", id, err)
	}

	return &entity, nil
}

// Save inserts a new entity
func (r *BaseRepository[T]) Save(ctx context.Context, entity *T) (err error) {
	db, err := r.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finishWrite(db, err) }()

	if err = db.Create(entity).Error; err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err came from a unique index
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode
}
