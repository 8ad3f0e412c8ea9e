// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements MessageRepository interface
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message]
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Message](db),
	}
}

// ByMessageID retrieves a message by its intake identity
func (r *MessageRepositoryImpl) ByMessageID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	db := r.getDB(ctx)

	var msg models.Message
	err := db.Where("message_id = ?", messageID).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message by message id: %w", err)
	}

	return &msg, nil
}

// ListBySender returns one page of the sender's messages, newest first
func (r *MessageRepositoryImpl) ListBySender(ctx context.Context, senderID uint, limit, offset int) ([]*models.Message, error) {
	if limit <= 0 || limit > utils.MaxMessagePageSize {
		limit = utils.MaxMessagePageSize
	}
	if offset < 0 {
		offset = 0
	}

	db := r.getDB(ctx)

	var messages []*models.Message
	err := db.Where("sender_id = ?", senderID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages by sender: %w", err)
	}

	return messages, nil
}

// UpdateStatus moves a message from one status to the next. It fails with
// ErrStatusConflict when the transition is not allowed or the stored status
// is no longer from.
func (r *MessageRepositoryImpl) UpdateStatus(ctx context.Context, messageID uuid.UUID, from, to models.MessageStatus) (err error) {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s not allowed", ErrStatusConflict, from, to)
	}

	db, err := r.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finishWrite(db, err) }()

	result := db.Model(&models.Message{}).
		Where("message_id = ? AND status = ?", messageID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update message status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s is not %s", ErrStatusConflict, messageID, from)
	}

	return nil
}

// RecordEnqueueFailure counts a failed publish attempt on a processing message
func (r *MessageRepositoryImpl) RecordEnqueueFailure(ctx context.Context, messageID uuid.UUID, reason string) (err error) {
	db, err := r.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finishWrite(db, err) }()

	result := db.Model(&models.Message{}).
		Where("message_id = ? AND status = ?", messageID, models.MessageStatusProcessing).
		Updates(map[string]any{
			"enqueue_attempts": gorm.Expr("enqueue_attempts + 1"),
			"last_error":       reason,
			"updated_at":       utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record enqueue failure: %w", result.Error)
	}

	return nil
}

// ListStuckProcessing returns processing messages created before olderThan
// that still have publish attempts left, oldest first.
func (r *MessageRepositoryImpl) ListStuckProcessing(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*models.Message, error) {
	db := r.getDB(ctx)

	var messages []*models.Message
	err := db.Where("status = ? AND created_at < ? AND enqueue_attempts < ?",
		models.MessageStatusProcessing, olderThan, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck processing messages: %w", err)
	}

	return messages, nil
}

// CountExhausted counts processing messages that ran out of publish attempts
func (r *MessageRepositoryImpl) CountExhausted(ctx context.Context, olderThan time.Time, maxAttempts int) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.Message{}).
		Where("status = ? AND created_at < ? AND enqueue_attempts >= ?",
			models.MessageStatusProcessing, olderThan, maxAttempts).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count exhausted messages: %w", err)
	}

	return count, nil
}
