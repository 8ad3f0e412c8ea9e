package businessflow

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/amirphl/future-messages/app/dto"
	"github.com/amirphl/future-messages/app/services"
	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/repository"
	"github.com/amirphl/future-messages/utils"
	"github.com/google/uuid"
)

// MessageFlow handles intake, listing and delivery status of scheduled messages
type MessageFlow interface {
	CreateMessage(ctx context.Context, identity services.Identity, request *dto.CreateMessageRequest) (*dto.MessageDTO, error)
	ListMessages(ctx context.Context, identity services.Identity, limit, offset int) (*dto.ListMessagesResponse, error)
	ExportMessages(ctx context.Context, identity services.Identity) ([]byte, error)
	ReportDeliveryStatus(ctx context.Context, messageID string, status string) (*dto.ReportStatusResponse, error)
	RequeueStuck(ctx context.Context, olderThan time.Time, maxAttempts, batchSize int) (*ReconcileResult, error)
}

// ReconcileResult summarizes one sweep over stuck processing messages
type ReconcileResult struct {
	Scanned   int
	Requeued  int
	Failed    int
	Exhausted int64
}

// MessageFlowImpl implements the message business flow
type MessageFlowImpl struct {
	messageRepo    repository.MessageRepository
	validator      MessageValidator
	publisher      services.DeliveryPublisher
	publishTimeout time.Duration
}

// NewMessageFlow creates a new message flow instance
func NewMessageFlow(
	messageRepo repository.MessageRepository,
	validator MessageValidator,
	publisher services.DeliveryPublisher,
	publishTimeout time.Duration,
) MessageFlow {
	if publishTimeout <= 0 {
		publishTimeout = utils.DefaultPublishTimeout
	}
	return &MessageFlowImpl{
		messageRepo:    messageRepo,
		validator:      validator,
		publisher:      publisher,
		publishTimeout: publishTimeout,
	}
}

// CreateMessage validates, persists and enqueues a message for the caller.
// A failed publish leaves the message in processing for the sweep and is not
// reported as an error.
func (mf *MessageFlowImpl) CreateMessage(ctx context.Context, identity services.Identity, request *dto.CreateMessageRequest) (*dto.MessageDTO, error) {
	if identity.UserID == 0 {
		return nil, NewBusinessError("UNAUTHENTICATED", "Authentication required", ErrUnauthenticated)
	}

	reminderDays := 0
	if request.ReminderDays != nil {
		reminderDays = *request.ReminderDays
	}
	normalized, err := mf.validator.Validate(RawMessage{
		RecipientPhone: request.RecipientPhone,
		Body:           request.Message,
		EventDate:      request.EventDate,
		ReminderDays:   reminderDays,
	})
	if err != nil {
		return nil, NewBusinessError("MESSAGE_VALIDATION_FAILED", "Message validation failed", err)
	}

	msg := &models.Message{
		MessageID:      uuid.New(),
		SenderID:       identity.UserID,
		RecipientPhone: normalized.RecipientPhone,
		Body:           normalized.Body,
		EventDate:      normalized.EventDate,
		ReminderDays:   normalized.ReminderDays,
		DueAt:          normalized.DueAt,
		Status:         models.MessageStatusProcessing,
	}
	if err := mf.messageRepo.Save(ctx, msg); err != nil {
		return nil, NewBusinessError("MESSAGE_CREATION_FAILED", "Failed to store message", downstream(err))
	}

	if err := mf.enqueue(ctx, msg); err != nil {
		log.Printf("message %s left in processing (request %s): %v", msg.MessageID, RequestIDFromContext(ctx), err)
	}
	messagesCreatedTotal.WithLabelValues(string(msg.Status)).Inc()

	out := ToMessageDTO(msg)
	return &out, nil
}

// enqueue publishes msg and moves it to queued. On publish failure the
// attempt is recorded and msg keeps its processing status.
func (mf *MessageFlowImpl) enqueue(ctx context.Context, msg *models.Message) error {
	pubCtx, cancel := context.WithTimeout(ctx, mf.publishTimeout)
	defer cancel()

	if err := mf.publisher.Publish(pubCtx, services.NewDeliveryJob(msg)); err != nil {
		if rerr := mf.messageRepo.RecordEnqueueFailure(ctx, msg.MessageID, err.Error()); rerr != nil {
			log.Printf("failed to record enqueue failure for %s: %v", msg.MessageID, rerr)
		}
		msg.EnqueueAttempts++
		return downstream(err)
	}

	err := mf.messageRepo.UpdateStatus(ctx, msg.MessageID, models.MessageStatusProcessing, models.MessageStatusQueued)
	if err != nil {
		if !errors.Is(err, repository.ErrStatusConflict) {
			return downstream(err)
		}
		// someone else moved it first; report what is stored
		current, lerr := mf.messageRepo.ByMessageID(ctx, msg.MessageID)
		if lerr == nil && current != nil {
			msg.Status = current.Status
		}
		return nil
	}

	msg.Status = models.MessageStatusQueued
	return nil
}

// ListMessages returns one page of the caller's messages, newest first
func (mf *MessageFlowImpl) ListMessages(ctx context.Context, identity services.Identity, limit, offset int) (*dto.ListMessagesResponse, error) {
	if identity.UserID == 0 {
		return nil, NewBusinessError("UNAUTHENTICATED", "Authentication required", ErrUnauthenticated)
	}
	if limit <= 0 || limit > utils.MaxMessagePageSize {
		limit = utils.MaxMessagePageSize
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := mf.messageRepo.ListBySender(ctx, identity.UserID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to list messages", downstream(err))
	}

	return &dto.ListMessagesResponse{
		Messages: ToMessageDTOs(messages),
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// ReportDeliveryStatus records the worker's outcome for a queued message.
// Repeating the already recorded outcome succeeds without a write.
func (mf *MessageFlowImpl) ReportDeliveryStatus(ctx context.Context, messageID string, status string) (*dto.ReportStatusResponse, error) {
	id, err := uuid.Parse(strings.TrimSpace(messageID))
	if err != nil {
		return nil, NewBusinessError("MESSAGE_NOT_FOUND", "Message not found", ErrMessageNotFound)
	}

	to, ok := models.ParseMessageStatus(status)
	if !ok || !to.IsTerminal() {
		return nil, NewBusinessError("STATUS_VALIDATION_FAILED", "Invalid delivery status",
			NewValidationError("status", "must be Sent or Failed"))
	}

	msg, err := mf.messageRepo.ByMessageID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LOOKUP_FAILED", "Failed to load message", downstream(err))
	}
	if msg == nil {
		return nil, NewBusinessError("MESSAGE_NOT_FOUND", "Message not found", ErrMessageNotFound)
	}

	resp := &dto.ReportStatusResponse{MessageID: id.String(), Status: string(to)}
	if msg.Status == to {
		return resp, nil
	}

	if err := mf.messageRepo.UpdateStatus(ctx, id, models.MessageStatusQueued, to); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, NewBusinessErrorf("STATUS_CONFLICT", "Message is %s, cannot become %s", ErrStatusConflict, msg.Status, to)
		}
		return nil, NewBusinessError("STATUS_UPDATE_FAILED", "Failed to update message status", downstream(err))
	}

	return resp, nil
}

// RequeueStuck re-publishes processing messages older than olderThan that
// still have attempts left, one batch per call.
func (mf *MessageFlowImpl) RequeueStuck(ctx context.Context, olderThan time.Time, maxAttempts, batchSize int) (*ReconcileResult, error) {
	stuck, err := mf.messageRepo.ListStuckProcessing(ctx, olderThan, maxAttempts, batchSize)
	if err != nil {
		return nil, NewBusinessError("RECONCILE_LIST_FAILED", "Failed to list stuck messages", downstream(err))
	}

	result := &ReconcileResult{Scanned: len(stuck)}
	for _, msg := range stuck {
		if ctx.Err() != nil {
			break
		}
		if err := mf.enqueue(ctx, msg); err != nil {
			result.Failed++
			reconcileRequeuedTotal.WithLabelValues("failure").Inc()
			continue
		}
		result.Requeued++
		reconcileRequeuedTotal.WithLabelValues("success").Inc()
	}

	exhausted, err := mf.messageRepo.CountExhausted(ctx, olderThan, maxAttempts)
	if err != nil {
		return result, NewBusinessError("RECONCILE_COUNT_FAILED", "Failed to count exhausted messages", downstream(err))
	}
	result.Exhausted = exhausted

	return result, nil
}
