// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"

	"github.com/amirphl/future-messages/app/dto"
	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/utils"
	"github.com/samber/lo"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID returns a copy of ctx carrying the request id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id set by WithRequestID, or ""
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}

// ClientMetadata holds client information used for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToMessageDTO converts a stored message to its API shape
func ToMessageDTO(msg *models.Message) dto.MessageDTO {
	return dto.MessageDTO{
		MessageID:      msg.MessageID.String(),
		RecipientPhone: msg.RecipientPhone,
		Message:        msg.Body,
		EventDate:      utils.FormatRFC3339UTC(msg.EventDate),
		ReminderDays:   msg.ReminderDays,
		DueAt:          utils.FormatRFC3339UTC(msg.DueAt),
		Status:         string(msg.Status),
		CreatedAt:      utils.FormatRFC3339UTC(msg.CreatedAt),
	}
}

// ToMessageDTOs converts a page of stored messages
func ToMessageDTOs(msgs []*models.Message) []dto.MessageDTO {
	return lo.Map(msgs, func(msg *models.Message, _ int) dto.MessageDTO {
		return ToMessageDTO(msg)
	})
}

// ToUserSummary converts a user to the summary returned on login
func ToUserSummary(user *models.User) dto.UserSummary {
	return dto.UserSummary{
		FirstName: user.FirstName,
		Phone:     user.Phone,
	}
}
