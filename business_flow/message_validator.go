package businessflow

import (
	"strings"
	"time"

	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/utils"
)

// accepted event_date layouts, tried in order; zone-less values are UTC
var eventDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// RawMessage is a message request as received, before normalization
type RawMessage struct {
	RecipientPhone string
	Body           string
	EventDate      string
	ReminderDays   int
}

// NormalizedMessage is a message request that passed validation
type NormalizedMessage struct {
	RecipientPhone string
	Body           string
	EventDate      time.Time
	ReminderDays   int
	DueAt          time.Time
}

// MessageValidator normalizes and validates message requests. It never
// touches storage.
type MessageValidator interface {
	Validate(raw RawMessage) (*NormalizedMessage, error)
}

type MessageValidatorImpl struct{}

func NewMessageValidator() MessageValidator {
	return MessageValidatorImpl{}
}

func (MessageValidatorImpl) Validate(raw RawMessage) (*NormalizedMessage, error) {
	phone, ok := utils.NormalizePhone(raw.RecipientPhone)
	if !ok {
		return nil, NewValidationError("recipient_phone", "must contain 10 or 11 digits")
	}

	if strings.TrimSpace(raw.Body) == "" {
		return nil, NewValidationError("message", "must not be empty")
	}

	if raw.ReminderDays < 0 {
		return nil, NewValidationError("reminder_days", "must not be negative")
	}

	eventDate, ok := ParseEventDate(raw.EventDate)
	if !ok {
		return nil, NewValidationError("event_date", "must be an ISO-8601 date or date-time")
	}

	return &NormalizedMessage{
		RecipientPhone: phone,
		Body:           raw.Body,
		EventDate:      eventDate,
		ReminderDays:   raw.ReminderDays,
		DueAt:          models.ComputeDueAt(eventDate, raw.ReminderDays),
	}, nil
}

// ParseEventDate parses an event date and returns it in UTC
func ParseEventDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
