package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageStatus enumerates the delivery lifecycle of a scheduled message
type MessageStatus string

const (
	MessageStatusProcessing MessageStatus = "Processing"
	MessageStatusQueued     MessageStatus = "Queued"
	MessageStatusSent       MessageStatus = "Sent"
	MessageStatusFailed     MessageStatus = "Failed"
)

// ParseMessageStatus maps a status name to its canonical form, ignoring case
func ParseMessageStatus(s string) (MessageStatus, bool) {
	for _, status := range []MessageStatus{
		MessageStatusProcessing, MessageStatusQueued, MessageStatusSent, MessageStatusFailed,
	} {
		if strings.EqualFold(strings.TrimSpace(s), string(status)) {
			return status, true
		}
	}
	return "", false
}

// messageTransitions lists the single forward step allowed from each status
var messageTransitions = map[MessageStatus][]MessageStatus{
	MessageStatusProcessing: {MessageStatusQueued},
	MessageStatusQueued:     {MessageStatusSent, MessageStatusFailed},
}

// CanTransition reports whether a message may move from one status to another
func CanTransition(from, to MessageStatus) bool {
	for _, next := range messageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed
}

// IsValid reports whether s is a known status
func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageStatusProcessing, MessageStatusQueued, MessageStatusSent, MessageStatusFailed:
		return true
	}
	return false
}

// Message is a text scheduled for delivery ahead of an event
type Message struct {
	ID              uint          `gorm:"primaryKey" json:"-"`
	MessageID       uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_messages_message_id" json:"message_id"`
	SenderID        uint          `gorm:"not null;index:idx_messages_sender_id_created_at,priority:1" json:"sender_id"`
	Sender          *User         `gorm:"foreignKey:SenderID;references:ID" json:"-"`
	RecipientPhone  string        `gorm:"size:11;not null" json:"recipient_phone"`
	Body            string        `gorm:"type:text;not null" json:"message"`
	EventDate       time.Time     `gorm:"not null" json:"event_date"`
	ReminderDays    int           `gorm:"not null;default:0" json:"reminder_days"`
	DueAt           time.Time     `gorm:"not null;index:idx_messages_due_at" json:"due_at"`
	Status          MessageStatus `gorm:"size:20;not null;default:'Processing';index:idx_messages_status_created_at,priority:1" json:"status"`
	EnqueueAttempts int           `gorm:"not null;default:0" json:"-"`
	LastError       *string       `gorm:"type:text" json:"-"`
	CreatedAt       time.Time     `gorm:"not null;index:idx_messages_sender_id_created_at,priority:2;index:idx_messages_status_created_at,priority:2" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// ComputeDueAt returns the instant a message becomes eligible for delivery:
// the event date moved back by the reminder lead time in whole days.
func ComputeDueAt(eventDate time.Time, reminderDays int) time.Time {
	return eventDate.UTC().AddDate(0, 0, -reminderDays)
}
