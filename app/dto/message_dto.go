package dto

// CreateMessageRequest schedules a message ahead of an event
type CreateMessageRequest struct {
	RecipientPhone string `json:"recipient_phone" validate:"required" example:"11988887777"`
	Message        string `json:"message" validate:"required" example:"Happy birthday!"`
	EventDate      string `json:"event_date" validate:"required" example:"2025-12-25"`
	ReminderDays   *int   `json:"reminder_days" validate:"required" example:"5"`
}

// MessageDTO is the client view of a scheduled message
type MessageDTO struct {
	MessageID      string `json:"message_id" example:"4f0b7e4e-2d0c-4a8e-9b4b-0b8f2d6f1a11"`
	RecipientPhone string `json:"recipient_phone" example:"11988887777"`
	Message        string `json:"message" example:"Happy birthday!"`
	EventDate      string `json:"event_date" example:"2025-12-25T00:00:00Z"`
	ReminderDays   int    `json:"reminder_days" example:"5"`
	DueAt          string `json:"due_at" example:"2025-12-20T00:00:00Z"`
	Status         string `json:"status" example:"Queued"`
	CreatedAt      string `json:"created_at" example:"2025-12-01T10:00:00Z"`
}

// ListMessagesResponse is one page of the caller's messages, newest first
type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	Limit    int          `json:"limit" example:"100"`
	Offset   int          `json:"offset" example:"0"`
}

// ReportStatusRequest is sent by the delivery worker after an attempt.
// Status is Sent or Failed, matched without regard to case.
type ReportStatusRequest struct {
	Status string `json:"status" validate:"required" example:"Sent"`
}

// ReportStatusResponse echoes the recorded status
type ReportStatusResponse struct {
	MessageID string `json:"message_id" example:"4f0b7e4e-2d0c-4a8e-9b4b-0b8f2d6f1a11"`
	Status    string `json:"status" example:"Sent"`
}
