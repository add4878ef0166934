package models

import "time"

// NotificationLog records the outcome of a decision notification email.
type NotificationLog struct {
	ID             int64      `json:"id"`
	RequestID      int64      `json:"request_id"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"` // sent, failed
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
