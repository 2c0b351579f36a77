package models

import (
	"time"

	"github.com/google/uuid"
)

// DeadLetterChannel names the side effect that failed
type DeadLetterChannel string

const (
	DeadLetterChannelAdminNotification DeadLetterChannel = "admin_notification"
	DeadLetterChannelEmail             DeadLetterChannel = "email"
)

// NotificationDeadLetter records a best-effort side effect that could not be delivered
type NotificationDeadLetter struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	StripeEventID string            `json:"stripe_event_id" db:"stripe_event_id"`
	BookingID     *uuid.UUID        `json:"booking_id,omitempty" db:"booking_id"`
	Channel       DeadLetterChannel `json:"channel" db:"channel"`
	Payload       JSONB             `json:"payload,omitempty" db:"payload"`
	ErrorMessage  string            `json:"error_message" db:"error_message"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}
