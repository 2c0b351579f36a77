package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationPriority ranks admin notifications on the dashboard
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

// NotificationTypePaymentReceived is written when a booking payment succeeds
const NotificationTypePaymentReceived = "payment_received"

// AdminNotification is a row surfaced in the external admin dashboard
type AdminNotification struct {
	ID               uuid.UUID            `json:"id" db:"id"`
	NotificationType string               `json:"notification_type" db:"notification_type"`
	Title            string               `json:"title" db:"title"`
	Message          string               `json:"message" db:"message"`
	BookingID        *uuid.UUID           `json:"booking_id,omitempty" db:"booking_id"`
	UserID           *uuid.UUID           `json:"user_id,omitempty" db:"user_id"`
	Priority         NotificationPriority `json:"priority" db:"priority"`
	Metadata         JSONB                `json:"metadata,omitempty" db:"metadata"`
	IsRead           bool                 `json:"is_read" db:"is_read"`
	CreatedAt        time.Time            `json:"created_at" db:"created_at"`
}

// AdminNotificationFilter narrows notification listings
type AdminNotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}
