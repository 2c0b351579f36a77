package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEventStatus is the processing state of an audit row
type WebhookEventStatus string

const (
	WebhookEventStatusProcessing WebhookEventStatus = "processing"
	WebhookEventStatusProcessed  WebhookEventStatus = "processed"
	WebhookEventStatusError      WebhookEventStatus = "error"
)

// IsValid reports whether s is a known status
func (s WebhookEventStatus) IsValid() bool {
	switch s {
	case WebhookEventStatusProcessing, WebhookEventStatusProcessed, WebhookEventStatusError:
		return true
	}
	return false
}

// EventKind is the closed set of Stripe event types this service acts on
type EventKind string

const (
	EventKindPaymentSucceeded       EventKind = "payment_intent.succeeded"
	EventKindPaymentFailed          EventKind = "payment_intent.payment_failed"
	EventKindPaymentCanceled        EventKind = "payment_intent.canceled"
	EventKindPaymentProcessing      EventKind = "payment_intent.processing"
	EventKindPaymentCaptureRequired EventKind = "payment_intent.amount_capturable_updated"
	EventKindIgnored                EventKind = "ignored"
)

// ParseEventKind maps a raw Stripe event type onto EventKind.
// Anything not handled explicitly becomes EventKindIgnored.
func ParseEventKind(eventType string) EventKind {
	switch kind := EventKind(eventType); kind {
	case EventKindPaymentSucceeded,
		EventKindPaymentFailed,
		EventKindPaymentCanceled,
		EventKindPaymentProcessing,
		EventKindPaymentCaptureRequired:
		return kind
	}
	return EventKindIgnored
}

// IntentStatus is the PaymentIntent-derived status fed to the booking state updater
type IntentStatus string

const (
	IntentStatusSucceeded       IntentStatus = "succeeded"
	IntentStatusRequiresCapture IntentStatus = "requires_capture"
	IntentStatusProcessing      IntentStatus = "processing"
	IntentStatusCanceled        IntentStatus = "canceled"
	IntentStatusPaymentFailed   IntentStatus = "payment_failed"
)

// IntentStatus returns the status an event kind reports for its PaymentIntent
func (k EventKind) IntentStatus() (IntentStatus, bool) {
	switch k {
	case EventKindPaymentSucceeded:
		return IntentStatusSucceeded, true
	case EventKindPaymentFailed:
		return IntentStatusPaymentFailed, true
	case EventKindPaymentCanceled:
		return IntentStatusCanceled, true
	case EventKindPaymentProcessing:
		return IntentStatusProcessing, true
	case EventKindPaymentCaptureRequired:
		return IntentStatusRequiresCapture, true
	case EventKindIgnored:
		return "", false
	}
	return "", false
}

// WebhookEvent is the append-only audit record of a received Stripe webhook
type WebhookEvent struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	StripeEventID   string             `json:"stripe_event_id" db:"stripe_event_id"`
	EventType       string             `json:"event_type" db:"event_type"`
	PaymentIntentID *string            `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	RawEvent        RawJSON            `json:"raw_event" db:"raw_event"`
	Status          WebhookEventStatus `json:"status" db:"status"`
	ErrorMessage    *string            `json:"error_message,omitempty" db:"error_message"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty" db:"processed_at"`
	SourceIP        *string            `json:"source_ip,omitempty" db:"source_ip"`
	UserAgent       *string            `json:"user_agent,omitempty" db:"user_agent"`
	Attempts        int                `json:"attempts" db:"attempts"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" db:"updated_at"`
}

// NewWebhookEvent creates an audit row in the processing state
func NewWebhookEvent(stripeEventID, eventType string, raw []byte) *WebhookEvent {
	now := time.Now()
	return &WebhookEvent{
		ID:            uuid.New(),
		StripeEventID: stripeEventID,
		EventType:     eventType,
		RawEvent:      RawJSON(raw),
		Status:        WebhookEventStatusProcessing,
		Attempts:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetPaymentIntent sets the correlated PaymentIntent id
func (e *WebhookEvent) SetPaymentIntent(id string) *WebhookEvent {
	if id != "" {
		e.PaymentIntentID = &id
	}
	return e
}

// SetSource records where the delivery came from
func (e *WebhookEvent) SetSource(ip, userAgent string) *WebhookEvent {
	if ip != "" {
		e.SourceIP = &ip
	}
	if userAgent != "" {
		e.UserAgent = &userAgent
	}
	return e
}

// IsTerminal reports whether the row no longer needs processing
func (e *WebhookEvent) IsTerminal() bool {
	return e.Status == WebhookEventStatusProcessed
}

// WebhookEventFilter narrows audit listings
type WebhookEventFilter struct {
	Status WebhookEventStatus
	Limit  int
	Offset int
}
