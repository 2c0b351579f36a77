package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle status of a parking booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusApproved  BookingStatus = "approved"
)

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusPreAuthorized PaymentStatus = "pre_authorized"
	PaymentStatusProcessing    PaymentStatus = "processing"
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusCancelled     PaymentStatus = "cancelled"
	PaymentStatusFailed        PaymentStatus = "failed"
)

// Booking represents a parking space reservation.
// Only Status, PaymentStatus and UpdatedAt are written by this service.
type Booking struct {
	ID                    uuid.UUID     `json:"id" db:"id"`
	UserID                uuid.UUID     `json:"user_id" db:"user_id"`
	ListingID             uuid.UUID     `json:"listing_id" db:"listing_id"`
	StartTime             time.Time     `json:"start_time" db:"start_time"`
	EndTime               time.Time     `json:"end_time" db:"end_time"`
	TotalPrice            float64       `json:"total_price" db:"total_price"`
	Status                BookingStatus `json:"status" db:"status"`
	PaymentStatus         PaymentStatus `json:"payment_status" db:"payment_status"`
	StripePaymentIntentID *string       `json:"stripe_payment_intent_id,omitempty" db:"stripe_payment_intent_id"`
	CreatedAt             time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at" db:"updated_at"`
}

// BookingState is the (status, payment_status) pair the reconciler writes
type BookingState struct {
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// State returns the booking's current reconciliation state
func (b *Booking) State() BookingState {
	return BookingState{Status: b.Status, PaymentStatus: b.PaymentStatus}
}

var terminalPaymentStatuses = map[PaymentStatus]struct{}{
	PaymentStatusPaid:      {},
	PaymentStatusCancelled: {},
	PaymentStatusFailed:    {},
}

// IsTerminal reports whether the payment outcome is final.
// Operator-owned statuses such as completed or approved are covered as long
// as the payment itself has settled.
func (s BookingState) IsTerminal() bool {
	_, ok := terminalPaymentStatuses[s.PaymentStatus]
	return ok
}

// BookingNotificationContext is the read-only context joined for operations email
type BookingNotificationContext struct {
	BookingID      uuid.UUID `db:"booking_id"`
	StartTime      time.Time `db:"start_time"`
	EndTime        time.Time `db:"end_time"`
	TotalPrice     float64   `db:"total_price"`
	CustomerID     uuid.UUID `db:"customer_id"`
	CustomerName   *string   `db:"customer_name"`
	CustomerEmail  *string   `db:"customer_email"`
	CustomerPhone  *string   `db:"customer_phone"`
	ListingTitle   *string   `db:"listing_title"`
	ListingAddress *string   `db:"listing_address"`
}
