package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/sirupsen/logrus"
)

const bookingColumns = `
	id, user_id, listing_id, start_time, end_time, total_price, status,
	payment_status, stripe_payment_intent_id, created_at, updated_at`

// BookingRepository reads bookings and writes their payment state.
// The bookings table is owned by the booking-creation workflow; only
// status, payment_status and updated_at are ever written here.
type BookingRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB, logger *logrus.Logger) *BookingRepository {
	return &BookingRepository{
		db:     db,
		logger: logger,
	}
}

// BeginTx starts a transaction for a booking state update
func (r *BookingRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// GetByPaymentIntentIDForUpdate locks and returns the booking correlated to a
// PaymentIntent, or nil if none exists
func (r *BookingRepository) GetByPaymentIntentIDForUpdate(ctx context.Context, tx *sqlx.Tx, paymentIntentID string) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE stripe_payment_intent_id = $1 FOR UPDATE`

	var booking models.Booking
	err := tx.GetContext(ctx, &booking, query, paymentIntentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by payment intent: %w", err)
	}
	return &booking, nil
}

// GetByID returns a booking, or nil if none exists
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// UpdateStateTx writes the booking's status and payment_status.
// The write is skipped when the row's payment has already settled (paid,
// cancelled or failed) unless it is being rewritten to the same state; the
// returned bool reports whether a row was written.
func (r *BookingRepository) UpdateStateTx(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID, state models.BookingState) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1
		AND (
			payment_status NOT IN ('paid', 'cancelled', 'failed')
			OR (status = $2 AND payment_status = $3)
		)`

	result, err := tx.ExecContext(ctx, query, bookingID, state.Status, state.PaymentStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update booking state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"booking_id":     bookingID,
		"status":         state.Status,
		"payment_status": state.PaymentStatus,
		"written":        rows > 0,
	}).Debug("Booking state update executed")

	return rows > 0, nil
}

// GetNotificationContext joins the booking with its customer and listing
func (r *BookingRepository) GetNotificationContext(ctx context.Context, bookingID uuid.UUID) (*models.BookingNotificationContext, error) {
	query := `
		SELECT
			b.id AS booking_id, b.start_time, b.end_time, b.total_price,
			b.user_id AS customer_id,
			p.full_name AS customer_name, p.email AS customer_email, p.phone AS customer_phone,
			l.title AS listing_title, l.address AS listing_address
		FROM bookings b
		LEFT JOIN profiles p ON p.id = b.user_id
		LEFT JOIN parking_listings l ON l.id = b.listing_id
		WHERE b.id = $1`

	var bookingCtx models.BookingNotificationContext
	err := r.db.GetContext(ctx, &bookingCtx, query, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking notification context: %w", err)
	}
	return &bookingCtx, nil
}
