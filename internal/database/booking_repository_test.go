package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingRowColumns = []string{
	"id", "user_id", "listing_id", "start_time", "end_time", "total_price", "status",
	"payment_status", "stripe_payment_intent_id", "created_at", "updated_at",
}

func TestBookingRepository_GetByPaymentIntentIDForUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db, newTestLogger())
		bookingID := uuid.New()
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM bookings WHERE stripe_payment_intent_id = \$1 FOR UPDATE`).
			WithArgs("pi_123").
			WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
				bookingID.String(), uuid.New().String(), uuid.New().String(), now, now.Add(2*time.Hour), 450.0, "pending",
				"pre_authorized", "pi_123", now, now,
			))
		mock.ExpectRollback()

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		booking, err := repo.GetByPaymentIntentIDForUpdate(ctx, tx, "pi_123")
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		require.NotNil(t, booking)
		assert.Equal(t, bookingID, booking.ID)
		assert.Equal(t, models.BookingStatusPending, booking.Status)
		assert.Equal(t, models.PaymentStatusPreAuthorized, booking.PaymentStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db, newTestLogger())

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM bookings`).
			WithArgs("pi_unknown").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		booking, err := repo.GetByPaymentIntentIDForUpdate(ctx, tx, "pi_unknown")
		require.NoError(t, tx.Rollback())

		assert.NoError(t, err)
		assert.Nil(t, booking)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_UpdateStateTx(t *testing.T) {
	ctx := context.Background()
	bookingID := uuid.New()
	confirmed := models.BookingState{Status: models.BookingStatusConfirmed, PaymentStatus: models.PaymentStatusPaid}

	testCases := []struct {
		name     string
		affected int64
		expected bool
	}{
		{"Row written", 1, true},
		{"Guarded by terminal state", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewBookingRepository(db, newTestLogger())

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE bookings SET status = \$2, payment_status = \$3, updated_at = NOW\(\) WHERE id = \$1`).
				WithArgs(bookingID, "confirmed", "paid").
				WillReturnResult(sqlmock.NewResult(0, tc.affected))
			mock.ExpectCommit()

			tx, err := repo.BeginTx(ctx)
			require.NoError(t, err)
			written, err := repo.UpdateStateTx(ctx, tx, bookingID, confirmed)
			require.NoError(t, err)
			require.NoError(t, tx.Commit())

			assert.Equal(t, tc.expected, written)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("Guard keys on settled payment status", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db, newTestLogger())
		pending := models.BookingState{Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusProcessing}

		mock.ExpectBegin()
		mock.ExpectExec(`WHERE id = \$1 AND \( payment_status NOT IN \('paid', 'cancelled', 'failed'\) OR \(status = \$2 AND payment_status = \$3\) \)`).
			WithArgs(bookingID, "pending", "processing").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		written, err := repo.UpdateStateTx(ctx, tx, bookingID, pending)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		assert.False(t, written)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db, newTestLogger())

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE bookings`).WillReturnError(fmt.Errorf("deadlock detected"))
		mock.ExpectRollback()

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		_, err = repo.UpdateStateTx(ctx, tx, bookingID, confirmed)
		require.NoError(t, tx.Rollback())

		assert.ErrorContains(t, err, "failed to update booking state")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetNotificationContext(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db, newTestLogger())
	bookingID := uuid.New()
	customerID := uuid.New()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM bookings b LEFT JOIN profiles p ON p.id = b.user_id LEFT JOIN parking_listings l ON l.id = b.listing_id WHERE b.id = \$1`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{
			"booking_id", "start_time", "end_time", "total_price", "customer_id",
			"customer_name", "customer_email", "customer_phone", "listing_title", "listing_address",
		}).AddRow(
			bookingID.String(), start, start.Add(3*time.Hour), 450.0, customerID.String(),
			"Layla Haddad", "layla@example.com", nil, "Marina Walk Covered Bay", "Dubai Marina",
		))

	bookingCtx, err := repo.GetNotificationContext(ctx, bookingID)
	require.NoError(t, err)
	require.NotNil(t, bookingCtx)
	assert.Equal(t, customerID, bookingCtx.CustomerID)
	require.NotNil(t, bookingCtx.ListingTitle)
	assert.Equal(t, "Marina Walk Covered Bay", *bookingCtx.ListingTitle)
	assert.Nil(t, bookingCtx.CustomerPhone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
