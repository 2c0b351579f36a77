package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/metrics"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingColumns = []string{
	"id", "user_id", "listing_id", "start_time", "end_time", "total_price", "status",
	"payment_status", "stripe_payment_intent_id", "created_at", "updated_at",
}

func bookingRows(id uuid.UUID, piID string, status models.BookingStatus, paymentStatus models.PaymentStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bookingColumns).AddRow(
		id.String(), uuid.New().String(), uuid.New().String(), now, now.Add(2*time.Hour), 450.0, string(status),
		string(paymentStatus), piID, now, now,
	)
}

func setupReconciliationTest(t *testing.T) (*ReconciliationService, sqlmock.Sqlmock, *metrics.Metrics) {
	db, mock := newMockDB(t)
	m := metrics.New()
	repo := database.NewBookingRepository(db, newTestLogger())
	return NewReconciliationService(repo, m, newTestLogger()), mock, m
}

func TestTargetState_Mapping(t *testing.T) {
	testCases := []struct {
		status        models.IntentStatus
		bookingStatus models.BookingStatus
		paymentStatus models.PaymentStatus
	}{
		{models.IntentStatusSucceeded, models.BookingStatusConfirmed, models.PaymentStatusPaid},
		{models.IntentStatusRequiresCapture, models.BookingStatusPending, models.PaymentStatusPreAuthorized},
		{models.IntentStatusProcessing, models.BookingStatusPending, models.PaymentStatusProcessing},
		{models.IntentStatusCanceled, models.BookingStatusCancelled, models.PaymentStatusCancelled},
		{models.IntentStatusPaymentFailed, models.BookingStatusRejected, models.PaymentStatusFailed},
	}

	for _, tc := range testCases {
		t.Run(string(tc.status), func(t *testing.T) {
			state, ok := TargetState(tc.status)
			require.True(t, ok)
			assert.Equal(t, tc.bookingStatus, state.Status)
			assert.Equal(t, tc.paymentStatus, state.PaymentStatus)
		})
	}

	for _, other := range []models.IntentStatus{"requires_payment_method", "requires_action", "requires_confirmation", ""} {
		_, ok := TargetState(other)
		assert.False(t, ok, "status %q should not map", other)
	}
}

func TestApplyIntentStatus_Succeeded(t *testing.T) {
	service, mock, m := setupReconciliationTest(t)
	bookingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM bookings WHERE stripe_payment_intent_id = \$1 FOR UPDATE`).
		WithArgs("pi_123").
		WillReturnRows(bookingRows(bookingID, "pi_123", models.BookingStatusPending, models.PaymentStatusPreAuthorized))
	mock.ExpectExec(`UPDATE bookings SET status = \$2, payment_status = \$3, updated_at = NOW\(\)`).
		WithArgs(bookingID, "confirmed", "paid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := service.ApplyIntentStatus(context.Background(), "pi_123", models.IntentStatusSucceeded)
	require.NoError(t, err)
	assert.Equal(t, ReconcileUpdated, result.Outcome)
	assert.True(t, result.BecamePaid())
	assert.Equal(t, models.BookingStatusConfirmed, result.Booking.Status)
	assert.Equal(t, models.PaymentStatusPaid, result.Booking.PaymentStatus)
	assert.Equal(t, models.PaymentStatusPreAuthorized, result.Previous.PaymentStatus)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingTransitions.WithLabelValues("confirmed", "paid", "updated")))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyIntentStatus_IdempotentOnRepeatedSuccess(t *testing.T) {
	service, mock, _ := setupReconciliationTest(t)
	bookingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM bookings`).
		WithArgs("pi_123").
		WillReturnRows(bookingRows(bookingID, "pi_123", models.BookingStatusConfirmed, models.PaymentStatusPaid))
	mock.ExpectRollback()

	result, err := service.ApplyIntentStatus(context.Background(), "pi_123", models.IntentStatusSucceeded)
	require.NoError(t, err)
	assert.Equal(t, ReconcileUnchanged, result.Outcome)
	assert.False(t, result.BecamePaid())
	assert.Equal(t, models.BookingStatusConfirmed, result.Booking.Status)
	assert.Equal(t, models.PaymentStatusPaid, result.Booking.PaymentStatus)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyIntentStatus_UnknownBookingIsNoop(t *testing.T) {
	service, mock, _ := setupReconciliationTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM bookings`).
		WithArgs("pi_unknown").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	result, err := service.ApplyIntentStatus(context.Background(), "pi_unknown", models.IntentStatusSucceeded)
	require.NoError(t, err)
	assert.Equal(t, ReconcileNotFound, result.Outcome)
	assert.Nil(t, result.Booking)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyIntentStatus_TerminalStateIsNeverLeft(t *testing.T) {
	testCases := []struct {
		name          string
		status        models.BookingStatus
		paymentStatus models.PaymentStatus
		intent        models.IntentStatus
	}{
		{"Paid then failed", models.BookingStatusConfirmed, models.PaymentStatusPaid, models.IntentStatusPaymentFailed},
		{"Cancelled then succeeded", models.BookingStatusCancelled, models.PaymentStatusCancelled, models.IntentStatusSucceeded},
		{"Rejected then processing", models.BookingStatusRejected, models.PaymentStatusFailed, models.IntentStatusProcessing},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service, mock, _ := setupReconciliationTest(t)

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT .* FROM bookings`).
				WithArgs("pi_123").
				WillReturnRows(bookingRows(uuid.New(), "pi_123", tc.status, tc.paymentStatus))
			mock.ExpectRollback()

			result, err := service.ApplyIntentStatus(context.Background(), "pi_123", tc.intent)
			require.NoError(t, err)
			assert.Equal(t, ReconcileTerminalSkipped, result.Outcome)
			assert.Equal(t, tc.status, result.Booking.Status)
			assert.Equal(t, tc.paymentStatus, result.Booking.PaymentStatus)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestApplyIntentStatus_SettledOperatorStatesAreKept(t *testing.T) {
	testCases := []struct {
		name     string
		status   models.BookingStatus
		intent   models.IntentStatus
		expected ReconcileOutcome
	}{
		{"Completed then late capture update", models.BookingStatusCompleted, models.IntentStatusRequiresCapture, ReconcileTerminalSkipped},
		{"Completed then late processing", models.BookingStatusCompleted, models.IntentStatusProcessing, ReconcileTerminalSkipped},
		{"Approved then late processing", models.BookingStatusApproved, models.IntentStatusProcessing, ReconcileTerminalSkipped},
		{"Completed then redelivered success", models.BookingStatusCompleted, models.IntentStatusSucceeded, ReconcileUnchanged},
		{"Approved then redelivered success", models.BookingStatusApproved, models.IntentStatusSucceeded, ReconcileUnchanged},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service, mock, _ := setupReconciliationTest(t)

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT .* FROM bookings`).
				WithArgs("pi_123").
				WillReturnRows(bookingRows(uuid.New(), "pi_123", tc.status, models.PaymentStatusPaid))
			mock.ExpectRollback()

			result, err := service.ApplyIntentStatus(context.Background(), "pi_123", tc.intent)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result.Outcome)
			assert.False(t, result.BecamePaid())
			assert.Equal(t, tc.status, result.Booking.Status)
			assert.Equal(t, models.PaymentStatusPaid, result.Booking.PaymentStatus)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReconcileResult_BecamePaid(t *testing.T) {
	paid := models.BookingState{Status: models.BookingStatusConfirmed, PaymentStatus: models.PaymentStatusPaid}

	testCases := []struct {
		name     string
		result   *ReconcileResult
		expected bool
	}{
		{"Nil result", nil, false},
		{"Pre-authorized to paid", &ReconcileResult{
			Outcome:  ReconcileUpdated,
			Previous: models.BookingState{Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusPreAuthorized},
			Target:   paid,
		}, true},
		{"Already paid", &ReconcileResult{
			Outcome:  ReconcileUpdated,
			Previous: models.BookingState{Status: models.BookingStatusCompleted, PaymentStatus: models.PaymentStatusPaid},
			Target:   paid,
		}, false},
		{"Not written", &ReconcileResult{
			Outcome:  ReconcileTerminalSkipped,
			Previous: models.BookingState{Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusProcessing},
			Target:   paid,
		}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.result.BecamePaid())
		})
	}
}

func TestApplyIntentStatus_GuardedWrite(t *testing.T) {
	service, mock, _ := setupReconciliationTest(t)
	bookingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM bookings`).
		WithArgs("pi_123").
		WillReturnRows(bookingRows(bookingID, "pi_123", models.BookingStatusPending, models.PaymentStatusProcessing))
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(bookingID, "rejected", "failed").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	result, err := service.ApplyIntentStatus(context.Background(), "pi_123", models.IntentStatusPaymentFailed)
	require.NoError(t, err)
	assert.Equal(t, ReconcileTerminalSkipped, result.Outcome)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyIntentStatus_UnmappedStatus(t *testing.T) {
	service, mock, _ := setupReconciliationTest(t)

	result, err := service.ApplyIntentStatus(context.Background(), "pi_123", "requires_action")
	require.NoError(t, err)
	assert.Equal(t, ReconcileUnmapped, result.Outcome)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyIntentStatus_DatabaseErrors(t *testing.T) {
	t.Run("Begin fails", func(t *testing.T) {
		service, mock, _ := setupReconciliationTest(t)
		mock.ExpectBegin().WillReturnError(fmt.Errorf("too many connections"))

		_, err := service.ApplyIntentStatus(context.Background(), "pi_123", models.IntentStatusSucceeded)
		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Update fails", func(t *testing.T) {
		service, mock, _ := setupReconciliationTest(t)
		bookingID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM bookings`).
			WillReturnRows(bookingRows(bookingID, "pi_123", models.BookingStatusPending, models.PaymentStatusPreAuthorized))
		mock.ExpectExec(`UPDATE bookings`).WillReturnError(fmt.Errorf("connection reset"))
		mock.ExpectRollback()

		_, err := service.ApplyIntentStatus(context.Background(), "pi_123", models.IntentStatusSucceeded)
		assert.ErrorContains(t, err, "failed to update booking state")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Commit fails", func(t *testing.T) {
		service, mock, _ := setupReconciliationTest(t)
		bookingID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM bookings`).
			WillReturnRows(bookingRows(bookingID, "pi_123", models.BookingStatusPending, models.PaymentStatusPreAuthorized))
		mock.ExpectExec(`UPDATE bookings`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(fmt.Errorf("serialization failure"))

		_, err := service.ApplyIntentStatus(context.Background(), "pi_123", models.IntentStatusSucceeded)
		assert.ErrorContains(t, err, "failed to commit booking update")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
