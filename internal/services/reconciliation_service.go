package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/metrics"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/sirupsen/logrus"
)

// statusTransitions maps a PaymentIntent status onto the booking state it implies
var statusTransitions = map[models.IntentStatus]models.BookingState{
	models.IntentStatusSucceeded:       {Status: models.BookingStatusConfirmed, PaymentStatus: models.PaymentStatusPaid},
	models.IntentStatusRequiresCapture: {Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusPreAuthorized},
	models.IntentStatusProcessing:      {Status: models.BookingStatusPending, PaymentStatus: models.PaymentStatusProcessing},
	models.IntentStatusCanceled:        {Status: models.BookingStatusCancelled, PaymentStatus: models.PaymentStatusCancelled},
	models.IntentStatusPaymentFailed:   {Status: models.BookingStatusRejected, PaymentStatus: models.PaymentStatusFailed},
}

// TargetState returns the booking state for a PaymentIntent status.
// ok is false for statuses that leave the booking unchanged.
func TargetState(status models.IntentStatus) (models.BookingState, bool) {
	state, ok := statusTransitions[status]
	return state, ok
}

// ReconcileOutcome describes what a state update did
type ReconcileOutcome string

const (
	ReconcileUpdated         ReconcileOutcome = "updated"
	ReconcileUnchanged       ReconcileOutcome = "unchanged"
	ReconcileNotFound        ReconcileOutcome = "not_found"
	ReconcileTerminalSkipped ReconcileOutcome = "terminal_skipped"
	ReconcileUnmapped        ReconcileOutcome = "unmapped"
)

// ReconcileResult is the result of applying a PaymentIntent status
type ReconcileResult struct {
	Outcome  ReconcileOutcome
	Booking  *models.Booking
	Previous models.BookingState
	Target   models.BookingState
}

// BecamePaid reports whether this update moved an unpaid booking into confirmed/paid
func (r *ReconcileResult) BecamePaid() bool {
	return r != nil && r.Outcome == ReconcileUpdated &&
		r.Previous.PaymentStatus != models.PaymentStatusPaid &&
		r.Target.Status == models.BookingStatusConfirmed &&
		r.Target.PaymentStatus == models.PaymentStatusPaid
}

// ReconciliationService applies PaymentIntent statuses to bookings
type ReconciliationService struct {
	bookings *database.BookingRepository
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(bookings *database.BookingRepository, m *metrics.Metrics, logger *logrus.Logger) *ReconciliationService {
	return &ReconciliationService{
		bookings: bookings,
		metrics:  m,
		logger:   logger,
	}
}

// ApplyIntentStatus updates the booking correlated to paymentIntentID.
// A missing booking is logged and reported as ReconcileNotFound with a nil error.
// Transitions out of a terminal state are skipped.
func (s *ReconciliationService) ApplyIntentStatus(ctx context.Context, paymentIntentID string, status models.IntentStatus) (*ReconcileResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"payment_intent_id": paymentIntentID,
		"intent_status":     status,
	})

	target, ok := TargetState(status)
	if !ok {
		log.Info("Payment intent status does not map to a booking state, leaving booking unchanged")
		return &ReconcileResult{Outcome: ReconcileUnmapped}, nil
	}

	tx, err := s.bookings.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.WithError(rbErr).Warn("Failed to roll back booking transaction")
		}
	}()

	booking, err := s.bookings.GetByPaymentIntentIDForUpdate(ctx, tx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		log.Warn("No booking found for payment intent")
		s.metrics.ObserveTransition(string(target.Status), string(target.PaymentStatus), string(ReconcileNotFound))
		return &ReconcileResult{Outcome: ReconcileNotFound, Target: target}, nil
	}

	result := &ReconcileResult{Booking: booking, Previous: booking.State(), Target: target}
	log = log.WithField("booking_id", booking.ID)

	switch {
	case result.Previous == target:
		log.Debug("Booking already in target state")
		result.Outcome = ReconcileUnchanged
	case result.Previous.IsTerminal() && result.Previous.PaymentStatus == target.PaymentStatus:
		log.WithField("current_status", result.Previous.Status).
			Debug("Booking payment already settled with this outcome")
		result.Outcome = ReconcileUnchanged
	case result.Previous.IsTerminal():
		log.WithFields(logrus.Fields{
			"current_status":         result.Previous.Status,
			"current_payment_status": result.Previous.PaymentStatus,
		}).Warn("Booking is in a terminal state, ignoring transition")
		result.Outcome = ReconcileTerminalSkipped
	default:
		written, err := s.bookings.UpdateStateTx(ctx, tx, booking.ID, target)
		if err != nil {
			return nil, err
		}
		if !written {
			log.Warn("Booking state write skipped by terminal-state guard")
			result.Outcome = ReconcileTerminalSkipped
			break
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit booking update: %w", err)
		}
		booking.Status = target.Status
		booking.PaymentStatus = target.PaymentStatus
		result.Outcome = ReconcileUpdated
		log.WithFields(logrus.Fields{
			"from_status":         result.Previous.Status,
			"from_payment_status": result.Previous.PaymentStatus,
			"to_status":           target.Status,
			"to_payment_status":   target.PaymentStatus,
		}).Info("Booking payment state updated")
	}

	s.metrics.ObserveTransition(string(target.Status), string(target.PaymentStatus), string(result.Outcome))
	return result, nil
}
