package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
)

// PaymentSyncService reconciles a single booking against Stripe on demand
type PaymentSyncService struct {
	bookings  *database.BookingRepository
	stripe    *StripeService
	reconcile *ReconciliationService
	notifier  PaymentNotifier
	logger    *logrus.Logger
}

// NewPaymentSyncService creates a new payment sync service
func NewPaymentSyncService(
	bookings *database.BookingRepository,
	stripeService *StripeService,
	reconcile *ReconciliationService,
	notifier PaymentNotifier,
	logger *logrus.Logger,
) *PaymentSyncService {
	return &PaymentSyncService{
		bookings:  bookings,
		stripe:    stripeService,
		reconcile: reconcile,
		notifier:  notifier,
		logger:    logger,
	}
}

// IntentStatusFromPaymentIntent maps a live PaymentIntent onto the statuses the
// booking updater understands. A PaymentIntent sent back to
// requires_payment_method after a decline counts as payment_failed.
func IntentStatusFromPaymentIntent(pi *stripe.PaymentIntent) models.IntentStatus {
	if pi.Status == stripe.PaymentIntentStatusRequiresPaymentMethod && pi.LastPaymentError != nil {
		return models.IntentStatusPaymentFailed
	}
	return models.IntentStatus(pi.Status)
}

// SyncBooking fetches the booking's PaymentIntent from Stripe and applies its status
func (s *PaymentSyncService) SyncBooking(ctx context.Context, bookingID uuid.UUID) (*ReconcileResult, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.StripePaymentIntentID == nil || *booking.StripePaymentIntentID == "" {
		return nil, ErrNoPaymentIntent
	}

	pi, err := s.stripe.GetPaymentIntent(ctx, *booking.StripePaymentIntentID)
	if err != nil {
		return nil, err
	}

	status := IntentStatusFromPaymentIntent(pi)
	s.logger.WithFields(logrus.Fields{
		"booking_id":        bookingID,
		"payment_intent_id": pi.ID,
		"stripe_status":     pi.Status,
		"intent_status":     status,
	}).Info("Syncing booking payment state from Stripe")

	result, err := s.reconcile.ApplyIntentStatus(ctx, pi.ID, status)
	if err != nil {
		return nil, err
	}

	if result.BecamePaid() && s.notifier != nil {
		s.notifier.NotifyPaymentReceived(ctx, PaymentReceived{
			StripeEventID:   "manual-sync-" + bookingID.String(),
			Booking:         result.Booking,
			PaymentIntentID: pi.ID,
			Amount:          pi.Amount,
			Currency:        string(pi.Currency),
		})
	}
	return result, nil
}
