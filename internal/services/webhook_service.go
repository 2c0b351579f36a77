package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/metrics"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
)

const (
	defaultNotifyTimeout = 10 * time.Second
	defaultAuditTimeout  = 5 * time.Second
)

// PaymentNotifier is told about bookings that just became paid
type PaymentNotifier interface {
	NotifyPaymentReceived(ctx context.Context, in PaymentReceived) NotificationReport
}

// WebhookDelivery is one inbound webhook request
type WebhookDelivery struct {
	Payload   []byte
	Signature string
	SourceIP  string
	UserAgent string
}

// WebhookResult describes how a delivery was handled
type WebhookResult struct {
	EventID      string
	EventType    string
	Kind         models.EventKind
	Duplicate    bool
	Reconcile    *ReconcileResult
	Notification *NotificationReport
}

// WebhookService verifies, audits and dispatches Stripe webhook events
type WebhookService struct {
	stripe    *StripeService
	events    *database.WebhookEventRepository
	reconcile *ReconciliationService
	notifier  PaymentNotifier
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	notifyTimeout time.Duration
	auditTimeout  time.Duration
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	stripeService *StripeService,
	events *database.WebhookEventRepository,
	reconcile *ReconciliationService,
	notifier PaymentNotifier,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *WebhookService {
	return &WebhookService{
		stripe:    stripeService,
		events:    events,
		reconcile: reconcile,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,

		notifyTimeout: defaultNotifyTimeout,
		auditTimeout:  defaultAuditTimeout,
	}
}

// HandleDelivery verifies the signature, records the audit row and runs the
// handler for the event kind. Signature and secret errors happen before any
// state is written. Once the audit row exists it always ends processed or error.
func (s *WebhookService) HandleDelivery(ctx context.Context, delivery WebhookDelivery) (*WebhookResult, error) {
	event, err := s.stripe.VerifyEvent(delivery.Payload, delivery.Signature)
	if err != nil {
		s.metrics.ObserveWebhook("unknown", "rejected")
		return nil, err
	}

	audit := models.NewWebhookEvent(event.ID, string(event.Type), delivery.Payload).
		SetPaymentIntent(PaymentIntentIDFromEvent(event)).
		SetSource(delivery.SourceIP, delivery.UserAgent)

	return s.run(ctx, event, audit)
}

// Replay re-runs a stored event that has not been processed. The signature was
// verified when the event was first received.
func (s *WebhookService) Replay(ctx context.Context, stripeEventID string) (*WebhookResult, error) {
	stored, err := s.events.GetByStripeEventID(ctx, stripeEventID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrWebhookEventNotFound
	}
	if stored.IsTerminal() {
		return nil, ErrEventAlreadyProcessed
	}

	var event stripe.Event
	if err := json.Unmarshal(stored.RawEvent, &event); err != nil {
		msg := fmt.Sprintf("stored event is not valid JSON: %v", err)
		if markErr := s.markError(ctx, stripeEventID, msg); markErr != nil {
			s.logger.WithError(markErr).WithField("stripe_event_id", stripeEventID).Error("Failed to mark webhook event as error")
		}
		return nil, fmt.Errorf("failed to decode stored event %s: %w", stripeEventID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"stripe_event_id": stripeEventID,
		"previous_status": stored.Status,
		"attempts":        stored.Attempts,
	}).Info("Replaying webhook event")

	return s.run(ctx, &event, stored)
}

func (s *WebhookService) run(ctx context.Context, event *stripe.Event, audit *models.WebhookEvent) (*WebhookResult, error) {
	kind := models.ParseEventKind(string(event.Type))
	log := s.logger.WithFields(logrus.Fields{
		"stripe_event_id": event.ID,
		"event_type":      event.Type,
	})

	stored, err := s.events.Record(ctx, audit)
	if err != nil {
		s.metrics.ObserveWebhook(string(kind), "error")
		return nil, err
	}

	result := &WebhookResult{EventID: event.ID, EventType: string(event.Type), Kind: kind}
	if stored.IsTerminal() {
		log.WithField("attempts", stored.Attempts).Info("Webhook event already processed, skipping handlers")
		result.Duplicate = true
		s.metrics.ObserveWebhook(string(kind), "duplicate")
		return result, nil
	}

	if err := s.dispatch(ctx, event, kind, result); err != nil {
		log.WithError(err).Error("Webhook handler failed")
		if markErr := s.markError(ctx, event.ID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("Failed to mark webhook event as error")
		}
		s.metrics.ObserveWebhook(string(kind), "error")
		return nil, err
	}

	if err := s.markProcessed(ctx, event.ID); err != nil {
		log.WithError(err).Error("Failed to mark webhook event as processed")
		s.metrics.ObserveWebhook(string(kind), "error")
		return nil, err
	}

	s.metrics.ObserveWebhook(string(kind), "processed")
	log.Info("Webhook event processed")
	return result, nil
}

// auditContext detaches the closing audit write from the request, so a
// deadline spent by side effects cannot leave the row in processing.
func (s *WebhookService) auditContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
}

func (s *WebhookService) markProcessed(ctx context.Context, stripeEventID string) error {
	auditCtx, cancel := s.auditContext(ctx)
	defer cancel()
	return s.events.MarkProcessed(auditCtx, stripeEventID)
}

func (s *WebhookService) markError(ctx context.Context, stripeEventID, message string) error {
	auditCtx, cancel := s.auditContext(ctx)
	defer cancel()
	return s.events.MarkError(auditCtx, stripeEventID, message)
}

func (s *WebhookService) dispatch(ctx context.Context, event *stripe.Event, kind models.EventKind, result *WebhookResult) error {
	switch kind {
	case models.EventKindIgnored:
		s.logger.WithField("event_type", event.Type).Info("Unhandled webhook event type")
		return nil
	case models.EventKindPaymentSucceeded,
		models.EventKindPaymentFailed,
		models.EventKindPaymentCanceled,
		models.EventKindPaymentProcessing,
		models.EventKindPaymentCaptureRequired:
		return s.handlePaymentIntent(ctx, event, kind, result)
	}
	return fmt.Errorf("no handler for event kind %q", kind)
}

func (s *WebhookService) handlePaymentIntent(ctx context.Context, event *stripe.Event, kind models.EventKind, result *WebhookResult) error {
	pi, err := PaymentIntentFromEvent(event)
	if err != nil {
		return err
	}
	status, _ := kind.IntentStatus()

	reconciled, err := s.reconcile.ApplyIntentStatus(ctx, pi.ID, status)
	if err != nil {
		return err
	}
	result.Reconcile = reconciled

	if reconciled.BecamePaid() && s.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
		report := s.notifier.NotifyPaymentReceived(notifyCtx, PaymentReceived{
			StripeEventID:   event.ID,
			Booking:         reconciled.Booking,
			PaymentIntentID: pi.ID,
			Amount:          pi.Amount,
			Currency:        string(pi.Currency),
		})
		result.Notification = &report
	}
	return nil
}
