package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parkspot/payment-reconciler/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// PaymentIntentGetter fetches a PaymentIntent from the Stripe API
type PaymentIntentGetter interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeService verifies webhook signatures and reads PaymentIntents
type StripeService struct {
	webhookSecret string
	intents       PaymentIntentGetter
	logger        *logrus.Logger
}

// NewStripeService creates a new Stripe service from configuration
func NewStripeService(cfg config.StripeConfig, logger *logrus.Logger) *StripeService {
	return &StripeService{
		webhookSecret: cfg.WebhookSecret,
		intents: &paymentintent.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: cfg.SecretKey,
		},
		logger: logger,
	}
}

// NewStripeServiceWithClient creates a Stripe service with a custom PaymentIntent client
func NewStripeServiceWithClient(webhookSecret string, intents PaymentIntentGetter, logger *logrus.Logger) *StripeService {
	return &StripeService{
		webhookSecret: webhookSecret,
		intents:       intents,
		logger:        logger,
	}
}

// HasWebhookSecret reports whether a signing secret is configured
func (s *StripeService) HasWebhookSecret() bool {
	return s.webhookSecret != ""
}

// VerifyEvent checks the Stripe-Signature header (HMAC-SHA256 with timestamp
// tolerance) against the raw payload and returns the parsed event.
func (s *StripeService) VerifyEvent(payload []byte, signatureHeader string) (*stripe.Event, error) {
	if s.webhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature header", ErrSignatureInvalid)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: event envelope is missing id or type", ErrSignatureInvalid)
	}

	return &event, nil
}

// PaymentIntentFromEvent decodes data.object as a PaymentIntent
func PaymentIntentFromEvent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	if event == nil || event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("event has no data.object")
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("failed to parse payment intent: %w", err)
	}
	if pi.ID == "" {
		return nil, fmt.Errorf("payment intent has no id")
	}
	return &pi, nil
}

// PaymentIntentIDFromEvent returns data.object.id for payment_intent events, or ""
func PaymentIntentIDFromEvent(event *stripe.Event) string {
	if event == nil || event.Data == nil {
		return ""
	}
	if object, ok := event.Data.Object["object"].(string); ok && object != "payment_intent" {
		return ""
	}
	id, _ := event.Data.Object["id"].(string)
	return id
}

// GetPaymentIntent retrieves a PaymentIntent from the Stripe API
func (s *StripeService) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pi, err := s.intents.Get(id, nil)
	if err != nil {
		s.logger.WithError(err).WithField("payment_intent_id", id).Error("Failed to fetch payment intent from Stripe")
		return nil, fmt.Errorf("failed to fetch payment intent %s: %w", id, err)
	}
	return pi, nil
}
