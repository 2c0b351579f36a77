package services

import "errors"

var (
	// ErrSignatureInvalid means the Stripe-Signature header is missing or does not verify
	ErrSignatureInvalid = errors.New("invalid webhook signature")

	// ErrWebhookSecretMissing means no signing secret is configured
	ErrWebhookSecretMissing = errors.New("webhook signing secret is not configured")

	// ErrBookingNotFound means no booking correlates to the PaymentIntent or id
	ErrBookingNotFound = errors.New("booking not found")

	// ErrEventAlreadyProcessed means the audit row for the event is already processed
	ErrEventAlreadyProcessed = errors.New("webhook event already processed")

	// ErrNoPaymentIntent means the booking has no Stripe PaymentIntent attached
	ErrNoPaymentIntent = errors.New("booking has no payment intent")

	// ErrWebhookEventNotFound means no audit row exists for the event id
	ErrWebhookEventNotFound = errors.New("webhook event not found")

	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountInactive means the admin account is disabled
	ErrAccountInactive = errors.New("account is inactive")
)
