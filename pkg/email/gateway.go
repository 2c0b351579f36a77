package email

import "context"

// Message is a single outbound email
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
	// IdempotencyKey lets the provider drop duplicate sends
	IdempotencyKey string
}

// Gateway defines the interface for sending email
type Gateway interface {
	// Send delivers the message and returns the provider's message id
	Send(ctx context.Context, msg Message) (string, error)

	// GetName returns the name of the gateway implementation
	GetName() string
}
