package email

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendGateway implements email sending via the Resend API
type ResendGateway struct {
	from   string
	client *resend.Client
}

// ResendConfig holds configuration for the Resend gateway
type ResendConfig struct {
	APIURL  string
	APIKey  string
	From    string
	Timeout time.Duration
}

// NewResendGateway creates a new Resend client.
// An invalid APIURL leaves the SDK's default endpoint in place.
func NewResendGateway(config ResendConfig) *ResendGateway {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: statusRecorder{base: http.DefaultTransport},
	}
	client := resend.NewCustomClient(httpClient, config.APIKey)
	if config.APIURL != "" {
		if baseURL, err := url.Parse(strings.TrimRight(config.APIURL, "/") + "/"); err == nil {
			client.BaseURL = baseURL
		}
	}

	return &ResendGateway{
		from:   config.From,
		client: client,
	}
}

// APIError is returned when Resend answers with a non-2xx status
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("resend API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the provider may accept the same request later
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Send delivers an email through Resend
func (g *ResendGateway) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("email has no recipients")
	}

	params := &resend.SendEmailRequest{
		From:    g.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	var options *resend.SendEmailOptions
	if msg.IdempotencyKey != "" {
		options = &resend.SendEmailOptions{IdempotencyKey: msg.IdempotencyKey}
	}

	status := new(int)
	sent, err := g.client.Emails.SendWithOptions(context.WithValue(ctx, statusKey{}, status), params, options)
	if err != nil {
		if *status != 0 && (*status < 200 || *status >= 300) {
			return "", &APIError{StatusCode: *status, Message: err.Error(), Err: err}
		}
		return "", fmt.Errorf("failed to send email request: %w", err)
	}

	return sent.Id, nil
}

// GetName returns the gateway name
func (g *ResendGateway) GetName() string {
	return "resend"
}

type statusKey struct{}

// statusRecorder copies the response status into the *int stored under
// statusKey on the request context; the SDK's errors do not carry it.
type statusRecorder struct {
	base http.RoundTripper
}

func (t statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		if status, ok := req.Context().Value(statusKey{}).(*int); ok {
			*status = resp.StatusCode
		}
	}
	return resp, err
}
