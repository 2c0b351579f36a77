package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResendGateway(t *testing.T) {
	config := ResendConfig{
		APIURL: "https://api.resend.com",
		APIKey: "re_test",
		From:   "ParkSpot <bookings@parkspot.ae>",
	}

	gateway := NewResendGateway(config)

	require.NotNil(t, gateway)
	assert.Equal(t, "https://api.resend.com/", gateway.client.BaseURL.String())
	assert.Equal(t, config.From, gateway.from)
	assert.Equal(t, "resend", gateway.GetName())
}

func TestResendGateway_Send(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var received struct {
			From    string   `json:"from"`
			To      []string `json:"to"`
			Subject string   `json:"subject"`
			HTML    string   `json:"html"`
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/emails", r.URL.Path)
			assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
			assert.Equal(t, "evt_1-email", r.Header.Get("Idempotency-Key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"id":"4ef9a417-02e9-4d39-ad75-9611e0fcc33c"}`))
		}))
		defer server.Close()

		gateway := NewResendGateway(ResendConfig{APIURL: server.URL, APIKey: "re_test", From: "bookings@parkspot.ae"})
		id, err := gateway.Send(context.Background(), Message{
			To:             []string{"ops@parkspot.ae"},
			Subject:        "Payment received",
			HTML:           "<p>450.00 AED</p>",
			IdempotencyKey: "evt_1-email",
		})

		require.NoError(t, err)
		assert.Equal(t, "4ef9a417-02e9-4d39-ad75-9611e0fcc33c", id)
		assert.Equal(t, "bookings@parkspot.ae", received.From)
		assert.Equal(t, []string{"ops@parkspot.ae"}, received.To)
		assert.Equal(t, "Payment received", received.Subject)
		assert.Equal(t, "<p>450.00 AED</p>", received.HTML)
	})

	t.Run("API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid from field"}`))
		}))
		defer server.Close()

		gateway := NewResendGateway(ResendConfig{APIURL: server.URL, APIKey: "re_test", From: "bad"})
		_, err := gateway.Send(context.Background(), Message{To: []string{"ops@parkspot.ae"}, Subject: "x"})

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
		assert.Contains(t, apiErr.Message, "Invalid from field")
		assert.False(t, apiErr.Retryable())
	})

	t.Run("Server error is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("upstream unavailable"))
		}))
		defer server.Close()

		gateway := NewResendGateway(ResendConfig{APIURL: server.URL, APIKey: "re_test", From: "bookings@parkspot.ae"})
		_, err := gateway.Send(context.Background(), Message{To: []string{"ops@parkspot.ae"}, Subject: "x"})

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.True(t, apiErr.Retryable())
	})

	t.Run("Rate limited is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"statusCode":429,"name":"rate_limit_exceeded","message":"Too many requests"}`))
		}))
		defer server.Close()

		gateway := NewResendGateway(ResendConfig{APIURL: server.URL, APIKey: "re_test", From: "bookings@parkspot.ae"})
		_, err := gateway.Send(context.Background(), Message{To: []string{"ops@parkspot.ae"}, Subject: "x"})

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		assert.True(t, apiErr.Retryable())
	})

	t.Run("Unreachable provider is not an API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		gateway := NewResendGateway(ResendConfig{APIURL: server.URL, APIKey: "re_test", From: "bookings@parkspot.ae"})
		_, err := gateway.Send(context.Background(), Message{To: []string{"ops@parkspot.ae"}, Subject: "x"})

		require.Error(t, err)
		var apiErr *APIError
		assert.False(t, errors.As(err, &apiErr))
	})

	t.Run("No recipients", func(t *testing.T) {
		gateway := NewResendGateway(ResendConfig{APIURL: "http://127.0.0.1:0", APIKey: "re_test"})
		_, err := gateway.Send(context.Background(), Message{Subject: "x"})
		assert.Error(t, err)
	})
}

func TestLogGateway_Send(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	gateway := NewLogGateway(logger)

	id, err := gateway.Send(context.Background(), Message{To: []string{"ops@parkspot.ae"}, Subject: "x"})
	require.NoError(t, err)
	assert.Contains(t, id, "dev-")
	assert.Equal(t, "log", gateway.GetName())

	_, err = gateway.Send(context.Background(), Message{})
	assert.Error(t, err)
}
