package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parkspot/payment-reconciler/internal/services"
	"github.com/parkspot/payment-reconciler/internal/utils"
	"github.com/sirupsen/logrus"
)

// WebhookHandler receives Stripe webhooks
type WebhookHandler struct {
	webhookService *services.WebhookService
	maxBodyBytes   int64
	logger         *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookService *services.WebhookService, maxBodyBytes int64, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		maxBodyBytes:   maxBodyBytes,
		logger:         logger,
	}
}

// HandleStripe handles POST /api/v1/webhooks/stripe
// The raw body is read before anything parses it; the signature covers those exact bytes.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	userAgent := utils.GetUserAgent(c)
	result, err := h.webhookService.HandleDelivery(c.Request.Context(), services.WebhookDelivery{
		Payload:   payload,
		Signature: c.GetHeader("Stripe-Signature"),
		SourceIP:  utils.GetRealIP(c),
		UserAgent: userAgent,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrWebhookSecretMissing):
			h.logger.Error("Stripe webhook secret is not configured")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
		case errors.Is(err, services.ErrSignatureInvalid):
			h.logger.WithError(err).WithFields(logrus.Fields{
				"ip":            utils.GetRealIP(c),
				"stripe_client": utils.IsStripeClient(userAgent),
			}).Warn("Rejected webhook with invalid signature")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.Set("stripe_event_id", result.EventID)
	if result.Duplicate {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
