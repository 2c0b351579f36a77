package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/middleware"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/parkspot/payment-reconciler/internal/services"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves the operations API: notifications, the webhook audit
// log, replays, manual payment sync and dead letters.
type AdminHandler struct {
	notifications  *database.AdminNotificationRepository
	webhookEvents  *database.WebhookEventRepository
	webhookService *services.WebhookService
	syncService    *services.PaymentSyncService
	deadLetters    *services.DeadLetterService
	logger         *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	notifications *database.AdminNotificationRepository,
	webhookEvents *database.WebhookEventRepository,
	webhookService *services.WebhookService,
	syncService *services.PaymentSyncService,
	deadLetters *services.DeadLetterService,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		notifications:  notifications,
		webhookEvents:  webhookEvents,
		webhookService: webhookService,
		syncService:    syncService,
		deadLetters:    deadLetters,
		logger:         logger,
	}
}

type pageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

type notificationQuery struct {
	pageQuery
	Unread bool `form:"unread"`
}

type webhookEventQuery struct {
	pageQuery
	Status string `form:"status" binding:"omitempty,oneof=processing processed error"`
}

// ListNotifications handles GET /api/v1/admin/notifications
func (h *AdminHandler) ListNotifications(c *gin.Context) {
	var q notificationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "details": err.Error()})
		return
	}

	notifications, err := h.notifications.List(c.Request.Context(), models.AdminNotificationFilter{
		UnreadOnly: q.Unread,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list admin notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "count": len(notifications)})
}

// MarkNotificationRead handles POST /api/v1/admin/notifications/:id/read
func (h *AdminHandler) MarkNotificationRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	found, err := h.notifications.MarkRead(c.Request.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("notification_id", id).Error("Failed to mark notification read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "is_read": true})
}

// ListWebhookEvents handles GET /api/v1/admin/webhook-events
func (h *AdminHandler) ListWebhookEvents(c *gin.Context) {
	var q webhookEventQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "details": err.Error()})
		return
	}

	events, err := h.webhookEvents.List(c.Request.Context(), models.WebhookEventFilter{
		Status: models.WebhookEventStatus(q.Status),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list webhook events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list webhook events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// GetWebhookEvent handles GET /api/v1/admin/webhook-events/:event_id
func (h *AdminHandler) GetWebhookEvent(c *gin.Context) {
	eventID := c.Param("event_id")

	event, err := h.webhookEvents.GetByStripeEventID(c.Request.Context(), eventID)
	if err != nil {
		h.logger.WithError(err).WithField("stripe_event_id", eventID).Error("Failed to get webhook event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get webhook event"})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Webhook event not found"})
		return
	}

	c.JSON(http.StatusOK, event)
}

// ReplayWebhookEvent handles POST /api/v1/admin/webhook-events/:event_id/replay
func (h *AdminHandler) ReplayWebhookEvent(c *gin.Context) {
	eventID := c.Param("event_id")
	c.Set("stripe_event_id", eventID)

	result, err := h.webhookService.Replay(c.Request.Context(), eventID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrWebhookEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrEventAlreadyProcessed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.logAdminAction(c, "webhook_replay", logrus.Fields{"stripe_event_id": eventID})
	c.JSON(http.StatusOK, gin.H{
		"stripe_event_id": result.EventID,
		"event_type":      result.EventType,
		"status":          models.WebhookEventStatusProcessed,
		"outcome":         reconcileOutcome(result.Reconcile),
	})
}

// SyncBookingPayment handles POST /api/v1/admin/bookings/:id/sync-payment
func (h *AdminHandler) SyncBookingPayment(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	result, err := h.syncService.SyncBooking(c.Request.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrNoPaymentIntent):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).WithField("booking_id", bookingID).Error("Payment sync failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.logAdminAction(c, "payment_sync", logrus.Fields{"booking_id": bookingID, "outcome": result.Outcome})
	response := gin.H{"booking_id": bookingID, "outcome": result.Outcome}
	if result.Booking != nil {
		response["status"] = result.Booking.Status
		response["payment_status"] = result.Booking.PaymentStatus
	}
	c.JSON(http.StatusOK, response)
}

// ListDeadLetters handles GET /api/v1/admin/dead-letters
func (h *AdminHandler) ListDeadLetters(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "details": err.Error()})
		return
	}

	letters, err := h.deadLetters.List(c.Request.Context(), q.Limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list dead letters")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list dead letters"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dead_letters": letters, "count": len(letters)})
}

func (h *AdminHandler) logAdminAction(c *gin.Context, action string, fields logrus.Fields) {
	if admin, ok := middleware.GetAdminContext(c); ok {
		fields["admin_id"] = admin.UserID
	}
	fields["action"] = action
	h.logger.WithFields(fields).Info("Admin action")
}

func reconcileOutcome(result *services.ReconcileResult) string {
	if result == nil {
		return "acknowledged"
	}
	return string(result.Outcome)
}
