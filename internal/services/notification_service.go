package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/metrics"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/parkspot/payment-reconciler/pkg/email"
	"github.com/sirupsen/logrus"
)

// zeroDecimalCurrencies are charged in whole units by Stripe
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// threeDecimalCurrencies are charged in thousandths by Stripe
var threeDecimalCurrencies = map[string]bool{
	"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
}

// FormatAmount renders a Stripe minor-unit amount in major units, e.g. 45000 aed -> "450.00 AED"
func FormatAmount(amount int64, currency string) string {
	code := strings.ToLower(currency)
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	switch {
	case zeroDecimalCurrencies[code]:
		return fmt.Sprintf("%s%d %s", sign, amount, strings.ToUpper(code))
	case threeDecimalCurrencies[code]:
		return fmt.Sprintf("%s%d.%03d %s", sign, amount/1000, amount%1000, strings.ToUpper(code))
	default:
		return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, strings.ToUpper(code))
	}
}

// PaymentReceived carries what the dispatcher needs about a successful payment
type PaymentReceived struct {
	StripeEventID   string
	Booking         *models.Booking
	PaymentIntentID string
	Amount          int64
	Currency        string
}

// NotificationReport summarizes what the dispatcher did
type NotificationReport struct {
	NotificationID *uuid.UUID
	EmailMessageID string
	EmailSkipped   string
}

// NotificationConfig holds dispatcher settings
type NotificationConfig struct {
	Recipients  []string
	EmailLimit  int
	EmailWindow time.Duration
}

// NotificationService creates admin notifications and operations email.
// Every step is best-effort.
type NotificationService struct {
	notifications *database.AdminNotificationRepository
	bookings      *database.BookingRepository
	gateway       email.Gateway
	limiter       *RateLimitService
	deadLetters   *DeadLetterService
	recipients    []string
	emailRule     RateLimitRule
	metrics       *metrics.Metrics
	logger        *logrus.Logger
}

// NewNotificationService creates a new notification dispatcher
func NewNotificationService(
	notifications *database.AdminNotificationRepository,
	bookings *database.BookingRepository,
	gateway email.Gateway,
	limiter *RateLimitService,
	deadLetters *DeadLetterService,
	cfg NotificationConfig,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		bookings:      bookings,
		gateway:       gateway,
		limiter:       limiter,
		deadLetters:   deadLetters,
		recipients:    cfg.Recipients,
		emailRule:     RateLimitRule{Scope: "email_booking", Limit: cfg.EmailLimit, Window: cfg.EmailWindow},
		metrics:       m,
		logger:        logger,
	}
}

// NotifyPaymentReceived writes the admin notification and emails operations.
// It never returns an error; failures are logged and dead-lettered.
func (s *NotificationService) NotifyPaymentReceived(ctx context.Context, in PaymentReceived) NotificationReport {
	var report NotificationReport
	log := s.logger.WithFields(logrus.Fields{
		"stripe_event_id":   in.StripeEventID,
		"booking_id":        in.Booking.ID,
		"payment_intent_id": in.PaymentIntentID,
	})
	amount := FormatAmount(in.Amount, in.Currency)

	notification := s.buildNotification(in, amount)
	if err := s.notifications.Create(ctx, notification); err != nil {
		log.WithError(err).Error("Failed to create admin notification")
		s.metrics.ObserveSideEffect(string(models.DeadLetterChannelAdminNotification), "failed")
		s.deadLetter(ctx, in, models.DeadLetterChannelAdminNotification, notification.Metadata, err)
	} else {
		report.NotificationID = &notification.ID
		s.metrics.ObserveSideEffect(string(models.DeadLetterChannelAdminNotification), "sent")
		log.WithField("notification_id", notification.ID).Info("Admin notification created")
	}

	report.EmailMessageID, report.EmailSkipped = s.sendOperationsEmail(ctx, in, amount, log)
	return report
}

func (s *NotificationService) buildNotification(in PaymentReceived, amount string) *models.AdminNotification {
	bookingID := in.Booking.ID
	userID := in.Booking.UserID
	return &models.AdminNotification{
		ID:               uuid.New(),
		NotificationType: models.NotificationTypePaymentReceived,
		Title:            "Payment received",
		Message: fmt.Sprintf("Payment of %s received for booking %s (payment intent %s)",
			amount, bookingID, in.PaymentIntentID),
		BookingID: &bookingID,
		UserID:    &userID,
		Priority:  models.NotificationPriorityHigh,
		Metadata: models.JSONB{
			"amount":            in.Amount,
			"currency":          strings.ToLower(in.Currency),
			"amount_display":    amount,
			"payment_intent_id": in.PaymentIntentID,
			"stripe_event_id":   in.StripeEventID,
		},
		CreatedAt: time.Now(),
	}
}

func (s *NotificationService) sendOperationsEmail(ctx context.Context, in PaymentReceived, amount string, log *logrus.Entry) (string, string) {
	if len(s.recipients) == 0 {
		log.Info("No operations recipients configured, skipping email")
		return "", "no_recipients"
	}

	if err := s.limiter.Allow(ctx, s.emailRule, in.Booking.ID.String()); err != nil {
		log.WithError(err).Warn("Operations email suppressed by rate limit")
		s.metrics.ObserveSideEffect(string(models.DeadLetterChannelEmail), "rate_limited")
		return "", "rate_limited"
	}

	bookingCtx, err := s.bookings.GetNotificationContext(ctx, in.Booking.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to load booking context, sending email without it")
	}

	msg, err := renderPaymentEmail(in, amount, bookingCtx)
	if err != nil {
		log.WithError(err).Error("Failed to render operations email")
		s.deadLetter(ctx, in, models.DeadLetterChannelEmail, nil, err)
		return "", "render_failed"
	}
	msg.To = s.recipients
	msg.IdempotencyKey = in.StripeEventID + "/operations-email"

	messageID, err := s.gateway.Send(ctx, msg)
	if err != nil {
		log.WithError(err).WithField("gateway", s.gateway.GetName()).Error("Failed to send operations email")
		s.metrics.ObserveSideEffect(string(models.DeadLetterChannelEmail), "failed")
		payload := models.JSONB{
			"to":      s.recipients,
			"subject": msg.Subject,
		}
		var apiErr *email.APIError
		if errors.As(err, &apiErr) {
			payload["status_code"] = apiErr.StatusCode
			payload["retryable"] = apiErr.Retryable()
		}
		s.deadLetter(ctx, in, models.DeadLetterChannelEmail, payload, err)
		return "", "send_failed"
	}

	s.metrics.ObserveSideEffect(string(models.DeadLetterChannelEmail), "sent")
	log.WithField("message_id", messageID).Info("Operations email sent")
	return messageID, ""
}

func (s *NotificationService) deadLetter(ctx context.Context, in PaymentReceived, channel models.DeadLetterChannel, payload models.JSONB, cause error) {
	if s.deadLetters == nil {
		return
	}
	bookingID := in.Booking.ID
	s.deadLetters.Record(ctx, &models.NotificationDeadLetter{
		StripeEventID: in.StripeEventID,
		BookingID:     &bookingID,
		Channel:       channel,
		Payload:       payload,
		ErrorMessage:  cause.Error(),
	})
}

var paymentEmailTemplate = template.Must(template.New("payment_received").Parse(`<h2>Payment received: {{.Amount}}</h2>
<table>
  <tr><td>Booking</td><td>{{.BookingID}}</td></tr>
  <tr><td>Payment intent</td><td>{{.PaymentIntentID}}</td></tr>
  {{- if .Listing}}
  <tr><td>Listing</td><td>{{.Listing}}{{if .Address}}, {{.Address}}{{end}}</td></tr>
  {{- end}}
  {{- if .Period}}
  <tr><td>Period</td><td>{{.Period}}</td></tr>
  {{- end}}
  {{- if .Customer}}
  <tr><td>Customer</td><td>{{.Customer}}{{if .CustomerEmail}} &lt;{{.CustomerEmail}}&gt;{{end}}{{if .CustomerPhone}}, {{.CustomerPhone}}{{end}}</td></tr>
  {{- end}}
</table>
`))

type paymentEmailData struct {
	Amount          string
	BookingID       string
	PaymentIntentID string
	Listing         string
	Address         string
	Period          string
	Customer        string
	CustomerEmail   string
	CustomerPhone   string
}

func renderPaymentEmail(in PaymentReceived, amount string, bookingCtx *models.BookingNotificationContext) (email.Message, error) {
	data := paymentEmailData{
		Amount:          amount,
		BookingID:       in.Booking.ID.String(),
		PaymentIntentID: in.PaymentIntentID,
	}
	if bookingCtx != nil {
		data.Listing = deref(bookingCtx.ListingTitle)
		data.Address = deref(bookingCtx.ListingAddress)
		data.Customer = deref(bookingCtx.CustomerName)
		data.CustomerEmail = deref(bookingCtx.CustomerEmail)
		data.CustomerPhone = deref(bookingCtx.CustomerPhone)
		data.Period = fmt.Sprintf("%s to %s",
			bookingCtx.StartTime.Format("2006-01-02 15:04"), bookingCtx.EndTime.Format("2006-01-02 15:04"))
	}

	var html bytes.Buffer
	if err := paymentEmailTemplate.Execute(&html, data); err != nil {
		return email.Message{}, fmt.Errorf("failed to render email: %w", err)
	}

	subject := fmt.Sprintf("Payment received: %s for booking %s", amount, data.BookingID)
	if data.Listing != "" {
		subject = fmt.Sprintf("Payment received: %s for %s", amount, data.Listing)
	}

	text := fmt.Sprintf("Payment of %s received for booking %s (payment intent %s).",
		amount, data.BookingID, data.PaymentIntentID)
	if data.Listing != "" {
		text += fmt.Sprintf("\nListing: %s", data.Listing)
	}
	if data.Customer != "" {
		text += fmt.Sprintf("\nCustomer: %s %s", data.Customer, data.CustomerEmail)
	}

	return email.Message{Subject: subject, HTML: html.String(), Text: text}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
