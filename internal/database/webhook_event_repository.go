package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/sirupsen/logrus"
)

const webhookEventColumns = `
	id, stripe_event_id, event_type, payment_intent_id, raw_event, status,
	error_message, processed_at, source_ip, user_agent, attempts,
	created_at, updated_at`

// WebhookEventRepository handles the webhook audit log.
// Rows are never deleted.
type WebhookEventRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db *sqlx.DB, logger *logrus.Logger) *WebhookEventRepository {
	return &WebhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// Record upserts the audit row for a delivery, keyed by stripe_event_id.
// A new event is inserted as processing. A redelivery increments attempts and,
// unless the row is already processed, resets it to processing.
// The returned row reflects the stored state after the upsert.
func (r *WebhookEventRepository) Record(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error) {
	if event == nil {
		return nil, fmt.Errorf("webhook event cannot be nil")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO webhook_events (
			id, stripe_event_id, event_type, payment_intent_id, raw_event, status,
			source_ip, user_agent, attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 'processing', $6, $7, 1, $8, $8)
		ON CONFLICT (stripe_event_id) DO UPDATE SET
			attempts = webhook_events.attempts + 1,
			status = CASE WHEN webhook_events.status = 'processed'
				THEN webhook_events.status ELSE 'processing' END,
			error_message = CASE WHEN webhook_events.status = 'processed'
				THEN webhook_events.error_message ELSE NULL END,
			updated_at = EXCLUDED.updated_at
		RETURNING` + webhookEventColumns

	var stored models.WebhookEvent
	err := r.db.GetContext(ctx, &stored, query,
		event.ID, event.StripeEventID, event.EventType, event.PaymentIntentID, event.RawEvent,
		event.SourceIP, event.UserAgent, now,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"stripe_event_id": event.StripeEventID,
			"event_type":      event.EventType,
		}).Error("Failed to record webhook event")
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"stripe_event_id": stored.StripeEventID,
		"status":          stored.Status,
		"attempts":        stored.Attempts,
	}).Debug("Webhook event recorded")

	return &stored, nil
}

// MarkProcessed sets the row to processed and stamps processed_at
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, stripeEventID string) error {
	query := `
		UPDATE webhook_events
		SET status = 'processed', processed_at = NOW(), error_message = NULL, updated_at = NOW()
		WHERE stripe_event_id = $1`

	return r.updateStatus(ctx, stripeEventID, query, stripeEventID)
}

// MarkError sets the row to error with the handler's message
func (r *WebhookEventRepository) MarkError(ctx context.Context, stripeEventID, message string) error {
	query := `
		UPDATE webhook_events
		SET status = 'error', error_message = $2, updated_at = NOW()
		WHERE stripe_event_id = $1`

	return r.updateStatus(ctx, stripeEventID, query, stripeEventID, message)
}

func (r *WebhookEventRepository) updateStatus(ctx context.Context, stripeEventID, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update webhook event %s: %w", stripeEventID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("webhook event %s not found", stripeEventID)
	}
	return nil
}

// GetByStripeEventID returns one audit row, or nil if none exists
func (r *WebhookEventRepository) GetByStripeEventID(ctx context.Context, stripeEventID string) (*models.WebhookEvent, error) {
	query := `SELECT` + webhookEventColumns + ` FROM webhook_events WHERE stripe_event_id = $1`

	var event models.WebhookEvent
	err := r.db.GetContext(ctx, &event, query, stripeEventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return &event, nil
}

// List returns audit rows newest first
func (r *WebhookEventRepository) List(ctx context.Context, filter models.WebhookEventFilter) ([]models.WebhookEvent, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		if !filter.Status.IsValid() {
			return nil, fmt.Errorf("invalid webhook event status: %s", filter.Status)
		}
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT` + webhookEventColumns + ` FROM webhook_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, normalizeLimit(filter.Limit), filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	events := []models.WebhookEvent{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return events, nil
}

// normalizeLimit clamps page sizes to 1..200, defaulting to 50
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 200:
		return 200
	}
	return limit
}
