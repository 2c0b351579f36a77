package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/parkspot/payment-reconciler/internal/models"
)

// DeadLetterRepository stores side effects that failed after a booking update
type DeadLetterRepository struct {
	db *sqlx.DB
}

// NewDeadLetterRepository creates a new dead-letter repository
func NewDeadLetterRepository(db *sqlx.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// Create inserts a dead letter
func (r *DeadLetterRepository) Create(ctx context.Context, letter *models.NotificationDeadLetter) error {
	if letter.ID == uuid.Nil {
		letter.ID = uuid.New()
	}
	if letter.CreatedAt.IsZero() {
		letter.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO notification_dead_letters (
			id, stripe_event_id, booking_id, channel, payload, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		letter.ID, letter.StripeEventID, letter.BookingID, letter.Channel,
		letter.Payload, letter.ErrorMessage, letter.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dead letter: %w", err)
	}
	return nil
}

// List returns dead letters newest first
func (r *DeadLetterRepository) List(ctx context.Context, limit int) ([]models.NotificationDeadLetter, error) {
	query := `
		SELECT id, stripe_event_id, booking_id, channel, payload, error_message, created_at
		FROM notification_dead_letters
		ORDER BY created_at DESC
		LIMIT $1`

	letters := []models.NotificationDeadLetter{}
	if err := r.db.SelectContext(ctx, &letters, query, normalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return letters, nil
}
