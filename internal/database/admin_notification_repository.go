package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/parkspot/payment-reconciler/internal/models"
)

// AdminNotificationRepository handles admin dashboard notifications
type AdminNotificationRepository struct {
	db *sqlx.DB
}

// NewAdminNotificationRepository creates a new admin notification repository
func NewAdminNotificationRepository(db *sqlx.DB) *AdminNotificationRepository {
	return &AdminNotificationRepository{db: db}
}

// Create inserts a notification
func (r *AdminNotificationRepository) Create(ctx context.Context, n *models.AdminNotification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO admin_notifications (
			id, notification_type, title, message, booking_id, user_id,
			priority, metadata, is_read, created_at
		) VALUES (
			:id, :notification_type, :title, :message, :booking_id, :user_id,
			:priority, :metadata, :is_read, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("failed to create admin notification: %w", err)
	}
	return nil
}

// List returns notifications newest first
func (r *AdminNotificationRepository) List(ctx context.Context, filter models.AdminNotificationFilter) ([]models.AdminNotification, error) {
	query := `
		SELECT id, notification_type, title, message, booking_id, user_id,
		       priority, metadata, is_read, created_at
		FROM admin_notifications
		WHERE ($1 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	notifications := []models.AdminNotification{}
	err := r.db.SelectContext(ctx, &notifications, query, filter.UnreadOnly, normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a notification as read; false means it does not exist
func (r *AdminNotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE admin_notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}
