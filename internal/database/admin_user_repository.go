package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/parkspot/payment-reconciler/internal/models"
)

const adminUserColumns = `
	id, email, password_hash, full_name, is_active, last_login_at,
	created_at, updated_at`

// AdminUserRepository handles admin user database operations
type AdminUserRepository struct {
	db *sqlx.DB
}

// NewAdminUserRepository creates a new admin user repository
func NewAdminUserRepository(db *sqlx.DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

// GetByEmail retrieves an admin user by email, or nil if none exists
func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	return r.getOne(ctx, `SELECT`+adminUserColumns+` FROM admin_users WHERE LOWER(email) = LOWER($1)`, email)
}

// GetByID retrieves an admin user by ID, or nil if none exists
func (r *AdminUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	return r.getOne(ctx, `SELECT`+adminUserColumns+` FROM admin_users WHERE id = $1`, id)
}

func (r *AdminUserRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := r.db.GetContext(ctx, &admin, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return &admin, nil
}

// Create inserts a new admin user
func (r *AdminUserRepository) Create(ctx context.Context, admin *models.AdminUser) error {
	if admin.ID == uuid.Nil {
		admin.ID = uuid.New()
	}
	now := time.Now()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	query := `
		INSERT INTO admin_users (id, email, password_hash, full_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		admin.ID, admin.Email, admin.PasswordHash, admin.FullName, admin.IsActive,
		admin.CreatedAt, admin.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return ErrAdminEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the admin's last successful login
func (r *AdminUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE admin_users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
