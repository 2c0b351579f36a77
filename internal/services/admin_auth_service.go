package services

import (
	"context"
	"fmt"
	"time"

	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/parkspot/payment-reconciler/pkg/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the JWT role granted to operations admins
const RoleAdmin = "admin"

// AdminAuthService handles admin authentication business logic
type AdminAuthService struct {
	adminRepo  *database.AdminUserRepository
	jwtService *jwt.Service
	limiter    *RateLimitService
	loginRule  RateLimitRule
	logger     *logrus.Logger
}

// NewAdminAuthService creates a new admin auth service
func NewAdminAuthService(
	adminRepo *database.AdminUserRepository,
	jwtService *jwt.Service,
	limiter *RateLimitService,
	loginLimit int,
	loginWindow time.Duration,
	logger *logrus.Logger,
) *AdminAuthService {
	return &AdminAuthService{
		adminRepo:  adminRepo,
		jwtService: jwtService,
		limiter:    limiter,
		loginRule:  RateLimitRule{Scope: "admin_login_ip", Limit: loginLimit, Window: loginWindow},
		logger:     logger,
	}
}

// Login authenticates an admin user and returns an access token.
// Attempts are rate limited per client IP; a successful login clears the counter.
func (s *AdminAuthService) Login(ctx context.Context, email, password, clientIP string) (*models.AdminLoginResponse, error) {
	if err := s.limiter.Allow(ctx, s.loginRule, clientIP); err != nil {
		return nil, err
	}

	admin, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !admin.IsActive {
		return nil, ErrAccountInactive
	}

	accessToken, err := s.jwtService.GenerateAccessToken(admin.ID, admin.Email, []string{RoleAdmin})
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	// Don't fail the login over this
	if err := s.adminRepo.UpdateLastLogin(ctx, admin.ID); err != nil {
		s.logger.WithError(err).WithField("admin_id", admin.ID).Warn("Failed to update last login")
	}

	s.limiter.Reset(ctx, s.loginRule, clientIP)

	s.logger.WithFields(logrus.Fields{
		"admin_id":  admin.ID,
		"client_ip": clientIP,
	}).Info("Admin logged in")

	return &models.AdminLoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.jwtService.AccessTokenExpiry().Seconds()),
		AdminUser:   admin,
	}, nil
}
