package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimitService implements fixed-window counters shared across instances
type RateLimitService struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRateLimitService creates a new rate limit service.
// A nil client disables limiting.
func NewRateLimitService(client *redis.Client, logger *logrus.Logger) *RateLimitService {
	return &RateLimitService{
		client: client,
		logger: logger,
	}
}

// RateLimitRule is a fixed-window limit for one scope
type RateLimitRule struct {
	Scope  string // "email_booking", "admin_login_ip"
	Limit  int
	Window time.Duration
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // the rule scope
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// Allow counts one hit for key under rule and returns *RateLimitError once
// the window's limit is exceeded. Redis failures fail open.
func (s *RateLimitService) Allow(ctx context.Context, rule RateLimitRule, key string) error {
	if s == nil || s.client == nil || rule.Limit <= 0 {
		return nil
	}

	rateKey := fmt.Sprintf("ratelimit:%s:%s", rule.Scope, key)

	n, err := s.client.Incr(ctx, rateKey).Result()
	if err != nil {
		s.logger.WithError(err).WithField("key", rateKey).Warn("Rate limit check failed, allowing request")
		return nil
	}
	if n == 1 {
		if err := s.client.Expire(ctx, rateKey, rule.Window).Err(); err != nil {
			s.logger.WithError(err).WithField("key", rateKey).Warn("Failed to set rate limit window")
		}
	}

	if int(n) <= rule.Limit {
		return nil
	}

	ttl, err := s.client.TTL(ctx, rateKey).Result()
	if err != nil || ttl < 0 {
		// Counter without expiry, restart the window
		if err := s.client.Expire(ctx, rateKey, rule.Window).Err(); err != nil {
			s.logger.WithError(err).WithField("key", rateKey).Warn("Failed to restart rate limit window")
		}
		ttl = rule.Window
	}
	retryAfter := time.Now().Add(ttl)

	return &RateLimitError{
		Message:    fmt.Sprintf("Rate limit exceeded for %s. Please try again after %s", rule.Scope, retryAfter.Format("15:04:05")),
		RetryAfter: retryAfter,
		Type:       rule.Scope,
	}
}

// Reset clears the counter for key, e.g. after a successful login
func (s *RateLimitService) Reset(ctx context.Context, rule RateLimitRule, key string) {
	if s == nil || s.client == nil {
		return
	}
	rateKey := fmt.Sprintf("ratelimit:%s:%s", rule.Scope, key)
	if err := s.client.Del(ctx, rateKey).Err(); err != nil {
		s.logger.WithError(err).WithField("key", rateKey).Warn("Failed to reset rate limit")
	}
}
