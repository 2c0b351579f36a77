package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parkspot/payment-reconciler/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// respondRateLimited writes a 429 if err is a rate limit error
func respondRateLimited(c *gin.Context, err error) bool {
	var rateLimitErr *services.RateLimitError
	if !errors.As(err, &rateLimitErr) {
		return false
	}
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "rate_limit_exceeded",
		"message":     rateLimitErr.Message,
		"retry_after": rateLimitErr.RetryAfter,
		"type":        rateLimitErr.Type,
	})
	return true
}
