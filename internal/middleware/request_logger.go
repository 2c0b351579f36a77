package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parkspot/payment-reconciler/internal/utils"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs every request once it completes
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		client := utils.ParseUserAgent(c.Request.UserAgent())
		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         utils.GetRealIP(c),
			"latency_ms": time.Since(start).Milliseconds(),
			"client":     client.Name,
			"client_os":  client.OS,
			"is_bot":     client.IsBot,
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		if adminCtx, exists := GetAdminContext(c); exists {
			fields["admin_id"] = adminCtx.UserID
		}
		if eventID, exists := c.Get("stripe_event_id"); exists {
			fields["stripe_event_id"] = eventID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}
