package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/parkspot/payment-reconciler/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// AdminContextKey is the key used to store admin information in Gin context
const AdminContextKey = "admin"

// RoleAdmin is the role required for the admin API
const RoleAdmin = "admin"

// AdminContext represents the authenticated admin's information
type AdminContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Roles  []string  `json:"roles"`
}

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fields := logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.WithFields(fields).Warn("Auth failed: missing authorization header")
			abortUnauthorized(c, "unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER")
			return
		}

		// Check Bearer token format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			logger.WithFields(fields).Warn("Auth failed: invalid authorization format")
			abortUnauthorized(c, "unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
			return
		}

		claims, err := jwtService.ValidateAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if jwt.IsExpired(err) {
				logger.WithFields(fields).WithError(err).Info("Auth failed: token expired")
				abortUnauthorized(c, "token_expired", "Access token has expired. Please log in again.", "TOKEN_EXPIRED")
			} else {
				logger.WithFields(fields).WithError(err).Warn("Auth failed: invalid token")
				abortUnauthorized(c, "invalid_token", "Invalid access token", "INVALID_TOKEN")
			}
			return
		}

		c.Set(AdminContextKey, AdminContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Roles:  claims.Roles,
		})

		c.Next()
	}
}

// RequireRole creates a middleware that checks if the caller has one of the roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminCtx, exists := GetAdminContext(c)
		if !exists {
			abortUnauthorized(c, "unauthorized", "Admin context not found. Auth middleware may not be applied.", "MISSING_USER_CONTEXT")
			return
		}

		for _, required := range roles {
			for _, role := range adminCtx.Roles {
				if role == required {
					c.Next()
					return
				}
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You don't have permission to access this resource",
			"code":    "INSUFFICIENT_PERMISSIONS",
		})
		c.Abort()
	}
}

// GetAdminContext retrieves the admin context from Gin context
func GetAdminContext(c *gin.Context) (AdminContext, bool) {
	value, exists := c.Get(AdminContextKey)
	if !exists {
		return AdminContext{}, false
	}

	adminCtx, ok := value.(AdminContext)
	return adminCtx, ok
}

func abortUnauthorized(c *gin.Context, errCode, message, code string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   errCode,
		"message": message,
		"code":    code,
	})
	c.Abort()
}
