package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/parkspot/payment-reconciler/internal/services"
	"github.com/parkspot/payment-reconciler/internal/utils"
	"github.com/sirupsen/logrus"
)

// AdminAuthHandler handles admin authentication HTTP requests
type AdminAuthHandler struct {
	adminAuthService *services.AdminAuthService
	logger           *logrus.Logger
}

// NewAdminAuthHandler creates a new admin auth handler
func NewAdminAuthHandler(adminAuthService *services.AdminAuthService, logger *logrus.Logger) *AdminAuthHandler {
	return &AdminAuthHandler{
		adminAuthService: adminAuthService,
		logger:           logger,
	}
}

// Login handles admin login requests
// @Summary Admin login
// @Tags Admin Auth
// @Accept json
// @Produce json
// @Param loginRequest body models.AdminLoginRequest true "Login credentials"
// @Success 200 {object} models.AdminLoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /admin/auth/login [post]
func (h *AdminAuthHandler) Login(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	clientIP := utils.GetRealIP(c)
	response, err := h.adminAuthService.Login(c.Request.Context(), req.Email, req.Password, clientIP)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"email":     req.Email,
			"client_ip": clientIP,
			"error":     err.Error(),
		}).Warn("Admin login failed")

		switch {
		case respondRateLimited(c, err):
		case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrAccountInactive):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		}
		return
	}

	c.JSON(http.StatusOK, response)
}
