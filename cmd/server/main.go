package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/parkspot/payment-reconciler/internal/cache"
	"github.com/parkspot/payment-reconciler/internal/config"
	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/handlers"
	"github.com/parkspot/payment-reconciler/internal/metrics"
	"github.com/parkspot/payment-reconciler/internal/middleware"
	"github.com/parkspot/payment-reconciler/internal/services"
	"github.com/parkspot/payment-reconciler/pkg/broker"
	"github.com/parkspot/payment-reconciler/pkg/email"
	"github.com/parkspot/payment-reconciler/pkg/jwt"
	"github.com/parkspot/payment-reconciler/pkg/validator"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting ParkSpot payment reconciler")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Shared rate-limit counters
	redisClient, err := cache.NewRedisClient(cfg.Redis, logger)
	if err != nil {
		logger.Fatalf("Invalid Redis configuration: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Dead-letter broker
	var deadLetterPublisher services.DeadLetterPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := broker.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic)
		defer publisher.Close()
		deadLetterPublisher = publisher
		logger.WithField("topic", publisher.Topic()).Info("Dead letters will be published to Kafka")
	}

	// Email gateway
	var emailGateway email.Gateway
	if cfg.Email.Mode == "production" {
		emailGateway = email.NewResendGateway(email.ResendConfig{
			APIURL:  cfg.Email.APIURL,
			APIKey:  cfg.Email.APIKey,
			From:    cfg.Email.From,
			Timeout: cfg.Email.Timeout,
		})
	} else {
		emailGateway = email.NewLogGateway(logger)
	}
	logger.WithField("gateway", emailGateway.GetName()).Info("Email gateway initialized")

	recipients, rejected := validator.NewEmailValidator().FilterValid(cfg.Notifications.OperationsRecipients)
	if len(rejected) > 0 {
		logger.WithField("rejected", rejected).Warn("Ignoring invalid operations recipients")
	}

	m := metrics.New()

	// Repositories
	webhookEventRepo := database.NewWebhookEventRepository(db.DB, logger)
	bookingRepo := database.NewBookingRepository(db.DB, logger)
	notificationRepo := database.NewAdminNotificationRepository(db.DB)
	deadLetterRepo := database.NewDeadLetterRepository(db.DB)
	adminUserRepo := database.NewAdminUserRepository(db.DB)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	rateLimitService := services.NewRateLimitService(redisClient, logger)
	stripeService := services.NewStripeService(cfg.Stripe, logger)
	if !stripeService.HasWebhookSecret() {
		logger.Error("STRIPE_WEBHOOK_SECRET is not set, every webhook will be rejected with 500")
	}
	deadLetterService := services.NewDeadLetterService(deadLetterRepo, deadLetterPublisher, logger)
	notificationService := services.NewNotificationService(
		notificationRepo,
		bookingRepo,
		emailGateway,
		rateLimitService,
		deadLetterService,
		services.NotificationConfig{
			Recipients:  recipients,
			EmailLimit:  cfg.Notifications.EmailLimit,
			EmailWindow: cfg.Notifications.EmailWindow,
		},
		m,
		logger,
	)
	reconciliationService := services.NewReconciliationService(bookingRepo, m, logger)
	webhookService := services.NewWebhookService(stripeService, webhookEventRepo, reconciliationService, notificationService, m, logger)
	paymentSyncService := services.NewPaymentSyncService(bookingRepo, stripeService, reconciliationService, notificationService, logger)
	adminAuthService := services.NewAdminAuthService(
		adminUserRepo,
		jwtService,
		rateLimitService,
		cfg.Security.LoginRateLimit,
		cfg.Security.LoginRateWindow,
		logger,
	)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(webhookService, cfg.Stripe.MaxBodyBytes, logger)
	adminAuthHandler := handlers.NewAdminAuthHandler(adminAuthService, logger)
	adminHandler := handlers.NewAdminHandler(notificationRepo, webhookEventRepo, webhookService, paymentSyncService, deadLetterService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(m.Middleware())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}

	router.GET("/health", healthCheckHandler(db, redisClient))
	router.GET("/metrics", m.Handler())

	v1 := router.Group("/api/v1")
	{
		// Stripe calls this server-to-server; no CORS, no auth beyond the signature
		v1.POST("/webhooks/stripe", webhookHandler.HandleStripe)

		admin := v1.Group("/admin")
		admin.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     cfg.CORS.AllowedMethods,
			AllowHeaders:     cfg.CORS.AllowedHeaders,
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
		{
			admin.POST("/auth/login", adminAuthHandler.Login)

			protected := admin.Group("")
			protected.Use(middleware.AuthMiddleware(jwtService, logger))
			protected.Use(middleware.RequireRole(middleware.RoleAdmin))
			{
				protected.GET("/notifications", adminHandler.ListNotifications)
				protected.POST("/notifications/:id/read", adminHandler.MarkNotificationRead)

				protected.GET("/webhook-events", adminHandler.ListWebhookEvents)
				protected.GET("/webhook-events/:event_id", adminHandler.GetWebhookEvent)
				protected.POST("/webhook-events/:event_id/replay", adminHandler.ReplayWebhookEvent)

				protected.POST("/bookings/:id/sync-payment", adminHandler.SyncBookingPayment)
				protected.GET("/dead-letters", adminHandler.ListDeadLetters)
			}
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		// Redis is optional; rate limiting fails open without it
		redisStatus := "disabled"
		if redisClient != nil {
			redisStatus = "healthy"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				redisStatus = "unhealthy"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"redis":     redisStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
