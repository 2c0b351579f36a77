package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/parkspot/payment-reconciler/pkg/validator"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration (admin API)
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Stripe configuration
	Stripe StripeConfig

	// Email (Resend) configuration
	Email EmailConfig

	// Redis configuration (shared rate-limit counters)
	Redis RedisConfig

	// Kafka configuration (dead-letter topic)
	Kafka KafkaConfig

	// Operations notification configuration
	Notifications NotificationConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// StripeConfig holds Stripe API and webhook configuration
type StripeConfig struct {
	SecretKey     string // sk_... used for PaymentIntent lookups
	WebhookSecret string // whsec_... (SECRET - an empty value rejects every webhook)
	MaxBodyBytes  int64
}

// EmailConfig holds the transactional email provider configuration
type EmailConfig struct {
	Mode    string // "dev" logs the email, "production" sends it
	APIURL  string
	APIKey  string
	From    string
	Timeout time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL string // redis://host:6379/0, empty disables shared rate limiting
}

// KafkaConfig holds dead-letter broker configuration
type KafkaConfig struct {
	Brokers         []string // empty disables publishing
	DeadLetterTopic string
}

// NotificationConfig holds operations notification settings
type NotificationConfig struct {
	OperationsRecipients []string
	EmailLimit           int // max emails per booking per window
	EmailWindow          time.Duration
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool
	LoginRateLimit   int
	LoginRateWindow  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			MaxBodyBytes:  int64(getEnvAsInt("STRIPE_WEBHOOK_MAX_BODY_BYTES", 65536)),
		},
		Email: EmailConfig{
			Mode:    getEnv("EMAIL_MODE", "dev"),
			APIURL:  getEnv("RESEND_API_URL", "https://api.resend.com"),
			APIKey:  getEnv("RESEND_API_KEY", ""),
			From:    getEnv("EMAIL_FROM", "ParkSpot <bookings@parkspot.ae>"),
			Timeout: time.Duration(getEnvAsInt("EMAIL_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:         getEnvAsSlice("KAFKA_BROKERS", nil),
			DeadLetterTopic: getEnv("KAFKA_DEAD_LETTER_TOPIC", "payments.notification-dead-letters"),
		},
		Notifications: NotificationConfig{
			OperationsRecipients: getEnvAsSlice("OPERATIONS_EMAILS", nil),
			EmailLimit:           getEnvAsInt("OPERATIONS_EMAIL_LIMIT", 1),
			EmailWindow:          time.Duration(getEnvAsInt("OPERATIONS_EMAIL_WINDOW_SECONDS", 3600)) * time.Second,
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			LoginRateLimit:   getEnvAsInt("ADMIN_LOGIN_RATE_LIMIT", 5),
			LoginRateWindow:  time.Duration(getEnvAsInt("ADMIN_LOGIN_RATE_WINDOW_SECONDS", 900)) * time.Second,
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Stripe.MaxBodyBytes <= 0 {
		return fmt.Errorf("STRIPE_WEBHOOK_MAX_BODY_BYTES must be positive")
	}

	emailValidator := validator.NewEmailValidator()
	for _, recipient := range c.Notifications.OperationsRecipients {
		if err := emailValidator.Validate(recipient); err != nil {
			return fmt.Errorf("invalid OPERATIONS_EMAILS entry %q: %w", recipient, err)
		}
	}

	// Email delivery settings are only required when actually sending
	if c.Email.Mode == "production" {
		if c.Email.APIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required when EMAIL_MODE=production")
		}
		if c.Email.From == "" {
			return fmt.Errorf("EMAIL_FROM is required when EMAIL_MODE=production")
		}
	} else if c.Email.Mode != "dev" {
		return fmt.Errorf("invalid EMAIL_MODE: %s (must be 'dev' or 'production')", c.Email.Mode)
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.DeadLetterTopic == "" {
		return fmt.Errorf("KAFKA_DEAD_LETTER_TOPIC is required when KAFKA_BROKERS is set")
	}

	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
