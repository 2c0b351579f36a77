package services

import (
	"context"
	"time"

	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultDeadLetterTimeout = 5 * time.Second

// DeadLetterPublisher forwards dead letters to a broker
type DeadLetterPublisher interface {
	PublishJSON(ctx context.Context, key string, value interface{}, headers map[string]string) error
}

// DeadLetterService records side effects that failed after a booking update.
// The table is always written; the broker only when a publisher is configured.
type DeadLetterService struct {
	repo      *database.DeadLetterRepository
	publisher DeadLetterPublisher
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewDeadLetterService creates a new dead-letter service. publisher may be nil.
func NewDeadLetterService(repo *database.DeadLetterRepository, publisher DeadLetterPublisher, logger *logrus.Logger) *DeadLetterService {
	return &DeadLetterService{
		repo:      repo,
		publisher: publisher,
		timeout:   defaultDeadLetterTimeout,
		logger:    logger,
	}
}

// Record stores the dead letter. Failures are logged, never returned.
// It runs on its own deadline; the caller's may already be spent by the
// side effect that failed.
func (s *DeadLetterService) Record(ctx context.Context, letter *models.NotificationDeadLetter) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{
		"stripe_event_id": letter.StripeEventID,
		"channel":         letter.Channel,
		"booking_id":      letter.BookingID,
	})

	if err := s.repo.Create(ctx, letter); err != nil {
		log.WithError(err).Error("Failed to store dead letter")
	}

	if s.publisher != nil {
		headers := map[string]string{"channel": string(letter.Channel)}
		if err := s.publisher.PublishJSON(ctx, letter.StripeEventID, letter, headers); err != nil {
			log.WithError(err).Error("Failed to publish dead letter")
		}
	}

	log.WithField("error_message", letter.ErrorMessage).Warn("Side effect dead-lettered")
}

// List returns the most recent dead letters
func (s *DeadLetterService) List(ctx context.Context, limit int) ([]models.NotificationDeadLetter, error) {
	return s.repo.List(ctx, limit)
}
