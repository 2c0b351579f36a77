package email

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogGateway logs emails instead of sending them (EMAIL_MODE=dev)
type LogGateway struct {
	logger *logrus.Logger
}

// NewLogGateway creates a gateway that only logs
func NewLogGateway(logger *logrus.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send logs the message and returns a synthetic id
func (g *LogGateway) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("email has no recipients")
	}
	id := "dev-" + uuid.NewString()
	g.logger.WithFields(logrus.Fields{
		"message_id": id,
		"to":         msg.To,
		"subject":    msg.Subject,
	}).Info("Email not sent (dev mode)")
	return id, nil
}

// GetName returns the gateway name
func (g *LogGateway) GetName() string {
	return "log"
}
