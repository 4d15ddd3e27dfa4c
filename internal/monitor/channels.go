package monitor

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/model"
)

// LogChannel writes alerts to the process log.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel creates a log-backed notification channel.
func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger.Named("alerts")}
}

// Send implements NotificationChannel.
func (c *LogChannel) Send(alert *model.Alert) error {
	c.logger.Warn(alert.Title,
		zap.String("alert_id", alert.ID),
		zap.String("kind", string(alert.Kind)),
		zap.String("severity", string(alert.Severity)),
		zap.String("message", alert.Message))
	return nil
}

// JetStreamChannel publishes alerts to NATS JetStream so external consumers
// (dashboards, pagers) can subscribe to alert.<severity>.
type JetStreamChannel struct {
	js nats.JetStreamContext
}

// NewJetStreamChannel creates a JetStream-backed notification channel. The
// ALERTS stream is created when missing.
func NewJetStreamChannel(js nats.JetStreamContext) (*JetStreamChannel, error) {
	_, err := js.StreamInfo("ALERTS")
	if err != nil {
		if err != nats.ErrStreamNotFound {
			return nil, fmt.Errorf("failed to get stream info: %w", err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     "ALERTS",
			Subjects: []string{"alert.*"},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
	}

	return &JetStreamChannel{js: js}, nil
}

// Send implements NotificationChannel.
func (c *JetStreamChannel) Send(alert *model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if _, err := c.js.Publish("alert."+string(alert.Severity), data); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}
