package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"go.uber.org/zap"
)

const DefaultTopic = "gatekeeper.notifications"

// CodeRequested asks a delivery worker to send a one-time code.
// Retries belong to that worker.
type CodeRequested struct {
	Destination string            `json:"destination"`
	Purpose     string            `json:"purpose"`
	Params      map[string]string `json:"params"`
}

// QueueSender hands codes to a delivery worker over a Watermill topic
type QueueSender struct {
	publisher message.Publisher
	topic     string
}

func NewQueueSender(publisher message.Publisher, topic string) ports.NotificationSender {
	if topic == "" {
		topic = DefaultTopic
	}
	return &QueueSender{publisher: publisher, topic: topic}
}

func (s *QueueSender) SendCode(ctx context.Context, destination string, purpose string, params map[string]string) error {
	payload, err := json.Marshal(CodeRequested{Destination: destination, Purpose: purpose, Params: params})
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrDeliveryFailed, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return fmt.Errorf("%w: %v", core.ErrDeliveryFailed, err)
	}
	return nil
}

// LogSender only records that a code was requested. Used when no delivery
// worker is configured; the code itself is never logged.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) ports.NotificationSender {
	return &LogSender{logger: logger.Named("notify")}
}

func (s *LogSender) SendCode(ctx context.Context, destination string, purpose string, params map[string]string) error {
	s.logger.Info("code delivery skipped, no sender configured",
		zap.String("destination", maskDestination(destination)),
		zap.String("purpose", purpose),
	)
	return nil
}

func maskDestination(destination string) string {
	if len(destination) <= 4 {
		return "****"
	}
	return destination[:3] + "****" + destination[len(destination)-2:]
}
