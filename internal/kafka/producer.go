// Package kafka publishes reminder audit events for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/feastly/reminder-gateway/internal/config"
	"github.com/feastly/reminder-gateway/internal/logger"
)

// Event types emitted on the audit topic.
const (
	EventMessageSent        = "message.sent"
	EventMessageFailed      = "message.failed"
	EventExecutionCompleted = "execution.completed"
)

// AuditEvent is the JSON envelope on the audit topic. Payload is
// event-specific and intentionally schemaless.
type AuditEvent struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// Producer writes audit events. Publishing is best effort: a broker outage
// must never fail a reminder run.
type Producer struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewProducer(cfg config.KafkaConfig) *Producer {
	if len(cfg.Brokers) == 0 || cfg.AuditTopic == "" {
		return nil
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.AuditTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: timeout,
		},
		timeout: timeout,
	}
}

// Publish emits one event keyed by key. Safe on a nil receiver; errors are
// logged, never returned.
func (p *Producer) Publish(ctx context.Context, key string, eventType string, payload map[string]any) {
	if p == nil {
		return
	}
	value, err := json.Marshal(AuditEvent{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		logger.L().Warn("audit: marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		logger.L().Warn("audit: publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
