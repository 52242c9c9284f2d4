package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pixloo/pixgate/infra/logger"
)

// DepositSettledEvent is published for the back office whenever a deposit settles.
type DepositSettledEvent struct {
	PaymentID string `json:"payment_id"`
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Provider  string `json:"provider"`
	At        string `json:"at"`
}

// Publisher delivers admin notifications. The Kafka publisher is used when
// brokers are configured; Noop otherwise.
type Publisher interface {
	PublishDepositSettled(ctx context.Context, event DepositSettledEvent) error
}

// KafkaPublisher publishes deposit events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

// PublishDepositSettled publishes one settled-deposit event keyed by user id.
func (p *KafkaPublisher) PublishDepositSettled(ctx context.Context, event DepositSettledEvent) error {
	if event.At == "" {
		event.At = time.Now().UTC().Format(time.RFC3339)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: value,
		Time:  time.Now(),
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher logs events instead of delivering them. Used when no brokers
// are configured so settlement never depends on messaging availability.
type NoopPublisher struct{}

func (NoopPublisher) PublishDepositSettled(_ context.Context, event DepositSettledEvent) error {
	logger.Info("deposit settled (no notification brokers configured)", logger.LogContext{
		CorrelationID: event.PaymentID,
		Fields: map[string]any{
			"user_id": event.UserID,
			"amount":  event.Amount,
		},
	})
	return nil
}
