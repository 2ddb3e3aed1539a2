package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"payment-reconciler/internal/config"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultBatchSize    = 100
	DefaultBatchTimeout = 100
)

var (
	publishSuccessCounter = metrics.GetOrCreateCounter(`payment_outcome_publish_total{result="success"}`)
	publishErrorCounter   = metrics.GetOrCreateCounter(`payment_outcome_publish_total{result="error"}`)
)

// Outcome is the event emitted after a payment attempt finishes.
type Outcome struct {
	AttemptID  uuid.UUID `json:"attemptId"`
	BookingID  int64     `json:"bookingId"`
	PaymentID  int64     `json:"paymentId,omitempty"`
	Outcome    string    `json:"outcome"`
	Decision   string    `json:"decision,omitempty"`
	Receipt    string    `json:"receipt,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewWriter(cfg config.Kafka) *kafka.Writer {
	// Env overrides the yaml values, yaml overrides the defaults.
	fallbackBatchSize := cfg.Writer.BatchSize
	if fallbackBatchSize <= 0 {
		fallbackBatchSize = DefaultBatchSize
	}
	fallbackBatchTimeout := cfg.Writer.BatchTimeoutMs
	if fallbackBatchTimeout <= 0 {
		fallbackBatchTimeout = DefaultBatchTimeout
	}
	batchSize := config.GetEnvInt("KAFKA_WRITER_BATCH_SIZE", fallbackBatchSize)
	batchTimeout := config.GetEnvInt("KAFKA_WRITER_BATCH_TIMEOUT", fallbackBatchTimeout)

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Broker.URL),
		Topic:                  cfg.Topic.PaymentOutcomes,
		Balancer:               &kafka.ReferenceHash{},
		BatchSize:              batchSize,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           time.Duration(batchTimeout) * time.Millisecond,
		Async:                  false,
		AllowAutoTopicCreation: false,
	}
}

// Publisher emits outcome events, best effort: publish failures are logged
// and counted, never surfaced to the payment flow.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewPublisher(writer *kafka.Writer, logger *slog.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) PublishOutcome(ctx context.Context, outcome Outcome) {
	if p == nil || p.writer == nil {
		return
	}

	value, err := json.Marshal(outcome)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error marshalling outcome event", "error", err)
		publishErrorCounter.Inc()
		return
	}

	msg := kafka.Message{
		// Key by booking id so outcomes for one booking stay ordered.
		Key:   []byte(fmt.Sprintf("%d", outcome.BookingID)),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "Error publishing outcome event", "attemptId", outcome.AttemptID, "error", err)
		publishErrorCounter.Inc()
		return
	}
	publishSuccessCounter.Inc()
}
