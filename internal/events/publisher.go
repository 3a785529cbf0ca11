package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types published on the checkout topic.
const (
	TypePaymentSucceeded     = "checkout.payment_succeeded"
	TypeReconciled           = "checkout.reconciled"
	TypeReconciliationFailed = "checkout.reconciliation_failed"
	TypeProviderWebhook      = "payment.provider_webhook"
)

// Event is the JSON body of every message on the checkout topic.
type Event struct {
	Type           string    `json:"type"`
	CheckoutID     string    `json:"checkoutId,omitempty"`
	TransactionID  string    `json:"transactionId,omitempty"`
	ItemKind       string    `json:"itemKind,omitempty"`
	ItemID         int64     `json:"itemId,omitempty"`
	OrganizationID int64     `json:"organizationId,omitempty"`
	Gateway        string    `json:"gateway,omitempty"`
	Message        string    `json:"message,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// key groups all events of one checkout on the same partition.
func (e Event) key() string {
	if e.CheckoutID != "" {
		return e.CheckoutID
	}
	return e.TransactionID
}

// Publisher is what the services use to emit audit events. Publishing is
// best effort: callers log a failure and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages to a single topic.
type KafkaPublisher struct {
	writer Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	})
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish marshals e and writes it keyed by checkout.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.key()),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher logs events instead of sending them. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, e Event) error {
	log.Printf("[Events] %s checkout=%s tx=%s %s", e.Type, e.CheckoutID, e.TransactionID, e.Message)
	return nil
}

func (NopPublisher) Close() error { return nil }

// New returns a Kafka publisher when brokers are configured and a NopPublisher otherwise.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		log.Println("⚠️  KAFKA_BROKERS not set, checkout events are only logged")
		return NopPublisher{}
	}
	log.Printf("📨 Publishing checkout events to %s on %s", topic, strings.Join(brokers, ","))
	return NewKafkaPublisher(brokers, topic)
}
