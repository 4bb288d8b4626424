package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/nextshop/commerce-api/pkg/global"
)

// Kind names a background job. Execution is at-least-once; every handler
// must tolerate redelivery.
type Kind string

const (
	KindOrderConfirmationEmail Kind = "order_confirmation_email"
	KindStockShortfallNotice   Kind = "stock_shortfall_notice"
)

// Task is the envelope written to the queue topic.
type Task struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

type OrderConfirmationPayload struct {
	OrderID       string  `json:"order_id"`
	CustomerEmail string  `json:"customer_email"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

type StockShortfallPayload struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	CheckoutRef string `json:"checkout_ref"`
}

// Queue is the fire-and-forget enqueue contract the fulfillment engine
// consumes.
type Queue interface {
	Enqueue(ctx context.Context, kind Kind, payload any) error
}

// KafkaQueue writes task envelopes to a Kafka topic.
type KafkaQueue struct {
	brokers []string
	topic   string
}

func NewKafkaQueue(brokers []string, topic string) *KafkaQueue {
	return &KafkaQueue{brokers: brokers, topic: topic}
}

func NewKafkaQueueFromEnv() *KafkaQueue {
	brokers := strings.Split(global.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := global.GetEnvOrDefault("KAFKA_TASKS_TOPIC", "commerce.tasks")
	return NewKafkaQueue(brokers, topic)
}

func (q *KafkaQueue) Enqueue(ctx context.Context, kind Kind, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	}
	envelope, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task envelope: %w", err)
	}

	w := &kafkaGo.Writer{
		Addr:     kafkaGo.TCP(q.brokers...),
		Topic:    q.topic,
		Balancer: &kafkaGo.LeastBytes{},
	}
	defer w.Close()

	return w.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(task.ID),
		Value: envelope,
	})
}
