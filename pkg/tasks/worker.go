package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/nextshop/commerce-api/pkg/global"
)

// HandlerFunc processes one task payload. Returning an error only logs
// it: side-effect tasks are best-effort and never retried as part of any
// critical path.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Worker consumes the task topic and dispatches by kind.
type Worker struct {
	brokers  []string
	topic    string
	groupID  string
	handlers map[Kind]HandlerFunc
}

func NewWorker(brokers []string, topic, groupID string) *Worker {
	return &Worker{
		brokers:  brokers,
		topic:    topic,
		groupID:  groupID,
		handlers: make(map[Kind]HandlerFunc),
	}
}

func NewWorkerFromEnv() *Worker {
	brokers := strings.Split(global.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := global.GetEnvOrDefault("KAFKA_TASKS_TOPIC", "commerce.tasks")
	groupID := global.GetEnvOrDefault("KAFKA_TASKS_GROUP", "commerce-workers")
	return NewWorker(brokers, topic, groupID)
}

func (w *Worker) Handle(kind Kind, handler HandlerFunc) {
	w.handlers[kind] = handler
}

// Run blocks consuming tasks until ctx is cancelled. Intended to be
// started as a goroutine from main.
func (w *Worker) Run(ctx context.Context) {
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: w.brokers,
		Topic:   w.topic,
		GroupID: w.groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("Task worker shutting down (topic %s)", w.topic)
				return
			}
			log.Printf("Error reading task message: %v", err)
			continue
		}

		if err := w.Dispatch(ctx, msg.Value); err != nil {
			log.Printf("Task failed: %v", err)
		}
	}
}

// Dispatch decodes one envelope and runs its handler.
func (w *Worker) Dispatch(ctx context.Context, envelope []byte) error {
	var task Task
	if err := json.Unmarshal(envelope, &task); err != nil {
		return fmt.Errorf("failed to decode task envelope: %w", err)
	}

	handler, ok := w.handlers[task.Kind]
	if !ok {
		return fmt.Errorf("no handler registered for task kind %q (task %s)", task.Kind, task.ID)
	}

	if err := handler(ctx, task.Payload); err != nil {
		return fmt.Errorf("task %s (%s): %w", task.ID, task.Kind, err)
	}
	return nil
}
