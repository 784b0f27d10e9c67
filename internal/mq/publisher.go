package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNoChannel — соединение ещё не открыло канал или уже закрыто.
var ErrNoChannel = errors.New("no channel available")

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunPending  MessageType = "run.pending"
	MessageTypeRunSnapshot MessageType = "run.snapshot"
	MessageTypeRunFinished MessageType = "run.finished"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// RunPendingPayload — запрос на выполнение run, созданного через API или Scheduler.
type RunPendingPayload struct {
	RunID            uuid.UUID `json:"run_id"`
	UserStory        string    `json:"user_story"`
	UseSamplePayload bool      `json:"use_sample_payload,omitempty"`
	SimulateFailures int       `json:"simulate_failures,omitempty"`
	MaxSteps         int       `json:"max_steps,omitempty"`
}

// RunSnapshotPayload — событие о посещении узла.
type RunSnapshotPayload struct {
	RunID      uuid.UUID `json:"run_id"`
	Step       int       `json:"step"`
	NodeID     string    `json:"node_id"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	Changed    []string  `json:"changed"`
}

// RunFinishedPayload — событие о завершении run.
type RunFinishedPayload struct {
	RunID      uuid.UUID `json:"run_id"`
	Status     string    `json:"status"` // SUCCEEDED, FAILED или CANCELLED
	Outcome    string    `json:"outcome,omitempty"`
	Steps      int       `json:"steps"`
	RetryCount int       `json:"retry_count"`
	Error      string    `json:"error,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunPending ставит run в очередь на выполнение.
// Потребитель: Orchestrator.
func (p *Publisher) PublishRunPending(ctx context.Context, payload RunPendingPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyPending, NewMessage(MessageTypeRunPending, payload))
}

// PublishRunSnapshot публикует событие о посещении узла.
func (p *Publisher) PublishRunSnapshot(ctx context.Context, payload RunSnapshotPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeySnapshot, NewMessage(MessageTypeRunSnapshot, payload))
}

// PublishRunFinished публикует событие о завершении run.
func (p *Publisher) PublishRunFinished(ctx context.Context, payload RunFinishedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished, NewMessage(MessageTypeRunFinished, payload))
}
