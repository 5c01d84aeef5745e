package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/dataflows/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeFlowTrigger  MessageType = "flow.trigger"
	MessageTypeRunCompleted MessageType = "run.completed"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload json.RawMessage `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage собирает сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// FlowTriggerPayload — запрос на запуск flow.
type FlowTriggerPayload struct {
	FlowName       string            `json:"flow_name"`
	Params         map[string]string `json:"params,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// RunCompletedPayload — событие о завершении run.
type RunCompletedPayload struct {
	RunID      uuid.UUID        `json:"run_id"`
	FlowName   string           `json:"flow_name"`
	Status     domain.RunStatus `json:"status"`
	Trigger    domain.Trigger   `json:"trigger"`
	Error      string           `json:"error,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

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

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
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

// PublishRunCompleted публикует событие о завершении run.
// Реализует runner.EventPublisher.
func (p *Publisher) PublishRunCompleted(ctx context.Context, run *domain.Run) error {
	msg, err := NewMessage(MessageTypeRunCompleted, RunCompletedPayload{
		RunID:      run.ID,
		FlowName:   run.FlowName,
		Status:     run.Status,
		Trigger:    run.Trigger,
		Error:      run.Error,
		FinishedAt: run.FinishedAt,
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeRuns, RoutingKeyCompleted, msg)
}

// PublishFlowTrigger ставит запрос на запуск flow в очередь.
func (p *Publisher) PublishFlowTrigger(ctx context.Context, payload FlowTriggerPayload) error {
	msg, err := NewMessage(MessageTypeFlowTrigger, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeFlows, RoutingKeyTrigger, msg)
}
