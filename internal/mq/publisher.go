package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Kommutator/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTelephonyEvent MessageType = "telephony.event"
	MessageTypeAgentStatus    MessageType = "agent.status"
	MessageTypeCommand        MessageType = "call.command"
	MessageTypeLifecycle      MessageType = "lifecycle.event"
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
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
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

// PublishTelephonyEvent публикует событие телефонного провайдера.
// Потребитель: Engine.
func (p *Publisher) PublishTelephonyEvent(ctx context.Context, ev *domain.WebhookEvent) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTelephonyEvent,
		Payload:   ev,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTelephony, RoutingKeyCallEvent, msg)
}

// PublishAgentStatus публикует смену статуса оператора.
// Потребитель: Engine.
func (p *Publisher) PublishAgentStatus(ctx context.Context, upd *domain.AgentStatusUpdate) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeAgentStatus,
		Payload:   upd,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTelephony, RoutingKeyAgentStatus, msg)
}

// PublishCommand публикует исходящую команду телефонному транспорту.
func (p *Publisher) PublishCommand(ctx context.Context, cmd *domain.Command) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeCommand,
		Payload:   cmd,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeCommands, RoutingKeyCommand, msg)
}

// PublishLifecycle публикует событие жизненного цикла для внешних
// подписчиков (биллинг, аналитика, supervisors).
func (p *Publisher) PublishLifecycle(ctx context.Context, ev *domain.LifecycleEvent) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeLifecycle,
		Payload:   ev,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeLifecycle, RoutingKeyLifecycle, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
