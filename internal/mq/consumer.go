package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает декодированный payload сообщения.
//
// Ошибка возвращает сообщение в очередь на повтор; проблемы уровня
// конкретного звонка (дубликат, неизвестный call_id) обработчик
// гасит сам, иначе доставка зациклится.
type Handler[T any] func(ctx context.Context, payload *T) error

// envelope — приёмная сторона Message: payload остаётся сырым
// до типизированного декодирования.
type envelope struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Consumer читает очередь и передаёт обработчику декодированный
// payload типа T.
//
// Сообщение, которое не удаётся разобрать — битый envelope, payload
// чужого типа — повторять бессмысленно: оно уходит в DLQ без
// requeue. Разрыв соединения переживается ожиданием reconnect.
type Consumer[T any] struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	accepts  MessageType
	handler  Handler[T]
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig[T any] struct {
	// Queue — имя очереди.
	Queue string

	// Accepts — ожидаемый тип сообщений; сообщение другого типа
	// отправляется в DLQ.
	Accepts MessageType

	// Handler — обработчик декодированного payload.
	Handler Handler[T]

	// Prefetch — окно неподтверждённых сообщений.
	Prefetch int
}

// NewConsumer создаёт Consumer очереди cfg.Queue.
func NewConsumer[T any](conn *Connection, logger *slog.Logger, cfg ConsumerConfig[T]) *Consumer[T] {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer[T]{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		accepts:  cfg.Accepts,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает цикл потребления; блокируется до отмены контекста.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("subscribe failed", "error", err)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started")

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect")
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
		}
	}
}

// Stop останавливает consumer.
func (c *Consumer[T]) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

func (c *Consumer[T]) awaitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, restarting consumer")
		return nil
	}
}

// subscribe открывает подписку на очередь с ручным ack.
func (c *Consumer[T]) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, errors.New("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

func (c *Consumer[T]) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.dispatch(ctx, raw)
		}
	}
}

// dispatch декодирует одно сообщение и вызывает обработчик.
func (c *Consumer[T]) dispatch(ctx context.Context, raw amqp.Delivery) {
	payload, env, err := decode[T](raw.Body, c.accepts)
	if err != nil {
		c.logger.Error("discarding undecodable message", "error", err)
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("message received",
		"message_id", env.ID,
		"type", env.Type,
	)

	if err := c.handler(ctx, payload); err != nil {
		c.logger.Error("handler failed, requeueing",
			"message_id", env.ID,
			"type", env.Type,
			"error", err,
		)
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// decode разбирает envelope и payload сообщения. Несовпадение типа —
// ошибка декодирования: очередь с чужим binding не должна молча
// кормить обработчик чужими payload.
func decode[T any](body []byte, accepts MessageType) (*T, *envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	if accepts != "" && env.Type != accepts {
		return nil, &env, fmt.Errorf("unexpected message type %q, want %q", env.Type, accepts)
	}

	var payload T
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, &env, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return &payload, &env, nil
}
