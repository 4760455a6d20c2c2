package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeTelephony Exchange = "kommutator.telephony"
	ExchangeCommands  Exchange = "kommutator.commands"
	ExchangeLifecycle Exchange = "kommutator.lifecycle"
	ExchangeDLQ       Exchange = "kommutator.dlq"
)

// Queues — имена очередей.
const (
	QueueTelephonyEvents Queue = "telephony.events"
	QueueAgentsStatus    Queue = "agents.status"
	QueueCommandsOut     Queue = "commands.outbound"
	QueueLifecycle       Queue = "lifecycle.events"
	QueueDLQEvents       Queue = "dlq.events"
)

// Routing keys.
const (
	RoutingKeyCallEvent   RoutingKey = "call.event"
	RoutingKeyAgentStatus RoutingKey = "agent.status"
	RoutingKeyCommand     RoutingKey = "command"
	RoutingKeyLifecycle   RoutingKey = "lifecycle"
	RoutingKeyDLQEvents   RoutingKey = "events"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTelephony, "direct"},
		{ExchangeCommands, "direct"},
		{ExchangeLifecycle, "fanout"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// telephony.events — с DLQ (битое событие не должно
		// блокировать поток событий провайдера)
		{QueueTelephonyEvents, dlqArgs},

		// agents.status — без DLQ (следующий heartbeat перекроет потерянный)
		{QueueAgentsStatus, nil},

		// commands.outbound — с DLQ (команда транспорту не должна теряться молча)
		{QueueCommandsOut, dlqArgs},

		// lifecycle.events — без DLQ (поток для внешних подписчиков)
		{QueueLifecycle, nil},

		// dlq.events — сама DLQ очередь
		{QueueDLQEvents, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueTelephonyEvents, RoutingKeyCallEvent, ExchangeTelephony},
		{QueueAgentsStatus, RoutingKeyAgentStatus, ExchangeTelephony},
		{QueueCommandsOut, RoutingKeyCommand, ExchangeCommands},
		{QueueLifecycle, RoutingKeyLifecycle, ExchangeLifecycle},
		{QueueDLQEvents, RoutingKeyDLQEvents, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Kommutator RabbitMQ Topology:

    kommutator.telephony (direct)
    ├── telephony.events [routing: call.event]
    │       Consumer: Engine
    │       DLQ: dlq.events
    └── agents.status [routing: agent.status]
            Consumer: Engine

    kommutator.commands (direct)
    └── commands.outbound [routing: command]
            Consumer: telephony transport
            DLQ: dlq.events

    kommutator.lifecycle (fanout)
    └── lifecycle.events [routing: lifecycle]
            Consumer: external subscribers

    kommutator.dlq (direct)
    └── dlq.events [routing: events]
            Manual processing
  `
}
