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
	ExchangeInstances Exchange = "caseflow.instances"
	ExchangeTimeouts  Exchange = "caseflow.timeouts"
	ExchangeEvents    Exchange = "caseflow.events"
	ExchangeDLQ       Exchange = "caseflow.dlq"
)

// Queues — имена очередей.
const (
	QueueInstancesStart Queue = "instances.start"
	QueueStepsTimeout   Queue = "steps.timeout"
	QueueDLQInstances   Queue = "dlq.instances"
)

// Routing keys.
const (
	RoutingKeyStart        RoutingKey = "start"
	RoutingKeyTimeout      RoutingKey = "timeout"
	RoutingKeyDLQInstances RoutingKey = "instances"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeInstances, "direct"},
		{ExchangeTimeouts, "direct"},
		// События журнала — fanout: внешние потребители привязывают
		// собственные очереди, движок своих не объявляет
		{ExchangeEvents, "fanout"},
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
		"x-dead-letter-routing-key": string(RoutingKeyDLQInstances),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// instances.start — с DLQ (невалидные запросы запуска уходят в DLQ)
		{QueueInstancesStart, dlqArgs},

		// steps.timeout — без DLQ (обработка идемпотентна, потеря безопасна)
		{QueueStepsTimeout, nil},

		// dlq.instances — сама DLQ очередь
		{QueueDLQInstances, nil},
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
		{QueueInstancesStart, RoutingKeyStart, ExchangeInstances},
		{QueueStepsTimeout, RoutingKeyTimeout, ExchangeTimeouts},
		{QueueDLQInstances, RoutingKeyDLQInstances, ExchangeDLQ},
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
  Caseflow RabbitMQ Topology:

    caseflow.instances (direct)
    └── instances.start [routing: start]
            Consumer: Engine
            DLQ: dlq.instances

    caseflow.timeouts (direct)
    └── steps.timeout [routing: timeout]
            Consumer: Engine

    caseflow.events (fanout)
    └── (потребители привязывают собственные очереди)

    caseflow.dlq (direct)
    └── dlq.instances [routing: instances]
            Manual processing
  `
}
