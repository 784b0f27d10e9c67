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
	ExchangeRuns Exchange = "synapse.runs"
	ExchangeDLQ  Exchange = "synapse.dlq"
)

// Queues — имена очередей.
const (
	QueueRunsPending   Queue = "runs.pending"
	QueueRunsSnapshots Queue = "runs.snapshots"
	QueueRunsFinished  Queue = "runs.finished"
	QueueDLQRuns       Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyPending  RoutingKey = "pending"
	RoutingKeySnapshot RoutingKey = "snapshot"
	RoutingKeyFinished RoutingKey = "finished"
	RoutingKeyDLQRuns  RoutingKey = "runs"
)

type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// bindings — полная таблица привязок; используется и для объявления, и для TopologyInfo.
var bindings = []binding{
	{QueueRunsPending, RoutingKeyPending, ExchangeRuns},
	{QueueRunsSnapshots, RoutingKeySnapshot, ExchangeRuns},
	{QueueRunsFinished, RoutingKeyFinished, ExchangeRuns},
	{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
}

// SetupTopology объявляет exchanges, queues и bindings. Операция идемпотентна.
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
	for _, ex := range []Exchange{ExchangeRuns, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(ex), // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}
	return nil
}

// queueArgs возвращает аргументы очереди.
// Отклонённые запросы на запуск уходят в dlq.runs; события снимков теряемы.
func queueArgs(q Queue) amqp.Table {
	switch q {
	case QueueRunsPending:
		return amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
		}
	case QueueRunsSnapshots:
		return amqp.Table{
			"x-max-length": int32(10000),
			"x-overflow":   "drop-head",
		}
	default:
		return nil
	}
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	for _, b := range bindings {
		_, err := ch.QueueDeclare(
			string(b.queue),    // name
			true,               // durable
			false,              // delete when unused
			false,              // exclusive
			false,              // no-wait
			queueArgs(b.queue), // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
	}
	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
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
  Synapse RabbitMQ Topology:

    synapse.runs (direct)
    ├── runs.pending   [routing: pending]   Consumer: Orchestrator, DLQ: dlq.runs
    ├── runs.snapshots [routing: snapshot]  Consumer: dashboards / audit
    └── runs.finished  [routing: finished]  Consumer: Scheduler

    synapse.dlq (direct)
    └── dlq.runs [routing: runs]
            Manual processing
  `
}
