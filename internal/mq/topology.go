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
	ExchangeFlows Exchange = "dataflows.flows"
	ExchangeRuns  Exchange = "dataflows.runs"
	ExchangeDLQ   Exchange = "dataflows.dlq"
)

// Queues — имена очередей.
const (
	QueueFlowsTrigger  Queue = "flows.trigger"
	QueueRunsCompleted Queue = "runs.completed"
	QueueDLQFlows      Queue = "dlq.flows"
)

// Routing keys.
const (
	RoutingKeyTrigger   RoutingKey = "trigger"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQFlows  RoutingKey = "flows"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topology — полное описание обменников, очередей и привязок.
var topology = struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}{
	exchanges: []exchangeDecl{
		{ExchangeFlows, amqp.ExchangeDirect},
		{ExchangeRuns, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	},
	queues: []queueDecl{
		// flows.trigger — отклонённые запросы уходят в DLQ
		{QueueFlowsTrigger, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQFlows),
		}},
		// runs.completed — для внешних подписчиков, dataflows её не читает
		{QueueRunsCompleted, nil},
		{QueueDLQFlows, nil},
	},
	bindings: []bindingDecl{
		{QueueFlowsTrigger, RoutingKeyTrigger, ExchangeFlows},
		{QueueRunsCompleted, RoutingKeyCompleted, ExchangeRuns},
		{QueueDLQFlows, RoutingKeyDLQFlows, ExchangeDLQ},
	},
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range topology.exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range topology.queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range topology.bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  dataflows RabbitMQ topology:

    dataflows.flows (direct)
    └── flows.trigger [routing: trigger]
            Consumer: dataflows serve
            DLQ: dlq.flows

    dataflows.runs (direct)
    └── runs.completed [routing: completed]
            Consumers: external

    dataflows.dlq (direct)
    └── dlq.flows [routing: flows]
            Manual processing
  `
}
