package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the exchange and queues the worker depends on.
type Topology struct {
	Exchange    string
	Queue       string
	StatusQueue string
	DLQ         string
}

// Declare creates the topic exchange and the durable queues, binding the
// processing and status queues to their routing keys. The DLQ is fed
// directly through the default exchange.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}

	for _, q := range []string{t.Queue, t.StatusQueue, t.DLQ} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	bindings := map[string]string{
		t.Queue:       ProcessingRoutingKey,
		t.StatusQueue: StatusRoutingKey,
	}
	for q, key := range bindings {
		if err := ch.QueueBind(q, key, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", q, key, err)
		}
	}
	return nil
}
