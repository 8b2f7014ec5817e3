package eventbus

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/corebooks/erp-core/pkg/mlog"
)

// RabbitMQRelay is a subscriber like any other: registered on a Bus at
// composition time, it re-publishes every Event it receives onto a
// RabbitMQ exchange so other services observe the same committed
// domain events this core emits in-process.
type RabbitMQRelay struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      mlog.Logger
}

// DialRabbitMQRelay connects to dsn and declares a topic exchange
// named exchange, publishing messages keyed by event type.
func DialRabbitMQRelay(dsn, exchange string, log mlog.Logger) (*RabbitMQRelay, error) {
	if log == nil {
		log = mlog.Nop{}
	}

	conn, err := amqp.Dial(dsn)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQRelay{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

// Close releases the underlying channel and connection.
func (r *RabbitMQRelay) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}

// Handler returns the eventbus.Handler to register on a Bus. Publish
// failures are logged, never propagated, matching the bus's own
// panic-isolation contract for subscribers.
func (r *RabbitMQRelay) Handler() Handler {
	return func(evt Event) {
		body, err := json.Marshal(evt.Payload)
		if err != nil {
			r.log.Errorf("eventbus: rabbitmq relay: failed to marshal %q: %v", evt.Type, err)
			return
		}

		err = r.channel.PublishWithContext(context.Background(), r.exchange, evt.Type, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		if err != nil {
			r.log.Errorf("eventbus: rabbitmq relay: failed to publish %q: %v", evt.Type, err)
		}
	}
}
