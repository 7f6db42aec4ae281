// Package rabbit carries order events over a RabbitMQ fanout exchange.
package rabbit

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "order_status_changed"
	DefaultQueue    = "vexokart_notifier"
)

// Dial opens a connection and a channel.
func Dial(url string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

// DeclareExchange declares the durable fanout exchange events go to.
func DeclareExchange(ch *amqp091.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareQueue declares queue and binds it to exchange. Fanout ignores
// the routing key.
func DeclareQueue(ch *amqp091.Channel, exchange, queue string) (amqp091.Queue, error) {
	if err := DeclareExchange(ch, exchange); err != nil {
		return amqp091.Queue{}, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("bind queue: %w", err)
	}
	return q, nil
}
