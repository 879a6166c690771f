package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultExchange = "notifications.direct"
	defaultQueue    = "notification.send"
)

// RabbitDispatcher publishes send payloads to a durable queue for the
// downstream email/push senders to consume.
type RabbitDispatcher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
}

func NewRabbitDispatcher(url string) (*RabbitDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	d := &RabbitDispatcher{
		conn:     conn,
		channel:  channel,
		exchange: defaultExchange,
		queue:    defaultQueue,
	}
	if err := d.setup(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *RabbitDispatcher) setup() error {
	if err := d.channel.ExchangeDeclare(
		d.exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := d.channel.QueueDeclare(
		d.queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := d.channel.QueueBind(d.queue, d.queue, d.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", d.queue, err)
	}
	return nil
}

func (d *RabbitDispatcher) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	err = d.channel.PublishWithContext(
		ctx,
		d.exchange,
		d.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification %s: %w", p.NotificationID, err)
	}
	return nil
}

func (d *RabbitDispatcher) Close() error {
	if d.channel != nil {
		d.channel.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
