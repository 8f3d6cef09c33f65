package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const queueExchange = "dicom.events.exchange"

// QueueProvider pushes serialized notifications onto a named RabbitMQ queue.
// Exchange, queue and binding are declared once at construction.
type QueueProvider struct {
	channel    *amqp.Channel
	queue      string
	routingKey string
}

func NewQueueProvider(channel *amqp.Channel, queue string) (*QueueProvider, error) {
	err := channel.ExchangeDeclare(
		queueExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare events exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	if err := channel.QueueBind(queue, queue, queueExchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}

	return &QueueProvider{
		channel:    channel,
		queue:      queue,
		routingKey: queue,
	}, nil
}

func (p *QueueProvider) Name() string {
	return "queue"
}

func (p *QueueProvider) Publish(ctx context.Context, notification Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(
		ctx,
		queueExchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

func (p *QueueProvider) PublishBatch(ctx context.Context, notifications []Notification) error {
	return publishEach(ctx, p, notifications)
}

// Close is a no-op: the channel is owned by the shared RabbitMQ client.
func (p *QueueProvider) Close() error {
	return nil
}
