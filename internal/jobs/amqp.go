// Package jobs – RabbitMQ dispatcher and consumer.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AMQPDispatcher publishes job envelopes to a durable queue. Deliveries are
// persistent so a broker restart does not lose scheduled work.
type AMQPDispatcher struct {
	conn  *amqp091.Connection
	ch    *amqp091.Channel
	queue string
}

// NewAMQPDispatcher dials the broker, declares the durable job queue, and
// returns a dispatcher bound to it.
func NewAMQPDispatcher(url, queue string) (*AMQPDispatcher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("jobs: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jobs: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("jobs: declare queue %q: %w", queue, err)
	}
	return &AMQPDispatcher{conn: conn, ch: ch, queue: queue}, nil
}

// Close releases the broker connection.
func (d *AMQPDispatcher) Close() error {
	return d.conn.Close()
}

// EnqueueInbound implements Dispatcher.
func (d *AMQPDispatcher) EnqueueInbound(ctx context.Context, job InboundProcess) error {
	return d.publish(ctx, KindInboundProcess, job)
}

// EnqueueOutbound implements Dispatcher.
func (d *AMQPDispatcher) EnqueueOutbound(ctx context.Context, job OutboundSend) error {
	return d.publish(ctx, KindOutboundSend, job)
}

// EnqueueFileRegister implements Dispatcher.
func (d *AMQPDispatcher) EnqueueFileRegister(ctx context.Context, job FileRegister) error {
	return d.publish(ctx, KindFileRegister, job)
}

func (d *AMQPDispatcher) publish(ctx context.Context, kind string, payload any) error {
	env, err := NewEnvelope(kind, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("jobs: marshal envelope: %w", err)
	}
	err = d.ch.PublishWithContext(
		ctx,
		"",      // default exchange
		d.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Type:         kind,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("jobs: publish %s: %w", kind, err)
	}
	log.Debug().Str("kind", kind).Str("queue", d.queue).Msg("job published")
	return nil
}

// Consumer pulls envelopes off the job queue and executes them through a
// Runner. A failed job is nacked with requeue so the broker redelivers it;
// a malformed envelope is dropped after logging, since redelivery can never
// fix it.
type Consumer struct {
	conn   *amqp091.Connection
	ch     *amqp091.Channel
	queue  string
	runner *Runner
}

// NewConsumer dials the broker and binds a consumer to the job queue.
func NewConsumer(url, queue string, runner *Runner) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("jobs: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jobs: open channel: %w", err)
	}
	if err := ch.Qos(8, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("jobs: set qos: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("jobs: declare queue %q: %w", queue, err)
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, runner: runner}, nil
}

// Run consumes until the context is cancelled or the delivery channel
// closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("jobs: consume %q: %w", c.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		log.Error().Err(err).Str("message_id", msg.MessageId).Msg("job envelope malformed, dropping")
		_ = msg.Nack(false, false)
		return
	}
	if err := c.runner.Run(ctx, env); err != nil {
		log.Error().Err(err).Str("kind", env.Kind).Msg("job failed, requeueing")
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// Close releases the broker connection.
func (c *Consumer) Close() error {
	return c.conn.Close()
}
