// Package amqp fans planner changes out to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/retry"
)

// Publisher publishes change messages to one exchange.
type Publisher struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	policy       retry.Policy
	logger       *slog.Logger
}

// NewPublisher dials url and declares a durable topic exchange.
func NewPublisher(url, exchangeName string, policy retry.Policy, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}

	p := &Publisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		policy:       policy,
		logger:       logger,
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("amqp: declare exchange: %w", err)
	}

	return p, nil
}

// Publish sends msg, retrying while the broker connection is unavailable.
func (p *Publisher) Publish(ctx context.Context, msg *ChangeMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("amqp: marshal message: %w", err)
	}

	return p.policy.Do(ctx, p.logger, "amqp.publish", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := p.channel.PublishWithContext(
			ctx,
			p.exchangeName,   // exchange
			msg.RoutingKey(), // routing key
			false,            // mandatory
			false,            // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		return classify(err)
	})
}

// classify marks closed connections and channels as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var amqpErr *amqp091.Error
	if errors.Is(err, amqp091.ErrClosed) || (errors.As(err, &amqpErr) && amqpErr.Recover) {
		return fmt.Errorf("amqp: publish: %w: %w", apperr.ErrUnavailable, err)
	}
	return fmt.Errorf("amqp: publish: %w", err)
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
