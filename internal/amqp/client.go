// Package amqp queues category corrections on RabbitMQ so a long-running
// worker can apply them to the bank.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"upspend/internal/log"
)

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp091.Channel used after setup.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Handler processes one decoded correction. Returning an error requeues
// the delivery.
type Handler func(ctx context.Context, msg *CorrectionMessage) error

type Client struct {
	conn         *amqp091.Connection
	channel      channel
	exchangeName string
	queueName    string
	logger       *log.Logger
}

func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      ch,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       componentLogger(logger),
	}

	if err := setup(ch, exchangeName, queueName); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func componentLogger(logger *log.Logger) *log.Logger {
	if logger == nil {
		logger = log.Nop()
	}
	return logger.WithComponent(log.ComponentAMQP)
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name.
	err = ch.QueueBind(queueName, queueName, exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishCorrection queues a category correction and returns the message ID.
func (c *Client) PublishCorrection(ctx context.Context, txID, categoryID string) (string, error) {
	if txID == "" || categoryID == "" {
		return "", errors.New("publish correction: transaction and category ids are required")
	}
	msg := NewCorrectionMessage(txID, categoryID)
	body, err := msg.ToJSON()
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}

	c.logger.InfoContext(ctx, "Published category correction",
		"message_id", msg.ID,
		log.FieldTxID, txID,
		log.FieldCategory, categoryID,
		"queue", c.queueName)

	return msg.ID, nil
}

// Correct queues the correction instead of applying it, so the fix command
// can hand its work to the worker.
func (c *Client) Correct(ctx context.Context, txID, categoryID string) error {
	_, err := c.PublishCorrection(ctx, txID, categoryID)
	return err
}

// ConsumeCorrections delivers corrections to handler until ctx is done.
// Undecodable messages are dropped; handler errors requeue the message.
func (c *Client) ConsumeCorrections(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming category corrections", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.deliver(ctx, delivery, handler)
		}
	}
}

func (c *Client) deliver(ctx context.Context, delivery amqp091.Delivery, handler Handler) {
	msg, err := CorrectionMessageFromJSON(delivery.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode correction message", log.FieldError, err)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.ErrorContext(ctx, "Failed to reject message", log.FieldError, nackErr)
		}
		return
	}

	fields := []any{"message_id", msg.ID, log.FieldTxID, msg.TransactionID, log.FieldCategory, msg.CategoryID}

	if err := handler(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle correction", append(fields, log.FieldError, err)...)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.ErrorContext(ctx, "Failed to requeue message", log.FieldError, nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.ErrorContext(ctx, "Failed to ack message", append(fields, log.FieldError, err)...)
		return
	}
	c.logger.InfoContext(ctx, "Processed correction", fields...)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
