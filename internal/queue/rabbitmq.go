package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	// queue for transaction events
	EventQueue = "transaction_events"
)

// ErrMalformedEvent marks a delivery whose body could not be decoded
var ErrMalformedEvent = errors.New("malformed event")

// handles RabbitMQ operations
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	logger  *logging.Logger
}

func NewRabbitMQ(uri string, logger *logging.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		EventQueue, // name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
		queue:   q,
		logger:  logger.Named("rabbitmq"),
	}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}

// Publish sends a transaction event to the queue
func (r *RabbitMQ) Publish(ctx context.Context, event *models.TransactionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = r.channel.Publish(
		"",         // exchange
		EventQueue, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Type:         string(event.Type),
			Timestamp:    event.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent, // make message persistent
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// EventHandler processes one decoded event. Returning an error requeues the delivery.
type EventHandler func(ctx context.Context, event *models.TransactionEvent) error

// ConsumeEvents delivers events to handle until ctx is cancelled or the channel closes.
// Deliveries are acked only after handle succeeds; undecodable ones are rejected without requeue.
func (r *RabbitMQ) ConsumeEvents(ctx context.Context, handle EventHandler) error {
	if err := r.channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	msgs, err := r.channel.Consume(
		EventQueue, // queue
		"",         // consumer
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			r.handleDelivery(ctx, msg, handle)
		}
	}
}

func (r *RabbitMQ) handleDelivery(ctx context.Context, msg amqp.Delivery, handle EventHandler) {
	event, err := DecodeEvent(msg.Body)
	if err != nil {
		r.logger.Warn("rejecting malformed event", zap.String("message_id", msg.MessageId), zap.Error(err))
		msg.Reject(false) // Don't requeue
		return
	}

	if err := handle(ctx, event); err != nil {
		r.logger.Error("failed to handle event",
			zap.String("event_id", event.EventID),
			zap.Int64("transaction_id", event.TransactionID),
			zap.Error(err),
		)
		msg.Nack(false, true)
		return
	}

	msg.Ack(false)
}

// DecodeEvent parses and sanity-checks an event body.
func DecodeEvent(body []byte) (*models.TransactionEvent, error) {
	var event models.TransactionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.EventID == "" || event.TransactionID <= 0 || event.Type == "" {
		return nil, fmt.Errorf("%w: missing event_id, type or transaction_id", ErrMalformedEvent)
	}
	return &event, nil
}
