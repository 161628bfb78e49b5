package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"
)

// DefaultQueue receives every domain event.
const DefaultQueue = "kalm_events"

// Event is the JSON body of a published message.
type Event struct {
	Name       string                 `json:"event"`
	OccurredAt time.Time              `json:"occurredAt"`
	Data       map[string]interface{} `json:"data"`
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     logrus.FieldLogger

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// NewClient connects to RabbitMQ, opens a channel and declares the event queue.
func NewClient(cfg Config, log logrus.FieldLogger) (*Client, error) {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declare(ch, cfg.Queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.WithField("queue", cfg.Queue).Info("RabbitMQ client connected")

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
		log:     log,
	}, nil
}

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", queue, err)
	}
	return nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing RabbitMQ client: %v", errs)
	}
	return nil
}

// Encode builds the message body for an event.
func Encode(name string, data map[string]interface{}, at time.Time) ([]byte, error) {
	body, err := json.Marshal(Event{Name: name, OccurredAt: at.UTC(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", name, err)
	}
	return body, nil
}

// PublishEvent publishes a persistent JSON event to the event queue.
func (c *Client) PublishEvent(ctx context.Context, name string, data map[string]interface{}) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := Encode(name, data, time.Now())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         name,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}

	c.log.WithField("event", name).Debug("event published")
	return nil
}

// Consume delivers events from the queue to handler in a background goroutine.
// Messages are acked on success and requeued once on failure; redelivered
// messages that fail again are dropped so a poison message cannot loop.
func (c *Client) Consume(handler func(Event) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				c.log.WithError(err).WithField("delivery_tag", msg.DeliveryTag).Warn("dropping malformed event")
				_ = msg.Nack(false, false)
				continue
			}
			if err := handler(ev); err != nil {
				c.log.WithError(err).WithField("event", ev.Name).Warn("event handler failed")
				if nackErr := msg.Nack(false, !msg.Redelivered); nackErr != nil {
					c.log.WithError(nackErr).Warn("failed to nack event")
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				c.log.WithError(ackErr).Warn("failed to ack event")
			}
		}
	}()

	return nil
}
