// internal/consumer/consumer.go
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/streadway/amqp"

	"kba-plugin/internal/dal"
	"kba-plugin/internal/messaging"
	"kba-plugin/internal/metrics"
)

// DefaultPrefetch bounds the unacknowledged deliveries held by one consumer.
const DefaultPrefetch = 16

// EventHandlerFunc handles one decoded event. A non-nil error dead-letters it.
type EventHandlerFunc func(event *dal.EntityWrittenEvent) error

// Consumer delivers the entity-written events of one entity to a handler.
type Consumer struct {
	entity   string
	queue    string
	tag      string
	prefetch int
	handler  EventHandlerFunc

	channel *amqp.Channel
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Consumer)

// WithPrefetch overrides DefaultPrefetch.
func WithPrefetch(n int) Option {
	return func(c *Consumer) { c.prefetch = n }
}

func New(entityName string, handler EventHandlerFunc, opts ...Option) *Consumer {
	c := &Consumer{
		entity:   entityName,
		queue:    messaging.QueueName(entityName),
		tag:      "consumer-" + entityName,
		prefetch: DefaultPrefetch,
		handler:  handler,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens a channel on conn and consumes in the background until ctx is
// done or Stop is called. The queue must already be declared.
func (c *Consumer) Start(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("entity %s: failed to open channel: %w", c.entity, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("entity %s: failed to set prefetch: %w", c.entity, err)
	}

	msgs, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("entity %s: failed to start consuming: %w", c.entity, err)
	}

	c.channel = ch
	ctx, c.cancel = context.WithCancel(ctx)
	go c.loop(ctx, msgs)

	log.Printf("[Consumer] Consuming %s (prefetch %d)", c.queue, c.prefetch)
	return nil
}

func (c *Consumer) loop(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer close(c.done)

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				log.Printf("[Consumer] Delivery channel of %s closed", c.queue)
				return
			}
			c.handle(msg)

		case <-ctx.Done():
			if c.channel != nil {
				_ = c.channel.Cancel(c.tag, false)
			}
			return
		}
	}
}

func (c *Consumer) handle(msg amqp.Delivery) {
	event, err := Decode(msg.Body)
	if err == nil && event.EntityName != c.entity {
		err = fmt.Errorf("event for %s on the %s queue", event.EntityName, c.queue)
	}
	if err == nil {
		err = c.handler(event)
	}
	if err != nil {
		log.Printf("[Consumer] Dead-lettering delivery %d of %s: %v", msg.DeliveryTag, c.queue, err)
		metrics.EventsConsumed.WithLabelValues(c.entity, "rejected").Inc()
		_ = msg.Reject(false)
		return
	}
	metrics.EventsConsumed.WithLabelValues(c.entity, "acked").Inc()
	_ = msg.Ack(false)
}

// Done is closed once the consumer has stopped.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// Stop cancels consumption, waits for the loop to exit and closes the channel.
func (c *Consumer) Stop() error {
	if c.cancel == nil {
		return errors.New("consumer not started")
	}
	c.cancel()
	<-c.done
	return c.channel.Close()
}

// Decode parses an event body published by messaging.RabbitClient.
func Decode(body []byte) (*dal.EntityWrittenEvent, error) {
	var event dal.EntityWrittenEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.EntityName == "" {
		return nil, errors.New("decode event: missing entity name")
	}
	return &event, nil
}
