// internal/messaging/rabbit.go
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/streadway/amqp"

	"kba-plugin/internal/dal"
	"kba-plugin/internal/metrics"
)

// QueueName is the queue entity-written events of one entity go to.
func QueueName(entityName string) string {
	return fmt.Sprintf("entity_%s_written", entityName)
}

// DeadLetterQueueName receives the events a consumer rejected.
func DeadLetterQueueName(entityName string) string {
	return QueueName(entityName) + "_dlq"
}

// RabbitClient publishes entity-written events to RabbitMQ with publisher
// confirms: PublishWritten returns once the broker has acked the message.
type RabbitClient struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
	URL      string

	// mu serializes publishing so confirmations arrive in delivery-tag order.
	mu       sync.Mutex
	seq      uint64
	declared map[string]bool
}

var _ dal.EventPublisher = (*RabbitClient)(nil)

func NewRabbitClient(url string) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &RabbitClient{
		conn:     conn,
		channel:  ch,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		URL:      url,
		declared: make(map[string]bool),
	}, nil
}

func (r *RabbitClient) GetConnection() *amqp.Connection {
	return r.conn
}

// DeclareQueue creates the durable event queue of an entity and its DLQ.
func (r *RabbitClient) DeclareQueue(entityName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.declare(entityName)
}

func (r *RabbitClient) declare(entityName string) error {
	if r.declared[entityName] {
		return nil
	}

	dlq := DeadLetterQueueName(entityName)
	if _, err := r.channel.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlq, err)
	}

	queue := QueueName(entityName)
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}
	if _, err := r.channel.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}

	r.declared[entityName] = true
	log.Printf("[Rabbit] Declared %s with dead-letter queue %s", queue, dlq)
	return nil
}

// PublishWritten sends the event as persistent JSON to the entity's queue and
// waits for the broker's confirmation or ctx.
func (r *RabbitClient) PublishWritten(ctx context.Context, event *dal.EntityWrittenEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.EntityName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.declare(event.EntityName); err != nil {
		return err
	}

	queue := QueueName(event.EntityName)
	err = r.channel.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(event.Operation),
		Timestamp:    event.WrittenAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queue, err)
	}
	r.seq++

	if err := awaitConfirm(ctx, r.confirms, r.seq); err != nil {
		return fmt.Errorf("queue %s: %w", queue, err)
	}
	return nil
}

// awaitConfirm waits for the confirmation of delivery tag seq. Confirmations
// for earlier tags belong to publishes whose caller gave up and are skipped.
func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, seq uint64) error {
	for {
		select {
		case confirm, ok := <-confirms:
			if !ok {
				return errors.New("channel closed before the broker confirmed the event")
			}
			if confirm.DeliveryTag < seq {
				continue
			}
			if !confirm.Ack {
				return errors.New("broker rejected event")
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for confirmation: %w", ctx.Err())
		}
	}
}

// UpdateQueueDepth refreshes the queue depth gauge of an entity.
func (r *RabbitClient) UpdateQueueDepth(entityName string) {
	r.mu.Lock()
	q, err := r.channel.QueueInspect(QueueName(entityName))
	r.mu.Unlock()
	if err != nil {
		log.Printf("[Rabbit] Failed to inspect event queue for %s: %v", entityName, err)
		return
	}
	metrics.EventQueueDepth.WithLabelValues(entityName).Set(float64(q.Messages))
}

// Close closes the channel, then the connection.
func (r *RabbitClient) Close() error {
	return errors.Join(r.channel.Close(), r.conn.Close())
}
