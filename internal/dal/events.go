// internal/dal/events.go
package dal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WriteOperation names the kind of write that produced an event.
type WriteOperation string

const (
	OperationInsert WriteOperation = "insert"
	OperationUpdate WriteOperation = "update"
	OperationUpsert WriteOperation = "upsert"
	OperationDelete WriteOperation = "delete"
)

// EntityWrittenEvent is published after a repository write has committed.
type EntityWrittenEvent struct {
	EntityName string         `json:"entity"`
	Operation  WriteOperation `json:"operation"`
	IDs        []uuid.UUID    `json:"ids"`
	Payloads   []Payload      `json:"payloads,omitempty"`
	WrittenAt  time.Time      `json:"written_at"`
}

// EventPublisher delivers entity-written events, e.g. to a message broker.
type EventPublisher interface {
	PublishWritten(ctx context.Context, event *EntityWrittenEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishWritten(context.Context, *EntityWrittenEvent) error {
	return nil
}
