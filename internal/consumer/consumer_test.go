package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kba-plugin/internal/dal"
)

type fakeAcknowledger struct {
	acked, rejected int
	requeued        bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(uint64, bool, bool) error {
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.rejected++
	a.requeued = requeue
	return nil
}

func eventBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(&dal.EntityWrittenEvent{
		EntityName: "k_b_a_data",
		Operation:  dal.OperationInsert,
		IDs:        []uuid.UUID{uuid.New()},
		Payloads:   []dal.Payload{{"name": "kba"}},
		WrittenAt:  time.Date(2024, 7, 27, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return body
}

func TestDecode(t *testing.T) {
	event, err := Decode(eventBody(t))
	require.NoError(t, err)
	assert.Equal(t, "k_b_a_data", event.EntityName)
	assert.Equal(t, dal.OperationInsert, event.Operation)
	assert.Len(t, event.IDs, 1)
	assert.Equal(t, "kba", event.Payloads[0]["name"])

	_, err = Decode([]byte(`{"operation":"insert"}`))
	assert.ErrorContains(t, err, "missing entity name")

	_, err = Decode([]byte(`{`))
	assert.ErrorContains(t, err, "decode event")
}

func TestHandleAcksProcessedEvents(t *testing.T) {
	ack := &fakeAcknowledger{}
	var got *dal.EntityWrittenEvent
	c := New("k_b_a_data", func(e *dal.EntityWrittenEvent) error {
		got = e
		return nil
	})

	c.handle(amqp.Delivery{Acknowledger: ack, Body: eventBody(t)})

	require.NotNil(t, got)
	assert.Equal(t, 1, ack.acked)
	assert.Zero(t, ack.rejected)
}

func TestHandleDeadLettersFailures(t *testing.T) {
	for name, tc := range map[string]struct {
		body    []byte
		handler EventHandlerFunc
	}{
		"undecodable": {
			body:    []byte("not json"),
			handler: func(*dal.EntityWrittenEvent) error { return nil },
		},
		"handler error": {
			body:    eventBody(t),
			handler: func(*dal.EntityWrittenEvent) error { return errors.New("boom") },
		},
		"wrong entity": {
			body:    []byte(`{"entity":"product","operation":"insert"}`),
			handler: func(*dal.EntityWrittenEvent) error { return nil },
		},
	} {
		t.Run(name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			c := New("k_b_a_data", tc.handler)

			c.handle(amqp.Delivery{Acknowledger: ack, Body: tc.body})

			assert.Zero(t, ack.acked)
			assert.Equal(t, 1, ack.rejected)
			assert.False(t, ack.requeued)
		})
	}
}

func TestConsumeLoopEndsWhenDeliveriesClose(t *testing.T) {
	ack := &fakeAcknowledger{}
	handled := 0
	c := New("k_b_a_data", func(*dal.EntityWrittenEvent) error {
		handled++
		return nil
	}, WithPrefetch(2))
	assert.Equal(t, 2, c.prefetch)

	msgs := make(chan amqp.Delivery, 2)
	msgs <- amqp.Delivery{Acknowledger: ack, Body: eventBody(t)}
	msgs <- amqp.Delivery{Acknowledger: ack, Body: eventBody(t)}
	close(msgs)

	go c.loop(context.Background(), msgs)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after the delivery channel closed")
	}
	assert.Equal(t, 2, handled)
	assert.Equal(t, 2, ack.acked)
}

func TestConsumeLoopEndsOnCancel(t *testing.T) {
	c := New("k_b_a_data", func(*dal.EntityWrittenEvent) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())

	go c.loop(ctx, make(chan amqp.Delivery))
	cancel()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

func TestStopBeforeStart(t *testing.T) {
	assert.Error(t, New("k_b_a_data", nil).Stop())
}
