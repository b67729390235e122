package messaging

import (
	"context"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "entity_k_b_a_data_written", QueueName("k_b_a_data"))
	assert.Equal(t, "entity_k_b_a_data_written_dlq", DeadLetterQueueName("k_b_a_data"))
}

func TestAwaitConfirm(t *testing.T) {
	for _, tc := range []struct {
		name     string
		confirms []amqp.Confirmation
		close    bool
		wantErr  string
	}{
		{
			name:     "ack",
			confirms: []amqp.Confirmation{{DeliveryTag: 3, Ack: true}},
		},
		{
			name: "stale confirmations are skipped",
			confirms: []amqp.Confirmation{
				{DeliveryTag: 1, Ack: false},
				{DeliveryTag: 2, Ack: true},
				{DeliveryTag: 3, Ack: true},
			},
		},
		{
			name:     "nack",
			confirms: []amqp.Confirmation{{DeliveryTag: 1, Ack: true}, {DeliveryTag: 3, Ack: false}},
			wantErr:  "broker rejected event",
		},
		{
			name:     "closed",
			confirms: []amqp.Confirmation{{DeliveryTag: 2, Ack: true}},
			close:    true,
			wantErr:  "channel closed",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan amqp.Confirmation, len(tc.confirms))
			for _, c := range tc.confirms {
				ch <- c
			}
			if tc.close {
				close(ch)
			}

			err := awaitConfirm(context.Background(), ch, 3)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestAwaitConfirmHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := awaitConfirm(ctx, make(chan amqp.Confirmation), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
