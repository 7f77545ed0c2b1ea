package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	key         string
	msg         amqp.Publishing
	hasDeadline bool
	err         error
}

func (c *recordingChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.key = key
	c.msg = msg
	_, c.hasDeadline = ctx.Deadline()
	return c.err
}

func TestPublishRoundTrip(t *testing.T) {
	ch := &recordingChannel{}
	p := NewPublisher(ch, "scheduling_events", time.Second)

	occurred := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	event := domain.Event{
		ID:             "9b6f7c1e-0000-4000-8000-000000000001",
		Type:           domain.EventBookingReserved,
		OrganizationID: 1,
		ResourceID:     7,
		OccurredAt:     occurred,
		Data:           map[string]any{"bookingID": 12},
	}
	require.NoError(t, p.Publish(context.Background(), event))

	assert.Equal(t, "scheduling_events", ch.key)
	assert.True(t, ch.hasDeadline)
	assert.Equal(t, event.ID, ch.msg.MessageId)
	assert.Equal(t, "booking.reserved", ch.msg.Type)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	msg, err := Decode(ch.msg.Body)
	require.NoError(t, err)
	assert.Equal(t, domain.EventBookingReserved, msg.Type)
	assert.Equal(t, int64(7), msg.ResourceID)
	assert.True(t, occurred.Equal(msg.OccurredAt))
	assert.JSONEq(t, `{"bookingID":12}`, string(msg.Data))
}

func TestPublishError(t *testing.T) {
	boom := errors.New("channel closed")
	p := NewPublisher(&recordingChannel{err: boom}, "q", time.Second)
	assert.ErrorIs(t, p.Publish(context.Background(), domain.Event{Type: domain.EventBookingCancelled}), boom)
}

func TestDecodeRejectsUntyped(t *testing.T) {
	_, err := Decode([]byte(`{"id":"x"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
