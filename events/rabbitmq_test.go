package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	failures  int
	published []amqp.Publishing
	keys      []string
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _ string, key string, _, _ bool, msg amqp.Publishing) error {
	if c.failures > 0 {
		c.failures--
		return errors.New("channel closed")
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func newTestPublisher(ch channel, retries int) (*RabbitPublisher, *[]time.Duration) {
	var slept []time.Duration
	p := &RabbitPublisher{
		cfg:    RabbitConfig{Exchange: "bookings", PublishRetries: retries, PublishDelay: 10 * time.Millisecond},
		ch:     ch,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		sleep:  func(d time.Duration) { slept = append(slept, d) },
	}
	return p, &slept
}

func TestRabbitPublisher_RetriesWithBackoff(t *testing.T) {
	ch := &fakeChannel{failures: 2}
	p, slept := newTestPublisher(ch, 3)

	evt := New(JobCanceled, 42, time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC))
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, ch.published, 1)
	assert.Equal(t, []string{"job.canceled"}, ch.keys)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *slept)

	msg := ch.published[0]
	assert.Equal(t, evt.ID, msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, int64(42), decoded.JobID)
	assert.Equal(t, JobCanceled, decoded.Type)
}

func TestRabbitPublisher_GivesUp(t *testing.T) {
	ch := &fakeChannel{failures: 5}
	p, _ := newTestPublisher(ch, 1)

	err := p.Publish(context.Background(), New(SessionEnded, 1, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events: publish session.ended")
	assert.Empty(t, ch.published)
}

func TestRabbitPublisher_NotConnected(t *testing.T) {
	var p *RabbitPublisher
	assert.ErrorIs(t, p.Publish(context.Background(), New(JobCreated, 1, time.Now())), errNotConnected)
}

func TestNewEventHasID(t *testing.T) {
	a := New(JobCreated, 1, time.Now())
	b := New(JobCreated, 1, time.Now())
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NoError(t, NewLogBus(slog.New(slog.NewTextHandler(io.Discard, nil))).Publish(context.Background(), a))
}
