package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stream-moderator/config"
	"stream-moderator/constant"
	"stream-moderator/dto"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	sent       []published
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared = append(f.declared, name)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, published{exchange, key, msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisherDeclaresExchanges(t *testing.T) {
	ch := &fakeChannel{}
	_, err := newPublisher(ch, "direct")
	require.NoError(t, err)
	assert.Equal(t, []string{config.ControlExchange, config.EventsExchange}, ch.declared)

	failing := &fakeChannel{declareErr: assert.AnError}
	_, err = newPublisher(failing, "direct")
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, failing.closed)
}

func TestPublishEvent(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "direct")
	require.NoError(t, err)

	p.Publish(context.Background(), dto.Event{
		Type:     constant.EventStreamStatusChange,
		StreamID: "A1_Zhang",
		Status:   constant.StreamStatusError,
	})

	require.Len(t, ch.sent, 1)
	assert.Equal(t, config.EventsExchange, ch.sent[0].exchange)
	assert.Equal(t, "stream.event.stream_status_change", ch.sent[0].key)
	var got dto.Event
	require.NoError(t, json.Unmarshal(ch.sent[0].msg.Body, &got))
	assert.Equal(t, "A1_Zhang", got.StreamID)
	assert.Equal(t, constant.StreamStatusError, got.Status)
}

func TestPublishEventSwallowsErrors(t *testing.T) {
	ch := &fakeChannel{}
	p, _ := newPublisher(ch, "direct")
	ch.publishErr = assert.AnError

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), dto.Event{Type: constant.EventContentUpdate})
	})
}

func TestPublishCommand(t *testing.T) {
	ch := &fakeChannel{}
	p, _ := newPublisher(ch, "direct")

	require.NoError(t, p.PublishCommand(context.Background(), dto.StreamCommand{Action: constant.ControlActionStart, StreamID: "A1_Zhang"}))

	require.Len(t, ch.sent, 1)
	assert.Equal(t, config.ControlExchange, ch.sent[0].exchange)
	assert.Equal(t, config.ControlRoutingKey, ch.sent[0].key)
	assert.JSONEq(t, `{"action":"start","streamId":"A1_Zhang"}`, string(ch.sent[0].msg.Body))

	ch.publishErr = assert.AnError
	assert.ErrorIs(t, p.PublishCommand(context.Background(), dto.StreamCommand{Action: constant.ControlActionStopAll}), assert.AnError)
}
