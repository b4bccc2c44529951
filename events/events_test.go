package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"stream-moderator/constant"
	"stream-moderator/dto"
)

func TestFanoutDeliversToEverySink(t *testing.T) {
	var first, second []dto.Event
	fan := Fanout{
		SinkFunc(func(_ context.Context, e dto.Event) { first = append(first, e) }),
		nil,
		SinkFunc(func(_ context.Context, e dto.Event) { second = append(second, e) }),
	}

	fan.Publish(context.Background(), dto.Event{Type: constant.EventStreamStatusChange, StreamID: "A1_Zhang"})

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, "A1_Zhang", second[0].StreamID)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard.Publish(context.Background(), dto.Event{})
	})
}
