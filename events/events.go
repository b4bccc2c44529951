package events

import (
	"context"

	"stream-moderator/dto"
)

// Sink receives status-change and content-update notifications. Publish is
// called synchronously by the producer and must not block for long.
type Sink interface {
	Publish(ctx context.Context, event dto.Event)
}

type SinkFunc func(ctx context.Context, event dto.Event)

func (f SinkFunc) Publish(ctx context.Context, event dto.Event) {
	f(ctx, event)
}

// Fanout delivers every event to each sink in order.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, event dto.Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(ctx, event)
		}
	}
}

var Discard Sink = SinkFunc(func(context.Context, dto.Event) {})
