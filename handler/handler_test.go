package handler

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stream-moderator/dto"
)

type fakeController struct {
	calls []string
}

func (f *fakeController) Start(_ context.Context, id string) dto.ActionResult {
	f.calls = append(f.calls, "start:"+id)
	return dto.ActionResult{StreamID: id, Success: true}
}

func (f *fakeController) Stop(_ context.Context, id string) dto.ActionResult {
	f.calls = append(f.calls, "stop:"+id)
	return dto.ActionResult{StreamID: id, Success: false, Message: "stream not found"}
}

func (f *fakeController) StartAll(context.Context) []dto.ActionResult {
	f.calls = append(f.calls, "start_all")
	return nil
}

func (f *fakeController) StopAll(context.Context) []dto.ActionResult {
	f.calls = append(f.calls, "stop_all")
	return nil
}

func (f *fakeController) Reconcile(context.Context) []string {
	f.calls = append(f.calls, "reconcile")
	return nil
}

func TestControlHandlerDispatches(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"action":"start","streamId":"A1_Zhang"}`, "start:A1_Zhang"},
		{`{"action":"stop","streamId":"A1_Zhang"}`, "stop:A1_Zhang"},
		{`{"action":"start_all"}`, "start_all"},
		{`{"action":"stop_all"}`, "stop_all"},
		{`{"action":"reconcile"}`, "reconcile"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			c := &fakeController{}
			err := ControlHandler(context.Background(), amqp.Delivery{Body: []byte(tt.body)}, ServiceDependencies{Supervisor: c})
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, c.calls)
		})
	}
}

func TestControlHandlerRejectsBadCommands(t *testing.T) {
	c := &fakeController{}
	deps := ServiceDependencies{Supervisor: c}
	ctx := context.Background()

	assert.Error(t, ControlHandler(ctx, amqp.Delivery{Body: []byte(`not json`)}, deps))
	assert.ErrorIs(t, ControlHandler(ctx, amqp.Delivery{Body: []byte(`{"action":"delete"}`)}, deps), ErrUnknownAction)
	assert.Error(t, ControlHandler(ctx, amqp.Delivery{Body: []byte(`{"action":"start"}`)}, deps))
	assert.Empty(t, c.calls)
}
