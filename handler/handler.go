package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"stream-moderator/constant"
	"stream-moderator/dto"
)

var ErrUnknownAction = errors.New("unknown control action")

// Controller is the supervisor surface reachable through the control queue.
type Controller interface {
	Start(ctx context.Context, id string) dto.ActionResult
	Stop(ctx context.Context, id string) dto.ActionResult
	StartAll(ctx context.Context) []dto.ActionResult
	StopAll(ctx context.Context) []dto.ActionResult
	Reconcile(ctx context.Context) []string
}

type ServiceDependencies struct {
	Supervisor Controller
}

func ControlHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var cmd dto.StreamCommand
	if err := json.Unmarshal(msg.Body, &cmd); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal control command")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("action", string(cmd.Action)).
		Str("stream_id", cmd.StreamID).
		Msg("received control command")

	results, err := Dispatch(ctx, deps.Supervisor, cmd)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.Success {
			zerolog.Ctx(ctx).Warn().Str("stream_id", r.StreamID).Str("reason", r.Message).Msg("control command not applied")
		}
	}
	return nil
}

// Dispatch applies cmd to the supervisor.
func Dispatch(ctx context.Context, c Controller, cmd dto.StreamCommand) ([]dto.ActionResult, error) {
	switch cmd.Action {
	case constant.ControlActionStart, constant.ControlActionStop:
		if cmd.StreamID == "" {
			return nil, fmt.Errorf("%s requires a stream id", cmd.Action)
		}
		if cmd.Action == constant.ControlActionStart {
			return []dto.ActionResult{c.Start(ctx, cmd.StreamID)}, nil
		}
		return []dto.ActionResult{c.Stop(ctx, cmd.StreamID)}, nil
	case constant.ControlActionStartAll:
		return c.StartAll(ctx), nil
	case constant.ControlActionStopAll:
		return c.StopAll(ctx), nil
	case constant.ControlActionReconcile:
		c.Reconcile(ctx)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}
