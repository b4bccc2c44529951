package config

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	ControlExchange   = "stream_control_exchange"
	ControlQueue      = "stream_control_queue"
	ControlRoutingKey = "stream.control"
	EventsExchange    = "stream_events_exchange"
)

type RabbitMQ struct {
	Host           string
	Port           int
	User           string
	Pass           string
	Kind           string
	ControlWorkers int
}

func (r *RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Pass, r.Host, r.Port)
}

// NewRabbitMQConn dials with exponential backoff and closes the connection
// when ctx is done.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQ) (*amqp.Connection, error) {
	operation := func() (*amqp.Connection, error) {
		conn, err := amqp.Dial(cfg.URL())
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to connect to RabbitMQ, retrying")
			return nil, err
		}
		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(5))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("giving up connecting to RabbitMQ")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("host", cfg.Host).Msg("connected to RabbitMQ")
	go func() {
		<-ctx.Done()
		if err := conn.Close(); err != nil && !conn.IsClosed() {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to close RabbitMQ connection")
		}
		zerolog.Ctx(ctx).Info().Msg("RabbitMQ connection closed")
	}()

	return conn, nil
}
