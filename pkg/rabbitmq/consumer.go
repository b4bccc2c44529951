package rabbitmq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"stream-moderator/config"
)

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

// Binding names the exchange, queue and routing key a consumer reads from.
type Binding struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

func ControlBinding() Binding {
	return Binding{
		Exchange:   config.ControlExchange,
		Queue:      config.ControlQueue,
		RoutingKey: config.ControlRoutingKey,
	}
}

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	binding    Binding
	handler    func(ctx context.Context, msg amqp.Delivery, dependencies T) error
	numWorkers int
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	logger := zerolog.Ctx(ctx).With().Str("queue", c.binding.Queue).Logger()

	err = ch.ExchangeDeclare(c.binding.Exchange, c.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to declare exchange")
		return err
	}

	q, err := ch.QueueDeclare(c.binding.Queue, true, false, false, false, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, c.binding.RoutingKey, c.binding.Exchange, false, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to bind queue")
		return err
	}

	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to consume queue")
		return err
	}

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				if err := c.handler(ctx, msg, dependencies); err != nil {
					// malformed commands are dropped, never requeued
					logger.Error().Err(err).Int("worker_id", workerId).Msg("failed to handle message")
				}
				if err := msg.Ack(false); err != nil {
					logger.Error().Err(err).Msg("failed to acknowledge message")
				}
			}
		}(i)
	}

	logger.Info().Int("workers", c.numWorkers).Msg("consuming control commands")
	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}
			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	binding Binding,
	numWorkers int,
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error,
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		binding:    binding,
		handler:    handler,
		numWorkers: numWorkers,
	}
}
