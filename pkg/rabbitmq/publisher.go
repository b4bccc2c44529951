package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"stream-moderator/config"
	"stream-moderator/dto"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends stream events and control commands. It implements
// events.Sink.
type Publisher struct {
	mu sync.Mutex
	ch channel
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return newPublisher(ch, cfg.Kind)
}

func newPublisher(ch channel, kind string) (*Publisher, error) {
	for _, exchange := range []string{config.ControlExchange, config.EventsExchange} {
		if err := ch.ExchangeDeclare(exchange, kind, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}
	return &Publisher{ch: ch}, nil
}

// EventRoutingKey is the routing key of an event on the events exchange.
func EventRoutingKey(e dto.Event) string {
	return "stream.event." + string(e.Type)
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

// Publish forwards an event; failures are logged and dropped.
func (p *Publisher) Publish(ctx context.Context, e dto.Event) {
	if err := p.publish(ctx, config.EventsExchange, EventRoutingKey(e), e); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", string(e.Type)).Msg("failed to publish event")
	}
}

func (p *Publisher) PublishCommand(ctx context.Context, cmd dto.StreamCommand) error {
	if err := p.publish(ctx, config.ControlExchange, config.ControlRoutingKey, cmd); err != nil {
		return fmt.Errorf("publish %s command: %w", cmd.Action, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
