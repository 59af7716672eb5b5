package eventsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/gladschool/portal/core"
)

const publishTimeout = 5 * time.Second

// channel is the part of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPPublisher sends domain events to a durable topic exchange, routed by event name.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	ch       channel
	exchange string
	appID    string
}

var _ core.EventPublisher = (*AMQPPublisher)(nil)

func NewAMQPPublisher(url, exchange, appID string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dialing AMQP")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening AMQP channel")
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, appID: appID}, nil
}

// Publish sends each event as a persistent JSON message. It stops at the first failure.
func (p *AMQPPublisher) Publish(ctx context.Context, events ...core.Event) error {
	for _, e := range events {
		body, err := json.Marshal(e)
		if err != nil {
			return errors.Wrapf(err, "encoding event %s", e.Name)
		}

		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err = p.ch.PublishWithContext(
			pubCtx,
			p.exchange, // exchange
			e.Name,     // routing key
			false,      // mandatory
			false,      // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				Timestamp:    e.OccurredAt,
				AppId:        p.appID,
				Type:         e.Name,
				Body:         body,
			},
		)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "publishing event %s", e.Name)
		}
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// New connects to the configured broker, or drops events when no broker URL is set.
func New(conf *core.Config) (core.EventPublisher, func() error, error) {
	if conf.AMQP.URL == "" {
		return core.NopPublisher(), func() error { return nil }, nil
	}
	p, err := NewAMQPPublisher(conf.AMQP.URL, conf.AMQP.Exchange, conf.AppName)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
