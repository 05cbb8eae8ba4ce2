package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// channel is the part of *amqp.Channel the broker uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// ErrRelayClosed is returned by Consume when the broker stops delivering
// before the context is done.
var ErrRelayClosed = errors.New("amqp delivery stream closed")

// AMQP relays events between instances through a fanout exchange. Publish
// sends local events out; Consume feeds events of other instances into a
// local Publisher. Each message carries the sender's instance id as AppId.
type AMQP struct {
	mu       sync.Mutex
	pub      channel
	open     func() (channel, error)
	closeFn  func() error
	exchange string
	instance string
	logger   *zap.Logger
}

// DialAMQP connects and declares a durable fanout exchange.
func DialAMQP(url, exchange string, logger *zap.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rabbitmq: %w", err)
	}
	open := func() (channel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open rabbitmq channel: %w", err)
		}
		return ch, nil
	}
	p, err := newAMQP(open, conn.Close, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func newAMQP(open func() (channel, error), closeFn func() error, exchange string, logger *zap.Logger) (*AMQP, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch, err := open()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQP{
		pub:      ch,
		open:     open,
		closeFn:  closeFn,
		exchange: exchange,
		instance: uuid.NewString(),
		logger:   logger,
	}, nil
}

// Instance identifies this broker in the AppId of what it publishes.
func (p *AMQP) Instance() string { return p.instance }

func (p *AMQP) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.pub.PublishWithContext(ctx, p.exchange, string(evt.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		AppId:        p.instance,
		Timestamp:    evt.LastUpdated,
		Type:         string(evt.Type),
		Body:         body,
	})
}

// Consume binds an exclusive auto-delete queue to the exchange and hands
// every event published by another instance to sink. It blocks until ctx
// is done, which returns nil, or the delivery stream closes.
func (p *AMQP) Consume(ctx context.Context, sink Publisher) error {
	ch, err := p.open()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare relay queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", p.exchange, false, nil); err != nil {
		return fmt.Errorf("bind relay queue to %s: %w", p.exchange, err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume relay queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrRelayClosed
			}
			p.relay(ctx, d, sink)
		}
	}
}

func (p *AMQP) relay(ctx context.Context, d amqp.Delivery, sink Publisher) {
	if d.AppId == p.instance {
		return
	}
	var evt Event
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		p.logger.Warn("dropping malformed relayed event",
			zap.String("message_id", d.MessageId),
			zap.String("app_id", d.AppId),
			zap.Error(err))
		return
	}
	if err := sink.Publish(ctx, evt); err != nil {
		p.logger.Warn("failed to deliver relayed event",
			zap.String("chat_id", evt.ChatID),
			zap.String("type", string(evt.Type)),
			zap.Error(err))
	}
}

func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.pub.Close()
	if p.closeFn != nil {
		err = errors.Join(err, p.closeFn())
	}
	return err
}
