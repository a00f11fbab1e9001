package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

const (
	// dialTimeout caps one connection attempt, handshake included.
	dialTimeout = 2 * time.Second
	// redialBackoff is how long Publish fails fast after a failed dial.
	redialBackoff = 5 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher waits out
// redialBackoff after a failed dial.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// AMQPPublisher publishes calculation events to RabbitMQ.  The connection is
// dialed lazily on first use and re-dialed after a failure, so a broker that
// is down at startup does not keep the API from serving.  A dial never
// outlives the caller's context or dialTimeout, and after a failed dial the
// broker is not tried again until redialBackoff has passed.
type AMQPPublisher struct {
	url  string
	dial func(ctx context.Context, url string) (*amqp.Connection, error)
	now  func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      channel
	retryAt time.Time
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url, dial: dialBroker, now: time.Now}
}

// dialBroker connects with a timeout bounded by both dialTimeout and the
// deadline of ctx.
func dialBroker(ctx context.Context, url string) (*amqp.Connection, error) {
	timeout := dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		left := time.Until(dl)
		if left <= 0 {
			return nil, ctx.Err()
		}
		timeout = min(timeout, left)
	}
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// Publish sends ev to CalculationsQueue as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev CalculationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked(ctx)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", CalculationsQueue, false, false, pub); err != nil {
		p.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) channelLocked(ctx context.Context) (channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	if p.now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}
	conn, err := p.dial(ctx, p.url)
	if err != nil {
		p.retryAt = p.now().Add(redialBackoff)
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func declare(ch channel) error {
	if _, err := ch.QueueDeclare(CalculationsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.conn, p.ch = nil, nil
	return errors.Join(errs...)
}

// NopPublisher drops every event.  Used when EVENTS_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, CalculationEvent) error { return nil }
