// Package broker manages the AMQP connection shared by the Node Consumer,
// Node Publisher, and Persistence Worker. It lazily declares the
// connection, channel, and exchange the teacher's cache layer used for
// its lazy Redis/Memory fallback, generalized here to AMQP's own
// connection lifecycle, and reconnects with exponential backoff on loss.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatmesh/internal/config"
	"chatmesh/internal/errors"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Manager owns one lazily-dialed AMQP connection and hands out a fresh
// channel per Channel() call; it keeps no channels of its own. Access to
// the connection is guarded by mu, since Publish and Consume are both
// called from multiple goroutines.
type Manager struct {
	cfg config.BrokerConfig

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewManager(cfg config.BrokerConfig) *Manager {
	return &Manager{cfg: cfg}
}

func (m *Manager) dial() (*amqp.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && !m.conn.IsClosed() {
		return m.conn, nil
	}

	url := fmt.Sprintf("amqp://%s:%d/", m.cfg.Host, m.cfg.Port)
	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			m.conn = conn
			return conn, nil
		}
		lastErr = err
		slog.Warn("broker dial failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, errors.Wrap(lastErr, errors.ErrBrokerError)
}

// Channel opens a fresh AMQP channel on the shared connection, dialing or
// redialing as needed. Each caller owns its own channel; channels are not
// shared across goroutines.
func (m *Manager) Channel() (*amqp.Channel, error) {
	conn, err := m.dial()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		// The connection may have died between dial() and Channel();
		// drop it so the next call redials.
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		return nil, errors.Wrap(err, errors.ErrBrokerError)
	}
	return ch, nil
}

// DeclareDirectExchange declares a durable direct exchange.
func DeclareDirectExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(name, amqp.ExchangeDirect, true, false, false, false, nil)
}

// DeclareDurableQueue declares and binds a durable queue to a direct
// exchange on the given routing key.
func DeclareDurableQueue(ch *amqp.Channel, exchange, queue, routingKey string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(queue, routingKey, exchange, false, nil)
}

// Publish sends a persistent message to exchange/routingKey.
func (m *Manager) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	ch, err := m.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}); err != nil {
		return errors.Wrap(err, errors.ErrBrokerError)
	}
	return nil
}

// Close closes the underlying connection, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil && !m.conn.IsClosed() {
		return m.conn.Close()
	}
	return nil
}
