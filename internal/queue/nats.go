// Package queue wraps a NATS connection for the async alert-dispatch
// fan-out (the daily scheduler publishes one message per org-channel
// pair rather than dispatching inline, the same connection-manager shape
// the teacher used for its snapshot/job subjects).
package queue

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Manager handles a NATS connection and its reconnect lifecycle.
type Manager struct {
	conn *nats.Conn
	url  string
}

// NewManager connects to NATS, logging connection lifecycle events via
// the given logger rather than stdlib log.
func NewManager(natsURL string, log zerolog.Logger) (*Manager, error) {
	options := []nats.Option{
		nats.Name("inventory-chat-core"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("nats connection closed")
		}),
	}

	conn, err := nats.Connect(natsURL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().Str("url", natsURL).Msg("connected to nats")
	return &Manager{conn: conn, url: natsURL}, nil
}

// Close closes the NATS connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}

// Conn returns the underlying NATS connection.
func (m *Manager) Conn() *nats.Conn { return m.conn }

// Publish publishes a message to a subject.
func (m *Manager) Publish(subject string, data []byte) error {
	return m.conn.Publish(subject, data)
}

// Subscribe subscribes to a subject with a handler.
func (m *Manager) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.Subscribe(subject, handler)
}

// QueueSubscribe creates a load-balanced queue subscriber.
func (m *Manager) QueueSubscribe(subject, queue string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.QueueSubscribe(subject, queue, handler)
}

// Alert-dispatch subject patterns. The daily scheduler (internal/alerts)
// publishes one message per org+channel to fan out delivery work instead
// of blocking the scheduler goroutine on SMTP/webhook round trips.

const (
	// SubjectAlertDispatch is the wildcard subscribed to by dispatch
	// workers: alerts.dispatch.{orgID}.{channel}.
	SubjectAlertDispatch   = "alerts.dispatch.>"
	// QueueGroupAlertDispatch load-balances dispatch work across
	// however many worker processes are running.
	QueueGroupAlertDispatch = "alert-dispatch-workers"
)

// AlertDispatchSubject returns the publish subject for one org+channel
// dispatch: alerts.dispatch.{orgID}.{channel}.
func AlertDispatchSubject(orgID, channel string) string {
	return fmt.Sprintf("alerts.dispatch.%s.%s", orgID, channel)
}
