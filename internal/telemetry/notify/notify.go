// Package notify delivers security alerts to the people and systems that act on them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trustcore/internal/audit/domain"
)

// LogNotifier escalates critical alerts to the process log at error level.
// The engine already logs every alert at warn.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier returns a LogNotifier writing to l, or to the global logger
// when l is nil.
func NewLogNotifier(l *zerolog.Logger) *LogNotifier {
	if l == nil {
		g := log.With().Str("component", "alerts").Logger()
		l = &g
	}
	return &LogNotifier{log: *l}
}

func (n *LogNotifier) Notify(ctx context.Context, a *domain.Alert) error {
	if a.Severity != domain.SeverityCritical {
		return nil
	}
	n.log.Error().
		Str("alert_id", a.ID).
		Str("alert_type", string(a.Type)).
		Interface("details", a.Details).
		Msg("CRITICAL ALERT")
	return nil
}

// publisher is the subset of *nats.Conn used by NATSNotifier.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

// NATSNotifier publishes each alert as JSON on a NATS subject. The subject is
// suffixed with the alert severity, e.g. security.alerts.critical.
type NATSNotifier struct {
	conn    publisher
	nc      *nats.Conn
	subject string
}

// DialNATS connects to url and returns a notifier publishing under subject.
func DialNATS(url, subject string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("trustcore-alerts"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	n := newNATSNotifier(nc, subject)
	n.nc = nc
	return n, nil
}

func newNATSNotifier(p publisher, subject string) *NATSNotifier {
	return &NATSNotifier{conn: p, subject: subject}
}

// Subject returns the subject an alert of severity s is published on.
func (n *NATSNotifier) Subject(s domain.Severity) string {
	return n.subject + "." + string(s)
}

func (n *NATSNotifier) Notify(ctx context.Context, a *domain.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.Subject(a.Severity), data); err != nil {
		return err
	}
	if a.Severity == domain.SeverityCritical {
		timeout := time.Second
		if dl, ok := ctx.Deadline(); ok {
			timeout = time.Until(dl)
		}
		return n.conn.FlushTimeout(timeout)
	}
	return nil
}

// Close drains and closes the connection opened by DialNATS.
func (n *NATSNotifier) Close() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}
