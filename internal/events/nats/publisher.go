package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

type Publisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewPublisher(url string, timeout time.Duration, log *slog.Logger) (*Publisher, error) {
	const op = "events.nats.NewPublisher"

	conn, err := nats.Connect(url,
		nats.Name("rental-service"),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Publisher{conn: conn, log: log}, nil
}

func (p *Publisher) Publish(_ context.Context, subject string, data any) error {
	const op = "events.nats.Publish"

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Debug("event published", slog.String("subject", subject), slog.Int("bytes", len(payload)))

	return nil
}

// Close flushes buffered messages before closing the connection.
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}

	err := p.conn.Drain()
	if err != nil {
		p.conn.Close()
	}

	return err
}
