package events

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mohamedthameursassi/saferoute/metrics"
)

type NATSConfig struct {
	URL            string
	Subject        string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// NATSPublisher publishes route events on a single subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	options := []nats.Option{
		nats.Name("saferoute"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[events] NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[events] NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("[events] NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: nc, subject: cfg.Subject}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, ev RouteEvent) error {
	data, err := ev.payload()
	if err != nil {
		return fmt.Errorf("marshaling route event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		metrics.IncPublishError("nats")
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
