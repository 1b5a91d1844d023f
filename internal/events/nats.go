package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher emits cart events to NATS subjects named "cart.<event>".
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("njord"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &Publisher{nc: nc}, nil
}

// Emit implements Sink.
func (p *Publisher) Emit(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", e.Name, err)
	}
	if err := p.nc.Publish("cart."+e.Name, data); err != nil {
		return fmt.Errorf("publishing event %s: %w", e.Name, err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
	}
}

var _ Sink = (*Publisher)(nil)
