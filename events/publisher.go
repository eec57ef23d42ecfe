// Package events publishes file change notifications produced by a rewrite run.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when no subject prefix is configured.
const DefaultSubjectPrefix = "testtag"

// ChangeEvent describes one rewritten (or, in dry-run, rewritable) file.
type ChangeEvent struct {
	RunID       string         `json:"run_id"`
	Mode        string         `json:"mode"`
	Path        string         `json:"path"`
	Tags        map[string]int `json:"tags"`
	ImportAdded bool           `json:"import_added"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Publisher delivers change events.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	Close() error
}

// Subject returns the subject change events for mode are published on.
func Subject(prefix, mode string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + ".change." + mode
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ChangeEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes change events as JSON to NATS core subjects.
type NATSPublisher struct {
	nc     conn
	prefix string

	mu     sync.Mutex
	closed bool
}

// Connect dials the NATS server at url.
func Connect(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("testtag"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return newNATSPublisher(nc, prefix), nil
}

func newNATSPublisher(nc conn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Publish implements Publisher.
// NATS Publish does not take a context, so ctx is only checked up front.
func (p *NATSPublisher) Publish(ctx context.Context, ev ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nats.ErrConnectionClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	subject := Subject(p.prefix, ev.Mode)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection. It is safe to call
// more than once.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.nc.Drain()
}
