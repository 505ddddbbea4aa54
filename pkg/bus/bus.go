package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Bus wraps a NATS JetStream connection for publishing deployment events.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a Bus connected to the provided NATS endpoint.
func New(url string, opts ...nats.Option) (*Bus, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	opts = append([]nats.Option{nats.Name("uxy")}, opts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Bus{conn: nc, js: js}, nil
}

// EnsureStream creates the named stream over subjects unless it already exists.
func (b *Bus) EnsureStream(name string, subjects ...string) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if _, err := b.js.StreamInfo(name); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}

	if _, err := b.js.AddStream(&nats.StreamConfig{Name: name, Subjects: subjects}); err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	return nil
}

// Close shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Identified is implemented by payloads that carry a stable id. The id is
// sent as the JetStream message id so a retried publish is deduplicated.
type Identified interface {
	MessageID() string
}

// Publish encodes v as JSON and publishes it to the given subject.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errors.New("nil bus")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subj, err)
	}

	opts := []nats.PubOpt{nats.Context(ctx)}
	if id, ok := v.(Identified); ok && id.MessageID() != "" {
		opts = append(opts, nats.MsgId(id.MessageID()))
	}
	if _, err := b.js.Publish(subj, data, opts...); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	return nil
}
