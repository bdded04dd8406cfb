// Package transport moves packed record batches from nodes to collectors.
// It does no framing of its own: a message payload is the output of
// counters.PackBatch.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by a receiver whose transport has shut down.
var ErrClosed = errors.New("transport closed")

// Message is one received batch.
type Message struct {
	Payload  []byte
	Hostname string
	Session  string

	// ack marks the message as stored, nil when the transport has nothing
	// to acknowledge.
	ack func()
}

// Sender ships packed batches.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Receiver hands out packed batches.
type Receiver interface {
	// Receive blocks until at least one message is available, the context
	// ends or the transport is closed.
	Receive(ctx context.Context) ([]Message, error)
	// Commit acknowledges messages whose records reached the sinks.
	Commit(ctx context.Context, msgs []Message) error
	Close() error
}
