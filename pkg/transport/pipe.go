package transport

import (
	"bytes"
	"context"
	"sync"
)

// Pipe is an in-memory transport: what is sent on one end is received on
// the other. The snapshot command and the tests use it in place of Kafka.
type Pipe struct {
	hostname string
	session  string

	ch        chan Message
	closeOnce sync.Once
	done      chan struct{}

	mu        sync.Mutex
	committed int
}

// NewPipe returns a pipe holding up to size unread messages.
func NewPipe(size int, hostname, session string) *Pipe {
	return &Pipe{
		hostname: hostname,
		session:  session,
		ch:       make(chan Message, size),
		done:     make(chan struct{}),
	}
}

// Send copies payload into the pipe, blocking while it is full.
func (p *Pipe) Send(ctx context.Context, payload []byte) error {
	msg := Message{Payload: bytes.Clone(payload), Hostname: p.hostname, Session: p.session}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.ch <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits for one message and returns it together with any others
// already queued. Messages sent before Close are still delivered.
func (p *Pipe) Receive(ctx context.Context) ([]Message, error) {
	var first Message
	select {
	case first = <-p.ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		select {
		case first = <-p.ch:
		default:
			return nil, ErrClosed
		}
	}

	msgs := []Message{first}
	for {
		select {
		case m := <-p.ch:
			msgs = append(msgs, m)
		default:
			return msgs, nil
		}
	}
}

func (p *Pipe) Commit(_ context.Context, msgs []Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.committed += len(msgs)
	return nil
}

// Committed returns how many messages have been committed so far.
func (p *Pipe) Committed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committed
}

func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
