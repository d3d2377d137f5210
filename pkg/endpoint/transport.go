// Package endpoint defines the transport-facing consumer/producer
// abstractions and the poller that feeds polling-style transports into
// the dispatcher.
package endpoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/getstubd/stubd/pkg/message"
)

// ErrReceiveTimeout is returned by Consumer.Receive when no message
// arrived within the timeout. An idle cycle, not an error.
var ErrReceiveTimeout = errors.New("no message received within timeout")

// ErrClosed is returned by endpoint operations after Close.
var ErrClosed = errors.New("endpoint is closed")

// Consumer pulls inbound messages off a transport.
type Consumer interface {
	// Receive blocks until a message is available or timeout elapses,
	// returning ErrReceiveTimeout for an idle cycle.
	Receive(ctx context.Context, timeout time.Duration) (*message.Message, error)
}

// Producer pushes outbound messages onto a transport.
type Producer interface {
	Send(ctx context.Context, m *message.Message) error
}

// Endpoint is a bidirectional transport endpoint.
type Endpoint interface {
	Consumer
	Producer

	// Name identifies the endpoint in logs.
	Name() string
}

// ChannelEndpoint is an in-memory Endpoint backed by Go channels. It
// backs in-process transports and tests; sent messages are readable via
// Replies.
type ChannelEndpoint struct {
	name    string
	in      chan *message.Message
	out     chan *message.Message
	closeMu sync.Mutex
	closed  chan struct{}
}

// NewChannelEndpoint creates a channel endpoint with the given buffer
// capacity per direction.
func NewChannelEndpoint(name string, capacity int) *ChannelEndpoint {
	if capacity <= 0 {
		capacity = 16
	}
	return &ChannelEndpoint{
		name:   name,
		in:     make(chan *message.Message, capacity),
		out:    make(chan *message.Message, capacity),
		closed: make(chan struct{}),
	}
}

// Name implements Endpoint.
func (e *ChannelEndpoint) Name() string { return e.name }

// Offer enqueues an inbound message as if it arrived from the transport.
func (e *ChannelEndpoint) Offer(m *message.Message) error {
	select {
	case <-e.closed:
		return ErrClosed
	case e.in <- m:
		return nil
	}
}

// Replies exposes the messages sent through the producer side.
func (e *ChannelEndpoint) Replies() <-chan *message.Message { return e.out }

// Receive implements Consumer.
func (e *ChannelEndpoint) Receive(ctx context.Context, timeout time.Duration) (*message.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-e.in:
		return m, nil
	case <-timer.C:
		return nil, ErrReceiveTimeout
	case <-e.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send implements Producer.
func (e *ChannelEndpoint) Send(ctx context.Context, m *message.Message) error {
	select {
	case <-e.closed:
		return ErrClosed
	case e.out <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the endpoint; pending and future operations fail with
// ErrClosed. Safe to call more than once.
func (e *ChannelEndpoint) Close() {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()
	select {
	case <-e.closed:
	default:
		close(e.closed)
	}
}
