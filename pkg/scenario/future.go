package scenario

import (
	"context"
	"sync"
	"time"

	"github.com/getstubd/stubd/pkg/message"
)

// ReplyFuture is a single-assignment container delivering a scenario's
// eventual reply to the protocol thread that is blocked waiting for it.
// It is bound 1:1 to one inbound message, completed exactly once by the
// script side, and read at most once by the waiting side.
type ReplyFuture struct {
	once  sync.Once
	done  chan struct{}
	reply *message.Message
}

// NewReplyFuture creates an unresolved future.
func NewReplyFuture() *ReplyFuture {
	return &ReplyFuture{done: make(chan struct{})}
}

// Complete resolves the future with the given message. Returns true if
// this call resolved it, false if it was already resolved; the second
// value is never overwritten.
func (f *ReplyFuture) Complete(m *message.Message) bool {
	completed := false
	f.once.Do(func() {
		f.reply = m
		close(f.done)
		completed = true
	})
	return completed
}

// Completed reports whether the future has been resolved.
func (f *ReplyFuture) Completed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future resolves, the timeout elapses, or ctx is
// cancelled.
//
// On timeout it returns ErrReplyTimeout; callers decide whether that is
// an error (for the dispatcher it is a legitimate "no reply"). Context
// cancellation is propagated as-is and must be treated as a fatal abort
// of the wait, never swallowed.
func (f *ReplyFuture) Await(ctx context.Context, timeout time.Duration) (*message.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.reply, nil
	case <-timer.C:
		return nil, ErrReplyTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
