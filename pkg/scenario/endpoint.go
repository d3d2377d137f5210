package scenario

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
)

// MessageRecorder is the audit-trail hook invoked for every message that
// passes through an endpoint. Attachment is idempotent per transport
// message id, so replays do not create duplicate trail entries.
type MessageRecorder interface {
	RecordMessage(executionID int64, m *message.Message) error
}

// Endpoint is the per-run rendezvous point between the protocol side and
// the scenario script: a queue-of-one for the triggering inbound message
// and a one-shot ReplyFuture for the outbound reply.
//
// Add is called from protocol threads; Receive, Send, and Fail are called
// from the script goroutine. At most one inbound message and one pending
// future exist at a time.
type Endpoint struct {
	id    string
	inbox chan *message.Message
	log   *slog.Logger

	mu       sync.Mutex
	pending  *ReplyFuture
	execID   int64
	recorder MessageRecorder
}

// NewEndpoint creates an unbound endpoint. Bind attaches it to an
// execution once the run is accepted.
func NewEndpoint() *Endpoint {
	return &Endpoint{
		id:    uuid.NewString(),
		inbox: make(chan *message.Message, 1),
		log:   logging.Nop(),
	}
}

// SetLogger sets the operational logger.
func (e *Endpoint) SetLogger(log *slog.Logger) {
	if log != nil {
		e.log = log
	}
}

// ID returns the endpoint's unique id.
func (e *Endpoint) ID() string { return e.id }

// Bind attaches the endpoint to an execution so exchanged messages land
// on that execution's audit trail. Called by the execution service before
// the script starts.
func (e *Endpoint) Bind(executionID int64, rec MessageRecorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.execID = executionID
	e.recorder = rec
}

// ExecutionID returns the bound execution id (0 when unbound).
func (e *Endpoint) ExecutionID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execID
}

// Add registers the next inbound message for pickup by the script and
// returns the future the caller awaits for the reply.
//
// The endpoint is a queue-of-one: if a previous inbound message is still
// unconsumed, or consumed but not yet replied to, Add fails with
// ErrEndpointBusy wrapped in a ContractViolationError. Each future
// belongs to exactly one caller and is never displaced by a later Add.
func (e *Endpoint) Add(m *message.Message) (*ReplyFuture, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil && !e.pending.Completed() {
		return nil, &ContractViolationError{Op: "add", Cause: ErrEndpointBusy}
	}

	select {
	case e.inbox <- m:
	default:
		return nil, &ContractViolationError{Op: "add", Cause: ErrEndpointBusy}
	}

	f := NewReplyFuture()
	e.pending = f
	return f, nil
}

// Receive blocks until an inbound message is available or the timeout
// elapses. Called from the script goroutine.
//
// A timeout returns ErrReceiveTimeout, which the script may catch and
// ignore to keep listening; it is an expected condition, not a fault.
func (e *Endpoint) Receive(timeout time.Duration) (*message.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-e.inbox:
		e.record(m)
		return m, nil
	case <-timer.C:
		return nil, ErrReceiveTimeout
	}
}

// Send completes the pending ReplyFuture with the given reply and records
// the outbound message. Called from the script goroutine.
//
// Sending with no pending future is a contract violation: the script and
// the dispatch layer have desynchronized.
func (e *Endpoint) Send(reply *message.Message) error {
	return e.complete("send", reply)
}

// Fail completes the pending ReplyFuture with a failure sentinel carrying
// the cause, used when the script aborts abnormally instead of replying.
func (e *Endpoint) Fail(cause error) error {
	return e.complete("fail", message.NewFault(cause))
}

// FailPending is the end-of-run failsafe: it behaves like Fail when a
// future is still pending and reports false (without error) otherwise.
// Used by the execution service so an aborted script never leaves its
// caller waiting for the full timeout.
func (e *Endpoint) FailPending(cause error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return false
	}
	f := e.pending
	e.pending = nil
	if !f.Complete(message.NewFault(cause)) {
		e.log.Warn("reply future already completed, fault dropped",
			"endpoint", e.id, "executionId", e.execID)
		return false
	}
	return true
}

func (e *Endpoint) complete(op string, reply *message.Message) error {
	e.mu.Lock()
	f := e.pending
	e.pending = nil
	execID := e.execID
	e.mu.Unlock()

	if f == nil {
		err := &ContractViolationError{Op: op, Cause: ErrNoPendingReply}
		e.log.Error("scenario endpoint desynchronized",
			"op", op, "endpoint", e.id, "executionId", execID, "error", err)
		return err
	}

	if !reply.IsFault() {
		e.record(reply)
	}

	if !f.Complete(reply) {
		// Single-assignment: the first value stands, the second attempt
		// is a no-op.
		e.log.Warn("reply future completed twice, keeping first value",
			"op", op, "endpoint", e.id, "executionId", execID)
	}
	return nil
}

func (e *Endpoint) record(m *message.Message) {
	e.mu.Lock()
	rec := e.recorder
	execID := e.execID
	e.mu.Unlock()

	if rec == nil || execID == 0 {
		return
	}
	if err := rec.RecordMessage(execID, m); err != nil {
		e.log.Warn("failed to record message on execution trail",
			"executionId", execID, "messageId", m.ID, "error", err)
	}
}
