package scenario

import (
	"errors"
	"fmt"
)

// Sentinel errors for endpoint and future operations.
var (
	// ErrReceiveTimeout is returned by Endpoint.Receive when no inbound
	// message arrived within the timeout. Scripts may treat it as an
	// expected condition and keep listening.
	ErrReceiveTimeout = errors.New("receive timed out waiting for inbound message")

	// ErrReplyTimeout is returned by ReplyFuture.Await when the script
	// produced no reply within the timeout. Dispatch layers translate it
	// into a "no reply" outcome rather than an error.
	ErrReplyTimeout = errors.New("timed out waiting for scenario reply")

	// ErrNoPendingReply is the contract-violation cause used when a
	// reply or fault is produced while no request is bound to the
	// endpoint.
	ErrNoPendingReply = errors.New("no pending reply future")

	// ErrEndpointBusy is returned by Endpoint.Add when the previous
	// inbound message has not been consumed yet, or has been consumed
	// but its reply is still outstanding. The endpoint is a queue-of-one
	// by contract.
	ErrEndpointBusy = errors.New("endpoint busy with an unfinished exchange")
)

// ContractViolationError signals that the scenario script and the
// dispatch layer have desynchronized (e.g. a reply was sent with no
// pending request). It is always surfaced loudly: this is an engine or
// script bug, not a business failure.
type ContractViolationError struct {
	Op    string
	Cause error
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("scenario endpoint contract violation in %s: %v", e.Op, e.Cause)
}

func (e *ContractViolationError) Unwrap() error { return e.Cause }

// NotFoundError reports a scenario name with no registered definition.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("scenario %q is not registered", e.Name)
}
