package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// Store errors.
var (
	// ErrRecordNotFound is returned for an unknown execution id.
	ErrRecordNotFound = errors.New("execution record not found")
)

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	ScenarioName string
	Status       Status
	Limit        int
}

// Store persists the execution audit trail. One record exists per
// accepted run; the engine writes to a record only from that run's
// goroutines, but implementations must still serialize writes per record
// because dispatch threads and script goroutines overlap.
//
// Contract details the engine relies on:
//
//   - Complete on an already-terminal record is a warn-level no-op, and
//     the end timestamp is never overwritten.
//   - AttachAction closes the previously open action; CloseLastAction
//     closes the final one when the run ends.
//   - AttachMessage is idempotent per (direction, transport message id)
//     within one record: re-attaching returns the original message.
type Store interface {
	// Create persists a new ACTIVE record with a fresh id and the launch
	// parameter snapshot.
	Create(ctx context.Context, scenarioName string, params []scenario.Param) (*Record, error)

	// Get returns the record by id, or ErrRecordNotFound.
	Get(ctx context.Context, id int64) (*Record, error)

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Record, error)

	// Complete marks the record terminal and sets its end timestamp.
	Complete(ctx context.Context, id int64, status Status, errorMessage string) error

	// AttachAction appends a started action, closing the previous one.
	AttachAction(ctx context.Context, id int64, name string) (*Action, error)

	// CloseLastAction sets the end time of the last open action.
	CloseLastAction(ctx context.Context, id int64) error

	// AttachMessage appends an exchanged message, idempotently.
	AttachMessage(ctx context.Context, id int64, m *message.Message) (*message.Message, error)

	// DeleteAll removes every record. Administrative bulk reset; the
	// engine gates it behind a feature flag.
	DeleteAll(ctx context.Context) error
}

// LaunchError reports an invalid launch request for a starter scenario.
type LaunchError struct {
	Scenario string
	Reason   string
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("cannot launch scenario %q: %s", e.Scenario, e.Reason)
}
