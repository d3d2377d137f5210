// Package execution owns scenario runs: the persisted execution record
// model, the store contract for the audit trail, and the service that
// schedules scenario scripts on a bounded worker pool.
package execution

import (
	"time"

	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// Status is the lifecycle state of an execution.
type Status string

// Execution statuses.
const (
	StatusActive  Status = "ACTIVE"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Action is one top-level step the script executed. Its end time is set
// when the next action starts or when the run ends.
type Action struct {
	Name      string     `json:"name"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Record is the durable audit trail of one scenario run. It is created
// the moment a run is accepted, before the script executes, so a caller
// who never gets a reply still has a trail to inspect.
type Record struct {
	// ID is the numeric execution id, assigned at creation.
	ID int64 `json:"id"`

	// ScenarioName names the scenario that ran.
	ScenarioName string `json:"scenarioName"`

	// StartedAt is when the run was accepted.
	StartedAt time.Time `json:"startedAt"`

	// EndedAt is set exactly once, when the run reaches a terminal
	// status. Nil while the run is ACTIVE.
	EndedAt *time.Time `json:"endedAt,omitempty"`

	// Status is ACTIVE until the script finishes.
	Status Status `json:"status"`

	// ErrorMessage captures the script failure for FAILED runs.
	ErrorMessage string `json:"errorMessage,omitempty"`

	// Params is the launch-time parameter snapshot, in order.
	Params []scenario.Param `json:"params,omitempty"`

	// Actions are the script's top-level steps, in start order.
	Actions []*Action `json:"actions,omitempty"`

	// Messages are the payloads exchanged during the run, in the order
	// the script processed them.
	Messages []*message.Message `json:"messages,omitempty"`
}

// Terminal reports whether the record has reached SUCCESS or FAILED.
func (r *Record) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}
