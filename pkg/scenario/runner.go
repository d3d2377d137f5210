package scenario

import (
	"log/slog"
	"time"

	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
)

// CorrelationHandler routes a specific follow-up inbound message into the
// endpoint of the already-running scenario that is expecting it.
// Implementations decide the matching strategy (content, header, ...).
type CorrelationHandler interface {
	// Matches reports whether the inbound message belongs to this
	// handler's conversation.
	Matches(m *message.Message) bool

	// Endpoint returns the endpoint of the run awaiting the message.
	Endpoint() *Endpoint
}

// Correlator manages the lifecycle of correlation handlers. Implemented
// by the correlation registry; scripts reach it through the Runner.
type Correlator interface {
	Register(h CorrelationHandler)
	Unregister(h CorrelationHandler)
}

// ActionRecorder is the audit-trail hook for top-level scenario steps.
// Starting a step closes the previous one; the final step is closed when
// the run ends.
type ActionRecorder interface {
	RecordStep(executionID int64, name string) error
	CloseSteps(executionID int64) error
}

// Runner is the per-run script context handed to Scenario.Run. It carries
// the execution id, the launch parameter snapshot, the run's endpoint,
// and the hooks that keep the audit trail consistent while the script
// executes asynchronously.
type Runner struct {
	executionID int64
	name        string
	params      map[string]string
	ep          *Endpoint
	correlator  Correlator
	actions     ActionRecorder
	log         *slog.Logger

	// handlers registered by this run; removed when the run ends.
	handlers []CorrelationHandler
}

// RunnerConfig collects the collaborators a Runner needs.
type RunnerConfig struct {
	ExecutionID int64
	Name        string
	Params      []Param
	Endpoint    *Endpoint
	Correlator  Correlator
	Actions     ActionRecorder
	Logger      *slog.Logger
}

// NewRunner builds the script context for one run.
func NewRunner(cfg RunnerConfig) *Runner {
	params := make(map[string]string, len(cfg.Params))
	for _, p := range cfg.Params {
		params[p.Name] = p.Value
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Runner{
		executionID: cfg.ExecutionID,
		name:        cfg.Name,
		params:      params,
		ep:          cfg.Endpoint,
		correlator:  cfg.Correlator,
		actions:     cfg.Actions,
		log:         log.With("scenario", cfg.Name, "executionId", cfg.ExecutionID),
	}
}

// ExecutionID returns the id of this run's execution record.
func (r *Runner) ExecutionID() int64 { return r.executionID }

// ScenarioName returns the name of the running scenario.
func (r *Runner) ScenarioName() string { return r.name }

// Param returns the launch parameter value for name, or "".
func (r *Runner) Param(name string) string { return r.params[name] }

// Params returns a copy of the launch parameter snapshot.
func (r *Runner) Params() map[string]string {
	out := make(map[string]string, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

// Logger returns the run-scoped logger.
func (r *Runner) Logger() *slog.Logger { return r.log }

// Endpoint returns the run's endpoint. Most scripts use the Receive and
// Send helpers instead.
func (r *Runner) Endpoint() *Endpoint { return r.ep }

// Receive blocks until the next inbound message routed to this run
// arrives or the timeout elapses. Records a "receive" step and, on
// success, the message itself.
func (r *Runner) Receive(timeout time.Duration) (*message.Message, error) {
	r.Step("receive")
	return r.ep.Receive(timeout)
}

// Send completes the caller's reply future with the given message and
// records a "send" step.
func (r *Runner) Send(m *message.Message) error {
	r.Step("send")
	return r.ep.Send(m)
}

// SendFault completes the caller's reply future with a failure sentinel
// carrying cause. The execution itself is marked FAILED only if the
// script also returns an error.
func (r *Runner) SendFault(cause error) error {
	r.Step("fault")
	return r.ep.Fail(cause)
}

// Step records a named top-level action on the execution trail, closing
// the previously open one.
func (r *Runner) Step(name string) {
	if r.actions == nil {
		return
	}
	if err := r.actions.RecordStep(r.executionID, name); err != nil {
		r.log.Warn("failed to record scenario step", "step", name, "error", err)
	}
}

// CloseSteps closes the last open step on the trail. Invoked by the
// execution service when the run ends.
func (r *Runner) CloseSteps() {
	if r.actions == nil {
		return
	}
	if err := r.actions.CloseSteps(r.executionID); err != nil {
		r.log.Warn("failed to close scenario steps", "error", err)
	}
}

// StartCorrelation registers a predicate routing further inbound messages
// that satisfy it into this run's endpoint. The handler stays active
// until StopCorrelation or the end of the run.
func (r *Runner) StartCorrelation(pred func(*message.Message) bool) {
	r.CorrelateWith(&predicateHandler{ep: r.ep, pred: pred})
}

// CorrelateWith registers a custom correlation handler for this run.
func (r *Runner) CorrelateWith(h CorrelationHandler) {
	if r.correlator == nil {
		return
	}
	r.handlers = append(r.handlers, h)
	r.correlator.Register(h)
}

// StopCorrelation removes every handler this run registered. Safe to call
// when none are active; also invoked by the execution service when the
// run ends.
func (r *Runner) StopCorrelation() {
	if r.correlator == nil {
		return
	}
	for _, h := range r.handlers {
		r.correlator.Unregister(h)
	}
	r.handlers = nil
}

type predicateHandler struct {
	ep   *Endpoint
	pred func(*message.Message) bool
}

func (h *predicateHandler) Matches(m *message.Message) bool {
	return h.pred != nil && h.pred(m)
}

func (h *predicateHandler) Endpoint() *Endpoint { return h.ep }
