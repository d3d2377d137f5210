package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getstubd/stubd/pkg/correlation"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 10

// ServiceConfig configures the execution service.
type ServiceConfig struct {
	// Workers bounds how many scenario scripts run concurrently.
	// Accepted runs beyond the bound queue; none are dropped.
	Workers int
}

// Service runs scenario scripts. Run accepts a dispatch synchronously,
// resolving the definition and creating the execution record before it
// returns, and executes the script itself on a pooled goroutine. N runs
// may be active at once, each with its own record and endpoint; nothing
// serializes unrelated runs.
type Service struct {
	registry   *scenario.Registry
	store      Store
	correlator *correlation.Registry
	log        *slog.Logger

	sem  chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewService creates an execution service.
func NewService(registry *scenario.Registry, store Store, correlator *correlation.Registry, cfg ServiceConfig, log *slog.Logger) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		registry:   registry,
		store:      store,
		correlator: correlator,
		log:        log,
		sem:        make(chan struct{}, workers),
		quit:       make(chan struct{}),
	}
}

// Run accepts a new execution of the named scenario and returns its
// execution id. The definition is resolved and the record persisted
// before Run returns; the script runs asynchronously against ep.
//
// An unknown scenario name is a configuration error surfaced to the
// caller; no record is created for it.
func (s *Service) Run(ctx context.Context, name string, params []scenario.Param, ep *scenario.Endpoint) (int64, error) {
	def, err := s.registry.Lookup(name)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, fmt.Errorf("execution service is stopped")
	}
	s.mu.Unlock()

	merged := mergeParams(def.Params, params)

	rec, err := s.store.Create(ctx, name, merged)
	if err != nil {
		return 0, fmt.Errorf("failed to create execution record: %w", err)
	}

	recorder := &storeRecorder{store: s.store, log: s.log}
	ep.SetLogger(s.log)
	ep.Bind(rec.ID, recorder)

	runner := scenario.NewRunner(scenario.RunnerConfig{
		ExecutionID: rec.ID,
		Name:        name,
		Params:      merged,
		Endpoint:    ep,
		Correlator:  s.correlator,
		Actions:     recorder,
		Logger:      s.log,
	})

	s.wg.Add(1)
	go s.execute(def, runner, ep)

	s.log.Debug("execution accepted", "scenario", name, "executionId", rec.ID)
	return rec.ID, nil
}

// Launch starts a starter scenario on demand with caller-supplied
// parameter overrides. Reactive scenarios and missing required parameters
// are rejected before any record is created.
func (s *Service) Launch(ctx context.Context, name string, overrides map[string]string) (int64, error) {
	def, err := s.registry.Lookup(name)
	if err != nil {
		return 0, err
	}
	if !def.IsStarter() {
		return 0, &LaunchError{Scenario: name, Reason: "scenario is not a starter"}
	}

	params := make([]scenario.Param, 0, len(def.Params))
	for _, p := range def.Params {
		if v, ok := overrides[p.Name]; ok {
			p.Value = v
		} else if p.Required && p.Value == "" {
			return 0, &LaunchError{Scenario: name, Reason: fmt.Sprintf("required parameter %q missing", p.Name)}
		}
		params = append(params, p)
	}

	return s.Run(ctx, name, params, scenario.NewEndpoint())
}

// execute is the worker body: it waits for a pool slot, runs the script,
// and settles the record and any pending reply future.
func (s *Service) execute(def *scenario.Definition, runner *scenario.Runner, ep *scenario.Endpoint) {
	defer s.wg.Done()

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-s.quit:
		s.settle(runner, ep, fmt.Errorf("execution service stopped before scenario started"))
		return
	}

	runErr := s.invoke(def, runner)
	s.settle(runner, ep, runErr)
}

// invoke runs the script, converting panics into run failures so a broken
// scenario can never take the pool down.
func (s *Service) invoke(def *scenario.Definition, runner *scenario.Runner) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scenario panicked: %v", p)
		}
	}()
	return def.Scenario.Run(runner)
}

// settle finishes a run: correlation handlers are removed, the last open
// action is closed, the record is completed, and on failure a still
// waiting caller is released with a fault instead of a timeout.
func (s *Service) settle(runner *scenario.Runner, ep *scenario.Endpoint, runErr error) {
	runner.StopCorrelation()
	if s.correlator != nil {
		s.correlator.UnregisterEndpoint(ep)
	}
	runner.CloseSteps()

	ctx := context.Background()
	id := runner.ExecutionID()

	status, errMsg := StatusSuccess, ""
	if runErr != nil {
		status, errMsg = StatusFailed, runErr.Error()
		ep.FailPending(runErr)
		s.log.Error("scenario execution failed",
			"scenario", runner.ScenarioName(), "executionId", id, "error", runErr)
	}

	if err := s.store.Complete(ctx, id, status, errMsg); err != nil {
		s.log.Warn("failed to complete execution record", "executionId", id, "error", err)
	}
	s.log.Debug("execution finished", "executionId", id, "status", status)
}

// Stop rejects new runs and waits up to grace for in-flight scripts to
// finish. Scripts still running after the grace period are abandoned;
// they hold daemon goroutines that cannot block process exit.
func (s *Service) Stop(grace time.Duration) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.quit)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		s.log.Warn("execution service stopped with scenarios still running", "grace", grace)
	}
}

func mergeParams(declared, provided []scenario.Param) []scenario.Param {
	byName := make(map[string]string, len(provided))
	for _, p := range provided {
		byName[p.Name] = p.Value
	}
	merged := make([]scenario.Param, 0, len(declared)+len(provided))
	seen := make(map[string]bool, len(declared))
	for _, p := range declared {
		if v, ok := byName[p.Name]; ok {
			p.Value = v
		}
		merged = append(merged, p)
		seen[p.Name] = true
	}
	for _, p := range provided {
		if !seen[p.Name] {
			merged = append(merged, p)
		}
	}
	return merged
}

// storeRecorder adapts the Store to the scenario-side recording hooks.
type storeRecorder struct {
	store Store
	log   *slog.Logger
}

// RecordMessage implements scenario.MessageRecorder.
func (r *storeRecorder) RecordMessage(executionID int64, m *message.Message) error {
	_, err := r.store.AttachMessage(context.Background(), executionID, m)
	return err
}

// RecordStep implements scenario.ActionRecorder.
func (r *storeRecorder) RecordStep(executionID int64, name string) error {
	_, err := r.store.AttachAction(context.Background(), executionID, name)
	return err
}

// CloseSteps implements scenario.ActionRecorder.
func (r *storeRecorder) CloseSteps(executionID int64) error {
	return r.store.CloseLastAction(context.Background(), executionID)
}
