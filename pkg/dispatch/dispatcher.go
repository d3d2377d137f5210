// Package dispatch implements the entry point every inbound message goes
// through: correlation to an in-flight run, or resolution and start of a
// fresh scenario execution, with the protocol thread blocking on the
// reply future.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getstubd/stubd/internal/matching"
	"github.com/getstubd/stubd/pkg/correlation"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// DefaultReplyTimeout bounds the reply wait when none is configured.
const DefaultReplyTimeout = 5 * time.Second

// FaultError is the caller-visible form of a scenario failure delivered
// through the reply future's failure sentinel.
type FaultError struct {
	Scenario string
	Cause    error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("scenario %q faulted: %v", e.Scenario, e.Cause)
}

func (e *FaultError) Unwrap() error { return e.Cause }

// ScenarioStarter starts a new scenario run bound to the given endpoint.
// Implemented by execution.Service.
type ScenarioStarter interface {
	Run(ctx context.Context, name string, params []scenario.Param, ep *scenario.Endpoint) (int64, error)
}

// Config holds the dispatcher's tunables.
type Config struct {
	// DefaultScenario is the fallback when no resolver strategy maps the
	// message. Empty means no fallback: unresolved messages error.
	DefaultScenario string

	// ReplyTimeout bounds how long Dispatch blocks for a reply.
	ReplyTimeout time.Duration

	// WaitForReply disabled turns Dispatch into fire-and-forget: the run
	// starts and Dispatch returns immediately with no reply.
	WaitForReply bool
}

// Dispatcher decides, per inbound message, between continuing an
// in-flight conversation and starting a fresh scenario run, and delivers
// the run's reply back to the calling protocol thread.
type Dispatcher struct {
	correlator *correlation.Registry
	resolver   matching.Resolver
	starter    ScenarioStarter
	cfg        Config
	log        *slog.Logger
}

// New creates a dispatcher. resolver may be nil when only the default
// scenario is wanted.
func New(correlator *correlation.Registry, resolver matching.Resolver, starter ScenarioStarter, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Dispatcher{
		correlator: correlator,
		resolver:   resolver,
		starter:    starter,
		cfg:        cfg,
		log:        log,
	}
}

// Dispatch routes one inbound message and blocks until the scenario
// replies, the reply timeout elapses, or ctx is cancelled.
//
// Outcomes:
//   - (reply, nil): the scenario produced a reply.
//   - (nil, nil): no reply within the timeout, a legitimate outcome;
//     the transport decides how to represent it.
//   - (nil, *FaultError): the scenario failed; the cause travelled
//     through the failure sentinel.
//   - (nil, err): resolution failure, endpoint contract violation, or a
//     cancelled wait (ctx.Err(), propagated as a fatal abort).
func (d *Dispatcher) Dispatch(ctx context.Context, m *message.Message) (*message.Message, error) {
	// A correlated message continues an existing run; no new execution
	// record is created for it.
	if h := d.correlator.FindFor(m); h != nil {
		ep := h.Endpoint()
		d.log.Debug("correlated inbound message to running scenario",
			"messageId", m.ID, "executionId", ep.ExecutionID())
		future, err := ep.Add(m)
		if err != nil {
			return nil, err
		}
		return d.await(ctx, future, "")
	}

	name, err := d.resolveScenario(m)
	if err != nil {
		return nil, err
	}

	ep := scenario.NewEndpoint()
	execID, err := d.starter.Run(ctx, name, nil, ep)
	if err != nil {
		return nil, err
	}

	future, err := ep.Add(m)
	if err != nil {
		return nil, err
	}

	if !d.cfg.WaitForReply {
		d.log.Debug("fire-and-forget dispatch", "scenario", name, "executionId", execID)
		return nil, nil
	}
	return d.await(ctx, future, name)
}

func (d *Dispatcher) resolveScenario(m *message.Message) (string, error) {
	if d.resolver != nil {
		if name, ok := d.resolver.Resolve(m); ok {
			return name, nil
		}
	}
	if d.cfg.DefaultScenario != "" {
		return d.cfg.DefaultScenario, nil
	}
	return "", fmt.Errorf("no scenario mapping for message %s and no default scenario configured", m.ID)
}

func (d *Dispatcher) await(ctx context.Context, future *scenario.ReplyFuture, name string) (*message.Message, error) {
	reply, err := future.Await(ctx, d.cfg.ReplyTimeout)
	switch {
	case errors.Is(err, scenario.ErrReplyTimeout):
		// Some scenarios legitimately produce no response.
		d.log.Debug("no reply within timeout", "scenario", name, "timeout", d.cfg.ReplyTimeout)
		return nil, nil
	case err != nil:
		// Context cancellation: a fatal abort of the wait, never
		// swallowed.
		return nil, err
	}

	if reply.IsFault() {
		return nil, &FaultError{Scenario: name, Cause: reply.FaultCause()}
	}
	return reply, nil
}
