package endpoint

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/getstubd/stubd/pkg/dispatch"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// State is the poller lifecycle state.
type State string

// Poller states.
const (
	StateStopped  State = "STOPPED"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
)

// Poller defaults.
const (
	DefaultReceiveTimeout = 1 * time.Second
	DefaultErrorBackoff   = 2 * time.Second
	DefaultShutdownGrace  = 10 * time.Second
)

// MessageDispatcher routes one inbound message through the engine.
// Implemented by dispatch.Dispatcher.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, m *message.Message) (*message.Message, error)
}

// PollerConfig holds the poller's tunables.
type PollerConfig struct {
	// ReceiveTimeout bounds each receive attempt; expiry is an idle
	// cycle, not an error.
	ReceiveTimeout time.Duration

	// ErrorBackoff is the delay after an unexpected dispatch or receive
	// failure, keeping a broken transport from burning CPU.
	ErrorBackoff time.Duration

	// ShutdownGrace bounds how long Stop waits for the loop to exit.
	ShutdownGrace time.Duration
}

// Poller continuously pulls messages from a consumer on a dedicated
// goroutine and feeds them through the dispatcher, producing replies via
// the producer when the transport supports them. It is the ingress path
// for polling-style transports.
//
// The loop is designed to survive anything a single bad message can
// throw at it: idle cycles and domain errors continue immediately,
// unexpected errors continue after a backoff.
type Poller struct {
	name       string
	consumer   Consumer
	producer   Producer // nil for one-way transports
	dispatcher MessageDispatcher
	cfg        PollerConfig
	log        *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller in the STOPPED state. producer may be nil
// when the transport cannot carry replies.
func NewPoller(name string, consumer Consumer, producer Producer, dispatcher MessageDispatcher, cfg PollerConfig, log *slog.Logger) *Poller {
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Poller{
		name:       name,
		consumer:   consumer,
		producer:   producer,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With("poller", name),
		state:      StateStopped,
	}
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start launches the polling loop. Idempotent: starting a poller that is
// already starting or running is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateStopped {
		return
	}
	p.state = StateStarting

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx)

	p.state = StateRunning
	p.log.Info("poller started")
}

// Stop signals the loop to exit and waits up to the configured grace
// period for it to finish. The loop goroutine is abandoned if it does not
// stop in time; it cannot block process exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = StateStopping
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownGrace):
		p.log.Warn("poller did not stop within grace period", "grace", p.cfg.ShutdownGrace)
	}

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
	p.log.Info("poller stopped")
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	for {
		if ctx.Err() != nil {
			return
		}

		m, err := p.consumer.Receive(ctx, p.cfg.ReceiveTimeout)
		switch {
		case err == nil && m != nil:
			p.handle(ctx, m)
		case errors.Is(err, ErrReceiveTimeout):
			// Idle cycle.
		case errors.Is(err, context.Canceled), errors.Is(err, ErrClosed):
			return
		default:
			p.log.Error("unexpected receive failure, backing off",
				"error", err, "backoff", p.cfg.ErrorBackoff)
			p.backoff(ctx)
		}
	}
}

// handle dispatches one message. A single bad message must never wedge
// the loop.
func (p *Poller) handle(ctx context.Context, m *message.Message) {
	reply, err := p.dispatcher.Dispatch(ctx, m)
	switch {
	case err == nil:
	case isDomainError(err):
		// Transient simulator condition: log and keep polling.
		p.log.Warn("dispatch failed", "messageId", m.ID, "error", err)
		return
	case errors.Is(err, context.Canceled):
		return
	default:
		p.log.Error("unexpected dispatch failure, backing off",
			"messageId", m.ID, "error", err, "backoff", p.cfg.ErrorBackoff)
		p.backoff(ctx)
		return
	}

	if reply == nil || p.producer == nil {
		return
	}
	if err := p.producer.Send(ctx, reply); err != nil {
		p.log.Error("failed to send reply", "messageId", m.ID, "error", err)
	}
}

func (p *Poller) backoff(ctx context.Context) {
	timer := time.NewTimer(p.cfg.ErrorBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// isDomainError recognizes simulator-domain failures that are expected
// during normal operation.
func isDomainError(err error) bool {
	var (
		notFound *scenario.NotFoundError
		contract *scenario.ContractViolationError
		faultErr *dispatch.FaultError
	)
	return errors.As(err, &notFound) || errors.As(err, &contract) || errors.As(err, &faultErr)
}
