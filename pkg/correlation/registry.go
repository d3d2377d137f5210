// Package correlation routes follow-up inbound messages to the in-flight
// scenario execution that is expecting them, instead of starting a new
// execution.
package correlation

import (
	"sync"

	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// Registry manages the lifecycle of correlation handlers registered by
// running scenarios. It is safe for concurrent registration, removal, and
// lookup from many scenario goroutines at once.
//
// Lookup is first-match-wins in registration order: handlers are expected
// to be mutually exclusive by scenario-author convention, and the
// registry does not enforce uniqueness.
type Registry struct {
	mu       sync.RWMutex
	handlers []scenario.CorrelationHandler
}

// NewRegistry creates an empty correlation registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler. Implements scenario.Correlator.
func (r *Registry) Register(h scenario.CorrelationHandler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// Unregister removes a handler. Removing an unknown handler is a no-op.
// Implements scenario.Correlator.
func (r *Registry) Unregister(h scenario.CorrelationHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, reg := range r.handlers {
		if reg == h {
			r.handlers = append(r.handlers[:i], r.handlers[i+1:]...)
			return
		}
	}
}

// UnregisterEndpoint removes every handler bound to the given endpoint.
// Called when a run ends so stale handlers cannot capture new traffic.
func (r *Registry) UnregisterEndpoint(ep *scenario.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.handlers[:0]
	for _, h := range r.handlers {
		if h.Endpoint() != ep {
			kept = append(kept, h)
		}
	}
	r.handlers = kept
}

// FindFor returns the first handler matching m, or nil when the message
// belongs to no in-flight conversation.
func (r *Registry) FindFor(m *message.Message) scenario.CorrelationHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if h.Matches(m) {
			return h
		}
	}
	return nil
}

// Len returns the number of active handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
