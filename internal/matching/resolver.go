// Package matching provides the scenario-name resolution strategies the
// dispatcher consults for inbound messages without a correlation match.
package matching

import (
	"github.com/getstubd/stubd/pkg/message"
)

// Resolver maps an inbound message to a scenario name. Implementations
// are opaque strategies (path, header, or content based); the dispatcher
// treats a false return as "no mapping" and falls back to its configured
// default scenario.
type Resolver interface {
	Resolve(m *message.Message) (string, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(m *message.Message) (string, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(m *message.Message) (string, bool) { return f(m) }

// HeaderResolver resolves the scenario name from a message header.
// With no explicit header name it consults message.HeaderScenario.
type HeaderResolver struct {
	Name string
}

// NewHeaderResolver builds a resolver reading the given header.
func NewHeaderResolver(name string) *HeaderResolver {
	if name == "" {
		name = message.HeaderScenario
	}
	return &HeaderResolver{Name: name}
}

// Resolve implements Resolver.
func (r *HeaderResolver) Resolve(m *message.Message) (string, bool) {
	v := m.Header(r.Name)
	return v, v != ""
}

// Chain tries each resolver in order; the first mapping wins.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(m *message.Message) (string, bool) {
	for _, r := range c {
		if name, ok := r.Resolve(m); ok {
			return name, true
		}
	}
	return "", false
}
