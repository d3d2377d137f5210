// Package scenario defines the scenario model: user-authored scripts, the
// registry of known scenario definitions, and the per-run endpoint that
// hands messages between the protocol side and the running script.
package scenario

// Kind classifies how a scenario is triggered.
type Kind string

// Scenario kinds.
const (
	// KindStarter scenarios initiate traffic and may be launched on
	// demand with parameters.
	KindStarter Kind = "STARTER"

	// KindReactive scenarios only run in reaction to an inbound message.
	KindReactive Kind = "REACTIVE"
)

// Scenario is a user-authored script describing one simulated
// conversation. Run is invoked once per execution on a pooled worker
// goroutine; the Runner gives the script access to the run's endpoint,
// launch parameters, and audit-trail hooks.
//
// A returned error marks the execution FAILED and is delivered to a
// waiting caller as a fault.
type Scenario interface {
	Run(r *Runner) error
}

// Func adapts a plain function to the Scenario interface.
type Func func(r *Runner) error

// Run implements Scenario.
func (f Func) Run(r *Runner) error { return f(r) }

// Param is a named launch parameter of a starter scenario. Value holds
// the default; callers may override it at launch time.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Value       string `json:"value" yaml:"value"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	ControlHint string `json:"controlHint,omitempty" yaml:"controlHint,omitempty"`
}

// Definition binds a scenario name to its script and launch metadata.
// Definitions are immutable once registered; the registry is swapped
// wholesale on reload.
type Definition struct {
	// Name uniquely identifies the scenario.
	Name string

	// Kind is STARTER or REACTIVE.
	Kind Kind

	// Params declares the launch parameters of a starter scenario, in
	// presentation order.
	Params []Param

	// Scenario is the script to run. Resolved at registration time, so
	// an unsupported entry point is a compile error rather than a
	// first-invocation failure.
	Scenario Scenario
}

// NewReactive builds a reactive definition.
func NewReactive(name string, s Scenario) *Definition {
	return &Definition{Name: name, Kind: KindReactive, Scenario: s}
}

// NewStarter builds a starter definition with its launch parameters.
func NewStarter(name string, s Scenario, params ...Param) *Definition {
	return &Definition{Name: name, Kind: KindStarter, Params: params, Scenario: s}
}

// IsStarter reports whether the definition may be launched on demand.
func (d *Definition) IsStarter() bool { return d.Kind == KindStarter }
