package matching

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getstubd/stubd/pkg/message"
)

// ExprResolver evaluates an expr-lang expression yielding the scenario
// name. The environment exposes the payload and the header bag:
//
//	headers["X-Stub-Path"] == "/orders" ? "orderScenario" : ""
//
// An empty result or an evaluation error means "no mapping".
type ExprResolver struct {
	program *vm.Program
}

type resolveEnv struct {
	Payload string            `expr:"payload"`
	Headers map[string]string `expr:"headers"`
}

// NewExprResolver compiles the expression up front so configuration
// errors surface at construction, not per message.
func NewExprResolver(expression string) (*ExprResolver, error) {
	program, err := expr.Compile(expression, expr.Env(resolveEnv{}), expr.AsKind(reflect.String))
	if err != nil {
		return nil, fmt.Errorf("invalid resolver expression %q: %w", expression, err)
	}
	return &ExprResolver{program: program}, nil
}

// Resolve implements Resolver.
func (r *ExprResolver) Resolve(m *message.Message) (string, bool) {
	out, err := expr.Run(r.program, resolveEnv{Payload: m.Payload, Headers: m.Headers})
	if err != nil {
		return "", false
	}
	name, ok := out.(string)
	return name, ok && name != ""
}
