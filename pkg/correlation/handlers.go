package correlation

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// HeaderHandler matches messages carrying an exact header name/value pair.
type HeaderHandler struct {
	ep    *scenario.Endpoint
	name  string
	value string
}

// NewHeaderHandler builds a handler matching header name == value, routing
// matches into ep.
func NewHeaderHandler(ep *scenario.Endpoint, name, value string) *HeaderHandler {
	return &HeaderHandler{ep: ep, name: name, value: value}
}

// Matches implements scenario.CorrelationHandler.
func (h *HeaderHandler) Matches(m *message.Message) bool {
	return m.Header(h.name) == h.value
}

// Endpoint implements scenario.CorrelationHandler.
func (h *HeaderHandler) Endpoint() *scenario.Endpoint { return h.ep }

// ExprHandler matches messages with a compiled expr-lang predicate
// evaluated against the message payload and headers.
//
// The expression environment exposes:
//
//	payload  string             the raw message body
//	headers  map[string]string  the header bag
//
// Example: `headers["Correlation-Id"] == "42" && payload contains "order"`.
type ExprHandler struct {
	ep      *scenario.Endpoint
	program *vm.Program
}

type exprEnv struct {
	Payload string            `expr:"payload"`
	Headers map[string]string `expr:"headers"`
}

// NewExprHandler compiles the predicate expression and binds it to ep.
// Compilation errors are returned at registration time, not at match time.
func NewExprHandler(ep *scenario.Endpoint, expression string) (*ExprHandler, error) {
	program, err := expr.Compile(expression, expr.Env(exprEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid correlation expression %q: %w", expression, err)
	}
	return &ExprHandler{ep: ep, program: program}, nil
}

// Matches implements scenario.CorrelationHandler. Evaluation errors count
// as no-match: a malformed message must not capture foreign traffic.
func (h *ExprHandler) Matches(m *message.Message) bool {
	out, err := expr.Run(h.program, exprEnv{Payload: m.Payload, Headers: m.Headers})
	if err != nil {
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}

// Endpoint implements scenario.CorrelationHandler.
func (h *ExprHandler) Endpoint() *scenario.Endpoint { return h.ep }
