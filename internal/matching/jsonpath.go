package matching

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/getstubd/stubd/pkg/message"
)

// JSONPathResolver extracts the scenario name from a JSON payload with a
// JSONPath expression, e.g. "$.order.type" resolving to "createOrder".
// Non-JSON payloads and empty results mean "no mapping", not an error.
type JSONPathResolver struct {
	expr jp.Expr
}

// NewJSONPathResolver parses the JSONPath expression up front.
func NewJSONPathResolver(path string) (*JSONPathResolver, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %q: %w", path, err)
	}
	return &JSONPathResolver{expr: expr}, nil
}

// Resolve implements Resolver.
func (r *JSONPathResolver) Resolve(m *message.Message) (string, bool) {
	data, err := oj.ParseString(m.Payload)
	if err != nil {
		return "", false
	}
	results := r.expr.Get(data)
	if len(results) == 0 {
		return "", false
	}
	name, ok := results[0].(string)
	return name, ok && name != ""
}
