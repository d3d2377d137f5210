package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getstubd/stubd/pkg/message"
)

// PathResolver maps the message's transport path (message.HeaderPath) to
// a scenario name through glob patterns. Patterns use doublestar syntax,
// so "/orders/**" matches any depth below /orders.
//
// More specific patterns (longer, fewer wildcards) are tried first, so a
// literal "/orders/cancel" beats "/orders/**" regardless of insertion
// order.
type PathResolver struct {
	rules []pathRule
}

type pathRule struct {
	pattern  string
	scenario string
}

// NewPathResolver builds a resolver from pattern→scenario mappings.
// Invalid glob patterns are rejected up front.
func NewPathResolver(mappings map[string]string) (*PathResolver, error) {
	rules := make([]pathRule, 0, len(mappings))
	for pattern, name := range mappings {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid path pattern %q", pattern)
		}
		rules = append(rules, pathRule{pattern: pattern, scenario: name})
	}
	sort.Slice(rules, func(i, j int) bool {
		wi, wj := wildcardRank(rules[i].pattern), wildcardRank(rules[j].pattern)
		if wi != wj {
			return wi < wj
		}
		return len(rules[i].pattern) > len(rules[j].pattern)
	})
	return &PathResolver{rules: rules}, nil
}

// Resolve implements Resolver.
func (r *PathResolver) Resolve(m *message.Message) (string, bool) {
	path := m.Header(message.HeaderPath)
	if path == "" {
		return "", false
	}
	for _, rule := range r.rules {
		if ok, _ := doublestar.Match(rule.pattern, path); ok {
			return rule.scenario, true
		}
	}
	return "", false
}

func wildcardRank(pattern string) int {
	return strings.Count(pattern, "*") + strings.Count(pattern, "?")
}
