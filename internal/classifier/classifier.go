// Package classifier tags assembled traces with the producing framework's
// conventions by sniffing span attributes. The rule table is open:
// frameworks register a predicate and a kind, the core never enumerates
// kinds itself.
package classifier

import (
	"sort"
	"strings"

	"github.com/hindsight/hub/internal/model"
)

// Predicate reports whether an attribute marks a framework. Malformed
// values must be treated as a non-match, never as an error.
type Predicate func(key string, value model.AttributeValue) bool

// Rule binds a predicate to a framework kind.
type Rule struct {
	Kind  string
	Match Predicate
}

// Classifier evaluates an ordered rule list over every span of a trace.
// Classification is a pure function of the trace snapshot; results are
// never cached independently of it.
type Classifier struct {
	rules []Rule
}

// New creates a classifier preloaded with the default framework rules.
func New() *Classifier {
	c := &Classifier{}
	for _, kind := range []string{"picante", "rapace", "dodeca"} {
		c.Register(PrefixRule(kind, kind+"."))
	}
	return c
}

// NewEmpty creates a classifier with no rules.
func NewEmpty() *Classifier {
	return &Classifier{}
}

// Register appends a rule to the table. Rules registered earlier are
// evaluated first, but every rule runs so mixed traces are detected.
func (c *Classifier) Register(rule Rule) {
	c.rules = append(c.rules, rule)
}

// PrefixRule matches any attribute whose key starts with the given
// prefix, regardless of value type.
func PrefixRule(kind, prefix string) Rule {
	return Rule{
		Kind: kind,
		Match: func(key string, _ model.AttributeValue) bool {
			return strings.HasPrefix(key, prefix)
		},
	}
}

// Classify inspects all spans of the trace, not just the root, because
// framework-emitting spans can appear anywhere in the tree.
func (c *Classifier) Classify(trace *model.Trace) model.TraceType {
	if trace == nil {
		return model.TypeGeneric
	}
	matched := make(map[string]struct{})
	for i := range trace.Spans {
		for key, value := range trace.Spans[i].Attributes {
			for _, rule := range c.rules {
				if _, seen := matched[rule.Kind]; seen {
					continue
				}
				if rule.Match(key, value) {
					matched[rule.Kind] = struct{}{}
				}
			}
		}
	}
	switch len(matched) {
	case 0:
		return model.TypeGeneric
	case 1:
		for kind := range matched {
			return model.FrameworkType(kind)
		}
	}
	return model.TypeMixed
}

// Kinds returns the registered framework kinds, deduplicated and sorted.
// Useful for diagnostics.
func (c *Classifier) Kinds() []string {
	seen := make(map[string]struct{}, len(c.rules))
	kinds := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		if _, ok := seen[r.Kind]; ok {
			continue
		}
		seen[r.Kind] = struct{}{}
		kinds = append(kinds, r.Kind)
	}
	sort.Strings(kinds)
	return kinds
}
