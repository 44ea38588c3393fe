package weave

import (
	"github.com/wippyai/weaver/weave/internal/engine"
)

// CapabilityMatcher decides whether a resolved annotation type is an
// aspect handler.
//
// Every matcher shipped here also requires the three hooks to be present;
// a custom matcher that accepts a type without them makes weaving fail
// with a nil hook.
type CapabilityMatcher = engine.CapabilityMatcher

// Candidate is the resolved annotation type offered to a matcher.
type Candidate = engine.Candidate

// StructuralMatcher accepts any type that exposes OnEntry, OnExit and
// OnException with the handler signatures, declared on the type or
// inherited.
type StructuralMatcher = engine.StructuralMatcher

// BaseTypeMatcher accepts types whose direct base type has a given full
// name.
type BaseTypeMatcher struct {
	base string
}

// NewBaseTypeMatcher creates a matcher for direct subtypes of base.
func NewBaseTypeMatcher(base string) *BaseTypeMatcher {
	return &BaseTypeMatcher{base: base}
}

// MatchHandler implements CapabilityMatcher.
func (m *BaseTypeMatcher) MatchHandler(c *Candidate) bool {
	b := c.Base()
	return b != nil && b.FullName() == m.base && c.Hooks.Complete()
}

// ExactMatcher accepts an explicit list of handler type names.
type ExactMatcher struct {
	names map[string]bool
}

// NewExactMatcher creates a matcher from full type names.
func NewExactMatcher(names []string) *ExactMatcher {
	m := &ExactMatcher{names: make(map[string]bool, len(names))}
	for _, n := range names {
		m.names[n] = true
	}
	return m
}

// MatchHandler implements CapabilityMatcher.
func (m *ExactMatcher) MatchHandler(c *Candidate) bool {
	return m.names[c.Type.FullName()] && c.Hooks.Complete()
}

// CompositeMatcher combines multiple matchers.
type CompositeMatcher struct {
	matchers []CapabilityMatcher
}

// NewCompositeMatcher creates a matcher that matches if any sub-matcher matches.
func NewCompositeMatcher(matchers ...CapabilityMatcher) *CompositeMatcher {
	return &CompositeMatcher{matchers: matchers}
}

// MatchHandler returns true if any sub-matcher matches.
func (m *CompositeMatcher) MatchHandler(c *Candidate) bool {
	for _, matcher := range m.matchers {
		if matcher.MatchHandler(c) {
			return true
		}
	}
	return false
}
