package weave

import (
	"testing"

	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/weave/internal/engine"
)

func candidate(name, base string, complete bool) *Candidate {
	typ := &il.TypeDef{Namespace: "demo", Name: name}
	chain := []*il.TypeDef{typ}
	if base != "" {
		ns, short := il.SplitTypeName(base)
		chain = append(chain, &il.TypeDef{Namespace: ns, Name: short})
	}
	var hooks engine.Hooks
	if complete {
		hooks = engine.Hooks{
			OnEntry:     &il.MethodDef{Name: "OnEntry"},
			OnExit:      &il.MethodDef{Name: "OnExit"},
			OnException: &il.MethodDef{Name: "OnException"},
		}
	}
	return &Candidate{Type: typ, Chain: chain, Hooks: hooks}
}

func TestMatchers(t *testing.T) {
	tests := []struct {
		name    string
		matcher CapabilityMatcher
		cand    *Candidate
		want    bool
	}{
		{"structural with hooks", StructuralMatcher{}, candidate("Trace", il.TypeAspect, true), true},
		{"structural without hooks", StructuralMatcher{}, candidate("Trace", il.TypeAspect, false), false},
		{"base type direct", NewBaseTypeMatcher(il.TypeAspect), candidate("Trace", il.TypeAspect, true), true},
		{"base type other base", NewBaseTypeMatcher(il.TypeAspect), candidate("Trace", "demo.Base", true), false},
		{"base type no base", NewBaseTypeMatcher(il.TypeAspect), candidate("Trace", "", true), false},
		{"base type without hooks", NewBaseTypeMatcher(il.TypeAspect), candidate("Trace", il.TypeAspect, false), false},
		{"exact listed", NewExactMatcher([]string{"demo.Trace"}), candidate("Trace", "", true), true},
		{"exact unlisted", NewExactMatcher([]string{"demo.Audit"}), candidate("Trace", "", true), false},
		{"exact without hooks", NewExactMatcher([]string{"demo.Trace"}), candidate("Trace", "", false), false},
		{
			"composite any",
			NewCompositeMatcher(NewExactMatcher([]string{"demo.Audit"}), NewBaseTypeMatcher(il.TypeAspect)),
			candidate("Trace", il.TypeAspect, true),
			true,
		},
		{"composite empty", NewCompositeMatcher(), candidate("Trace", il.TypeAspect, true), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.matcher.MatchHandler(tt.cand); got != tt.want {
				t.Errorf("MatchHandler(%s) = %v, want %v", tt.cand.Type.FullName(), got, tt.want)
			}
		})
	}
}
