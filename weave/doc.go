// Package weave instruments compiled IL modules with aspect handlers.
//
// # Overview
//
// A method opts in by carrying an annotation whose type is an aspect
// handler: a type exposing
//
//	OnEntry(aspect.MethodArguments)
//	OnExit(aspect.MethodArguments)
//	OnException(aspect.MethodArguments, core.Error)
//
// either declared on the type or inherited. The weaver rewrites each such
// method so the handler is constructed from the annotation's literal
// arguments on every call, OnEntry runs before the original body, OnExit
// runs once on every normal return after the return value is computed,
// and OnException observes any propagating error before it is rethrown
// unchanged.
//
// Handlers may also receive the woven instance: the first property of the
// handler annotated with aspect.BindInstance (see Config.BindMarker) is
// assigned `this` before OnEntry. Static methods skip this step.
//
// # Usage
//
// Weave a module file in place:
//
//	report, err := weave.Weave(ctx, "app.ilm", weave.DefaultConfig())
//
// Weave bytes or an already decoded module:
//
//	out, report, err := weave.Transform(data, cfg)
//	report, err := weave.Apply(module, cfg)
//
// # Matching
//
// By default any type with the three hooks qualifies (StructuralMatcher).
// NewBaseTypeMatcher restricts handlers to direct subtypes of a named base,
// and NewExactMatcher to an explicit list. Annotations whose type cannot
// be resolved are skipped and listed in Report.Skipped.
//
// # Failure
//
// Every other problem is fatal for the whole run: a method without a body,
// a body that already has exception regions, more than one qualifying
// annotation on a method, a literal the weaver cannot load, a missing
// handler constructor, or, with Config.Verify, a woven body that fails
// stack verification. Weave writes nothing in that case.
//
// Weaving is not idempotent. Running it twice instruments twice.
package weave
