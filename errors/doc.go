// Package errors provides structured error types for the weaver.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the IL type and member involved, an element path
// and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuild, errors.KindUnsupportedLiteral).
//		Member("core.Void demo.S::Run()").
//		Type("demo.Trace").
//		Detail("argument %d: enum with %s underlying type", 0, "i8").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Structural(errors.PhaseScan, method, "method has no body")
//	err := errors.Unresolvable(errors.PhaseScan, "demo.Missing", cause)
//
// Only KindUnresolvable is recoverable during weaving (see Error.Fatal);
// every other kind aborts the run.
//
// All errors implement the standard error interface and support errors.Is/As.
// errors.Is matches on Phase and Kind.
package errors
