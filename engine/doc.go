// Package engine provides the low-level IL interpreter.
//
// A Machine executes method bodies directly from their instruction lists.
// Each IL call is a Go call, so the Go stack mirrors the IL call stack and
// call depth is bounded by Config.MaxDepth.
//
// # Values
//
// The evaluation stack holds untyped Values:
//
//	IL type                      Go representation
//	───────────────────────────────────────────────
//	bool, char, i1-i4, u1-u4     int32
//	i8, u8                       int64
//	r4                           float32
//	r8                           float64
//	core.String                  string
//	null                         nil
//	reference types              *Object
//	boxed value types            *Boxed
//	ldtoken result               TypeHandle
//
// core.Type values are *Object instances whose Native field holds the
// *il.TypeDef they denote; TypeValue returns one shared instance per
// definition, so type values compare by identity.
//
// # Exceptions
//
// throw raises an *Exception wrapping the error object. The frame searches
// its exception regions in declaration order for one whose protected range
// contains the faulting instruction and whose catch type is a supertype of
// the error; the handler starts with the error as the only stack value.
// rethrow raises the exception of the active handler unchanged. Exceptions
// no region catches are returned from Invoke.
//
// Integer division by zero raises core.DivideByZeroError and a null
// receiver raises core.NullReferenceError. Internal faults such as stack
// underflow or a missing native are returned as *errors.Error and cannot
// be caught.
//
// # Natives
//
// Methods flagged native run Go code bound with Machine.Bind under their
// full signature. The core library's natives (aspect.Arguments,
// core.Type::FromHandle and a few string helpers) are bound by New.
//
// # Thread Safety
//
// A Machine is safe for concurrent use. Objects are not synchronized.
//
// Most users should use the runtime package for a simpler API.
// This package is for advanced use cases requiring direct control.
package engine
