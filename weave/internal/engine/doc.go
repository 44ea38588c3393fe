// Package engine implements the aspect weaving pipeline.
//
// A run scans a module for (type, method, annotation) triples whose
// annotation type is an aspect handler, validates every qualifying method
// before touching anything, and then instruments the methods one by one
// in declaration order.
//
// Instrumenting a method produces this shape:
//
//	prologue:  capture arguments into aspect.Arguments
//	           build aspect.MethodArguments
//	           construct the handler from the annotation literals
//	           bind the handler to this (optional)
//	           handler.OnEntry(margs)
//	try:       original body, with handler.OnExit(margs) before each ret
//	catch:     stloc ex; handler.OnException(margs, ex); rethrow
//
// The try range starts right after the prologue, so an error raised while
// constructing the handler is not reported to OnException.
//
// This package is internal to the weaver.
package engine
