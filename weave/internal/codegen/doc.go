// Package codegen provides IL instruction emission for the weaver.
//
// The Emitter collects freshly allocated instructions through a fluent
// API. The weaving engine hands the collected sequence to il.Body.Prepend
// or il.Body.InsertBefore, so every emitted instruction has its own
// identity and can serve as a branch target or region boundary.
//
// # Responsibilities
//
//   - Emit argument capture and descriptor construction sequences
//   - Emit constant loads for annotation literals
//   - Emit hook invocations and the catch-all handler block
//
// This package is internal to the weaver.
package codegen
