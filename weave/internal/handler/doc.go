// Package handler provides literal loaders for aspect instance construction.
//
// Each loader emits the instructions that push one annotation constructor
// argument onto the evaluation stack. Loaders are registered per literal
// kind in a Registry; a kind without a loader cannot be used as a
// constructor argument.
//
// Loader categories:
//   - Constant: integral, floating point and small enum values
//   - Reference: strings and type literals
//   - Rejecting: void, which is never a valid argument
package handler
