// Package weaver is a post-compilation aspect weaver for IL modules.
//
// Methods annotated with an aspect handler type are rewritten in place so
// that the handler observes each call: OnEntry before the original body
// runs, OnExit after each return value is computed and OnException when an
// error escapes the body. The error is rethrown unchanged.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	weaver/
//	├── il/              Module model, binary codec, validation, stack verifier, resolver
//	├── ilasm/           Text assembler and disassembler for modules
//	├── weave/           Public weaving API, configuration and handler matchers
//	│   └── internal/    Scanner, argument capture, instance builder, binding, hooks
//	├── engine/          IL interpreter with exception regions and native methods
//	├── runtime/         High-level API for loading modules and binding Go host functions
//	├── errors/          Structured error types for debugging
//	└── cmd/             weave and ilasm command line tools
//
// # Quick Start
//
// Weave a module file in place:
//
//	report, err := weave.Weave(ctx, "app.ilm", weave.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err) // nothing was written
//	}
//	for _, w := range report.Woven {
//	    fmt.Println(w.Method, "<-", w.Handler)
//	}
//
// Run the result:
//
//	rt := runtime.New(runtime.Config{})
//	mod, err := rt.LoadFile("app.ilm")
//	result, err := mod.Call(ctx, "app.Calculator", "Add", 2, 3)
//
// # Handler Contract
//
// A handler type qualifies when it derives from the configured capability
// (aspect.Aspect by default) and exposes OnEntry(aspect.MethodArguments),
// OnExit(aspect.MethodArguments) and
// OnException(aspect.MethodArguments, core.Error). Constructor arguments
// are annotation literals: primitives, strings, enums with a 32-bit or
// smaller underlying type, and type literals delivered as core.Type
// values. A property annotated with aspect.BindInstance receives the
// receiver of instance methods before OnEntry.
//
// # Configuration
//
// weave.Config can be loaded from TOML (weave.LoadConfig) and overridden
// by WEAVER_* environment variables; see the weave package.
package weaver
