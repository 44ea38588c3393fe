// Package runtime provides the high-level API for loading and running IL
// modules.
//
// # Quick Start
//
//	rt := runtime.New(runtime.Config{SearchPaths: []string{"lib"}})
//
//	// Load a module
//	mod, err := rt.LoadFile("app.ilm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Call a static method
//	result, err := mod.Call(ctx, "app.Calculator", "Add", 2, 3)
//	fmt.Println(result) // 5
//
//	// Or construct an object and call its methods
//	inst, err := mod.New(ctx, "app.Counter")
//	n, err := inst.Call(ctx, "Inc")
//
// # Loading Modules
//
//	Load(bytes)      - Decode a binary module
//	LoadFile(path)   - Read and decode a module file
//	LoadModule(m)    - Load an in-memory *il.Module
//	LoadText(src)    - Assemble ilasm text
//
// Every loaded module is visible to the others through the runtime's
// resolver. Referenced modules that were not loaded explicitly are read
// from the search paths on first use.
//
// # Host Functions
//
// Methods declared (native) in IL are implemented by Go functions:
//
//	rt.RegisterFunc("app.Console", "Write",
//	    func(ctx context.Context, msg string) {
//	        fmt.Println(msg)
//	    })
//
//	// Or implement the Host interface for a whole type
//	rt.RegisterHost(&Recorder{})
//
// Host methods are matched by name: the exact IL name first, then its Go
// form (get_Count -> GetCount, .ctor -> Ctor). Registration must happen
// before the declaring module is loaded.
//
// A Go error returned by a host function is thrown into IL as a core.Error;
// return an *engine.Exception to throw a specific IL exception.
//
// # Type Mapping
//
//	IL Type                           Go Type
//	───────────────────────────────────────────────
//	core.Boolean                      bool
//	core.SByte/Byte                   int8/uint8
//	core.Int16/UInt16                 int16/uint16
//	core.Int32/UInt32                 int32/uint32
//	core.Int64/UInt64                 int64/uint64
//	core.Char                         rune
//	core.Single/Double                float32/float64
//	core.String                       string
//	reference types                   *engine.Object
//	boxed values                      *engine.Boxed
//
// Host parameters of interface type (any, engine.Value) receive the raw
// interpreter value.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Objects are shared
// between calls without synchronization; IL code that mutates fields
// must not run concurrently on the same object.
package runtime
