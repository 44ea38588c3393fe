// Package il provides the in-memory model and binary format of IL modules.
//
// A module is an ordered list of type definitions. Types carry fields,
// properties, methods and annotations; methods carry a typed signature
// and, unless native or abstract, a body of stack-machine instructions
// with locals and exception regions.
//
// # Parsing
//
//	data, _ := os.ReadFile("demo.ilm")
//	module, err := il.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Parse with validation enabled:
//
//	module, err := il.ParseModuleValidate(data)
//
// # Encoding
//
//	data, err := module.Encode()
//
// WriteFile encodes and replaces a file atomically, so a failed write never
// leaves a partially written module behind.
//
// # Editing Bodies
//
// Instructions are addressed by pointer. Body.InsertBefore moves every
// branch target and region bound that referenced the anchor onto the
// inserted code; Body.Prepend leaves the old first instruction as the
// target of existing back edges.
//
//	ret := body.Last()
//	body.InsertBefore(ret,
//	    il.New(il.OpLdloc, il.LocalImm{LocalIdx: 0}),
//	    il.New(il.OpPop, nil))
//
// Verify checks stack balance over every reachable path and returns the
// maximum depth.
//
// # Resolution
//
// Type references resolve against the referencing module, then the core
// library (CoreModule), then referenced modules found on the search path
// as <dir>/<name>.ilm.
//
// # Binary Format
//
//	magic "\0ilm" | version u32le | sections...
//	section: id byte | size u32 | payload
//
//	0 custom      name + opaque data (anywhere)
//	1 header      module name, 16-byte MVID
//	2 references  referenced module names
//	3 types       type definitions and member signatures
//	4 code        method bodies in declaration order
//
// Integers use LEB128; floats are little-endian IEEE 754.
package il
