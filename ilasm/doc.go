// Package ilasm converts between the textual assembly form of IL modules
// and il.Module.
//
// The text form is an s-expression per module:
//
//	(module "demo"
//	  (reference "lib")
//	  (type "demo.Calculator"
//	    (method "Add"
//	      (param "a" "core.Int32")
//	      (param "b" "core.Int32")
//	      (result "core.Int32")
//	      (annotate "demo.Trace" (string "calc"))
//	      (body
//	        ldarg $a
//	        ldarg $b
//	        add
//	        ret))))
//
// Types are written as strings ("core.Int32", "[lib]lib.Widget",
// "valuetype demo.Point", "!0"), method operands as
// "[instance] Ret Decl::Name(P1,P2)" and field operands as "T Decl::name".
// Labels are defined with "$name:" in front of an instruction and used by
// branches and (catch "T" $tryStart $tryEnd $handlerStart $handlerEnd?)
// clauses. Locals and arguments may be referenced by index or by $name.
//
// Annotation arguments are literal forms: (bool true), (i4 5), (u8 7),
// (char "x"), (r8 1.5), (string "s"), (type "T"), (enum "T" i4 2),
// (array "core.Int32" (i4 1) (i4 2)), (annotation "T" ...), (object lit)
// and (void).
//
// When a method omits (maxstack n) it is computed from the body. A module
// without (mvid "...") gets a fresh random MVID.
//
// Disassemble produces text that Parse accepts, so a module survives a
// text round trip. Custom sections have no text form and are dropped.
package ilasm
