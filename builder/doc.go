// Package builder assembles WebAssembly modules from declarations that
// refer to each other by name.
//
// # Index resolution
//
// Every function, table, memory and global lives in an index space where
// imports come first, in import order, followed by local definitions.
// Resolver tracks the four spaces. Names are declared in any order, Seal
// fixes the indices and Lookup maps a name to its index:
//
//	r := builder.NewResolver()
//	r.Declare(builder.KindFunc, "main")
//	r.DeclareImport(builder.KindFunc, "print")
//	r.Seal()
//	idx, _ := r.Lookup(builder.KindFunc, "main") // 1: the import is 0
//
// # Module builder
//
// ModuleBuilder is the two-phase front end. Declarations collect symbolic
// instructions (wasm.CallName, wasm.GlobalGetName); Build seals the
// resolver, rewrites every reference to its index, deduplicates
// signatures into the type section and returns a *wasm.Module. All
// unresolved names of one build are reported together:
//
//	m, err := builder.New().
//	    ImportFunc("print", "js", "print", wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}).
//	    Func("main", wasm.FuncType{}, nil, []wasm.Instruction{
//	        wasm.I32Const(72), wasm.CallName("print"),
//	    }).
//	    Start("main").
//	    Build()
//
// # Function bodies
//
// Body emits structured control flow through an explicit scope stack.
// Block, Loop and If return a Label; Br and BrIf translate a label into
// the relative depth WebAssembly expects, so code generators never count
// nesting by hand:
//
//	b := builder.NewBody()
//	exit := b.Block(wasm.BlockTypeVoid)
//	top := b.Loop(wasm.BlockTypeVoid)
//	b.Emit(wasm.LocalGet(0), wasm.Op(wasm.OpI32Eqz))
//	b.BrIf(exit) // br_if 1
//	b.Br(top)    // br 0
//	b.End()
//	b.End()
//	body, err := b.Finish()
package builder
