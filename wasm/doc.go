// Package wasm provides an in-memory model of WebAssembly modules and a
// binary encoder for them.
//
// The model covers the MVP instruction set plus sign extension, the eleven
// standard sections and custom sections. Instructions are a tagged variant:
// the opcode selects which immediate type Imm holds, and block, loop and if
// keep their nested instructions in Body (and Else). The closing end
// opcode is never stored; the encoder writes it.
//
// # Building
//
// Instructions can be built with typed constructors or from loosely typed
// literal forms:
//
//	body := []wasm.Instruction{
//	    wasm.I32Const(1337),
//	    wasm.Call(0),
//	}
//	in, err := wasm.NewInstruction("get_local", 0) // legacy spelling accepted
//
// A module is a set of sections in any order:
//
//	types := &wasm.TypeSection{}
//	printT := types.Add(wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}})
//	mainT := types.Add(wasm.FuncType{})
//	m := wasm.NewModule(
//	    &wasm.CodeSection{Bodies: []wasm.FuncBody{{Body: body}}},
//	    types,
//	    &wasm.ImportSection{Imports: []wasm.Import{{
//	        Module: "js", Name: "_", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: printT},
//	    }}},
//	    &wasm.FunctionSection{TypeIdxs: []uint32{mainT}},
//	    &wasm.StartSection{Func: 1},
//	)
//
// # Encoding
//
// Assemble validates the module and writes the header followed by every
// present section in canonical order (type, import, function, table,
// memory, global, export, start, element, code, data, then custom
// sections):
//
//	data, err := wasm.Assemble(m)
//
// Output is deterministic: equal modules produce identical bytes. On any
// error no bytes are returned.
//
// # Validation
//
// Validate performs the structural checks the encoder relies on: section
// uniqueness, index bounds for every reference, signatures of the start
// function, limits, constant expressions and branch depths. It does not
// type-check the operand stack.
//
// # Decoding
//
// ParseModule reads the same subset back into a Module, with function
// bodies as instruction trees, so decode followed by Assemble reproduces a
// module produced by this package byte for byte.
//
// # LEB128
//
//	b := wasm.AppendLEB128s(nil, -64)       // 0x40
//	v, n, err := wasm.ReadLEB128u(data)     // value and bytes consumed
//	raw, err := wasm.EncodeValue(wasm.VarS33, int64(-1))
package wasm
