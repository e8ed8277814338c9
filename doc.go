// Package wasmgen generates WebAssembly binary modules from Go.
//
// The module is organized into packages with distinct responsibilities:
//
//	wasmgen/             Compile and Run helpers for tape machine programs
//	├── wasm/            Instruction and module model, binary encoder and decoder
//	├── builder/         Name resolution, module builder and scoped function bodies
//	├── bf/              Tape machine parser, compiler and reference interpreter
//	├── engine/          wazero runner providing the print and read imports
//	├── errors/          Structured error types
//	└── cmd/bfc/         Command line compiler with an interactive mode
//
// # Quick Start
//
// Compile a program and run it:
//
//	bin, err := wasmgen.Compile("++++++++[>++++++++<-]>+.", bf.DefaultOptions())
//	err = wasmgen.Run(ctx, src, bf.DefaultOptions(), os.Stdin, os.Stdout)
//
// Build a module by hand:
//
//	m, err := builder.New().
//	    ImportFunc("alert", "js", "_", wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}).
//	    Func("main", wasm.FuncType{}, nil, []wasm.Instruction{
//	        wasm.I32Const(1337), wasm.CallName("alert"),
//	    }).
//	    Start("main").
//	    Build()
//	bin, err := wasm.Assemble(m)
//
// # Error Handling
//
// Every failure is an *errors.Error carrying the phase (parse, build,
// resolve, validate, encode, decode, runtime) and kind. Use errors.Is with
// a template to match:
//
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindUnmatchedBracket}) {
//	    // handle
//	}
//
// # Logging
//
// The bf, builder and engine packages log through zap. Each defaults to a
// no-op logger; install one with the package's SetLogger.
package wasmgen
