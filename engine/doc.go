// Package engine runs generated WebAssembly modules on wazero.
//
// Runner owns one wazero runtime and a host module, "js" by default, that
// exports the two functions compiled tape programs import:
//
//	print_charcode (i32) -> ()   writes the low byte of its argument
//	read_charcode  () -> (i32)   returns the next input byte, 0 at EOF
//
// # Execution
//
// Run decodes the module with the wasm package, checks every import
// against the host module, compiles it and instantiates it anonymously.
// Instantiation executes the start function. A module without one has its
// entry export ("main") called instead.
//
//	r, err := engine.NewRunner(ctx)
//	defer r.Close(ctx)
//	err = r.Run(ctx, bin, os.Stdin, os.Stdout)
//
// # Errors
//
// Decoding failures keep their decode phase. Import mismatches and
// compilation failures are instantiation errors; traps, including a
// cancelled or expired context, are trap errors that unwrap to the cause.
//
// # Thread Safety
//
// Runner is safe for concurrent use. Each Run passes its own input and
// output to the host functions through its context.
package engine
