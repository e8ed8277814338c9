// Package bf compiles tape machine programs written with the eight
// commands > < + - . , [ ] into WebAssembly modules.
//
// The generated module imports a print function of type (i32) -> () and,
// when the program reads input, a read function of type () -> (i32). It
// defines one memory that holds the tape and a start function that runs
// the program, so instantiating the module executes it:
//
//	m, err := bf.Compile(src, bf.DefaultOptions())
//	bin, err := wasm.Assemble(m)
//
// Loops lower to structured control flow. Each [ ... ] becomes a block
// wrapping a loop: the loop exits to the block when the current cell is
// zero and branches back to its own start while it is not.
//
// Interpret runs a parsed program directly with the same cell, pointer
// and input semantics and serves as an oracle for the compiled module.
package bf
