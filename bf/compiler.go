package bf

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasmgen/builder"
	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

// Symbols used inside the generated module.
const (
	symPrint  = "print"
	symRead   = "read"
	symMain   = "main"
	symMemory = "tape"
)

// ptr is the local holding the tape pointer.
const ptr = 0

var (
	printType = wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}
	readType  = wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}
	mainType  = wasm.FuncType{}
)

// loopMarker is one open loop: the block that skips it and the loop that
// repeats it.
type loopMarker struct {
	exit builder.Label
	top  builder.Label
	pos  errors.Position
}

type compiler struct {
	body  *builder.Body
	loops []loopMarker
	opts  Options
}

// CompileProgram lowers a parsed program into the body of the main
// function. The tape pointer lives in local 0 and cells are bytes of
// memory 0. Symbolic calls to "print" and "read" remain to be resolved.
func CompileProgram(p *Program, opts Options) ([]wasm.Instruction, error) {
	c := &compiler{body: builder.NewBody(), opts: opts.withDefaults()}
	if err := c.nodes(p.Nodes); err != nil {
		return nil, err
	}
	if n := len(c.loops); n > 0 {
		return nil, errors.New(errors.PhaseBuild, errors.KindOpenScope).
			At(c.loops[n-1].pos).
			Value(n).
			Detail("%d loop(s) left open", n).
			Build()
	}
	return c.body.Finish()
}

// CompileBody parses src and returns the instruction sequence of the main
// function.
func CompileBody(src string, opts Options) ([]wasm.Instruction, error) {
	p, err := Parse(src, opts)
	if err != nil {
		return nil, err
	}
	return CompileProgram(p, opts)
}

// Compile parses and compiles src into a module that imports print (and
// read when the program uses input), owns the tape memory and runs the
// program as its start function.
func Compile(src string, opts Options) (*wasm.Module, error) {
	opts = opts.withDefaults()
	p, err := Parse(src, opts)
	if err != nil {
		return nil, err
	}
	body, err := CompileProgram(p, opts)
	if err != nil {
		return nil, err
	}

	mb := builder.New().
		ImportFunc(symPrint, opts.ImportModule, opts.PrintName, printType)
	if p.Reads && opts.Input == InputRead {
		mb.ImportFunc(symRead, opts.ImportModule, opts.ReadName, readType)
	}
	mb.Memory(symMemory, wasm.MemoryType{Limits: wasm.Bounded(opts.MemoryPages, opts.MemoryPages)}).
		Func(symMain, mainType, []wasm.ValType{wasm.ValI32}, body).
		Start(symMain)
	if opts.ExportMemory {
		mb.Export(MemoryExportName, builder.KindMemory, symMemory)
	}
	if opts.ExportMain {
		mb.Export(MainExportName, builder.KindFunc, symMain)
	}

	m, err := mb.Build()
	if err != nil {
		return nil, err
	}
	Logger().Debug("program compiled",
		zap.Int("instructions", countInstructions(body)),
		zap.Bool("reads", p.Reads),
		zap.Uint32("pages", opts.MemoryPages),
	)
	return m, nil
}

// CompileBytes compiles src and assembles the module.
func CompileBytes(src string, opts Options) ([]byte, error) {
	m, err := Compile(src, opts)
	if err != nil {
		return nil, err
	}
	return wasm.Assemble(m)
}

func (c *compiler) nodes(nodes []Node) error {
	for i := range nodes {
		if err := c.node(&nodes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) node(n *Node) error {
	b := c.body
	count := int32(n.Count)
	if count < 1 {
		count = 1
	}

	switch n.Op {
	case OpRight, OpLeft:
		op := byte(wasm.OpI32Add)
		if n.Op == OpLeft {
			op = wasm.OpI32Sub
		}
		b.Emit(wasm.LocalGet(ptr), wasm.I32Const(count), wasm.Op(op), wasm.LocalSet(ptr))

	case OpInc, OpDec:
		op := byte(wasm.OpI32Add)
		if n.Op == OpDec {
			op = wasm.OpI32Sub
		}
		b.Emit(wasm.LocalGet(ptr), wasm.LocalGet(ptr), loadCell(),
			wasm.I32Const(count), wasm.Op(op), storeCell())

	case OpOutput:
		b.Emit(wasm.LocalGet(ptr), loadCell(), wasm.CallName(symPrint))

	case OpInput:
		if c.opts.Input == InputZero {
			b.Emit(wasm.LocalGet(ptr), wasm.I32Const(0), storeCell())
		} else {
			b.Emit(wasm.LocalGet(ptr), wasm.CallName(symRead), storeCell())
		}

	case OpLoop:
		return c.loop(n)

	default:
		return errors.New(errors.PhaseBuild, errors.KindUnsupported).
			At(n.Pos).
			Value(n.Op).
			Detail("unknown command %q", byte(n.Op)).
			Build()
	}
	return nil
}

// loop emits
//
//	block
//	  loop
//	    <cell> i32.eqz br_if 1   ;; skip when the cell is zero
//	    <body>
//	    <cell> br_if 0           ;; repeat while non-zero
//	  end
//	end
func (c *compiler) loop(n *Node) error {
	b := c.body
	m := loopMarker{pos: n.Pos}
	m.exit = b.Block(wasm.BlockTypeVoid)
	m.top = b.Loop(wasm.BlockTypeVoid)
	c.loops = append(c.loops, m)

	b.Emit(wasm.LocalGet(ptr), loadCell(), wasm.Op(wasm.OpI32Eqz))
	if err := b.BrIf(m.exit); err != nil {
		return err
	}
	if err := c.nodes(n.Body); err != nil {
		return err
	}
	b.Emit(wasm.LocalGet(ptr), loadCell())
	if err := b.BrIf(m.top); err != nil {
		return err
	}
	if err := b.End(); err != nil {
		return err
	}
	if err := b.End(); err != nil {
		return err
	}
	c.loops = c.loops[:len(c.loops)-1]
	return nil
}

func loadCell() wasm.Instruction  { return wasm.Mem(wasm.OpI32Load8U, 0, 0) }
func storeCell() wasm.Instruction { return wasm.Mem(wasm.OpI32Store8, 0, 0) }

func countInstructions(instrs []wasm.Instruction) int {
	n := len(instrs)
	for _, in := range instrs {
		n += countInstructions(in.Body) + countInstructions(in.Else)
	}
	return n
}
