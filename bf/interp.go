package bf

import (
	stderrors "errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

// InterpConfig bounds a reference interpreter run.
type InterpConfig struct {
	// MemoryPages sizes the tape in 64 KiB pages. Zero means one page.
	MemoryPages uint32
	// MaxSteps stops the run with a trap after that many executed
	// commands. Zero means no limit.
	MaxSteps int64
	// Input mirrors Options.Input: InputZero stores 0 without reading.
	Input InputMode
}

type machine struct {
	in    io.ByteReader
	out   io.ByteWriter
	tape  []byte
	steps int64
	max   int64
	ptr   uint32
	input InputMode
}

// Interpret runs p directly with the same semantics as the compiled
// module: byte cells that wrap, a 32-bit pointer that wraps and traps only
// when a cell outside the tape is touched, and 0 on end of input.
func Interpret(p *Program, in io.ByteReader, out io.ByteWriter, cfg InterpConfig) error {
	pages := cfg.MemoryPages
	if pages == 0 {
		pages = DefaultMemoryPages
	}
	m := &machine{
		in:    in,
		out:   out,
		tape:  make([]byte, int(pages)*wasm.PageSize),
		max:   cfg.MaxSteps,
		input: cfg.Input,
	}
	err := m.run(p.Nodes)
	Logger().Debug("program interpreted",
		zap.Int64("steps", m.steps),
		zap.Uint32("pointer", m.ptr),
		zap.Error(err),
	)
	return err
}

func (m *machine) run(nodes []Node) error {
	for i := range nodes {
		n := &nodes[i]
		if err := m.step(n); err != nil {
			return err
		}
		switch n.Op {
		case OpRight:
			m.ptr += uint32(n.Count)
		case OpLeft:
			m.ptr -= uint32(n.Count)
		case OpInc, OpDec:
			c, err := m.cell(n)
			if err != nil {
				return err
			}
			if n.Op == OpInc {
				*c += byte(n.Count)
			} else {
				*c -= byte(n.Count)
			}
		case OpOutput:
			c, err := m.cell(n)
			if err != nil {
				return err
			}
			if err := m.out.WriteByte(*c); err != nil {
				return errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "write output")
			}
		case OpInput:
			c, err := m.cell(n)
			if err != nil {
				return err
			}
			*c, err = m.read()
			if err != nil {
				return err
			}
		case OpLoop:
			for {
				c, err := m.cell(n)
				if err != nil {
					return err
				}
				if *c == 0 {
					break
				}
				if err := m.step(n); err != nil {
					return err
				}
				if err := m.run(n.Body); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (m *machine) step(n *Node) error {
	m.steps++
	if m.max > 0 && m.steps > m.max {
		return errors.New(errors.PhaseRuntime, errors.KindTrap).
			At(n.Pos).
			Value(m.max).
			Detail("step limit %d exceeded", m.max).
			Build()
	}
	return nil
}

func (m *machine) cell(n *Node) (*byte, error) {
	if uint64(m.ptr) >= uint64(len(m.tape)) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTrap).
			At(n.Pos).
			Value(m.ptr).
			Cause(fmt.Errorf("out of bounds memory access at %d", m.ptr)).
			Detail("cell %d outside the %d byte tape", m.ptr, len(m.tape)).
			Build()
	}
	return &m.tape[m.ptr], nil
}

func (m *machine) read() (byte, error) {
	if m.input == InputZero || m.in == nil {
		return 0, nil
	}
	b, err := m.in.ReadByte()
	if stderrors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "read input")
	}
	return b, nil
}
