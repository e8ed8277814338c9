package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/wippyai/wasmgen/wasm"
)

var kindNames = [...]string{"func", "table", "memory", "global"}

func kindName(k byte) string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind%d", k)
}

// dumpModule writes a readable listing of m: imports, memories, exports and
// every function body with nested blocks indented.
func dumpModule(w io.Writer, m *wasm.Module) error {
	d := &dumper{w: w}

	funcIdx := 0
	if imports := m.Imports(); imports != nil {
		for _, imp := range imports.Imports {
			switch imp.Desc.Kind {
			case wasm.KindFunc:
				ft, _ := m.FuncType(uint32(funcIdx))
				d.line(0, "(import %q %q (func %d %s))", imp.Module, imp.Name, funcIdx, ft)
				funcIdx++
			default:
				d.line(0, "(import %q %q (%s))", imp.Module, imp.Name, kindName(imp.Desc.Kind))
			}
		}
	}
	if mems := m.Memories(); mems != nil {
		for i, mem := range mems.Memories {
			d.line(0, "(memory %d %s)", i, mem.Limits)
		}
	}
	if exports := m.Exports(); exports != nil {
		for _, e := range exports.Exports {
			d.line(0, "(export %q (%s %d))", e.Name, kindName(e.Kind), e.Idx)
		}
	}
	if start := m.Start(); start != nil {
		d.line(0, "(start %d)", start.Func)
	}
	if code := m.Code(); code != nil {
		for _, body := range code.Bodies {
			ft, _ := m.FuncType(uint32(funcIdx))
			d.line(0, "(func %d %s", funcIdx, ft)
			if len(body.Locals) > 0 {
				locals := make([]string, len(body.Locals))
				for i, l := range body.Locals {
					locals[i] = l.String()
				}
				d.line(1, "(local %s)", strings.Join(locals, " "))
			}
			d.instrs(1, body.Body)
			d.line(0, ")")
			funcIdx++
		}
	}
	return d.err
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) line(depth int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (d *dumper) instrs(depth int, instrs []wasm.Instruction) {
	for _, in := range instrs {
		d.line(depth, "%s", in)
		switch in.Opcode {
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			d.instrs(depth+1, in.Body)
			if len(in.Else) > 0 {
				d.line(depth, "else")
				d.instrs(depth+1, in.Else)
			}
			d.line(depth, "end")
		}
	}
}
