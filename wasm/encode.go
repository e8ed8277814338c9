package wasm

import (
	"sort"
	"strconv"

	"github.com/wippyai/wasmgen/wasm/internal/binary"
)

// Assemble validates m and encodes it to the WebAssembly binary format.
// Standard sections are written in canonical id order regardless of their
// order in m.Sections; custom sections follow in insertion order. On error
// no bytes are returned. m is not modified.
func Assemble(m *Module) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m.encode()
}

// Encode is Assemble as a method.
func (m *Module) Encode() ([]byte, error) {
	return Assemble(m)
}

func (m *Module) encode() ([]byte, error) {
	w := binary.NewWriter()
	w.WriteBytes(Magic[:])
	w.WriteBytes(Version[:])

	for _, s := range m.ordered() {
		payload := binary.NewWriter()
		if err := s.encode(payload); err != nil {
			return nil, err
		}
		writeSection(w, s.ID(), payload.Bytes())
	}
	return w.Bytes(), nil
}

// ordered returns standard sections sorted by id followed by custom
// sections in insertion order.
func (m *Module) ordered() []Section {
	var standard, custom []Section
	for _, s := range m.Sections {
		if s.ID() == SectionCustom {
			custom = append(custom, s)
		} else {
			standard = append(standard, s)
		}
	}
	sort.SliceStable(standard, func(i, j int) bool {
		return standard[i].ID() < standard[j].ID()
	})
	return append(standard, custom...)
}

func writeSection(w *binary.Writer, id byte, data []byte) {
	w.Byte(id)
	w.WriteSized(data)
}

func (s *TypeSection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.Types)))
	for _, ft := range s.Types {
		w.Byte(FuncTypeByte)
		writeValTypes(w, ft.Params)
		writeValTypes(w, ft.Results)
	}
	return nil
}

func (s *ImportSection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.Imports)))
	for _, imp := range s.Imports {
		w.WriteName(imp.Module)
		w.WriteName(imp.Name)
		w.Byte(imp.Desc.Kind)
		switch imp.Desc.Kind {
		case KindFunc:
			w.WriteU32(imp.Desc.TypeIdx)
		case KindTable:
			writeTableType(w, *imp.Desc.Table)
		case KindMemory:
			writeLimits(w, imp.Desc.Memory.Limits)
		case KindGlobal:
			writeGlobalType(w, *imp.Desc.Global)
		}
	}
	return nil
}

func (s *FunctionSection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.TypeIdxs)))
	for _, idx := range s.TypeIdxs {
		w.WriteU32(idx)
	}
	return nil
}

func (s *TableSection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.Tables)))
	for _, t := range s.Tables {
		writeTableType(w, t)
	}
	return nil
}

func (s *MemorySection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.Memories)))
	for _, mem := range s.Memories {
		writeLimits(w, mem.Limits)
	}
	return nil
}

func (s *GlobalSection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.Globals)))
	for i, g := range s.Globals {
		writeGlobalType(w, g.Type)
		if err := encodeExprTo(w, g.Init, []string{"global", strconv.Itoa(i), "init"}); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportSection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.Exports)))
	for _, exp := range s.Exports {
		w.WriteName(exp.Name)
		w.Byte(exp.Kind)
		w.WriteU32(exp.Idx)
	}
	return nil
}

func (s *StartSection) encode(w *binary.Writer) error {
	w.WriteU32(s.Func)
	return nil
}

func (s *ElementSection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.Segments)))
	for i, seg := range s.Segments {
		flags := seg.Flags()
		w.WriteU32(flags)
		if flags == 2 {
			w.WriteU32(seg.TableIdx)
		}
		if seg.Mode == ModeActive {
			if err := encodeExprTo(w, seg.Offset, []string{"element", strconv.Itoa(i), "offset"}); err != nil {
				return err
			}
		}
		if flags != 0 {
			w.Byte(elemKindFuncRef)
		}
		w.WriteU32(uint32(len(seg.FuncIdxs)))
		for _, idx := range seg.FuncIdxs {
			w.WriteU32(idx)
		}
	}
	return nil
}

func (s *CodeSection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.Bodies)))
	for i, fb := range s.Bodies {
		body := binary.NewWriter()
		writeLocals(body, fb.Locals)
		if err := encodeExprTo(body, fb.Body, []string{"code", strconv.Itoa(i), "body"}); err != nil {
			return err
		}
		w.WriteSized(body.Bytes())
	}
	return nil
}

func (s *DataSection) encode(w *binary.Writer) error {
	w.WriteU32(uint32(len(s.Segments)))
	for i, seg := range s.Segments {
		flags := seg.Flags()
		w.WriteU32(flags)
		if flags == 2 {
			w.WriteU32(seg.MemIdx)
		}
		if seg.Mode == ModeActive {
			if err := encodeExprTo(w, seg.Offset, []string{"data", strconv.Itoa(i), "offset"}); err != nil {
				return err
			}
		}
		w.WriteSized(seg.Init)
	}
	return nil
}

func (s *CustomSection) encode(w *binary.Writer) error {
	w.WriteName(s.Name)
	w.WriteBytes(s.Data)
	return nil
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

// writeLocals groups consecutive locals of the same type into
// (count, type) runs.
func writeLocals(w *binary.Writer, locals []ValType) {
	type run struct {
		count uint32
		typ   ValType
	}
	var runs []run
	for _, t := range locals {
		if n := len(runs); n > 0 && runs[n-1].typ == t {
			runs[n-1].count++
			continue
		}
		runs = append(runs, run{count: 1, typ: t})
	}
	w.WriteU32(uint32(len(runs)))
	for _, r := range runs {
		w.WriteU32(r.count)
		w.Byte(byte(r.typ))
	}
}

const (
	limitsNoMax  byte = 0x00
	limitsHasMax byte = 0x01
)

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max == nil {
		w.Byte(limitsNoMax)
		w.WriteU32(l.Min)
		return
	}
	w.Byte(limitsHasMax)
	w.WriteU32(l.Min)
	w.WriteU32(*l.Max)
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(0x01)
	} else {
		w.Byte(0x00)
	}
}
