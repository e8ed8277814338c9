package wasm

import (
	"fmt"
	"strings"
)

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	case ValExternRef:
		return "externref"
	}
	return fmt.Sprintf("valtype(0x%02x)", byte(v))
}

// IsNum reports whether v is one of the four numeric types.
func (v ValType) IsNum() bool {
	switch v {
	case ValI32, ValI64, ValF32, ValF64:
		return true
	}
	return false
}

// IsRef reports whether v is a reference type usable as a table element.
func (v ValType) IsRef() bool {
	return v == ValFuncRef || v == ValExternRef
}

// FuncType is a function signature. Two FuncTypes are the same type when
// their parameter and result lists are equal.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports structural equality.
func (f FuncType) Equal(o FuncType) bool {
	return valTypesEqual(f.Params, o.Params) && valTypesEqual(f.Results, o.Results)
}

func (f FuncType) String() string {
	return "[" + joinValTypes(f.Params) + "] -> [" + joinValTypes(f.Results) + "]"
}

func valTypesEqual(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinValTypes(ts []ValType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// Limits bounds the size of a table (elements) or memory (pages).
type Limits struct {
	Max *uint32
	Min uint32
}

// Bounded returns limits with both a minimum and a maximum.
func Bounded(min, max uint32) Limits {
	return Limits{Min: min, Max: &max}
}

// Unbounded returns limits with only a minimum.
func Unbounded(min uint32) Limits {
	return Limits{Min: min}
}

func (l Limits) String() string {
	if l.Max == nil {
		return fmt.Sprintf("%d", l.Min)
	}
	return fmt.Sprintf("%d %d", l.Min, *l.Max)
}

// TableType describes a table with element type and size limits.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory with size limits in pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes a global variable's type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// ImportDesc describes what an import provides. Kind selects which of the
// remaining fields is meaningful.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// Import is a host-provided function, table, memory or global.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// Export describes an exported item.
// Kind uses KindFunc, KindTable, KindMemory or KindGlobal.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Global is a module-defined global with its constant initializer.
type Global struct {
	Init []Instruction
	Type GlobalType
}

// FuncBody holds a function's locals (excluding parameters) and its body.
// Locals are declared one per entry; the encoder groups runs of equal types.
type FuncBody struct {
	Locals []ValType
	Body   []Instruction
}

// SegmentMode selects how an element or data segment is applied.
type SegmentMode uint8

const (
	ModeActive      SegmentMode = iota // copied into a table/memory at instantiation
	ModePassive                        // available to bulk instructions only
	ModeDeclarative                    // element segments only: forward declaration
)

func (m SegmentMode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModePassive:
		return "passive"
	case ModeDeclarative:
		return "declarative"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ElementSegment lists function indices to place in a table.
//
// Binary flags follow from Mode and TableIdx:
//   - 0: active, table 0, offset expr, vec(funcidx)
//   - 1: passive, elemkind, vec(funcidx)
//   - 2: active, tableidx, offset expr, elemkind, vec(funcidx)
//   - 3: declarative, elemkind, vec(funcidx)
type ElementSegment struct {
	Offset   []Instruction
	FuncIdxs []uint32
	TableIdx uint32
	Mode     SegmentMode
}

// Flags returns the binary segment flag.
func (e ElementSegment) Flags() uint32 {
	switch e.Mode {
	case ModePassive:
		return 1
	case ModeDeclarative:
		return 3
	}
	if e.TableIdx != 0 {
		return 2
	}
	return 0
}

// DataSegment holds bytes for linear memory.
//
// Binary flags follow from Mode and MemIdx:
//   - 0: active, memory 0, offset expr, vec(byte)
//   - 1: passive, vec(byte)
//   - 2: active, memidx, offset expr, vec(byte)
type DataSegment struct {
	Offset []Instruction
	Init   []byte
	MemIdx uint32
	Mode   SegmentMode
}

// Flags returns the binary segment flag.
func (d DataSegment) Flags() uint32 {
	if d.Mode == ModePassive {
		return 1
	}
	if d.MemIdx != 0 {
		return 2
	}
	return 0
}

// elemKindFuncRef is the only element kind of the function-index formats.
const elemKindFuncRef byte = 0x00
