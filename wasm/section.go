package wasm

import (
	"github.com/wippyai/wasmgen/wasm/internal/binary"
)

// Section is one module section. The set of implementations is closed:
// the eleven standard sections plus CustomSection.
type Section interface {
	// ID returns the binary section id; SectionName maps it to a name.
	ID() byte

	encode(w *binary.Writer) error
}

// TypeSection holds the function signatures of the module.
type TypeSection struct {
	Types []FuncType
}

// Add returns the index of ft, appending it if no equal signature exists.
func (s *TypeSection) Add(ft FuncType) uint32 {
	for i, t := range s.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	s.Types = append(s.Types, ft)
	return uint32(len(s.Types) - 1)
}

// ImportSection declares host-provided entities.
type ImportSection struct {
	Imports []Import
}

// FunctionSection declares the signature of every local function by type index.
type FunctionSection struct {
	TypeIdxs []uint32
}

// TableSection declares local tables.
type TableSection struct {
	Tables []TableType
}

// MemorySection declares local memories.
type MemorySection struct {
	Memories []MemoryType
}

// GlobalSection declares local globals.
type GlobalSection struct {
	Globals []Global
}

// ExportSection publishes entities by name.
type ExportSection struct {
	Exports []Export
}

// StartSection names the function run at instantiation.
type StartSection struct {
	Func uint32
}

// ElementSection holds table initializers.
type ElementSection struct {
	Segments []ElementSegment
}

// CodeSection holds one body per FunctionSection entry, in the same order.
type CodeSection struct {
	Bodies []FuncBody
}

// DataSection holds memory initializers.
type DataSection struct {
	Segments []DataSegment
}

// CustomSection is a named opaque payload. Custom sections may repeat and
// are emitted after all standard sections in the order they were added.
type CustomSection struct {
	Name string
	Data []byte
}

func (*TypeSection) ID() byte     { return SectionType }
func (*ImportSection) ID() byte   { return SectionImport }
func (*FunctionSection) ID() byte { return SectionFunction }
func (*TableSection) ID() byte    { return SectionTable }
func (*MemorySection) ID() byte   { return SectionMemory }
func (*GlobalSection) ID() byte   { return SectionGlobal }
func (*ExportSection) ID() byte   { return SectionExport }
func (*StartSection) ID() byte    { return SectionStart }
func (*ElementSection) ID() byte  { return SectionElement }
func (*CodeSection) ID() byte     { return SectionCode }
func (*DataSection) ID() byte     { return SectionData }
func (*CustomSection) ID() byte   { return SectionCustom }

// SectionName returns the name for a section id.
func SectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom"
	case SectionType:
		return "type"
	case SectionImport:
		return "import"
	case SectionFunction:
		return "function"
	case SectionTable:
		return "table"
	case SectionMemory:
		return "memory"
	case SectionGlobal:
		return "global"
	case SectionExport:
		return "export"
	case SectionStart:
		return "start"
	case SectionElement:
		return "element"
	case SectionCode:
		return "code"
	case SectionData:
		return "data"
	}
	return "unknown"
}
