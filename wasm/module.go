package wasm

// Module is an in-memory WebAssembly module: a bag of sections. The order
// of Sections is irrelevant to the encoded form; at most one section of
// each standard kind may be present.
type Module struct {
	Sections []Section
}

// NewModule creates a module from the given sections.
func NewModule(sections ...Section) *Module {
	return &Module{Sections: sections}
}

// Add appends sections to the module.
func (m *Module) Add(sections ...Section) {
	m.Sections = append(m.Sections, sections...)
}

// section returns the first section with the given id.
func (m *Module) section(id byte) Section {
	for _, s := range m.Sections {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// Types returns the type section, or nil when absent.
func (m *Module) Types() *TypeSection {
	s, _ := m.section(SectionType).(*TypeSection)
	return s
}

// Imports returns the import section, or nil when absent.
func (m *Module) Imports() *ImportSection {
	s, _ := m.section(SectionImport).(*ImportSection)
	return s
}

// Functions returns the function section, or nil when absent.
func (m *Module) Functions() *FunctionSection {
	s, _ := m.section(SectionFunction).(*FunctionSection)
	return s
}

// Tables returns the table section, or nil when absent.
func (m *Module) Tables() *TableSection {
	s, _ := m.section(SectionTable).(*TableSection)
	return s
}

// Memories returns the memory section, or nil when absent.
func (m *Module) Memories() *MemorySection {
	s, _ := m.section(SectionMemory).(*MemorySection)
	return s
}

// Globals returns the global section, or nil when absent.
func (m *Module) Globals() *GlobalSection {
	s, _ := m.section(SectionGlobal).(*GlobalSection)
	return s
}

// Exports returns the export section, or nil when absent.
func (m *Module) Exports() *ExportSection {
	s, _ := m.section(SectionExport).(*ExportSection)
	return s
}

// Start returns the start section, or nil when absent.
func (m *Module) Start() *StartSection {
	s, _ := m.section(SectionStart).(*StartSection)
	return s
}

// Elements returns the element section, or nil when absent.
func (m *Module) Elements() *ElementSection {
	s, _ := m.section(SectionElement).(*ElementSection)
	return s
}

// Code returns the code section, or nil when absent.
func (m *Module) Code() *CodeSection {
	s, _ := m.section(SectionCode).(*CodeSection)
	return s
}

// Data returns the data section, or nil when absent.
func (m *Module) Data() *DataSection {
	s, _ := m.section(SectionData).(*DataSection)
	return s
}

// Customs returns every custom section in insertion order.
func (m *Module) Customs() []*CustomSection {
	var out []*CustomSection
	for _, s := range m.Sections {
		if c, ok := s.(*CustomSection); ok {
			out = append(out, c)
		}
	}
	return out
}

// NumImported returns how many imports of the given kind the module has.
func (m *Module) NumImported(kind byte) int {
	imports := m.Imports()
	if imports == nil {
		return 0
	}
	count := 0
	for _, imp := range imports.Imports {
		if imp.Desc.Kind == kind {
			count++
		}
	}
	return count
}

// NumTypes returns the number of function types.
func (m *Module) NumTypes() int {
	if t := m.Types(); t != nil {
		return len(t.Types)
	}
	return 0
}

// NumFuncs returns the size of the function index space: imported
// functions first, then local definitions.
func (m *Module) NumFuncs() int {
	n := m.NumImported(KindFunc)
	if f := m.Functions(); f != nil {
		n += len(f.TypeIdxs)
	}
	return n
}

// NumTables returns the size of the table index space.
func (m *Module) NumTables() int {
	n := m.NumImported(KindTable)
	if t := m.Tables(); t != nil {
		n += len(t.Tables)
	}
	return n
}

// NumMemories returns the size of the memory index space.
func (m *Module) NumMemories() int {
	n := m.NumImported(KindMemory)
	if mem := m.Memories(); mem != nil {
		n += len(mem.Memories)
	}
	return n
}

// NumGlobals returns the size of the global index space.
func (m *Module) NumGlobals() int {
	n := m.NumImported(KindGlobal)
	if g := m.Globals(); g != nil {
		n += len(g.Globals)
	}
	return n
}

// FuncTypeIndex returns the type index of function funcIdx.
func (m *Module) FuncTypeIndex(funcIdx uint32) (uint32, bool) {
	imported := uint32(0)
	if imports := m.Imports(); imports != nil {
		for _, imp := range imports.Imports {
			if imp.Desc.Kind != KindFunc {
				continue
			}
			if imported == funcIdx {
				return imp.Desc.TypeIdx, true
			}
			imported++
		}
	}
	local := funcIdx - imported
	if f := m.Functions(); f != nil && funcIdx >= imported && int(local) < len(f.TypeIdxs) {
		return f.TypeIdxs[local], true
	}
	return 0, false
}

// FuncType returns the signature of function funcIdx.
func (m *Module) FuncType(funcIdx uint32) (FuncType, bool) {
	typeIdx, ok := m.FuncTypeIndex(funcIdx)
	if !ok {
		return FuncType{}, false
	}
	types := m.Types()
	if types == nil || int(typeIdx) >= len(types.Types) {
		return FuncType{}, false
	}
	return types.Types[typeIdx], true
}

// GlobalType returns the type of global globalIdx.
func (m *Module) GlobalType(globalIdx uint32) (GlobalType, bool) {
	imported := uint32(0)
	if imports := m.Imports(); imports != nil {
		for _, imp := range imports.Imports {
			if imp.Desc.Kind != KindGlobal {
				continue
			}
			if imported == globalIdx {
				if imp.Desc.Global == nil {
					return GlobalType{}, false
				}
				return *imp.Desc.Global, true
			}
			imported++
		}
	}
	local := globalIdx - imported
	if g := m.Globals(); g != nil && globalIdx >= imported && int(local) < len(g.Globals) {
		return g.Globals[local].Type, true
	}
	return GlobalType{}, false
}
