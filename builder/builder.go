package builder

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

type importDecl struct {
	imp  wasm.Import
	ft   wasm.FuncType
	kind Kind
}

type funcDecl struct {
	ft     wasm.FuncType
	locals []wasm.ValType
	body   []wasm.Instruction
}

type exportDecl struct {
	name string
	ref  string
	kind Kind
}

type elemDecl struct {
	table  string
	offset []wasm.Instruction
	funcs  []string
	mode   wasm.SegmentMode
}

type dataDecl struct {
	memory string
	offset []wasm.Instruction
	init   []byte
	mode   wasm.SegmentMode
}

// ModuleBuilder collects declarations that refer to each other by name and
// turns them into a *wasm.Module. Declaration order does not matter:
// indices are assigned when Build seals the resolver, imports first.
//
// Declaration errors are sticky; the first one is returned by Build.
type ModuleBuilder struct {
	resolver *Resolver
	err      error
	start    string
	imports  []importDecl
	funcs    []funcDecl
	tables   []wasm.TableType
	memories []wasm.MemoryType
	globals  []wasm.Global
	exports  []exportDecl
	elems    []elemDecl
	data     []dataDecl
	customs  []*wasm.CustomSection
	hasStart bool
	built    bool
}

// New returns an empty module builder.
func New() *ModuleBuilder {
	return &ModuleBuilder{resolver: NewResolver()}
}

// Resolver exposes the builder's index spaces.
func (b *ModuleBuilder) Resolver() *Resolver { return b.resolver }

// Err returns the first declaration error.
func (b *ModuleBuilder) Err() error { return b.err }

func (b *ModuleBuilder) declare(kind Kind, name string, imported bool) bool {
	if b.err != nil {
		return false
	}
	if err := b.resolver.declare(kind, name, imported); err != nil {
		b.err = err
		return false
	}
	return true
}

// ImportFunc declares an imported function addressable as sym.
func (b *ModuleBuilder) ImportFunc(sym, module, field string, ft wasm.FuncType) *ModuleBuilder {
	if b.declare(KindFunc, sym, true) {
		b.imports = append(b.imports, importDecl{
			kind: KindFunc,
			ft:   ft,
			imp:  wasm.Import{Module: module, Name: field, Desc: wasm.ImportDesc{Kind: wasm.KindFunc}},
		})
	}
	return b
}

// ImportMemory declares an imported memory.
func (b *ModuleBuilder) ImportMemory(sym, module, field string, mt wasm.MemoryType) *ModuleBuilder {
	if b.declare(KindMemory, sym, true) {
		b.imports = append(b.imports, importDecl{
			kind: KindMemory,
			imp:  wasm.Import{Module: module, Name: field, Desc: wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &mt}},
		})
	}
	return b
}

// ImportGlobal declares an imported global.
func (b *ModuleBuilder) ImportGlobal(sym, module, field string, gt wasm.GlobalType) *ModuleBuilder {
	if b.declare(KindGlobal, sym, true) {
		b.imports = append(b.imports, importDecl{
			kind: KindGlobal,
			imp:  wasm.Import{Module: module, Name: field, Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: &gt}},
		})
	}
	return b
}

// ImportTable declares an imported table.
func (b *ModuleBuilder) ImportTable(sym, module, field string, tt wasm.TableType) *ModuleBuilder {
	if b.declare(KindTable, sym, true) {
		b.imports = append(b.imports, importDecl{
			kind: KindTable,
			imp:  wasm.Import{Module: module, Name: field, Desc: wasm.ImportDesc{Kind: wasm.KindTable, Table: &tt}},
		})
	}
	return b
}

// Func declares a local function. body may call functions and access
// globals by name.
func (b *ModuleBuilder) Func(sym string, ft wasm.FuncType, locals []wasm.ValType, body []wasm.Instruction) *ModuleBuilder {
	if b.declare(KindFunc, sym, false) {
		b.funcs = append(b.funcs, funcDecl{ft: ft, locals: locals, body: body})
	}
	return b
}

// Memory declares a local memory.
func (b *ModuleBuilder) Memory(sym string, mt wasm.MemoryType) *ModuleBuilder {
	if b.declare(KindMemory, sym, false) {
		b.memories = append(b.memories, mt)
	}
	return b
}

// Table declares a local table.
func (b *ModuleBuilder) Table(sym string, tt wasm.TableType) *ModuleBuilder {
	if b.declare(KindTable, sym, false) {
		b.tables = append(b.tables, tt)
	}
	return b
}

// Global declares a local global. init may read an imported global by
// name.
func (b *ModuleBuilder) Global(sym string, gt wasm.GlobalType, init ...wasm.Instruction) *ModuleBuilder {
	if b.declare(KindGlobal, sym, false) {
		b.globals = append(b.globals, wasm.Global{Type: gt, Init: init})
	}
	return b
}

// Export exports the entity sym of the given kind as name.
func (b *ModuleBuilder) Export(name string, kind Kind, sym string) *ModuleBuilder {
	if b.err == nil {
		b.exports = append(b.exports, exportDecl{name: name, kind: kind, ref: sym})
	}
	return b
}

// Start makes sym the start function.
func (b *ModuleBuilder) Start(sym string) *ModuleBuilder {
	if b.err != nil {
		return b
	}
	if b.hasStart {
		b.err = errors.Duplicate(errors.PhaseBuild, "start", sym)
		return b
	}
	b.start, b.hasStart = sym, true
	return b
}

// Elements adds an element segment listing functions by name. Active
// segments need a table (empty name means table 0) and an offset; passive
// and declarative segments take neither.
func (b *ModuleBuilder) Elements(mode wasm.SegmentMode, table string, offset []wasm.Instruction, funcs ...string) *ModuleBuilder {
	if b.err == nil {
		b.elems = append(b.elems, elemDecl{mode: mode, table: table, offset: offset, funcs: funcs})
	}
	return b
}

// Data adds an active data segment; an empty memory name means memory 0.
func (b *ModuleBuilder) Data(memory string, offset []wasm.Instruction, init []byte) *ModuleBuilder {
	if b.err == nil {
		b.data = append(b.data, dataDecl{mode: wasm.ModeActive, memory: memory, offset: offset, init: init})
	}
	return b
}

// PassiveData adds a passive data segment.
func (b *ModuleBuilder) PassiveData(init []byte) *ModuleBuilder {
	if b.err == nil {
		b.data = append(b.data, dataDecl{mode: wasm.ModePassive, init: init})
	}
	return b
}

// Custom appends a custom section.
func (b *ModuleBuilder) Custom(name string, data []byte) *ModuleBuilder {
	if b.err == nil {
		b.customs = append(b.customs, &wasm.CustomSection{Name: name, Data: data})
	}
	return b
}

// Build seals the resolver, resolves every symbolic reference and returns
// the module. Unresolved names are reported together as an
// *errors.UnresolvedError. A builder can be built once.
func (b *ModuleBuilder) Build() (*wasm.Module, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.built {
		return nil, errors.New(errors.PhaseBuild, errors.KindInvalidData).
			Detail("module was already built").
			Build()
	}
	b.built = true
	b.resolver.Seal()
	c := b.resolver.newCollector()

	types := &wasm.TypeSection{}
	m := wasm.NewModule()

	if len(b.imports) > 0 {
		sec := &wasm.ImportSection{}
		for _, d := range b.imports {
			imp := d.imp
			if d.kind == KindFunc {
				imp.Desc.TypeIdx = types.Add(d.ft)
			}
			sec.Imports = append(sec.Imports, imp)
		}
		m.Add(sec)
	}

	if len(b.funcs) > 0 {
		funcs := &wasm.FunctionSection{}
		code := &wasm.CodeSection{}
		for _, f := range b.funcs {
			funcs.TypeIdxs = append(funcs.TypeIdxs, types.Add(f.ft))
			code.Bodies = append(code.Bodies, wasm.FuncBody{
				Locals: append([]wasm.ValType(nil), f.locals...),
				Body:   c.body(f.body),
			})
		}
		m.Add(funcs, code)
	}

	if len(types.Types) > 0 {
		m.Add(types)
	}
	if len(b.tables) > 0 {
		m.Add(&wasm.TableSection{Tables: append([]wasm.TableType(nil), b.tables...)})
	}
	if len(b.memories) > 0 {
		m.Add(&wasm.MemorySection{Memories: append([]wasm.MemoryType(nil), b.memories...)})
	}

	if len(b.globals) > 0 {
		sec := &wasm.GlobalSection{}
		for _, g := range b.globals {
			sec.Globals = append(sec.Globals, wasm.Global{Type: g.Type, Init: c.body(g.Init)})
		}
		m.Add(sec)
	}

	if len(b.exports) > 0 {
		sec := &wasm.ExportSection{}
		for _, e := range b.exports {
			sec.Exports = append(sec.Exports, wasm.Export{
				Name: e.name,
				Kind: byte(e.kind),
				Idx:  c.index(e.kind, e.ref),
			})
		}
		m.Add(sec)
	}

	if b.hasStart {
		m.Add(&wasm.StartSection{Func: c.index(KindFunc, b.start)})
	}

	if len(b.elems) > 0 {
		sec := &wasm.ElementSection{}
		for _, e := range b.elems {
			seg := wasm.ElementSegment{Mode: e.mode, Offset: c.body(e.offset)}
			if e.table != "" {
				seg.TableIdx = c.index(KindTable, e.table)
			}
			for _, f := range e.funcs {
				seg.FuncIdxs = append(seg.FuncIdxs, c.index(KindFunc, f))
			}
			sec.Segments = append(sec.Segments, seg)
		}
		m.Add(sec)
	}

	if len(b.data) > 0 {
		sec := &wasm.DataSection{}
		for _, d := range b.data {
			seg := wasm.DataSegment{Mode: d.mode, Offset: c.body(d.offset), Init: d.init}
			if d.memory != "" {
				seg.MemIdx = c.index(KindMemory, d.memory)
			}
			sec.Segments = append(sec.Segments, seg)
		}
		m.Add(sec)
	}

	for _, cs := range b.customs {
		m.Add(cs)
	}

	if err := c.err(); err != nil {
		Logger().Debug("module build failed", zap.Error(err))
		return nil, err
	}

	Logger().Debug("module built",
		zap.Int("imports", len(b.imports)),
		zap.Int("functions", len(b.funcs)),
		zap.Int("types", len(types.Types)),
		zap.Int("sections", len(m.Sections)),
	)
	return m, nil
}
