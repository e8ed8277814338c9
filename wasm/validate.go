package wasm

import (
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/wasmgen/errors"
)

// Validate checks the module for the structural properties the encoder
// relies on. It is not a type checker: operand stack typing is not
// verified. Every error is a *errors.Error in PhaseValidate naming the
// offending entity.
func (m *Module) Validate() error {
	if err := m.validateSections(); err != nil {
		return err
	}
	if err := m.validateTypes(); err != nil {
		return err
	}
	if err := m.validateImports(); err != nil {
		return err
	}
	if err := m.validateFunctions(); err != nil {
		return err
	}
	if err := m.validateTablesAndMemories(); err != nil {
		return err
	}
	if err := m.validateGlobals(); err != nil {
		return err
	}
	if err := m.validateExports(); err != nil {
		return err
	}
	if err := m.validateStart(); err != nil {
		return err
	}
	if err := m.validateElements(); err != nil {
		return err
	}
	if err := m.validateCode(); err != nil {
		return err
	}
	if err := m.validateData(); err != nil {
		return err
	}
	return m.validateCustoms()
}

func (m *Module) validateSections() error {
	seen := make(map[byte]bool)
	for _, s := range m.Sections {
		if s == nil {
			return errors.InvalidData(errors.PhaseValidate, nil, "nil section")
		}
		id := s.ID()
		if id == SectionCustom {
			continue
		}
		if seen[id] {
			return errors.DuplicateSection(SectionName(id))
		}
		seen[id] = true
	}
	if n := m.NumMemories(); n > 1 {
		return errors.New(errors.PhaseValidate, errors.KindDuplicate).
			Entity("memory").
			Value(n).
			Detail("at most one memory is allowed, module declares %d", n).
			Build()
	}
	return nil
}

func (m *Module) validateTypes() error {
	types := m.Types()
	if types == nil {
		return nil
	}
	for i, ft := range types.Types {
		path := []string{"type", strconv.Itoa(i)}
		for _, t := range ft.Params {
			if err := checkValType(t, path); err != nil {
				return err
			}
		}
		for _, t := range ft.Results {
			if err := checkValType(t, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Module) validateImports() error {
	imports := m.Imports()
	if imports == nil {
		return nil
	}
	numTypes := uint32(m.NumTypes())
	for i, imp := range imports.Imports {
		path := []string{"import", strconv.Itoa(i)}
		if err := checkName(imp.Module, "import module", path); err != nil {
			return err
		}
		if err := checkName(imp.Name, "import", path); err != nil {
			return err
		}
		switch imp.Desc.Kind {
		case KindFunc:
			if imp.Desc.TypeIdx >= numTypes {
				return errors.IndexOutOfRange(errors.PhaseValidate, path, "type", imp.Desc.TypeIdx, numTypes)
			}
		case KindTable:
			if imp.Desc.Table == nil {
				return missingDesc(path, "table")
			}
			if err := checkTableType(*imp.Desc.Table, path); err != nil {
				return err
			}
		case KindMemory:
			if imp.Desc.Memory == nil {
				return missingDesc(path, "memory")
			}
			if err := checkMemoryType(*imp.Desc.Memory, path); err != nil {
				return err
			}
		case KindGlobal:
			if imp.Desc.Global == nil {
				return missingDesc(path, "global")
			}
			if err := checkValType(imp.Desc.Global.ValType, path); err != nil {
				return err
			}
		default:
			return errors.New(errors.PhaseValidate, errors.KindInvalidType).
				Path(path...).
				Value(imp.Desc.Kind).
				Detail("unknown import kind 0x%02x", imp.Desc.Kind).
				Build()
		}
	}
	return nil
}

func missingDesc(path []string, entity string) error {
	return errors.New(errors.PhaseValidate, errors.KindInvalidData).
		Path(path...).
		Entity(entity).
		Detail("import descriptor is missing its %s type", entity).
		Build()
}

func (m *Module) validateFunctions() error {
	funcs := m.Functions()
	if funcs == nil {
		return nil
	}
	numTypes := uint32(m.NumTypes())
	for i, idx := range funcs.TypeIdxs {
		if idx >= numTypes {
			return errors.IndexOutOfRange(errors.PhaseValidate,
				[]string{"function", strconv.Itoa(i)}, "type", idx, numTypes)
		}
	}
	return nil
}

func (m *Module) validateTablesAndMemories() error {
	if tables := m.Tables(); tables != nil {
		for i, t := range tables.Tables {
			if err := checkTableType(t, []string{"table", strconv.Itoa(i)}); err != nil {
				return err
			}
		}
	}
	if mems := m.Memories(); mems != nil {
		for i, mem := range mems.Memories {
			if err := checkMemoryType(mem, []string{"memory", strconv.Itoa(i)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Module) validateGlobals() error {
	globals := m.Globals()
	if globals == nil {
		return nil
	}
	for i, g := range globals.Globals {
		path := []string{"global", strconv.Itoa(i)}
		if err := checkValType(g.Type.ValType, path); err != nil {
			return err
		}
		if err := m.checkConstExpr(g.Init, g.Type.ValType, appendPath(path, "init")); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) validateExports() error {
	exports := m.Exports()
	if exports == nil {
		return nil
	}
	seen := make(map[string]bool)
	for i, exp := range exports.Exports {
		path := []string{"export", strconv.Itoa(i)}
		if err := checkName(exp.Name, "export", path); err != nil {
			return err
		}
		if seen[exp.Name] {
			return errors.New(errors.PhaseValidate, errors.KindDuplicate).
				Path(path...).
				Entity("export").
				Name(exp.Name).
				Detail("export names must be unique").
				Build()
		}
		seen[exp.Name] = true

		var entity string
		var size int
		switch exp.Kind {
		case KindFunc:
			entity, size = "function", m.NumFuncs()
		case KindTable:
			entity, size = "table", m.NumTables()
		case KindMemory:
			entity, size = "memory", m.NumMemories()
		case KindGlobal:
			entity, size = "global", m.NumGlobals()
		default:
			return errors.New(errors.PhaseValidate, errors.KindInvalidType).
				Path(path...).
				Name(exp.Name).
				Value(exp.Kind).
				Detail("unknown export kind 0x%02x", exp.Kind).
				Build()
		}
		if exp.Idx >= uint32(size) {
			return errors.IndexOutOfRange(errors.PhaseValidate, path, entity, exp.Idx, uint32(size))
		}
	}
	return nil
}

func (m *Module) validateStart() error {
	start := m.Start()
	if start == nil {
		return nil
	}
	numFuncs := uint32(m.NumFuncs())
	if start.Func >= numFuncs {
		return errors.IndexOutOfRange(errors.PhaseValidate, []string{"start"}, "function", start.Func, numFuncs)
	}
	ft, ok := m.FuncType(start.Func)
	if !ok {
		return errors.New(errors.PhaseValidate, errors.KindInvalidSignature).
			Path("start").
			Entity("function").
			Value(start.Func).
			Detail("start function has no type").
			Build()
	}
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		return errors.New(errors.PhaseValidate, errors.KindInvalidSignature).
			Path("start").
			Entity("function").
			Value(start.Func).
			Detail("start function must have type [] -> [], got %s", ft).
			Build()
	}
	return nil
}

func (m *Module) validateElements() error {
	elems := m.Elements()
	if elems == nil {
		return nil
	}
	numFuncs := uint32(m.NumFuncs())
	numTables := uint32(m.NumTables())
	for i, seg := range elems.Segments {
		path := []string{"element", strconv.Itoa(i)}
		switch seg.Mode {
		case ModeActive:
			if seg.TableIdx >= numTables {
				return errors.IndexOutOfRange(errors.PhaseValidate, path, "table", seg.TableIdx, numTables)
			}
			if err := m.checkConstExpr(seg.Offset, ValI32, appendPath(path, "offset")); err != nil {
				return err
			}
		case ModePassive, ModeDeclarative:
			if len(seg.Offset) > 0 {
				return errors.InvalidData(errors.PhaseValidate, path, seg.Mode.String()+" segment cannot have an offset")
			}
		default:
			return errors.InvalidData(errors.PhaseValidate, path, "unknown segment mode "+seg.Mode.String())
		}
		for _, idx := range seg.FuncIdxs {
			if idx >= numFuncs {
				return errors.IndexOutOfRange(errors.PhaseValidate, path, "function", idx, numFuncs)
			}
		}
	}
	return nil
}

func (m *Module) validateCode() error {
	numFuncs := 0
	if f := m.Functions(); f != nil {
		numFuncs = len(f.TypeIdxs)
	}
	numBodies := 0
	code := m.Code()
	if code != nil {
		numBodies = len(code.Bodies)
	}
	if numFuncs != numBodies {
		return errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Path("code").
			Value(numBodies).
			Detail("function section declares %d function(s) but code section has %d bod(ies)", numFuncs, numBodies).
			Build()
	}
	if code == nil {
		return nil
	}

	ctx := m.newBodyContext()
	imported := uint32(m.NumImported(KindFunc))
	for i, fb := range code.Bodies {
		path := []string{"code", strconv.Itoa(i)}
		ft, _ := m.FuncType(imported + uint32(i))
		for _, t := range fb.Locals {
			if err := checkValType(t, appendPath(path, "locals")); err != nil {
				return err
			}
		}
		ctx.numLocals = uint32(len(ft.Params) + len(fb.Locals))
		if err := ctx.check(fb.Body, 1, appendPath(path, "body")); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) validateData() error {
	data := m.Data()
	if data == nil {
		return nil
	}
	numMemories := uint32(m.NumMemories())
	for i, seg := range data.Segments {
		path := []string{"data", strconv.Itoa(i)}
		switch seg.Mode {
		case ModeActive:
			if seg.MemIdx >= numMemories {
				return errors.IndexOutOfRange(errors.PhaseValidate, path, "memory", seg.MemIdx, numMemories)
			}
			if err := m.checkConstExpr(seg.Offset, ValI32, appendPath(path, "offset")); err != nil {
				return err
			}
		case ModePassive:
			if len(seg.Offset) > 0 {
				return errors.InvalidData(errors.PhaseValidate, path, "passive segment cannot have an offset")
			}
		default:
			return errors.InvalidData(errors.PhaseValidate, path, "data segments are active or passive, not "+seg.Mode.String())
		}
	}
	return nil
}

func (m *Module) validateCustoms() error {
	for i, c := range m.Customs() {
		if err := checkName(c.Name, "custom section", []string{"custom", strconv.Itoa(i)}); err != nil {
			return err
		}
	}
	return nil
}

// checkConstExpr accepts a single constant of type want, or global.get of
// an imported global of type want.
func (m *Module) checkConstExpr(expr []Instruction, want ValType, path []string) error {
	if len(expr) != 1 {
		return errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Path(path...).
			Value(len(expr)).
			Detail("constant expression must be exactly one instruction, got %d", len(expr)).
			Build()
	}
	in := expr[0]
	var got ValType
	switch in.Opcode {
	case OpI32Const:
		got = ValI32
	case OpI64Const:
		got = ValI64
	case OpF32Const:
		got = ValF32
	case OpF64Const:
		got = ValF64
	case OpGlobalGet:
		imm, ok := in.Imm.(GlobalImm)
		if !ok {
			break
		}
		if imm.Name != "" {
			return unresolvedAt(path, "global", imm.Name)
		}
		numImported := uint32(m.NumImported(KindGlobal))
		if imm.Index >= numImported {
			return errors.New(errors.PhaseValidate, errors.KindOutOfRange).
				Path(path...).
				Entity("global").
				Value(imm.Index).
				Detail("constant expressions may only read imported globals (%d imported)", numImported).
				Build()
		}
		gt, _ := m.GlobalType(imm.Index)
		got = gt.ValType
	default:
		return errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Path(path...).
			Value(in.Name()).
			Detail("%s is not a constant instruction", in.Name()).
			Build()
	}
	info, _ := LookupOpcode(in.Opcode)
	if err := checkShape(&in, info, path, errors.PhaseValidate); err != nil {
		return err
	}
	if got != want {
		return errors.New(errors.PhaseValidate, errors.KindInvalidType).
			Path(path...).
			Value(got).
			Detail("constant expression has type %s, want %s", got, want).
			Build()
	}
	return nil
}

// bodyContext carries the index space sizes a function body is checked against.
type bodyContext struct {
	m           *Module
	numLocals   uint32
	numFuncs    uint32
	numTypes    uint32
	numTables   uint32
	numMemories uint32
	numGlobals  uint32
}

func (m *Module) newBodyContext() *bodyContext {
	return &bodyContext{
		m:           m,
		numFuncs:    uint32(m.NumFuncs()),
		numTypes:    uint32(m.NumTypes()),
		numTables:   uint32(m.NumTables()),
		numMemories: uint32(m.NumMemories()),
		numGlobals:  uint32(m.NumGlobals()),
	}
}

// check walks instrs with labels enclosing labels, the function body
// itself being the outermost.
func (c *bodyContext) check(instrs []Instruction, labels uint32, path []string) error {
	for i := range instrs {
		in := &instrs[i]
		ipath := appendPath(path, strconv.Itoa(i))
		info, ok := LookupOpcode(in.Opcode)
		if !ok {
			return errors.New(errors.PhaseValidate, errors.KindUnsupported).
				Path(ipath...).
				Value(in.Opcode).
				Detail("opcode 0x%02x is not supported", in.Opcode).
				Build()
		}
		if err := checkShape(in, info, ipath, errors.PhaseValidate); err != nil {
			return err
		}
		if err := c.checkImm(in, info, labels, ipath); err != nil {
			return err
		}
		if info.Structured() {
			if err := c.check(in.Body, labels+1, appendPath(ipath, "body")); err != nil {
				return err
			}
			if err := c.check(in.Else, labels+1, appendPath(ipath, "else")); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *bodyContext) checkImm(in *Instruction, info OpcodeInfo, labels uint32, path []string) error {
	switch imm := in.Imm.(type) {
	case BlockImm:
		if !validBlockType(imm.Type) {
			return errors.OutOfRange(errors.PhaseValidate, path, imm.Type, "block type")
		}
		if imm.Type >= 0 && uint32(imm.Type) >= c.numTypes {
			return errors.IndexOutOfRange(errors.PhaseValidate, path, "type", uint32(imm.Type), c.numTypes)
		}

	case BranchImm:
		if imm.Depth >= labels {
			return errors.BranchDepth(errors.PhaseValidate, path, imm.Depth, labels)
		}

	case BrTableImm:
		for _, d := range append(imm.Targets[:len(imm.Targets):len(imm.Targets)], imm.Default) {
			if d >= labels {
				return errors.BranchDepth(errors.PhaseValidate, path, d, labels)
			}
		}

	case CallImm:
		if imm.Name != "" {
			return unresolvedAt(path, "function", imm.Name)
		}
		if imm.Func >= c.numFuncs {
			return errors.IndexOutOfRange(errors.PhaseValidate, path, "function", imm.Func, c.numFuncs)
		}

	case CallIndirectImm:
		if imm.TypeIdx >= c.numTypes {
			return errors.IndexOutOfRange(errors.PhaseValidate, path, "type", imm.TypeIdx, c.numTypes)
		}
		if imm.Table >= c.numTables {
			return errors.IndexOutOfRange(errors.PhaseValidate, path, "table", imm.Table, c.numTables)
		}

	case LocalImm:
		if imm.Index >= c.numLocals {
			return errors.IndexOutOfRange(errors.PhaseValidate, path, "local", imm.Index, c.numLocals)
		}

	case GlobalImm:
		if imm.Name != "" {
			return unresolvedAt(path, "global", imm.Name)
		}
		if imm.Index >= c.numGlobals {
			return errors.IndexOutOfRange(errors.PhaseValidate, path, "global", imm.Index, c.numGlobals)
		}
		if in.Opcode == OpGlobalSet {
			if gt, ok := c.m.GlobalType(imm.Index); ok && !gt.Mutable {
				return errors.New(errors.PhaseValidate, errors.KindInvalidType).
					Path(path...).
					Entity("global").
					Value(imm.Index).
					Detail("global.set on immutable global %d", imm.Index).
					Build()
			}
		}

	case MemoryImm:
		if c.numMemories == 0 {
			return noMemory(path, info.Name)
		}
		if imm.Align > info.Align {
			return errors.New(errors.PhaseValidate, errors.KindOutOfRange).
				Path(path...).
				Value(imm.Align).
				Detail("%s alignment 2^%d exceeds natural alignment 2^%d", info.Name, imm.Align, info.Align).
				Build()
		}

	case MemoryIdxImm:
		if imm.Memory >= c.numMemories {
			if c.numMemories == 0 {
				return noMemory(path, info.Name)
			}
			return errors.IndexOutOfRange(errors.PhaseValidate, path, "memory", imm.Memory, c.numMemories)
		}

	case nil:
		if info.Imm == ImmMemIdx && c.numMemories == 0 {
			return noMemory(path, info.Name)
		}
	}
	return nil
}

func noMemory(path []string, op string) error {
	return errors.New(errors.PhaseValidate, errors.KindOutOfRange).
		Path(path...).
		Entity("memory").
		Detail("%s requires a memory but the module has none", op).
		Build()
}

func unresolvedAt(path []string, entity, name string) error {
	return errors.New(errors.PhaseValidate, errors.KindUnresolved).
		Path(path...).
		Entity(entity).
		Name(name).
		Detail("symbolic reference was never resolved").
		Build()
}

func checkValType(t ValType, path []string) error {
	if t.IsNum() {
		return nil
	}
	return errors.New(errors.PhaseValidate, errors.KindInvalidType).
		Path(path...).
		Value(t).
		Detail("invalid value type %s", t).
		Build()
}

func checkName(name, entity string, path []string) error {
	if utf8.ValidString(name) {
		return nil
	}
	return errors.New(errors.PhaseValidate, errors.KindInvalidData).
		Path(path...).
		Entity(entity).
		Value(name).
		Detail("name is not valid UTF-8").
		Build()
}

func checkTableType(t TableType, path []string) error {
	if !t.ElemType.IsRef() {
		return errors.New(errors.PhaseValidate, errors.KindInvalidType).
			Path(path...).
			Entity("table").
			Value(t.ElemType).
			Detail("table element type must be a reference type, got %s", t.ElemType).
			Build()
	}
	return checkLimits(t.Limits, 0, path)
}

func checkMemoryType(mem MemoryType, path []string) error {
	return checkLimits(mem.Limits, MaxPages, path)
}

// checkLimits verifies min <= max and, when bound is non-zero, that both
// stay within bound.
func checkLimits(l Limits, bound uint32, path []string) error {
	if l.Max != nil && l.Min > *l.Max {
		return errors.New(errors.PhaseValidate, errors.KindOutOfRange).
			Path(path...).
			Value(l.Min).
			Detail("limits minimum %d exceeds maximum %d", l.Min, *l.Max).
			Build()
	}
	if bound == 0 {
		return nil
	}
	if l.Min > bound {
		return errors.New(errors.PhaseValidate, errors.KindOutOfRange).
			Path(path...).
			Value(l.Min).
			Detail("minimum %d pages exceeds %d", l.Min, bound).
			Build()
	}
	if l.Max != nil && *l.Max > bound {
		return errors.New(errors.PhaseValidate, errors.KindOutOfRange).
			Path(path...).
			Value(*l.Max).
			Detail("maximum %d pages exceeds %d", *l.Max, bound).
			Build()
	}
	return nil
}
