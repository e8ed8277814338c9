package wasm

import (
	"bytes"
	"fmt"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm/internal/binary"
)

// maxLocals bounds the locals a decoded body may declare.
const maxLocals = 1 << 20

// ParseModule decodes a WebAssembly binary into a Module. The supported
// subset is what this package can encode: the MVP sections and opcodes,
// sign extension, function-index element segments and active or passive
// data segments. Function bodies are decoded into nested instruction
// trees. Sections appear in the returned module in file order.
func ParseModule(data []byte) (*Module, error) {
	if len(data) < 8 || !bytes.Equal(data[:4], Magic[:]) {
		return nil, errors.New(errors.PhaseDecode, errors.KindMissingHeader).
			Detail("missing \\0asm magic").
			Build()
	}
	if !bytes.Equal(data[4:8], Version[:]) {
		return nil, errors.New(errors.PhaseDecode, errors.KindMissingHeader).
			Value(data[4:8]).
			Detail("unsupported version % x", data[4:8]).
			Build()
	}

	r := binary.NewReader(data)
	if _, err := r.Sub(8); err != nil {
		return nil, err
	}

	m := &Module{}
	var last byte
	for !r.EOF() {
		offset := r.Position()
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if id > SectionData {
			return nil, errors.New(errors.PhaseDecode, errors.KindUnsupported).
				Value(id).
				Detail("section id %d at offset %d is not supported", id, offset).
				Build()
		}
		if id != SectionCustom {
			if id == last {
				return nil, errors.New(errors.PhaseDecode, errors.KindDuplicateSection).
					Entity("section").
					Name(SectionName(id)).
					Detail("repeated at offset %d", offset).
					Build()
			}
			if id < last {
				return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Entity("section").
					Name(SectionName(id)).
					Detail("out of order at offset %d", offset).
					Build()
			}
			last = id
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		sr, err := r.Sub(int(size))
		if err != nil {
			return nil, err
		}

		s, err := parseSection(id, sr)
		if err != nil {
			return nil, err
		}
		if !sr.EOF() {
			return nil, decodeError(sr, SectionName(id), "%d trailing byte(s) in section", sr.Len())
		}
		m.Sections = append(m.Sections, s)
	}
	return m, nil
}

func parseSection(id byte, r *binary.Reader) (Section, error) {
	switch id {
	case SectionCustom:
		name, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		return &CustomSection{Name: name, Data: r.ReadRemaining()}, nil
	case SectionType:
		return parseTypeSection(r)
	case SectionImport:
		return parseImportSection(r)
	case SectionFunction:
		idxs, err := readU32Vec(r)
		return &FunctionSection{TypeIdxs: idxs}, err
	case SectionTable:
		return parseTableSection(r)
	case SectionMemory:
		return parseMemorySection(r)
	case SectionGlobal:
		return parseGlobalSection(r)
	case SectionExport:
		return parseExportSection(r)
	case SectionStart:
		idx, err := r.ReadU32()
		return &StartSection{Func: idx}, err
	case SectionElement:
		return parseElementSection(r)
	case SectionCode:
		return parseCodeSection(r)
	case SectionData:
		return parseDataSection(r)
	}
	return nil, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("section id %d", id))
}

func parseTypeSection(r *binary.Reader) (*TypeSection, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	s := &TypeSection{}
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if form != FuncTypeByte {
			return nil, decodeError(r, "type", "expected func type 0x60, got 0x%02x", form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return nil, err
		}
		results, err := readValTypes(r)
		if err != nil {
			return nil, err
		}
		s.Types = append(s.Types, FuncType{Params: params, Results: results})
	}
	return s, nil
}

func parseImportSection(r *binary.Reader) (*ImportSection, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	s := &ImportSection{}
	for i := uint32(0); i < count; i++ {
		var imp Import
		if imp.Module, err = r.ReadName(); err != nil {
			return nil, err
		}
		if imp.Name, err = r.ReadName(); err != nil {
			return nil, err
		}
		if imp.Desc.Kind, err = r.ReadByte(); err != nil {
			return nil, err
		}
		switch imp.Desc.Kind {
		case KindFunc:
			imp.Desc.TypeIdx, err = r.ReadU32()
		case KindTable:
			var t TableType
			t, err = readTableType(r)
			imp.Desc.Table = &t
		case KindMemory:
			var l Limits
			l, err = readLimits(r)
			imp.Desc.Memory = &MemoryType{Limits: l}
		case KindGlobal:
			var g GlobalType
			g, err = readGlobalType(r)
			imp.Desc.Global = &g
		default:
			return nil, decodeError(r, "import", "unknown import kind 0x%02x", imp.Desc.Kind)
		}
		if err != nil {
			return nil, err
		}
		s.Imports = append(s.Imports, imp)
	}
	return s, nil
}

func parseTableSection(r *binary.Reader) (*TableSection, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	s := &TableSection{}
	for i := uint32(0); i < count; i++ {
		t, err := readTableType(r)
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, t)
	}
	return s, nil
}

func parseMemorySection(r *binary.Reader) (*MemorySection, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	s := &MemorySection{}
	for i := uint32(0); i < count; i++ {
		l, err := readLimits(r)
		if err != nil {
			return nil, err
		}
		s.Memories = append(s.Memories, MemoryType{Limits: l})
	}
	return s, nil
}

func parseGlobalSection(r *binary.Reader) (*GlobalSection, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	s := &GlobalSection{}
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return nil, err
		}
		expr, err := readExpr(r)
		if err != nil {
			return nil, err
		}
		s.Globals = append(s.Globals, Global{Type: gt, Init: expr})
	}
	return s, nil
}

func parseExportSection(r *binary.Reader) (*ExportSection, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	s := &ExportSection{}
	for i := uint32(0); i < count; i++ {
		var exp Export
		if exp.Name, err = r.ReadName(); err != nil {
			return nil, err
		}
		if exp.Kind, err = r.ReadByte(); err != nil {
			return nil, err
		}
		if exp.Idx, err = r.ReadU32(); err != nil {
			return nil, err
		}
		s.Exports = append(s.Exports, exp)
	}
	return s, nil
}

func parseElementSection(r *binary.Reader) (*ElementSection, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	s := &ElementSection{}
	for i := uint32(0); i < count; i++ {
		flags, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		var seg ElementSegment
		switch flags {
		case 0:
			seg.Mode = ModeActive
		case 1:
			seg.Mode = ModePassive
		case 2:
			seg.Mode = ModeActive
			if seg.TableIdx, err = r.ReadU32(); err != nil {
				return nil, err
			}
		case 3:
			seg.Mode = ModeDeclarative
		default:
			return nil, errors.New(errors.PhaseDecode, errors.KindUnsupported).
				Path("element").
				Value(flags).
				Detail("element segment flags %d (expression elements) are not supported", flags).
				Build()
		}
		if seg.Mode == ModeActive {
			if seg.Offset, err = readExpr(r); err != nil {
				return nil, err
			}
		}
		if flags != 0 {
			kind, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			if kind != elemKindFuncRef {
				return nil, decodeError(r, "element", "unknown element kind 0x%02x", kind)
			}
		}
		if seg.FuncIdxs, err = readU32Vec(r); err != nil {
			return nil, err
		}
		s.Segments = append(s.Segments, seg)
	}
	return s, nil
}

func parseCodeSection(r *binary.Reader) (*CodeSection, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	s := &CodeSection{}
	for i := uint32(0); i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		br, err := r.Sub(int(size))
		if err != nil {
			return nil, err
		}
		fb, err := readFuncBody(br)
		if err != nil {
			return nil, err
		}
		if !br.EOF() {
			return nil, decodeError(br, "code", "%d trailing byte(s) after function body %d", br.Len(), i)
		}
		s.Bodies = append(s.Bodies, fb)
	}
	return s, nil
}

func readFuncBody(r *binary.Reader) (FuncBody, error) {
	groups, err := r.ReadU32()
	if err != nil {
		return FuncBody{}, err
	}
	var fb FuncBody
	for g := uint32(0); g < groups; g++ {
		n, err := r.ReadU32()
		if err != nil {
			return FuncBody{}, err
		}
		t, err := r.ReadByte()
		if err != nil {
			return FuncBody{}, err
		}
		if uint64(len(fb.Locals))+uint64(n) > maxLocals {
			return FuncBody{}, decodeError(r, "code", "too many locals")
		}
		for j := uint32(0); j < n; j++ {
			fb.Locals = append(fb.Locals, ValType(t))
		}
	}
	fb.Body, err = readExpr(r)
	return fb, err
}

func parseDataSection(r *binary.Reader) (*DataSection, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	s := &DataSection{}
	for i := uint32(0); i < count; i++ {
		flags, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		var seg DataSegment
		switch flags {
		case 0:
			seg.Mode = ModeActive
		case 1:
			seg.Mode = ModePassive
		case 2:
			seg.Mode = ModeActive
			if seg.MemIdx, err = r.ReadU32(); err != nil {
				return nil, err
			}
		default:
			return nil, decodeError(r, "data", "unknown data segment flags %d", flags)
		}
		if seg.Mode == ModeActive {
			if seg.Offset, err = readExpr(r); err != nil {
				return nil, err
			}
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if seg.Init, err = r.ReadBytes(int(size)); err != nil {
			return nil, err
		}
		s.Segments = append(s.Segments, seg)
	}
	return s, nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(count) > r.Len() {
		return nil, decodeError(r, "type", "%d value types exceed remaining input", count)
	}
	out := make([]ValType, count)
	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = ValType(b)
	}
	return out, nil
}

func readU32Vec(r *binary.Reader) ([]uint32, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(count) > r.Len() {
		return nil, decodeError(r, "vector", "%d entries exceed remaining input", count)
	}
	out := make([]uint32, count)
	for i := range out {
		if out[i], err = r.ReadU32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	lo, err := r.ReadU32()
	if err != nil {
		return Limits{}, err
	}
	switch flag {
	case limitsNoMax:
		return Unbounded(lo), nil
	case limitsHasMax:
		hi, err := r.ReadU32()
		if err != nil {
			return Limits{}, err
		}
		return Bounded(lo, hi), nil
	}
	return Limits{}, decodeError(r, "limits", "unsupported limits flag 0x%02x", flag)
}

func readTableType(r *binary.Reader) (TableType, error) {
	elem, err := r.ReadByte()
	if err != nil {
		return TableType{}, err
	}
	l, err := readLimits(r)
	return TableType{ElemType: ValType(elem), Limits: l}, err
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	t, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, decodeError(r, "global", "invalid mutability 0x%02x", mut)
	}
	return GlobalType{ValType: ValType(t), Mutable: mut == 1}, nil
}

// readExpr decodes instructions up to and including the terminating end.
func readExpr(r *binary.Reader) ([]Instruction, error) {
	instrs, term, err := readSeq(r)
	if err != nil {
		return nil, err
	}
	if term != OpEnd {
		return nil, decodeError(r, "code", "else outside of if")
	}
	return instrs, nil
}

// readSeq decodes instructions until end or else and returns which one
// terminated the sequence.
func readSeq(r *binary.Reader) ([]Instruction, byte, error) {
	var out []Instruction
	for {
		offset := r.Position()
		op, err := r.ReadByte()
		if err != nil {
			return nil, 0, err
		}
		if op == OpEnd || op == OpElse {
			return out, op, nil
		}
		info, ok := LookupOpcode(op)
		if !ok {
			return nil, 0, errors.New(errors.PhaseDecode, errors.KindUnsupported).
				Value(op).
				Detail("opcode 0x%02x at offset %d is not supported", op, offset).
				Build()
		}
		in := Instruction{Opcode: op}
		if err := readImm(r, &in, info); err != nil {
			return nil, 0, err
		}
		if info.Structured() {
			body, term, err := readSeq(r)
			if err != nil {
				return nil, 0, err
			}
			in.Body = body
			if term == OpElse {
				if op != OpIf {
					return nil, 0, decodeError(r, "code", "else inside %s", info.Name)
				}
				els, term, err := readSeq(r)
				if err != nil {
					return nil, 0, err
				}
				if term != OpEnd {
					return nil, 0, decodeError(r, "code", "second else in if")
				}
				in.Else = els
			}
		}
		out = append(out, in)
	}
}

func readImm(r *binary.Reader, in *Instruction, info OpcodeInfo) error {
	var err error
	switch info.Imm {
	case ImmNone:
	case ImmBlock:
		var bt int64
		bt, err = r.ReadS33()
		in.Imm = BlockImm{bt}
	case ImmBranch:
		var d uint32
		d, err = r.ReadU32()
		in.Imm = BranchImm{d}
	case ImmBrTable:
		var imm BrTableImm
		if imm.Targets, err = readU32Vec(r); err == nil {
			imm.Default, err = r.ReadU32()
		}
		in.Imm = imm
	case ImmCall:
		var idx uint32
		idx, err = r.ReadU32()
		in.Imm = CallImm{Func: idx}
	case ImmCallIndirect:
		var imm CallIndirectImm
		if imm.TypeIdx, err = r.ReadU32(); err == nil {
			imm.Table, err = r.ReadU32()
		}
		in.Imm = imm
	case ImmLocal:
		var idx uint32
		idx, err = r.ReadU32()
		in.Imm = LocalImm{idx}
	case ImmGlobal:
		var idx uint32
		idx, err = r.ReadU32()
		in.Imm = GlobalImm{Index: idx}
	case ImmMemarg:
		var imm MemoryImm
		if imm.Align, err = r.ReadU32(); err == nil {
			imm.Offset, err = r.ReadU32()
		}
		in.Imm = imm
	case ImmMemIdx:
		var idx uint32
		idx, err = r.ReadU32()
		in.Imm = MemoryIdxImm{idx}
	case ImmI32:
		var v int32
		v, err = r.ReadS32()
		in.Imm = I32Imm{v}
	case ImmI64:
		var v int64
		v, err = r.ReadS64()
		in.Imm = I64Imm{v}
	case ImmF32:
		var v float32
		v, err = r.ReadF32()
		in.Imm = F32Imm{v}
	case ImmF64:
		var v float64
		v, err = r.ReadF64()
		in.Imm = F64Imm{v}
	}
	return err
}

func decodeError(r *binary.Reader, section, format string, args ...any) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(section).
		Value(r.Position()).
		Detail("at offset %d: %s", r.Position(), fmt.Sprintf(format, args...)).
		Build()
}
