package wasm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm/internal/binary"
)

// Instruction is one WebAssembly instruction. Opcode selects the variant and
// Imm holds the typed immediate required by the opcode's ImmKind, or nil
// for opcodes without one. Block, loop and if keep their nested
// instructions in Body (and Else for if); the closing end is written by
// the encoder.
type Instruction struct {
	Imm    any
	Body   []Instruction
	Else   []Instruction
	Opcode byte
}

// BlockImm is the block type of block, loop and if: one of the BlockType
// constants or a non-negative type index.
type BlockImm struct {
	Type int64
}

// BranchImm holds the relative label depth for br and br_if.
type BranchImm struct {
	Depth uint32
}

// BrTableImm holds the label table and default depth for br_table.
type BrTableImm struct {
	Targets []uint32
	Default uint32
}

// CallImm references the callee. A non-empty Name is a symbolic reference
// that must be resolved to Func before encoding.
type CallImm struct {
	Name string
	Func uint32
}

// CallIndirectImm holds the expected signature and the table for call_indirect.
type CallIndirectImm struct {
	TypeIdx uint32
	Table   uint32
}

// LocalImm holds a local index for local.get/set/tee.
type LocalImm struct {
	Index uint32
}

// GlobalImm references a global. A non-empty Name is a symbolic reference
// that must be resolved to Index before encoding.
type GlobalImm struct {
	Name  string
	Index uint32
}

// MemoryImm is the memarg of loads and stores. Align is the log2 of the
// alignment in bytes.
type MemoryImm struct {
	Align  uint32
	Offset uint32
}

// MemoryIdxImm holds the memory index of memory.size and memory.grow.
type MemoryIdxImm struct {
	Memory uint32
}

// I32Imm holds an i32.const operand.
type I32Imm struct{ Value int32 }

// I64Imm holds an i64.const operand.
type I64Imm struct{ Value int64 }

// F32Imm holds an f32.const operand.
type F32Imm struct{ Value float32 }

// F64Imm holds an f64.const operand.
type F64Imm struct{ Value float64 }

// Op returns an instruction without immediates, e.g. Op(OpI32Add).
func Op(opcode byte) Instruction {
	return Instruction{Opcode: opcode}
}

func I32Const(v int32) Instruction   { return Instruction{Opcode: OpI32Const, Imm: I32Imm{v}} }
func I64Const(v int64) Instruction   { return Instruction{Opcode: OpI64Const, Imm: I64Imm{v}} }
func F32Const(v float32) Instruction { return Instruction{Opcode: OpF32Const, Imm: F32Imm{v}} }
func F64Const(v float64) Instruction { return Instruction{Opcode: OpF64Const, Imm: F64Imm{v}} }

func LocalGet(idx uint32) Instruction { return Instruction{Opcode: OpLocalGet, Imm: LocalImm{idx}} }
func LocalSet(idx uint32) Instruction { return Instruction{Opcode: OpLocalSet, Imm: LocalImm{idx}} }
func LocalTee(idx uint32) Instruction { return Instruction{Opcode: OpLocalTee, Imm: LocalImm{idx}} }

func GlobalGet(idx uint32) Instruction {
	return Instruction{Opcode: OpGlobalGet, Imm: GlobalImm{Index: idx}}
}

func GlobalSet(idx uint32) Instruction {
	return Instruction{Opcode: OpGlobalSet, Imm: GlobalImm{Index: idx}}
}

// GlobalGetName reads a global referenced by name; resolved at build time.
func GlobalGetName(name string) Instruction {
	return Instruction{Opcode: OpGlobalGet, Imm: GlobalImm{Name: name}}
}

// GlobalSetName writes a global referenced by name; resolved at build time.
func GlobalSetName(name string) Instruction {
	return Instruction{Opcode: OpGlobalSet, Imm: GlobalImm{Name: name}}
}

func Call(idx uint32) Instruction { return Instruction{Opcode: OpCall, Imm: CallImm{Func: idx}} }

// CallName calls a function referenced by name; resolved at build time.
func CallName(name string) Instruction {
	return Instruction{Opcode: OpCall, Imm: CallImm{Name: name}}
}

func CallIndirect(typeIdx, table uint32) Instruction {
	return Instruction{Opcode: OpCallIndirect, Imm: CallIndirectImm{TypeIdx: typeIdx, Table: table}}
}

func Br(depth uint32) Instruction   { return Instruction{Opcode: OpBr, Imm: BranchImm{depth}} }
func BrIf(depth uint32) Instruction { return Instruction{Opcode: OpBrIf, Imm: BranchImm{depth}} }

func BrTable(targets []uint32, def uint32) Instruction {
	return Instruction{Opcode: OpBrTable, Imm: BrTableImm{Targets: targets, Default: def}}
}

func Block(bt int64, body ...Instruction) Instruction {
	return Instruction{Opcode: OpBlock, Imm: BlockImm{bt}, Body: body}
}

func Loop(bt int64, body ...Instruction) Instruction {
	return Instruction{Opcode: OpLoop, Imm: BlockImm{bt}, Body: body}
}

func If(bt int64, then, els []Instruction) Instruction {
	return Instruction{Opcode: OpIf, Imm: BlockImm{bt}, Body: then, Else: els}
}

// Mem builds a load or store with an explicit memarg.
func Mem(opcode byte, align, offset uint32) Instruction {
	return Instruction{Opcode: opcode, Imm: MemoryImm{Align: align, Offset: offset}}
}

func MemorySize() Instruction { return Instruction{Opcode: OpMemorySize, Imm: MemoryIdxImm{}} }
func MemoryGrow() Instruction { return Instruction{Opcode: OpMemoryGrow, Imm: MemoryIdxImm{}} }

// BlockResult returns the shorthand block type producing one value of t.
func BlockResult(t ValType) int64 {
	return int64(int8(t)) | -1<<7
}

// Name returns the instruction mnemonic.
func (i Instruction) Name() string {
	if info, ok := LookupOpcode(i.Opcode); ok {
		return info.Name
	}
	return fmt.Sprintf("<0x%02x>", i.Opcode)
}

// String renders the instruction and its immediate on one line. Nested
// bodies are summarized by length.
func (i Instruction) String() string {
	var b strings.Builder
	b.WriteString(i.Name())
	switch imm := i.Imm.(type) {
	case BlockImm:
		if imm.Type != BlockTypeVoid {
			b.WriteString(" " + blockTypeString(imm.Type))
		}
	case BranchImm:
		fmt.Fprintf(&b, " %d", imm.Depth)
	case BrTableImm:
		for _, t := range imm.Targets {
			fmt.Fprintf(&b, " %d", t)
		}
		fmt.Fprintf(&b, " %d", imm.Default)
	case CallImm:
		if imm.Name != "" {
			b.WriteString(" $" + imm.Name)
		} else {
			fmt.Fprintf(&b, " %d", imm.Func)
		}
	case CallIndirectImm:
		fmt.Fprintf(&b, " (type %d)", imm.TypeIdx)
		if imm.Table != 0 {
			fmt.Fprintf(&b, " (table %d)", imm.Table)
		}
	case LocalImm:
		fmt.Fprintf(&b, " %d", imm.Index)
	case GlobalImm:
		if imm.Name != "" {
			b.WriteString(" $" + imm.Name)
		} else {
			fmt.Fprintf(&b, " %d", imm.Index)
		}
	case MemoryImm:
		if imm.Offset != 0 {
			fmt.Fprintf(&b, " offset=%d", imm.Offset)
		}
		fmt.Fprintf(&b, " align=%d", uint64(1)<<imm.Align)
	case MemoryIdxImm:
		if imm.Memory != 0 {
			fmt.Fprintf(&b, " %d", imm.Memory)
		}
	case I32Imm:
		fmt.Fprintf(&b, " %d", imm.Value)
	case I64Imm:
		fmt.Fprintf(&b, " %d", imm.Value)
	case F32Imm:
		b.WriteString(" " + strconv.FormatFloat(float64(imm.Value), 'g', -1, 32))
	case F64Imm:
		b.WriteString(" " + strconv.FormatFloat(imm.Value, 'g', -1, 64))
	}
	return b.String()
}

func blockTypeString(bt int64) string {
	switch bt {
	case BlockTypeI32:
		return "(result i32)"
	case BlockTypeI64:
		return "(result i64)"
	case BlockTypeF32:
		return "(result f32)"
	case BlockTypeF64:
		return "(result f64)"
	}
	return fmt.Sprintf("(type %d)", bt)
}

// EncodeInstruction encodes a single instruction, including the bodies and
// implicit end of structured instructions. Branch depths are checked as if
// the instruction sat directly in a function body.
func EncodeInstruction(in Instruction) ([]byte, error) {
	w := binary.NewWriter()
	if err := encodeInstr(w, &in, 1, nil); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeInstructions encodes a sequence without a trailing end.
func EncodeInstructions(instrs []Instruction) ([]byte, error) {
	w := binary.NewWriter()
	if err := encodeSeq(w, instrs, 1, nil); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeExpr encodes a sequence followed by the end opcode, the form of
// function bodies and constant expressions.
func EncodeExpr(instrs []Instruction) ([]byte, error) {
	w := binary.NewWriter()
	if err := encodeExprTo(w, instrs, nil); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func encodeExprTo(w *binary.Writer, instrs []Instruction, path []string) error {
	if err := encodeSeq(w, instrs, 1, path); err != nil {
		return err
	}
	w.Byte(OpEnd)
	return nil
}

// encodeSeq writes instrs with labels enclosing labels in scope.
func encodeSeq(w *binary.Writer, instrs []Instruction, labels uint32, path []string) error {
	for i := range instrs {
		if err := encodeInstr(w, &instrs[i], labels, appendPath(path, strconv.Itoa(i))); err != nil {
			return err
		}
	}
	return nil
}

func encodeInstr(w *binary.Writer, in *Instruction, labels uint32, path []string) error {
	info, ok := LookupOpcode(in.Opcode)
	if !ok {
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Path(path...).
			Value(in.Opcode).
			Detail("opcode 0x%02x is not supported", in.Opcode).
			Build()
	}
	if err := checkShape(in, info, path, errors.PhaseEncode); err != nil {
		return err
	}

	w.Byte(in.Opcode)

	switch info.Imm {
	case ImmNone:
		return nil

	case ImmBlock:
		bt := BlockTypeVoid
		if in.Imm != nil {
			bt = in.Imm.(BlockImm).Type
		}
		if !validBlockType(bt) {
			return errors.OutOfRange(errors.PhaseEncode, path, bt, "block type")
		}
		w.WriteS64(bt)
		if err := encodeSeq(w, in.Body, labels+1, appendPath(path, "body")); err != nil {
			return err
		}
		if len(in.Else) > 0 {
			w.Byte(OpElse)
			if err := encodeSeq(w, in.Else, labels+1, appendPath(path, "else")); err != nil {
				return err
			}
		}
		w.Byte(OpEnd)

	case ImmBranch:
		imm := in.Imm.(BranchImm)
		if imm.Depth >= labels {
			return errors.BranchDepth(errors.PhaseEncode, path, imm.Depth, labels)
		}
		w.WriteU32(imm.Depth)

	case ImmBrTable:
		imm := in.Imm.(BrTableImm)
		w.WriteU32(uint32(len(imm.Targets)))
		for _, d := range append(imm.Targets[:len(imm.Targets):len(imm.Targets)], imm.Default) {
			if d >= labels {
				return errors.BranchDepth(errors.PhaseEncode, path, d, labels)
			}
			w.WriteU32(d)
		}

	case ImmCall:
		imm := in.Imm.(CallImm)
		if imm.Name != "" {
			return unresolvedSymbol(path, "function", imm.Name)
		}
		w.WriteU32(imm.Func)

	case ImmCallIndirect:
		imm := in.Imm.(CallIndirectImm)
		w.WriteU32(imm.TypeIdx)
		w.WriteU32(imm.Table)

	case ImmLocal:
		w.WriteU32(in.Imm.(LocalImm).Index)

	case ImmGlobal:
		imm := in.Imm.(GlobalImm)
		if imm.Name != "" {
			return unresolvedSymbol(path, "global", imm.Name)
		}
		w.WriteU32(imm.Index)

	case ImmMemarg:
		imm := in.Imm.(MemoryImm)
		if imm.Align > info.Align {
			return errors.New(errors.PhaseEncode, errors.KindOutOfRange).
				Path(path...).
				Value(imm.Align).
				Detail("%s alignment 2^%d exceeds natural alignment 2^%d", info.Name, imm.Align, info.Align).
				Build()
		}
		w.WriteU32(imm.Align)
		w.WriteU32(imm.Offset)

	case ImmMemIdx:
		var idx uint32
		if in.Imm != nil {
			idx = in.Imm.(MemoryIdxImm).Memory
		}
		w.WriteU32(idx)

	case ImmI32:
		w.WriteS32(in.Imm.(I32Imm).Value)
	case ImmI64:
		w.WriteS64(in.Imm.(I64Imm).Value)
	case ImmF32:
		w.WriteF32(in.Imm.(F32Imm).Value)
	case ImmF64:
		w.WriteF64(in.Imm.(F64Imm).Value)
	}
	return nil
}

// checkShape verifies the Imm type matches the opcode and that only
// structured instructions carry bodies.
func checkShape(in *Instruction, info OpcodeInfo, path []string, phase errors.Phase) error {
	if !info.Structured() && (len(in.Body) > 0 || len(in.Else) > 0) {
		return errors.InvalidData(phase, path, info.Name+" cannot have a nested body")
	}
	if in.Opcode != OpIf && len(in.Else) > 0 {
		return errors.InvalidData(phase, path, "only if may have an else branch")
	}
	var ok bool
	switch info.Imm {
	case ImmNone:
		ok = in.Imm == nil
	case ImmBlock:
		_, ok = in.Imm.(BlockImm)
		ok = ok || in.Imm == nil
	case ImmBranch:
		_, ok = in.Imm.(BranchImm)
	case ImmBrTable:
		_, ok = in.Imm.(BrTableImm)
	case ImmCall:
		_, ok = in.Imm.(CallImm)
	case ImmCallIndirect:
		_, ok = in.Imm.(CallIndirectImm)
	case ImmLocal:
		_, ok = in.Imm.(LocalImm)
	case ImmGlobal:
		_, ok = in.Imm.(GlobalImm)
	case ImmMemarg:
		_, ok = in.Imm.(MemoryImm)
	case ImmMemIdx:
		_, ok = in.Imm.(MemoryIdxImm)
		ok = ok || in.Imm == nil
	case ImmI32:
		_, ok = in.Imm.(I32Imm)
	case ImmI64:
		_, ok = in.Imm.(I64Imm)
	case ImmF32:
		_, ok = in.Imm.(F32Imm)
	case ImmF64:
		_, ok = in.Imm.(F64Imm)
	}
	if !ok {
		return errors.New(phase, errors.KindInvalidType).
			Path(path...).
			Value(in.Imm).
			Detail("%s cannot take immediate %T", info.Name, in.Imm).
			Build()
	}
	return nil
}

func validBlockType(bt int64) bool {
	switch bt {
	case BlockTypeVoid, BlockTypeI32, BlockTypeI64, BlockTypeF32, BlockTypeF64:
		return true
	}
	return bt >= 0 && bt <= math.MaxUint32
}

func unresolvedSymbol(path []string, entity, name string) error {
	return errors.New(errors.PhaseEncode, errors.KindUnresolved).
		Path(path...).
		Entity(entity).
		Name(name).
		Detail("symbolic reference was never resolved").
		Build()
}

// appendPath returns path extended by elems without aliasing path.
func appendPath(path []string, elems ...string) []string {
	out := make([]string, 0, len(path)+len(elems))
	out = append(out, path...)
	return append(out, elems...)
}

// NewInstruction builds an instruction from a mnemonic and loosely typed
// operands, the literal form used by hand-written code generators:
//
//	NewInstruction("i32.const", 1)
//	NewInstruction("get_local", 0)            // legacy spelling
//	NewInstruction("call", "print")           // symbolic callee
//	NewInstruction("block", body)             // body is []Instruction
//	NewInstruction("if", BlockTypeI32, then, els)
//	NewInstruction("loop", "emptyblock", body) // named block type
//
// A block type is a ValType, a name ("emptyblock", "i32", ...), a block
// type constant, a wire byte (0x40, 0x7C-0x7F) or a type index.
//
// Operands are range checked against their encoding width. An operand that
// is already the typed immediate (e.g. I32Imm) is accepted as is.
func NewInstruction(name string, args ...any) (Instruction, error) {
	info, ok := LookupName(name)
	if !ok {
		return Instruction{}, errors.New(errors.PhaseBuild, errors.KindUnsupported).
			Name(name).
			Detail("unknown instruction").
			Build()
	}
	path := []string{info.Name}
	in := Instruction{Opcode: info.Opcode}

	if len(args) == 1 && isImmType(args[0]) {
		in.Imm = args[0]
		if err := checkShape(&in, info, path, errors.PhaseBuild); err != nil {
			return Instruction{}, err
		}
		return in, nil
	}

	arity := func(min, max int) error {
		if len(args) < min || len(args) > max {
			return errors.New(errors.PhaseBuild, errors.KindInvalidData).
				Path(path...).
				Value(len(args)).
				Detail("expects %d to %d operand(s), got %d", min, max, len(args)).
				Build()
		}
		return nil
	}

	var err error
	switch info.Imm {
	case ImmNone:
		err = arity(0, 0)

	case ImmBlock:
		in, err = newStructured(info, args, path)

	case ImmBranch:
		if err = arity(1, 1); err == nil {
			var d uint32
			d, err = operandU32(args[0], path)
			in.Imm = BranchImm{d}
		}

	case ImmBrTable:
		in.Imm, err = newBrTable(args, path)

	case ImmCall:
		if err = arity(1, 1); err == nil {
			if s, isName := args[0].(string); isName {
				in.Imm = CallImm{Name: s}
			} else {
				var idx uint32
				idx, err = operandU32(args[0], path)
				in.Imm = CallImm{Func: idx}
			}
		}

	case ImmCallIndirect:
		if err = arity(1, 2); err == nil {
			var imm CallIndirectImm
			imm.TypeIdx, err = operandU32(args[0], path)
			if err == nil && len(args) == 2 {
				imm.Table, err = operandU32(args[1], path)
			}
			in.Imm = imm
		}

	case ImmLocal:
		if err = arity(1, 1); err == nil {
			var idx uint32
			idx, err = operandU32(args[0], path)
			in.Imm = LocalImm{idx}
		}

	case ImmGlobal:
		if err = arity(1, 1); err == nil {
			if s, isName := args[0].(string); isName {
				in.Imm = GlobalImm{Name: s}
			} else {
				var idx uint32
				idx, err = operandU32(args[0], path)
				in.Imm = GlobalImm{Index: idx}
			}
		}

	case ImmMemarg:
		if err = arity(0, 2); err == nil {
			imm := MemoryImm{Align: info.Align}
			if len(args) > 0 {
				imm.Align, err = operandU32(args[0], path)
			}
			if err == nil && len(args) > 1 {
				imm.Offset, err = operandU32(args[1], path)
			}
			in.Imm = imm
		}

	case ImmMemIdx:
		if err = arity(0, 1); err == nil {
			var idx uint32
			if len(args) == 1 {
				idx, err = operandU32(args[0], path)
			}
			in.Imm = MemoryIdxImm{idx}
		}

	case ImmI32:
		if err = arity(1, 1); err == nil {
			var v int32
			v, err = operandI32(args[0], path)
			in.Imm = I32Imm{v}
		}

	case ImmI64:
		if err = arity(1, 1); err == nil {
			var v int64
			v, err = operandI64(args[0], path)
			in.Imm = I64Imm{v}
		}

	case ImmF32:
		if err = arity(1, 1); err == nil {
			var v float64
			v, err = operandFloat(args[0], path, math.MaxFloat32)
			in.Imm = F32Imm{float32(v)}
		}

	case ImmF64:
		if err = arity(1, 1); err == nil {
			var v float64
			v, err = operandFloat(args[0], path, math.MaxFloat64)
			in.Imm = F64Imm{v}
		}
	}
	if err != nil {
		return Instruction{}, err
	}
	return in, nil
}

func isImmType(v any) bool {
	switch v.(type) {
	case BlockImm, BranchImm, BrTableImm, CallImm, CallIndirectImm, LocalImm,
		GlobalImm, MemoryImm, MemoryIdxImm, I32Imm, I64Imm, F32Imm, F64Imm:
		return true
	}
	return false
}

// newStructured accepts an optional leading block type followed by body
// parts. Instruction and []Instruction parts are appended to the body; for
// if, a second []Instruction list becomes the else branch.
func newStructured(info OpcodeInfo, args []any, path []string) (Instruction, error) {
	in := Instruction{Opcode: info.Opcode, Imm: BlockImm{BlockTypeVoid}}
	if len(args) > 0 {
		switch bt := args[0].(type) {
		case nil:
			args = args[1:]
		case ValType:
			in.Imm = BlockImm{BlockResult(bt)}
			args = args[1:]
		case BlockImm:
			if !validBlockType(bt.Type) {
				return Instruction{}, errors.OutOfRange(errors.PhaseBuild, path, bt.Type, "block type")
			}
			in.Imm = bt
			args = args[1:]
		case string:
			t, ok := blockTypeNames[bt]
			if !ok {
				return Instruction{}, errors.New(errors.PhaseBuild, errors.KindInvalidType).
					Path(path...).
					Value(bt).
					Detail("unknown block type %q", bt).
					Build()
			}
			in.Imm = BlockImm{t}
			args = args[1:]
		case Instruction, []Instruction:
		default:
			t, ok := asSigned(bt)
			if !ok {
				return Instruction{}, errors.OutOfRange(errors.PhaseBuild, path, args[0], "block type")
			}
			t = blockTypeLiteral(t)
			if !validBlockType(t) {
				return Instruction{}, errors.OutOfRange(errors.PhaseBuild, path, args[0], "block type")
			}
			in.Imm = BlockImm{t}
			args = args[1:]
		}
	}

	lists := 0
	for _, part := range args {
		switch p := part.(type) {
		case Instruction:
			if lists > 1 {
				in.Else = append(in.Else, p)
			} else {
				in.Body = append(in.Body, p)
			}
		case []Instruction:
			lists++
			switch {
			case lists == 1:
				in.Body = append(in.Body, p...)
			case lists == 2 && info.Opcode == OpIf:
				in.Else = append(in.Else, p...)
			default:
				return Instruction{}, errors.InvalidData(errors.PhaseBuild, path,
					fmt.Sprintf("%s takes at most %d instruction list(s)", info.Name, maxLists(info.Opcode)))
			}
		default:
			return Instruction{}, errors.New(errors.PhaseBuild, errors.KindInvalidType).
				Path(path...).
				Value(part).
				Detail("%T is not an instruction or instruction list", part).
				Build()
		}
	}
	return in, nil
}

// blockTypeNames are the textual block types accepted by NewInstruction.
var blockTypeNames = map[string]int64{
	"emptyblock": BlockTypeVoid,
	"block":      BlockTypeVoid,
	"void":       BlockTypeVoid,
	"i32":        BlockTypeI32,
	"i64":        BlockTypeI64,
	"f32":        BlockTypeF32,
	"f64":        BlockTypeF64,
}

// blockTypeLiteral maps the wire bytes 0x40 and 0x7C-0x7F to the block
// types they encode. Every other integer is kept: negative values must
// already be a block type, non-negative ones are type indices. A type
// index in that byte range needs an explicit BlockImm.
func blockTypeLiteral(t int64) int64 {
	switch {
	case t == 0x40:
		return BlockTypeVoid
	case t >= 0x7C && t <= 0x7F:
		return BlockResult(ValType(t))
	}
	return t
}

func maxLists(op byte) int {
	if op == OpIf {
		return 2
	}
	return 1
}

// newBrTable accepts either a []uint32 of targets followed by the default,
// or a flat list of depths whose last entry is the default.
func newBrTable(args []any, path []string) (BrTableImm, error) {
	if len(args) == 0 {
		return BrTableImm{}, errors.InvalidData(errors.PhaseBuild, path, "br_table needs a default depth")
	}
	if targets, ok := args[0].([]uint32); ok {
		if len(args) != 2 {
			return BrTableImm{}, errors.InvalidData(errors.PhaseBuild, path, "br_table takes targets and a default depth")
		}
		def, err := operandU32(args[1], path)
		return BrTableImm{Targets: append([]uint32(nil), targets...), Default: def}, err
	}
	depths := make([]uint32, len(args))
	for i, a := range args {
		d, err := operandU32(a, path)
		if err != nil {
			return BrTableImm{}, err
		}
		depths[i] = d
	}
	return BrTableImm{Targets: depths[:len(depths)-1], Default: depths[len(depths)-1]}, nil
}

func operandU32(v any, path []string) (uint32, error) {
	u, ok := asUnsigned(v)
	if !ok {
		if s, signed := asSigned(v); signed && s < 0 {
			return 0, errors.OutOfRange(errors.PhaseBuild, path, v, "u32")
		}
		return 0, operandTypeError(v, "integer", path)
	}
	if u > math.MaxUint32 {
		return 0, errors.OutOfRange(errors.PhaseBuild, path, v, "u32")
	}
	return uint32(u), nil
}

// operandI32 accepts the signed range and, reinterpreted, the unsigned range
// of a 32-bit integer.
func operandI32(v any, path []string) (int32, error) {
	if s, ok := asSigned(v); ok {
		if s < math.MinInt32 || s > math.MaxUint32 {
			return 0, errors.OutOfRange(errors.PhaseBuild, path, v, "i32")
		}
		return int32(uint32(s)), nil
	}
	if _, ok := asUnsigned(v); ok {
		return 0, errors.OutOfRange(errors.PhaseBuild, path, v, "i32")
	}
	return 0, operandTypeError(v, "integer", path)
}

// operandI64 accepts the signed and, reinterpreted, the unsigned range of
// a 64-bit integer.
func operandI64(v any, path []string) (int64, error) {
	if s, ok := asSigned(v); ok {
		return s, nil
	}
	if u, ok := asUnsigned(v); ok {
		return int64(u), nil
	}
	return 0, operandTypeError(v, "integer", path)
}

func operandFloat(v any, path []string, limit float64) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float32:
		f = float64(n)
	case float64:
		f = n
	default:
		s, ok := asSigned(v)
		if !ok {
			return 0, operandTypeError(v, "number", path)
		}
		f = float64(s)
	}
	if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > limit {
		return 0, errors.OutOfRange(errors.PhaseBuild, path, v, "float")
	}
	return f, nil
}

func operandTypeError(v any, want string, path []string) error {
	return errors.New(errors.PhaseBuild, errors.KindInvalidType).
		Path(path...).
		Value(v).
		Detail("operand %v (%T) is not a %s", v, v, want).
		Build()
}
