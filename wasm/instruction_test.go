package wasm_test

import (
	"bytes"
	stderrors "errors"
	"math"
	"testing"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

func expectKind(t *testing.T, err error, phase errors.Phase, kind errors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", phase, kind)
	}
	if !stderrors.Is(err, &errors.Error{Phase: phase, Kind: kind}) {
		t.Fatalf("expected %s/%s error, got %v", phase, kind, err)
	}
}

func TestEncodeInstruction(t *testing.T) {
	tests := []struct {
		name string
		in   wasm.Instruction
		want []byte
	}{
		{"nop", wasm.Op(wasm.OpNop), []byte{0x01}},
		{"i32.const -1", wasm.I32Const(-1), []byte{0x41, 0x7f}},
		{"i32.const 1337", wasm.I32Const(1337), []byte{0x41, 0xb9, 0x0a}},
		{"i64.const", wasm.I64Const(-128), []byte{0x42, 0x80, 0x7f}},
		{"f32.const", wasm.F32Const(1), []byte{0x43, 0x00, 0x00, 0x80, 0x3f}},
		{"f64.const", wasm.F64Const(1), []byte{0x44, 0, 0, 0, 0, 0, 0, 0xf0, 0x3f}},
		{"local.get", wasm.LocalGet(3), []byte{0x20, 0x03}},
		{"global.set", wasm.GlobalSet(1), []byte{0x24, 0x01}},
		{"call", wasm.Call(200), []byte{0x10, 0xc8, 0x01}},
		{"call_indirect", wasm.CallIndirect(2, 0), []byte{0x11, 0x02, 0x00}},
		{"i32.load8_u", wasm.Mem(wasm.OpI32Load8U, 0, 4), []byte{0x2d, 0x00, 0x04}},
		{"i32.store", wasm.Mem(wasm.OpI32Store, 2, 0), []byte{0x36, 0x02, 0x00}},
		{"memory.size", wasm.MemorySize(), []byte{0x3f, 0x00}},
		{"memory.grow nil imm", wasm.Instruction{Opcode: wasm.OpMemoryGrow}, []byte{0x40, 0x00}},
		{
			"empty block",
			wasm.Block(wasm.BlockTypeVoid),
			[]byte{0x02, 0x40, 0x0b},
		},
		{
			"block with body",
			wasm.Block(wasm.BlockTypeVoid, wasm.I32Const(1), wasm.Op(wasm.OpDrop)),
			[]byte{0x02, 0x40, 0x41, 0x01, 0x1a, 0x0b},
		},
		{
			"loop with branch",
			wasm.Loop(wasm.BlockTypeVoid, wasm.I32Const(0), wasm.BrIf(0)),
			[]byte{0x03, 0x40, 0x41, 0x00, 0x0d, 0x00, 0x0b},
		},
		{
			"if else with result",
			wasm.If(wasm.BlockTypeI32, []wasm.Instruction{wasm.I32Const(1)}, []wasm.Instruction{wasm.I32Const(2)}),
			[]byte{0x04, 0x7f, 0x41, 0x01, 0x05, 0x41, 0x02, 0x0b},
		},
		{
			"if without else",
			wasm.If(wasm.BlockTypeVoid, []wasm.Instruction{wasm.Op(wasm.OpNop)}, nil),
			[]byte{0x04, 0x40, 0x01, 0x0b},
		},
		{
			"block typed by index",
			wasm.Block(3),
			[]byte{0x02, 0x03, 0x0b},
		},
		{
			"nested branch to outer block",
			wasm.Block(wasm.BlockTypeVoid, wasm.Loop(wasm.BlockTypeVoid, wasm.Br(1))),
			[]byte{0x02, 0x40, 0x03, 0x40, 0x0c, 0x01, 0x0b, 0x0b},
		},
		{
			"br_table",
			wasm.Block(wasm.BlockTypeVoid, wasm.I32Const(0), wasm.BrTable([]uint32{0, 1}, 0)),
			[]byte{0x02, 0x40, 0x41, 0x00, 0x0e, 0x02, 0x00, 0x01, 0x00, 0x0b},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wasm.EncodeInstruction(tt.in)
			if err != nil {
				t.Fatalf("EncodeInstruction: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestEncodeExpr(t *testing.T) {
	got, err := wasm.EncodeExpr([]wasm.Instruction{wasm.I32Const(0)})
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x41, 0x00, 0x0b}; !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}

	got, err = wasm.EncodeExpr(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x0b}) {
		t.Errorf("empty expression = % x", got)
	}

	seq, err := wasm.EncodeInstructions([]wasm.Instruction{wasm.I32Const(1), wasm.Op(wasm.OpDrop)})
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x41, 0x01, 0x1a}; !bytes.Equal(seq, want) {
		t.Errorf("sequence = % x, want % x", seq, want)
	}
}

func TestEncodeInstructionErrors(t *testing.T) {
	tests := []struct {
		name  string
		in    wasm.Instruction
		phase errors.Phase
		kind  errors.Kind
	}{
		{"branch past function body", wasm.Br(1), errors.PhaseEncode, errors.KindBranchDepth},
		{"branch past enclosing block", wasm.Block(wasm.BlockTypeVoid, wasm.BrIf(2)), errors.PhaseEncode, errors.KindBranchDepth},
		{"br_table default too deep", wasm.BrTable(nil, 1), errors.PhaseEncode, errors.KindBranchDepth},
		{"unresolved call", wasm.CallName("print"), errors.PhaseEncode, errors.KindUnresolved},
		{"unresolved global", wasm.GlobalGetName("sp"), errors.PhaseEncode, errors.KindUnresolved},
		{"unknown opcode", wasm.Instruction{Opcode: 0xff}, errors.PhaseEncode, errors.KindUnsupported},
		{"over-aligned load", wasm.Mem(wasm.OpI32Load, 3, 0), errors.PhaseEncode, errors.KindOutOfRange},
		{"bad block type", wasm.Block(-5), errors.PhaseEncode, errors.KindOutOfRange},
		{"wrong immediate", wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.LocalImm{}}, errors.PhaseEncode, errors.KindInvalidType},
		{"missing immediate", wasm.Instruction{Opcode: wasm.OpLocalGet}, errors.PhaseEncode, errors.KindInvalidType},
		{
			"body on plain instruction",
			wasm.Instruction{Opcode: wasm.OpI32Add, Body: []wasm.Instruction{wasm.Op(wasm.OpNop)}},
			errors.PhaseEncode, errors.KindInvalidData,
		},
		{
			"else on block",
			wasm.Instruction{Opcode: wasm.OpBlock, Else: []wasm.Instruction{wasm.Op(wasm.OpNop)}},
			errors.PhaseEncode, errors.KindInvalidData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wasm.EncodeInstruction(tt.in)
			expectKind(t, err, tt.phase, tt.kind)
			if got != nil {
				t.Errorf("expected no bytes on error, got % x", got)
			}
		})
	}
}

func TestBranchDepthErrorPath(t *testing.T) {
	_, err := wasm.EncodeExpr([]wasm.Instruction{
		wasm.Op(wasm.OpNop),
		wasm.Block(wasm.BlockTypeVoid, wasm.Br(5)),
	})
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	want := []string{"1", "body", "0"}
	if len(e.Path) != len(want) {
		t.Fatalf("path = %v, want %v", e.Path, want)
	}
	for i := range want {
		if e.Path[i] != want[i] {
			t.Fatalf("path = %v, want %v", e.Path, want)
		}
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		in   wasm.Instruction
		want string
	}{
		{wasm.I32Const(-7), "i32.const -7"},
		{wasm.LocalGet(2), "local.get 2"},
		{wasm.CallName("print"), "call $print"},
		{wasm.Call(4), "call 4"},
		{wasm.Block(wasm.BlockTypeVoid), "block"},
		{wasm.Loop(wasm.BlockTypeI32), "loop (result i32)"},
		{wasm.BrTable([]uint32{0, 1}, 2), "br_table 0 1 2"},
		{wasm.Mem(wasm.OpI32Load8U, 0, 0), "i32.load8_u align=1"},
		{wasm.Mem(wasm.OpI32Store, 2, 8), "i32.store offset=8 align=4"},
		{wasm.Op(wasm.OpI32Add), "i32.add"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestBlockResult(t *testing.T) {
	if got := wasm.BlockResult(wasm.ValI32); got != wasm.BlockTypeI32 {
		t.Errorf("BlockResult(i32) = %d, want %d", got, wasm.BlockTypeI32)
	}
	if got := wasm.BlockResult(wasm.ValF64); got != wasm.BlockTypeF64 {
		t.Errorf("BlockResult(f64) = %d, want %d", got, wasm.BlockTypeF64)
	}
}

func TestNewInstruction(t *testing.T) {
	tests := []struct {
		name string
		op   string
		args []any
		want []byte
	}{
		{"legacy get_local", "get_local", []any{0}, []byte{0x20, 0x00}},
		{"legacy set_global", "set_global", []any{1}, []byte{0x24, 0x01}},
		{"legacy grow_memory", "grow_memory", nil, []byte{0x40, 0x00}},
		{"i32 from unsigned", "i32.const", []any{uint32(math.MaxUint32)}, []byte{0x41, 0x7f}},
		{"i32 min", "i32.const", []any{math.MinInt32}, []byte{0x41, 0x80, 0x80, 0x80, 0x80, 0x78}},
		{"i64 from uint64", "i64.const", []any{uint64(math.MaxUint64)}, []byte{0x42, 0x7f}},
		{"f32", "f32.const", []any{0.5}, []byte{0x43, 0x00, 0x00, 0x00, 0x3f}},
		{"default alignment", "i32.load", nil, []byte{0x28, 0x02, 0x00}},
		{"explicit memarg", "i32.store8", []any{0, 16}, []byte{0x3a, 0x00, 0x10}},
		{"br_table flat", "br_table", []any{0, 0}, []byte{0x0e, 0x01, 0x00, 0x00}},
		{"typed immediate", "local.tee", []any{wasm.LocalImm{Index: 5}}, []byte{0x22, 0x05}},
		{"call_indirect", "call_indirect", []any{1}, []byte{0x11, 0x01, 0x00}},
		{
			"block with list",
			"block",
			[]any{[]wasm.Instruction{wasm.I32Const(1), wasm.Op(wasm.OpDrop)}},
			[]byte{0x02, 0x40, 0x41, 0x01, 0x1a, 0x0b},
		},
		{
			"if with value type and else",
			"if",
			[]any{wasm.ValI32, []wasm.Instruction{wasm.I32Const(1)}, []wasm.Instruction{wasm.I32Const(0)}},
			[]byte{0x04, 0x7f, 0x41, 0x01, 0x05, 0x41, 0x00, 0x0b},
		},
		{"block named empty", "block", []any{"emptyblock"}, []byte{0x02, 0x40, 0x0b}},
		{"loop named empty", "loop", []any{"emptyblock", wasm.Op(wasm.OpNop)}, []byte{0x03, 0x40, 0x01, 0x0b}},
		{"block named i32", "block", []any{"i32", wasm.I32Const(1)}, []byte{0x02, 0x7f, 0x41, 0x01, 0x0b}},
		{"if named f64", "if", []any{"f64"}, []byte{0x04, 0x7c, 0x0b}},
		{"block void wire byte", "block", []any{0x40}, []byte{0x02, 0x40, 0x0b}},
		{"block i64 wire byte", "block", []any{0x7e}, []byte{0x02, 0x7e, 0x0b}},
		{"block f32 wire byte", "block", []any{byte(0x7d)}, []byte{0x02, 0x7d, 0x0b}},
		{"block type constant", "block", []any{wasm.BlockTypeI32}, []byte{0x02, 0x7f, 0x0b}},
		{"block type index", "block", []any{3}, []byte{0x02, 0x03, 0x0b}},
		{"block explicit type index 64", "block", []any{wasm.BlockImm{Type: 64}}, []byte{0x02, 0xc0, 0x00, 0x0b}},
		{
			"loop with single instructions",
			"loop",
			[]any{nil, wasm.Op(wasm.OpNop), wasm.Op(wasm.OpNop)},
			[]byte{0x03, 0x40, 0x01, 0x01, 0x0b},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := wasm.NewInstruction(tt.op, tt.args...)
			if err != nil {
				t.Fatalf("NewInstruction: %v", err)
			}
			got, err := wasm.EncodeInstruction(in)
			if err != nil {
				t.Fatalf("EncodeInstruction: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestNewInstructionSymbolic(t *testing.T) {
	in, err := wasm.NewInstruction("call", "print")
	if err != nil {
		t.Fatal(err)
	}
	imm, ok := in.Imm.(wasm.CallImm)
	if !ok || imm.Name != "print" {
		t.Fatalf("Imm = %#v, want symbolic call", in.Imm)
	}

	in, err = wasm.NewInstruction("get_global", "sp")
	if err != nil {
		t.Fatal(err)
	}
	if in.Opcode != wasm.OpGlobalGet || in.Imm.(wasm.GlobalImm).Name != "sp" {
		t.Fatalf("got %v", in)
	}
}

func TestNewInstructionErrors(t *testing.T) {
	tests := []struct {
		name string
		op   string
		args []any
		kind errors.Kind
	}{
		{"unknown mnemonic", "i32.frobnicate", nil, errors.KindUnsupported},
		{"end is implicit", "end", nil, errors.KindUnsupported},
		{"extra operand", "nop", []any{1}, errors.KindInvalidData},
		{"missing operand", "i32.const", nil, errors.KindInvalidData},
		{"i32 too large", "i32.const", []any{int64(1) << 32}, errors.KindOutOfRange},
		{"i32 too small", "i32.const", []any{int64(math.MinInt32) - 1}, errors.KindOutOfRange},
		{"i32 from huge uint64", "i32.const", []any{uint64(math.MaxUint64)}, errors.KindOutOfRange},
		{"i32 from string", "i32.const", []any{"1"}, errors.KindInvalidType},
		{"negative local", "local.get", []any{-1}, errors.KindOutOfRange},
		{"local too large", "local.get", []any{uint64(math.MaxUint32) + 1}, errors.KindOutOfRange},
		{"f32 overflow", "f32.const", []any{math.MaxFloat64}, errors.KindOutOfRange},
		{"bad block type", "block", []any{7.5}, errors.KindOutOfRange},
		{"unknown block type name", "block", []any{"i128"}, errors.KindInvalidType},
		{"negative non block type", "block", []any{-9}, errors.KindOutOfRange},
		{"block with two lists", "block", []any{[]wasm.Instruction{}, []wasm.Instruction{}}, errors.KindInvalidData},
		{"block with junk", "block", []any{nil, "x"}, errors.KindInvalidType},
		{"empty br_table", "br_table", nil, errors.KindInvalidData},
		{"wrong typed immediate", "local.get", []any{wasm.I32Imm{Value: 1}}, errors.KindInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.NewInstruction(tt.op, tt.args...)
			expectKind(t, err, errors.PhaseBuild, tt.kind)
		})
	}
}

func TestLookupName(t *testing.T) {
	info, ok := wasm.LookupName("current_memory")
	if !ok || info.Opcode != wasm.OpMemorySize || info.Name != "memory.size" {
		t.Errorf("current_memory -> %+v, %v", info, ok)
	}
	if _, ok := wasm.LookupName("else"); ok {
		t.Error("else must not be a standalone instruction")
	}
	info, ok = wasm.LookupOpcode(wasm.OpLoop)
	if !ok || !info.Structured() {
		t.Errorf("loop should be structured: %+v", info)
	}
}
