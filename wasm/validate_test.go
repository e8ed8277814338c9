package wasm_test

import (
	"testing"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

// funcModule builds a module with one [] -> [] function whose body is body,
// plus any extra sections.
func funcModule(body []wasm.Instruction, extra ...wasm.Section) *wasm.Module {
	m := wasm.NewModule(
		&wasm.TypeSection{Types: []wasm.FuncType{{}}},
		&wasm.FunctionSection{TypeIdxs: []uint32{0}},
		&wasm.CodeSection{Bodies: []wasm.FuncBody{{Body: body}}},
	)
	m.Add(extra...)
	return m
}

func TestValidateAccepts(t *testing.T) {
	tests := []struct {
		name string
		m    *wasm.Module
	}{
		{"empty", wasm.NewModule()},
		{"hex alert", wasm.NewModule(hexAlertSections()...)},
		{
			"memory ops",
			funcModule([]wasm.Instruction{
				wasm.I32Const(0), wasm.Mem(wasm.OpI32Load8U, 0, 0), wasm.Op(wasm.OpDrop),
				wasm.MemorySize(), wasm.Op(wasm.OpDrop),
			}, &wasm.MemorySection{Memories: []wasm.MemoryType{{Limits: wasm.Unbounded(1)}}}),
		},
		{
			"mutable global set",
			funcModule([]wasm.Instruction{wasm.I32Const(1), wasm.GlobalSet(0)},
				&wasm.GlobalSection{Globals: []wasm.Global{{
					Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true},
					Init: []wasm.Instruction{wasm.I32Const(0)},
				}}}),
		},
		{
			"global init from imported global",
			wasm.NewModule(
				&wasm.ImportSection{Imports: []wasm.Import{{
					Module: "env", Name: "base",
					Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: &wasm.GlobalType{ValType: wasm.ValI32}},
				}}},
				&wasm.GlobalSection{Globals: []wasm.Global{{
					Type: wasm.GlobalType{ValType: wasm.ValI32},
					Init: []wasm.Instruction{wasm.GlobalGet(0)},
				}}},
			),
		},
		{
			"call_indirect through table",
			funcModule([]wasm.Instruction{wasm.I32Const(0), wasm.CallIndirect(0, 0)},
				&wasm.TableSection{Tables: []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Unbounded(1)}}}),
		},
		{
			"memory at page limit",
			wasm.NewModule(&wasm.MemorySection{Memories: []wasm.MemoryType{{Limits: wasm.Bounded(0, wasm.MaxPages)}}}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.m.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	oneMemory := &wasm.MemorySection{Memories: []wasm.MemoryType{{Limits: wasm.Unbounded(1)}}}
	immutable := &wasm.GlobalSection{Globals: []wasm.Global{{
		Type: wasm.GlobalType{ValType: wasm.ValI32},
		Init: []wasm.Instruction{wasm.I32Const(0)},
	}}}

	tests := []struct {
		name string
		m    *wasm.Module
		kind errors.Kind
	}{
		{
			"duplicate section",
			wasm.NewModule(&wasm.TypeSection{}, &wasm.TypeSection{}),
			errors.KindDuplicateSection,
		},
		{
			"two memories",
			wasm.NewModule(&wasm.MemorySection{Memories: []wasm.MemoryType{
				{Limits: wasm.Unbounded(1)}, {Limits: wasm.Unbounded(1)},
			}}),
			errors.KindDuplicate,
		},
		{
			"imported and defined memory",
			wasm.NewModule(
				&wasm.ImportSection{Imports: []wasm.Import{{
					Module: "env", Name: "mem",
					Desc: wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &wasm.MemoryType{Limits: wasm.Unbounded(1)}},
				}}},
				oneMemory,
			),
			errors.KindDuplicate,
		},
		{
			"duplicate export",
			funcModule(nil, &wasm.ExportSection{Exports: []wasm.Export{
				{Name: "f", Kind: wasm.KindFunc, Idx: 0},
				{Name: "f", Kind: wasm.KindFunc, Idx: 0},
			}}),
			errors.KindDuplicate,
		},
		{
			"export out of range",
			funcModule(nil, &wasm.ExportSection{Exports: []wasm.Export{{Name: "g", Kind: wasm.KindGlobal, Idx: 0}}}),
			errors.KindOutOfRange,
		},
		{
			"function type out of range",
			wasm.NewModule(
				&wasm.FunctionSection{TypeIdxs: []uint32{0}},
				&wasm.CodeSection{Bodies: []wasm.FuncBody{{}}},
			),
			errors.KindOutOfRange,
		},
		{
			"import type out of range",
			wasm.NewModule(&wasm.ImportSection{Imports: []wasm.Import{{
				Module: "js", Name: "print", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 3},
			}}}),
			errors.KindOutOfRange,
		},
		{
			"call out of range",
			funcModule([]wasm.Instruction{wasm.Call(1)}),
			errors.KindOutOfRange,
		},
		{
			"unresolved call",
			funcModule([]wasm.Instruction{wasm.CallName("print")}),
			errors.KindUnresolved,
		},
		{
			"branch too deep",
			funcModule([]wasm.Instruction{wasm.Block(wasm.BlockTypeVoid, wasm.Br(2))}),
			errors.KindBranchDepth,
		},
		{
			"local out of range",
			funcModule([]wasm.Instruction{wasm.LocalGet(0), wasm.Op(wasm.OpDrop)}),
			errors.KindOutOfRange,
		},
		{
			"bad start signature",
			wasm.NewModule(
				&wasm.TypeSection{Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}}},
				&wasm.FunctionSection{TypeIdxs: []uint32{0}},
				&wasm.CodeSection{Bodies: []wasm.FuncBody{{}}},
				&wasm.StartSection{Func: 0},
			),
			errors.KindInvalidSignature,
		},
		{
			"start out of range",
			funcModule(nil, &wasm.StartSection{Func: 4}),
			errors.KindOutOfRange,
		},
		{
			"code count mismatch",
			wasm.NewModule(
				&wasm.TypeSection{Types: []wasm.FuncType{{}}},
				&wasm.FunctionSection{TypeIdxs: []uint32{0, 0}},
				&wasm.CodeSection{Bodies: []wasm.FuncBody{{}}},
			),
			errors.KindInvalidData,
		},
		{
			"code without functions",
			wasm.NewModule(&wasm.CodeSection{Bodies: []wasm.FuncBody{{}}}),
			errors.KindInvalidData,
		},
		{
			"load without memory",
			funcModule([]wasm.Instruction{wasm.I32Const(0), wasm.Mem(wasm.OpI32Load, 2, 0), wasm.Op(wasm.OpDrop)}),
			errors.KindOutOfRange,
		},
		{
			"memory.grow without memory",
			funcModule([]wasm.Instruction{wasm.I32Const(1), wasm.MemoryGrow(), wasm.Op(wasm.OpDrop)}),
			errors.KindOutOfRange,
		},
		{
			"over-aligned store",
			funcModule([]wasm.Instruction{wasm.I32Const(0), wasm.I32Const(0), wasm.Mem(wasm.OpI32Store8, 1, 0)}, oneMemory),
			errors.KindOutOfRange,
		},
		{
			"set immutable global",
			funcModule([]wasm.Instruction{wasm.I32Const(1), wasm.GlobalSet(0)}, immutable),
			errors.KindInvalidType,
		},
		{
			"global init not constant",
			wasm.NewModule(&wasm.GlobalSection{Globals: []wasm.Global{{
				Type: wasm.GlobalType{ValType: wasm.ValI32},
				Init: []wasm.Instruction{wasm.Op(wasm.OpNop)},
			}}}),
			errors.KindInvalidData,
		},
		{
			"global init wrong type",
			wasm.NewModule(&wasm.GlobalSection{Globals: []wasm.Global{{
				Type: wasm.GlobalType{ValType: wasm.ValI64},
				Init: []wasm.Instruction{wasm.I32Const(0)},
			}}}),
			errors.KindInvalidType,
		},
		{
			"global init reads defined global",
			wasm.NewModule(&wasm.GlobalSection{Globals: []wasm.Global{
				{Type: wasm.GlobalType{ValType: wasm.ValI32}, Init: []wasm.Instruction{wasm.I32Const(0)}},
				{Type: wasm.GlobalType{ValType: wasm.ValI32}, Init: []wasm.Instruction{wasm.GlobalGet(0)}},
			}}),
			errors.KindOutOfRange,
		},
		{
			"memory min above max",
			wasm.NewModule(&wasm.MemorySection{Memories: []wasm.MemoryType{{Limits: wasm.Bounded(2, 1)}}}),
			errors.KindOutOfRange,
		},
		{
			"memory above page limit",
			wasm.NewModule(&wasm.MemorySection{Memories: []wasm.MemoryType{{Limits: wasm.Unbounded(wasm.MaxPages + 1)}}}),
			errors.KindOutOfRange,
		},
		{
			"table of numbers",
			wasm.NewModule(&wasm.TableSection{Tables: []wasm.TableType{{ElemType: wasm.ValI32}}}),
			errors.KindInvalidType,
		},
		{
			"element function out of range",
			elementModule(wasm.ElementSegment{Offset: []wasm.Instruction{wasm.I32Const(0)}, FuncIdxs: []uint32{7}}),
			errors.KindOutOfRange,
		},
		{
			"passive element with offset",
			elementModule(wasm.ElementSegment{Mode: wasm.ModePassive, Offset: []wasm.Instruction{wasm.I32Const(0)}}),
			errors.KindInvalidData,
		},
		{
			"data without memory",
			wasm.NewModule(&wasm.DataSection{Segments: []wasm.DataSegment{{
				Offset: []wasm.Instruction{wasm.I32Const(0)}, Init: []byte{1},
			}}}),
			errors.KindOutOfRange,
		},
		{
			"declarative data",
			wasm.NewModule(oneMemory, &wasm.DataSection{Segments: []wasm.DataSegment{{Mode: wasm.ModeDeclarative}}}),
			errors.KindInvalidData,
		},
		{
			"invalid value type",
			wasm.NewModule(&wasm.TypeSection{Types: []wasm.FuncType{{Params: []wasm.ValType{0x42}}}}),
			errors.KindInvalidType,
		},
		{
			"invalid export name",
			funcModule(nil, &wasm.ExportSection{Exports: []wasm.Export{{Name: "\xff", Kind: wasm.KindFunc}}}),
			errors.KindInvalidData,
		},
		{
			"import without descriptor",
			wasm.NewModule(&wasm.ImportSection{Imports: []wasm.Import{{
				Module: "env", Name: "g", Desc: wasm.ImportDesc{Kind: wasm.KindGlobal},
			}}}),
			errors.KindInvalidData,
		},
		{
			"nil section",
			wasm.NewModule(nil),
			errors.KindInvalidData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectKind(t, tt.m.Validate(), errors.PhaseValidate, tt.kind)
		})
	}
}

func TestModuleIndexSpaces(t *testing.T) {
	m := wasm.NewModule(
		&wasm.TypeSection{Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}, {}}},
		&wasm.ImportSection{Imports: []wasm.Import{
			{Module: "js", Name: "print", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
			{Module: "js", Name: "flag", Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: &wasm.GlobalType{ValType: wasm.ValI64}}},
			{Module: "js", Name: "read", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 1}},
		}},
		&wasm.FunctionSection{TypeIdxs: []uint32{1}},
		&wasm.GlobalSection{Globals: []wasm.Global{{
			Type: wasm.GlobalType{ValType: wasm.ValF32},
			Init: []wasm.Instruction{wasm.F32Const(0)},
		}}},
	)

	if got := m.NumImported(wasm.KindFunc); got != 2 {
		t.Errorf("imported funcs = %d, want 2", got)
	}
	if got := m.NumFuncs(); got != 3 {
		t.Errorf("NumFuncs = %d, want 3", got)
	}
	if got := m.NumGlobals(); got != 2 {
		t.Errorf("NumGlobals = %d, want 2", got)
	}
	if idx, ok := m.FuncTypeIndex(1); !ok || idx != 1 {
		t.Errorf("FuncTypeIndex(1) = %d, %v; want 1", idx, ok)
	}
	if idx, ok := m.FuncTypeIndex(2); !ok || idx != 1 {
		t.Errorf("FuncTypeIndex(2) = %d, %v; want 1", idx, ok)
	}
	if _, ok := m.FuncTypeIndex(3); ok {
		t.Error("FuncTypeIndex(3) should be out of range")
	}
	if gt, ok := m.GlobalType(0); !ok || gt.ValType != wasm.ValI64 {
		t.Errorf("GlobalType(0) = %v, %v", gt, ok)
	}
	if gt, ok := m.GlobalType(1); !ok || gt.ValType != wasm.ValF32 {
		t.Errorf("GlobalType(1) = %v, %v", gt, ok)
	}
}
