package wasm_test

import (
	"bytes"
	stderrors "errors"
	"math"
	"testing"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm"
)

func TestLEB128Unsigned(t *testing.T) {
	tests := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x00}},
		{63, []byte{0x3f}},
		{64, []byte{0x40}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{math.MaxUint32, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tt := range tests {
		got := wasm.EncodeLEB128u(tt.value)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeLEB128u(%d) = %x, want %x", tt.value, got, tt.want)
		}
		v, n, err := wasm.ReadLEB128u(got)
		if err != nil {
			t.Errorf("ReadLEB128u(%x): %v", got, err)
			continue
		}
		if v != tt.value || n != len(got) {
			t.Errorf("ReadLEB128u(%x) = %d (%d bytes), want %d (%d bytes)", got, v, n, tt.value, len(got))
		}
	}
}

func TestLEB128Signed(t *testing.T) {
	tests := []struct {
		value int32
		want  []byte
	}{
		{0, []byte{0x00}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
		{127, []byte{0xff, 0x00}},
		{128, []byte{0x80, 0x01}},
		{-128, []byte{0x80, 0x7f}},
		{-1, []byte{0x7f}},
		{math.MaxInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{math.MinInt32, []byte{0x80, 0x80, 0x80, 0x80, 0x78}},
	}

	for _, tt := range tests {
		got := wasm.EncodeLEB128s(tt.value)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeLEB128s(%d) = %x, want %x", tt.value, got, tt.want)
		}
		v, n, err := wasm.ReadLEB128s(got)
		if err != nil {
			t.Errorf("ReadLEB128s(%x): %v", got, err)
			continue
		}
		if v != tt.value || n != len(got) {
			t.Errorf("ReadLEB128s(%x) = %d (%d bytes), want %d", got, v, n, tt.value)
		}
	}
}

func TestLEB128_64(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 63, 64, -64, -65, math.MaxInt32 + 1, math.MinInt32 - 1, math.MaxInt64, math.MinInt64} {
		enc := wasm.AppendLEB128s(nil, v)
		got, n, err := wasm.ReadLEB128s64(enc)
		if err != nil || got != v || n != len(enc) {
			t.Errorf("s64 round trip %d: got %d, %d bytes, %v", v, got, n, err)
		}
	}
	for _, v := range []uint64{0, 127, 128, math.MaxUint32 + 1, math.MaxUint64} {
		enc := wasm.AppendLEB128u(nil, v)
		got, n, err := wasm.ReadLEB128u64(enc)
		if err != nil || got != v || n != len(enc) {
			t.Errorf("u64 round trip %d: got %d, %d bytes, %v", v, got, n, err)
		}
	}
	if got := len(wasm.AppendLEB128u(nil, math.MaxUint64)); got != 10 {
		t.Errorf("max u64 should take 10 bytes, got %d", got)
	}
}

func TestReadLEB128Truncated(t *testing.T) {
	if _, _, err := wasm.ReadLEB128u([]byte{0x80, 0x80}); err == nil {
		t.Error("expected error for truncated input")
	}
	if _, _, err := wasm.ReadLEB128u([]byte{0x80, 0x80, 0x80, 0x80, 0x10}); err == nil {
		t.Error("expected overflow for u32 with bit 32 set")
	}
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name  string
		kind  wasm.ValueKind
		value any
		want  []byte
	}{
		{"u32 int", wasm.VarU32, 624485, []byte{0xe5, 0x8e, 0x26}},
		{"u32 max", wasm.VarU32, uint32(math.MaxUint32), []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{"u64", wasm.VarU64, uint64(128), []byte{0x80, 0x01}},
		{"s32 negative", wasm.VarS32, -1, []byte{0x7f}},
		{"s32 from int8", wasm.VarS32, int8(-64), []byte{0x40}},
		{"s33 void block", wasm.VarS33, int64(-64), []byte{0x40}},
		{"s33 type index", wasm.VarS33, uint32(math.MaxUint32), []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{"s64", wasm.VarS64, int64(math.MinInt64), []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x7f}},
		{"f32", wasm.F32, float32(1), []byte{0x00, 0x00, 0x80, 0x3f}},
		{"f32 from f64", wasm.F32, 0.5, []byte{0x00, 0x00, 0x00, 0x3f}},
		{"f64", wasm.F64, 1.0, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0x3f}},
		{"name", wasm.Name, "js", []byte{0x02, 'j', 's'}},
		{"empty name", wasm.Name, "", []byte{0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wasm.EncodeValue(tt.kind, tt.value)
			if err != nil {
				t.Fatalf("EncodeValue: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %x, want %x", got, tt.want)
			}
		})
	}
}

func TestEncodeValueRejects(t *testing.T) {
	outOfRange := &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindOutOfRange}
	invalidType := &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindInvalidType}
	invalidData := &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindInvalidData}

	tests := []struct {
		name  string
		kind  wasm.ValueKind
		value any
		want  error
	}{
		{"u32 too large", wasm.VarU32, int64(math.MaxUint32) + 1, outOfRange},
		{"u32 negative", wasm.VarU32, -1, outOfRange},
		{"u64 negative", wasm.VarU64, int64(-5), outOfRange},
		{"s32 too large", wasm.VarS32, int64(math.MaxInt32) + 1, outOfRange},
		{"s32 too small", wasm.VarS32, int64(math.MinInt32) - 1, outOfRange},
		{"s33 too large", wasm.VarS33, int64(1) << 32, outOfRange},
		{"s33 too small", wasm.VarS33, -(int64(1) << 32) - 1, outOfRange},
		{"s64 from huge uint64", wasm.VarS64, uint64(math.MaxUint64), outOfRange},
		{"f32 overflow", wasm.F32, math.MaxFloat64, outOfRange},
		{"string as int", wasm.VarU32, "7", invalidType},
		{"float as int", wasm.VarS32, 1.5, invalidType},
		{"int as name", wasm.Name, 7, invalidType},
		{"invalid utf-8 name", wasm.Name, "\xff", invalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wasm.EncodeValue(tt.kind, tt.value)
			if err == nil {
				t.Fatalf("expected error, got %x", got)
			}
			if got != nil {
				t.Errorf("expected no partial output, got %x", got)
			}
			if !stderrors.Is(err, tt.want) {
				t.Errorf("error %v does not match %v", err, tt.want)
			}
		})
	}
}
