package wasm

import (
	"math"
	"unicode/utf8"

	"github.com/wippyai/wasmgen/errors"
	"github.com/wippyai/wasmgen/wasm/internal/binary"
)

// AppendLEB128u appends the unsigned LEB128 encoding of v to dst.
func AppendLEB128u(dst []byte, v uint64) []byte {
	return binary.AppendU64(dst, v)
}

// AppendLEB128s appends the signed LEB128 encoding of v to dst.
func AppendLEB128s(dst []byte, v int64) []byte {
	return binary.AppendS64(dst, v)
}

// EncodeLEB128u encodes a uint32 as unsigned LEB128.
func EncodeLEB128u(v uint32) []byte {
	return binary.AppendU64(nil, uint64(v))
}

// EncodeLEB128s encodes an int32 as signed LEB128.
func EncodeLEB128s(v int32) []byte {
	return binary.AppendS64(nil, int64(v))
}

// ReadLEB128u decodes an unsigned 32-bit LEB128 value from the start of b
// and returns it with the number of bytes consumed.
func ReadLEB128u(b []byte) (uint32, int, error) {
	r := binary.NewReader(b)
	v, err := r.ReadU32()
	return v, r.Position(), err
}

// ReadLEB128u64 decodes an unsigned 64-bit LEB128 value.
func ReadLEB128u64(b []byte) (uint64, int, error) {
	r := binary.NewReader(b)
	v, err := r.ReadU64()
	return v, r.Position(), err
}

// ReadLEB128s decodes a signed 32-bit LEB128 value.
func ReadLEB128s(b []byte) (int32, int, error) {
	r := binary.NewReader(b)
	v, err := r.ReadS32()
	return v, r.Position(), err
}

// ReadLEB128s64 decodes a signed 64-bit LEB128 value.
func ReadLEB128s64(b []byte) (int64, int, error) {
	r := binary.NewReader(b)
	v, err := r.ReadS64()
	return v, r.Position(), err
}

// ValueKind selects the wire encoding of a single operand.
type ValueKind uint8

const (
	VarU32 ValueKind = iota + 1
	VarU64
	VarS32
	VarS33
	VarS64
	F32
	F64
	Name
)

func (k ValueKind) String() string {
	switch k {
	case VarU32:
		return "varuint32"
	case VarU64:
		return "varuint64"
	case VarS32:
		return "varint32"
	case VarS33:
		return "varint33"
	case VarS64:
		return "varint64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Name:
		return "name"
	}
	return "unknown"
}

const (
	minS33 = -1 << 32
	maxS33 = 1<<32 - 1
)

// EncodeValue encodes one operand according to kind. Integers of any Go
// integer type are accepted and range checked against the target width;
// out of range values are rejected, never truncated. Names must be valid
// UTF-8 strings and are written length-prefixed.
func EncodeValue(kind ValueKind, v any) ([]byte, error) {
	switch kind {
	case VarU32, VarU64:
		u, ok := asUnsigned(v)
		if !ok {
			if s, signed := asSigned(v); signed && s < 0 {
				return nil, errors.OutOfRange(errors.PhaseEncode, nil, v, kind.String())
			}
			return nil, valueError(kind, v)
		}
		if kind == VarU32 && u > math.MaxUint32 {
			return nil, errors.OutOfRange(errors.PhaseEncode, nil, v, kind.String())
		}
		return binary.AppendU64(nil, u), nil

	case VarS32, VarS33, VarS64:
		s, ok := asSigned(v)
		if !ok {
			if _, unsigned := asUnsigned(v); unsigned {
				return nil, errors.OutOfRange(errors.PhaseEncode, nil, v, kind.String())
			}
			return nil, valueError(kind, v)
		}
		switch {
		case kind == VarS32 && (s < math.MinInt32 || s > math.MaxInt32),
			kind == VarS33 && (s < minS33 || s > maxS33):
			return nil, errors.OutOfRange(errors.PhaseEncode, nil, v, kind.String())
		}
		return binary.AppendS64(nil, s), nil

	case F32:
		w := binary.NewWriter()
		switch f := v.(type) {
		case float32:
			w.WriteF32(f)
		case float64:
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return nil, errors.OutOfRange(errors.PhaseEncode, nil, v, kind.String())
			}
			w.WriteF32(float32(f))
		default:
			return nil, valueError(kind, v)
		}
		return w.Bytes(), nil

	case F64:
		w := binary.NewWriter()
		switch f := v.(type) {
		case float64:
			w.WriteF64(f)
		case float32:
			w.WriteF64(float64(f))
		default:
			return nil, valueError(kind, v)
		}
		return w.Bytes(), nil

	case Name:
		s, ok := v.(string)
		if !ok {
			return nil, valueError(kind, v)
		}
		if !utf8.ValidString(s) {
			return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Value(s).
				Detail("name is not valid UTF-8").
				Build()
		}
		w := binary.NewWriter()
		w.WriteName(s)
		return w.Bytes(), nil
	}

	return nil, errors.Unsupported(errors.PhaseEncode, "value kind "+kind.String())
}

func valueError(kind ValueKind, v any) error {
	return errors.New(errors.PhaseEncode, errors.KindInvalidType).
		Value(v).
		Detail("%T cannot be encoded as %s", v, kind).
		Build()
}

// asUnsigned converts any non-negative Go integer to uint64.
func asUnsigned(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	}
	if s, ok := asSigned(v); ok && s >= 0 {
		return uint64(s), true
	}
	return 0, false
}

// asSigned converts any Go integer that fits int64 to int64.
func asSigned(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}
