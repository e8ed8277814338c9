package binary

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/wippyai/wasmgen/errors"
)

// Reader decodes WASM binary primitives from a byte slice, tracking the
// absolute offset of every read for error reporting.
type Reader struct {
	data []byte
	pos  int
	base int
}

// NewReader creates a new Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the absolute byte offset of the next read.
func (r *Reader) Position() int {
	return r.base + r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// EOF reports whether every byte was consumed.
func (r *Reader) EOF() bool {
	return r.pos >= len(r.data)
}

// Sub consumes the next n bytes and returns a Reader over them whose
// positions stay absolute.
func (r *Reader) Sub(n int) (*Reader, error) {
	if n < 0 || n > r.Len() {
		return nil, r.eof(n)
	}
	sub := &Reader{data: r.data[r.pos : r.pos+n], base: r.Position()}
	r.pos += n
	return sub, nil
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.eof(1)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes. The result is a copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, r.eof(n)
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:])
	r.pos += n
	return out, nil
}

// ReadU32 reads an unsigned LEB128 encoded uint32.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.readUnsigned(32)
	return uint32(v), err
}

// ReadU64 reads an unsigned LEB128 encoded uint64.
func (r *Reader) ReadU64() (uint64, error) {
	return r.readUnsigned(64)
}

// ReadS32 reads a signed LEB128 encoded int32.
func (r *Reader) ReadS32() (int32, error) {
	v, err := r.readSigned(32)
	return int32(v), err
}

// ReadS33 reads a signed LEB128 encoded 33-bit integer (block types).
func (r *Reader) ReadS33() (int64, error) {
	return r.readSigned(33)
}

// ReadS64 reads a signed LEB128 encoded int64.
func (r *Reader) ReadS64() (int64, error) {
	return r.readSigned(64)
}

// ReadF32 reads a little-endian IEEE 754 single.
func (r *Reader) ReadF32() (float32, error) {
	if r.Len() < 4 {
		return 0, r.eof(4)
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return math.Float32frombits(v), nil
}

// ReadF64 reads a little-endian IEEE 754 double.
func (r *Reader) ReadF64() (float64, error) {
	if r.Len() < 8 {
		return 0, r.eof(8)
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return math.Float64frombits(v), nil
}

// ReadName reads a length-prefixed UTF-8 name.
func (r *Reader) ReadName() (string, error) {
	start := r.Position()
	length, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("invalid UTF-8 in name at offset %d", start).
			Value(start).
			Build()
	}
	return string(data), nil
}

// ReadRemaining consumes and returns every unread byte.
func (r *Reader) ReadRemaining() []byte {
	out, _ := r.ReadBytes(r.Len())
	return out
}

// readUnsigned decodes an unsigned LEB128 value of at most bits bits. The
// final permitted byte must not carry a continuation flag or bits beyond
// the width.
func (r *Reader) readUnsigned(bits uint) (uint64, error) {
	start := r.Position()
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift+7 > bits {
			if b&0x80 != 0 || uint64(b&0x7f)>>(bits-shift) != 0 {
				return 0, r.overflow(start, bits, "u")
			}
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// readSigned decodes a signed LEB128 value of at most bits bits. Unused
// bits of the final byte must all equal the sign bit.
func (r *Reader) readSigned(bits uint) (int64, error) {
	start := r.Position()
	var result int64
	var shift uint
	var b byte
	for {
		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift+7 > bits {
			rem := bits - shift
			high := (b & 0x7f) >> (rem - 1)
			if b&0x80 != 0 || (high != 0 && high != 0x7f>>(rem-1)) {
				return 0, r.overflow(start, bits, "s")
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

func (r *Reader) eof(want int) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Detail("unexpected end of input at offset %d: need %d byte(s), have %d", r.Position(), want, r.Len()).
		Value(r.Position()).
		Build()
}

func (r *Reader) overflow(start int, bits uint, sign string) error {
	return errors.Overflow(errors.PhaseDecode, []string{fmt.Sprintf("offset %d", start)},
		"leb128", fmt.Sprintf("%s%d", sign, bits))
}
