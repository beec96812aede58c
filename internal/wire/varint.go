// Package wire provides low-level encoding primitives for the FAST wire format.
package wire

import (
	"errors"
	"math"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// MaxIntLen is the maximum number of bytes of a stop-bit encoded integer.
// A 64-bit value needs ceil(64/7) = 10 groups; the nullable forms of the
// largest values also fit in 10 groups.
const MaxIntLen = 10

// StopBit marks the last byte of an integer, string or presence map.
const StopBit = 0x80

// Null is the single-byte encoding of a NULL nullable value.
const Null = StopBit

// Errors for integer decoding.
var (
	// ErrVarintTruncated indicates the data ended before a stop bit was found.
	ErrVarintTruncated = errors.New("fast: stop-bit integer truncated")

	// ErrIntegerOverflow indicates the integer does not fit the target type.
	ErrIntegerOverflow = errors.New("fast: integer overflow")
)

// UintSize returns the number of bytes needed to encode v.
func UintSize[T constraints.Unsigned](v T) int {
	n := (bits.Len64(uint64(v)) + 6) / 7
	if n == 0 {
		return 1
	}
	return n
}

// IntSize returns the number of bytes needed to encode v, including the
// sign bit carried in the first byte.
func IntSize[T constraints.Signed](v T) int {
	x := int64(v)
	if x < 0 {
		x = ^x
	}
	return (bits.Len64(uint64(x)) + 1 + 6) / 7
}

// NullableUintSize returns the encoded size of v in nullable form.
func NullableUintSize(v uint64) int {
	if v == math.MaxUint64 {
		return MaxIntLen
	}
	return UintSize(v + 1)
}

// NullableIntSize returns the encoded size of v in nullable form.
func NullableIntSize(v int64) int {
	switch {
	case v == math.MaxInt64:
		return MaxIntLen
	case v >= 0:
		return IntSize(v + 1)
	default:
		return IntSize(v)
	}
}

// AppendUint appends the stop-bit encoding of v to buf.
//
// Groups of 7 bits are written most significant first and the last byte
// carries the stop bit:
//   - 0 → [0x80]
//   - 1 → [0x81]
//   - 127 → [0xff]
//   - 128 → [0x01, 0x80]
func AppendUint[T constraints.Unsigned](buf []byte, v T) []byte {
	u := uint64(v)
	for i := UintSize(u) - 1; i > 0; i-- {
		buf = append(buf, byte(u>>(7*uint(i)))&0x7f)
	}
	return append(buf, byte(u)&0x7f|StopBit)
}

// AppendInt appends the stop-bit encoding of the signed value v to buf.
// Bit 6 of the first byte is the sign bit, so 64 needs two bytes
// ([0x00, 0xc0]) and -1 needs one ([0xff]).
func AppendInt[T constraints.Signed](buf []byte, v T) []byte {
	x := int64(v)
	for i := IntSize(x) - 1; i > 0; i-- {
		buf = append(buf, byte(x>>(7*uint(i)))&0x7f)
	}
	return append(buf, byte(x)&0x7f|StopBit)
}

// AppendNullableUint appends v in nullable form: v+1, so that 0 is NULL.
func AppendNullableUint(buf []byte, v uint64) []byte {
	if v == math.MaxUint64 {
		// 2^64 in ten groups: bit 64 is bit 1 of the first group.
		buf = append(buf, 0x02, 0, 0, 0, 0, 0, 0, 0, 0)
		return append(buf, StopBit)
	}
	return AppendUint(buf, v+1)
}

// AppendNullableInt appends v in nullable form: non-negative values are
// incremented by one, negative values are unchanged.
func AppendNullableInt(buf []byte, v int64) []byte {
	switch {
	case v == math.MaxInt64:
		// 2^63 as a positive number: the first group holds bit 63 only.
		buf = append(buf, 0x01, 0, 0, 0, 0, 0, 0, 0, 0)
		return append(buf, StopBit)
	case v >= 0:
		return AppendInt(buf, v+1)
	default:
		return AppendInt(buf, v)
	}
}

// AppendNull appends the NULL value of any nullable type.
func AppendNull(buf []byte) []byte {
	return append(buf, Null)
}

// ScanStopBit returns the number of bytes up to and including the first byte
// with the stop bit set. It returns -1 if no stop bit is found.
func ScanStopBit(data []byte) int {
	for i, b := range data {
		if b&StopBit != 0 {
			return i + 1
		}
	}
	return -1
}

// decodeUint65 decodes an unsigned integer into 65 bits: carry holds the
// bits above bit 63.
func decodeUint65(data []byte) (v, carry uint64, n int, err error) {
	for i, b := range data {
		if i >= MaxIntLen {
			return 0, 0, 0, ErrIntegerOverflow
		}
		carry = carry<<7 | v>>57
		v = v<<7 | uint64(b&0x7f)
		if b&StopBit != 0 {
			return v, carry, i + 1, nil
		}
	}
	return 0, 0, 0, ErrVarintTruncated
}

// DecodeUint decodes a stop-bit encoded unsigned integer from data and
// returns the value and the number of bytes consumed.
func DecodeUint(data []byte) (uint64, int, error) {
	// Fast path for single-byte values.
	if len(data) > 0 && data[0]&StopBit != 0 {
		return uint64(data[0] & 0x7f), 1, nil
	}
	v, carry, n, err := decodeUint65(data)
	if err != nil {
		return 0, 0, err
	}
	if carry != 0 {
		return 0, 0, ErrIntegerOverflow
	}
	return v, n, nil
}

// DecodeNullableUint decodes a nullable unsigned integer. null reports a
// NULL value.
func DecodeNullableUint(data []byte) (v uint64, null bool, n int, err error) {
	raw, carry, n, err := decodeUint65(data)
	if err != nil {
		return 0, false, 0, err
	}
	switch {
	case carry == 1 && raw == 0:
		return math.MaxUint64, false, n, nil
	case carry != 0:
		return 0, false, 0, ErrIntegerOverflow
	case raw == 0:
		return 0, true, n, nil
	}
	return raw - 1, false, n, nil
}

// decodeInt decodes a signed integer. positiveOverflow reports the single
// 65-bit pattern 2^63, which only the nullable form of MaxInt64 produces.
func decodeInt(data []byte) (v int64, positiveOverflow bool, n int, err error) {
	n = ScanStopBit(data)
	switch {
	case n < 0:
		if len(data) >= MaxIntLen {
			return 0, false, 0, ErrIntegerOverflow
		}
		return 0, false, 0, ErrVarintTruncated
	case n > MaxIntLen:
		return 0, false, 0, ErrIntegerOverflow
	}

	first := data[0] & 0x7f
	if n == MaxIntLen {
		// The first group holds bits 63..69, which must all equal the sign.
		switch first {
		case 0x00, 0x7f:
		case 0x01:
			positiveOverflow = true
		default:
			return 0, false, 0, ErrIntegerOverflow
		}
	}

	var u uint64
	if first&0x40 != 0 {
		u = math.MaxUint64
	}
	for _, b := range data[:n] {
		u = u<<7 | uint64(b&0x7f)
	}
	return int64(u), positiveOverflow, n, nil
}

// DecodeInt decodes a stop-bit encoded signed integer.
func DecodeInt(data []byte) (int64, int, error) {
	v, over, n, err := decodeInt(data)
	if err != nil {
		return 0, 0, err
	}
	if over {
		return 0, 0, ErrIntegerOverflow
	}
	return v, n, nil
}

// DecodeNullableInt decodes a nullable signed integer.
func DecodeNullableInt(data []byte) (v int64, null bool, n int, err error) {
	raw, over, n, err := decodeInt(data)
	if err != nil {
		return 0, false, 0, err
	}
	if over {
		// Only 2^63 exactly maps back to MaxInt64.
		if raw != math.MinInt64 {
			return 0, false, 0, ErrIntegerOverflow
		}
		return math.MaxInt64, false, n, nil
	}
	switch {
	case raw == 0:
		return 0, true, n, nil
	case raw > 0:
		return raw - 1, false, n, nil
	}
	return raw, false, n, nil
}

// FitsInt32 reports whether v is representable as an int32.
func FitsInt32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

// FitsUint32 reports whether v is representable as a uint32.
func FitsUint32(v uint64) bool {
	return v <= math.MaxUint32
}
