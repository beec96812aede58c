package fast

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// StorageKind tells who owns the bytes of a string or byte vector value.
type StorageKind uint8

const (
	// Borrowed bytes point into caller or input memory. They are never grown
	// or freed through the Allocator.
	Borrowed StorageKind = iota

	// Owned bytes were obtained from the Allocator and are reused across
	// messages.
	Owned
)

// String returns the storage kind name.
func (k StorageKind) String() string {
	if k == Owned {
		return "Owned"
	}
	return "Borrowed"
}

const (
	flagPresent uint8 = 1 << iota
	flagDefined
)

// Value is the storage of one field, or one previous-value dictionary cell.
//
// Integers keep their bits in u, signed kinds as two's complement. Decimals
// keep the mantissa in u and the exponent in exp. Strings and byte vectors
// keep their bytes in buf. Groups and static template references keep one
// child Value per field in elems; sequences keep one group Value per element.
// A dynamic template reference keeps the selected template in ref.
//
// present and defined are independent: a dictionary cell is undefined until
// a value flows through it, and may then be defined but empty.
type Value struct {
	flags   uint8
	exp     int8
	storage StorageKind
	u       uint64
	buf     []byte
	ints    []uint64
	elems   []Value
	ref     *Template
}

// Present reports whether the value is present.
func (v *Value) Present() bool {
	return v.flags&flagPresent != 0
}

// Defined reports whether the value was ever assigned.
func (v *Value) Defined() bool {
	return v.flags&flagDefined != 0
}

// Storage returns who owns the value's bytes.
func (v *Value) Storage() StorageKind {
	return v.storage
}

func (v *Value) setPresent() {
	v.flags |= flagPresent | flagDefined
}

// clear marks the value absent and keeps its storage for reuse.
func (v *Value) clear() {
	v.flags = v.flags&^flagPresent | flagDefined
}

// undefine returns a dictionary cell to its initial state.
func (v *Value) undefine() {
	v.flags = 0
}

func (v *Value) setUint(u uint64) {
	v.u = u
	v.setPresent()
}

func (v *Value) setDecimal(d Decimal) {
	v.u = uint64(d.Mantissa)
	v.exp = d.Exponent
	v.setPresent()
}

func (v *Value) decimal() Decimal {
	return Decimal{Mantissa: int64(v.u), Exponent: v.exp}
}

// setBytes copies b into owned storage.
func (v *Value) setBytes(b []byte, a Allocator) {
	v.growBytes(len(b), a)
	copy(v.buf, b)
	v.setPresent()
}

// growBytes sizes owned storage to n bytes. The content is unspecified.
func (v *Value) growBytes(n int, a Allocator) {
	if v.storage == Borrowed {
		v.buf = nil
		v.storage = Owned
	}
	v.buf = a.Grow(v.buf[:0], n)
}

// borrowBytes points the value at b without copying.
func (v *Value) borrowBytes(b []byte, a Allocator) {
	v.release(a)
	v.buf = b
	v.storage = Borrowed
	v.setPresent()
}

// release returns owned storage to the allocator.
func (v *Value) release(a Allocator) {
	if v.storage == Owned && v.buf != nil {
		a.Free(v.buf)
	}
	v.buf = nil
	v.storage = Borrowed
}

// releaseAll releases the value and every nested value.
func (v *Value) releaseAll(a Allocator) {
	v.release(a)
	for i := range v.elems {
		v.elems[i].releaseAll(a)
	}
}

// assign copies the scalar content and presence of src into v. Nested
// aggregates are not copied.
func (v *Value) assign(src *Value, a Allocator) {
	if !src.Present() {
		v.clear()
		return
	}
	v.u = src.u
	v.exp = src.exp
	if src.buf != nil || v.buf != nil {
		v.setBytes(src.buf, a)
	}
	if src.ints != nil || v.ints != nil {
		v.ints = append(v.ints[:0], src.ints...)
	}
	v.setPresent()
}

// equal reports whether v and o hold the same scalar content. Two absent
// values are equal.
func (v *Value) equal(o *Value) bool {
	if v.Present() != o.Present() {
		return false
	}
	if !v.Present() {
		return true
	}
	if v.u != o.u || v.exp != o.exp || !bytes.Equal(v.buf, o.buf) || len(v.ints) != len(o.ints) {
		return false
	}
	for i := range v.ints {
		if v.ints[i] != o.ints[i] {
			return false
		}
	}
	return true
}

// Decimal is a scaled integer: Mantissa * 10^Exponent.
type Decimal struct {
	Mantissa int64
	Exponent int8
}

// Decimal exponent bounds.
const (
	MinExponent = -63
	MaxExponent = 63
)

// NewDecimal returns Mantissa * 10^Exponent.
func NewDecimal(mantissa int64, exponent int8) Decimal {
	return Decimal{Mantissa: mantissa, Exponent: exponent}
}

// Normalize strips trailing zero digits from the mantissa. Zero normalizes
// to exponent 0.
func (d Decimal) Normalize() Decimal {
	if d.Mantissa == 0 {
		return Decimal{}
	}
	for d.Mantissa%10 == 0 && d.Exponent < MaxExponent {
		d.Mantissa /= 10
		d.Exponent++
	}
	return d
}

// Float64 returns the nearest float64.
func (d Decimal) Float64() float64 {
	return float64(d.Mantissa) * math.Pow10(int(d.Exponent))
}

// String formats the decimal in plain notation, e.g. "1.25" or "4500".
func (d Decimal) String() string {
	digits := strconv.FormatInt(d.Mantissa, 10)
	sign := ""
	if digits[0] == '-' {
		sign, digits = "-", digits[1:]
	}
	switch {
	case d.Exponent >= 0:
		return sign + digits + strings.Repeat("0", int(d.Exponent))
	case int(-d.Exponent) < len(digits):
		point := len(digits) + int(d.Exponent)
		return sign + digits[:point] + "." + digits[point:]
	default:
		return sign + "0." + strings.Repeat("0", int(-d.Exponent)-len(digits)) + digits
	}
}

// ParseDecimal parses a decimal literal such as "123", "-1.25" or "4.5E3".
// The result is normalized.
func ParseDecimal(s string) (Decimal, error) {
	text := s
	exp := 0
	if i := strings.IndexAny(text, "eE"); i >= 0 {
		e, err := strconv.Atoi(text[i+1:])
		if err != nil {
			return Decimal{}, errors.Wrapf(err, "decimal %q: bad exponent", s)
		}
		exp, text = e, text[:i]
	}
	neg := false
	if text != "" && (text[0] == '-' || text[0] == '+') {
		neg, text = text[0] == '-', text[1:]
	}
	intPart, frac, _ := strings.Cut(text, ".")
	digits := strings.TrimLeft(intPart+frac, "0")
	if intPart+frac == "" || strings.Trim(intPart+frac, "0123456789") != "" {
		return Decimal{}, errors.Errorf("decimal %q: bad mantissa", s)
	}
	exp -= len(frac)

	// Trailing zeros move into the exponent before the mantissa is parsed
	// so that literals like 1000000000000000000000 still fit.
	trimmed := strings.TrimRight(digits, "0")
	exp += len(digits) - len(trimmed)
	var m int64
	if trimmed != "" {
		u, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil || (u > math.MaxInt64 && !(neg && u == 1<<63)) {
			return Decimal{}, errors.Errorf("decimal %q: mantissa overflows int64", s)
		}
		m = int64(u)
		if neg {
			m = -m
		}
	} else {
		exp = 0
	}
	if exp < MinExponent || exp > MaxExponent {
		return Decimal{}, errors.Wrapf(ErrDecimalExponent, "decimal %q", s)
	}
	return Decimal{Mantissa: m, Exponent: int8(exp)}, nil
}
