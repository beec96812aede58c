package fast

import (
	"github.com/blockberries/fast/internal/wire"
)

// zeroValue is the base of delta and tail when neither a previous nor an
// initial value exists. It must never be modified.
var zeroValue Value

// baseOf returns the base value of delta and tail: the previous value if it
// is assigned, else the initial value, else the type's zero value.
func baseOf(inst *Instruction, prev *Value) *Value {
	switch {
	case prev.Present():
		return prev
	case inst.initial.Present():
		return &inst.initial
	default:
		return &zeroValue
	}
}

// decodeScalar applies inst's operator to decode one value into v.
func (d *Decoder) decodeScalar(inst *Instruction, v *Value, pm *wire.PMap) error {
	optional := inst.Optional()
	switch inst.Operator {
	case OpNone:
		return d.readValue(inst, v, optional)

	case OpConstant:
		if optional && !pm.NextBit() {
			v.clear()
			return nil
		}
		v.assign(&inst.initial, d.alloc)
		return nil

	case OpDefault:
		prev := d.dict.cell(inst.slot)
		if pm.NextBit() {
			if err := d.readValue(inst, v, optional); err != nil {
				return err
			}
		} else {
			// Absent when there is no initial value; compilation rejects
			// that case for mandatory fields.
			v.assign(&inst.initial, d.alloc)
		}
		prev.assign(v, d.alloc)
		return nil

	case OpCopy, OpIncrement, OpTail:
		prev := d.dict.cell(inst.slot)
		if pm.NextBit() {
			var err error
			if inst.Operator == OpTail {
				err = d.readTail(inst, v, prev, optional)
			} else {
				err = d.readValue(inst, v, optional)
			}
			if err != nil {
				return err
			}
			prev.assign(v, d.alloc)
			return nil
		}
		switch {
		case !prev.Defined():
			if !inst.initial.Present() && !optional {
				return ErrMandatoryFieldAbsent
			}
			v.assign(&inst.initial, d.alloc)
		case prev.Present():
			v.assign(prev, d.alloc)
			if inst.Operator == OpIncrement {
				v.u = increment(inst.Kind, v.u)
			}
		default:
			if !optional {
				return ErrMandatoryFieldAbsent
			}
			v.clear()
			return nil
		}
		prev.assign(v, d.alloc)
		return nil

	case OpDelta:
		prev := d.dict.cell(inst.slot)
		null, err := d.readDelta(inst, v, baseOf(inst, prev), optional)
		if err != nil {
			return err
		}
		if null {
			// NULL leaves the previous value untouched.
			v.clear()
			return nil
		}
		prev.assign(v, d.alloc)
		return nil
	}
	return ErrOperatorNotApplicable
}

// encodeScalar applies inst's operator to encode v. Bits are added to seg.
func (e *Encoder) encodeScalar(inst *Instruction, v *Value, seg *segment) error {
	optional := inst.Optional()
	if !optional && !v.Present() && inst.Operator != OpConstant {
		return ErrMandatoryFieldAbsent
	}
	switch inst.Operator {
	case OpNone:
		return e.writeValue(inst, v, optional)

	case OpConstant:
		if v.Present() && !v.equal(&inst.initial) {
			return ErrConstantMismatch
		}
		if optional {
			seg.pm.SetNextBit(v.Present())
		}
		return nil

	case OpDefault:
		prev := e.dict.cell(inst.slot)
		if v.equal(&inst.initial) {
			seg.pm.SetNextBit(false)
		} else {
			seg.pm.SetNextBit(true)
			if err := e.writeValue(inst, v, optional); err != nil {
				return err
			}
		}
		prev.assign(v, e.alloc)
		return nil

	case OpCopy, OpIncrement, OpTail:
		prev := e.dict.cell(inst.slot)
		if e.derivable(inst, prev, v) {
			seg.pm.SetNextBit(false)
		} else {
			seg.pm.SetNextBit(true)
			var err error
			if inst.Operator == OpTail {
				err = e.writeTail(inst, v, prev, optional)
			} else {
				err = e.writeValue(inst, v, optional)
			}
			if err != nil {
				return err
			}
		}
		prev.assign(v, e.alloc)
		return nil

	case OpDelta:
		if !v.Present() {
			return e.w.null()
		}
		prev := e.dict.cell(inst.slot)
		if err := e.writeDelta(inst, v, baseOf(inst, prev), optional); err != nil {
			return err
		}
		prev.assign(v, e.alloc)
		return nil
	}
	return ErrOperatorNotApplicable
}

// derivable reports whether a decoder would arrive at v from a clear
// presence bit, given the previous value of a copy, increment or tail field.
func (e *Encoder) derivable(inst *Instruction, prev, v *Value) bool {
	switch {
	case !prev.Defined():
		if !inst.initial.Present() {
			return inst.Optional() && !v.Present()
		}
		return v.equal(&inst.initial)
	case prev.Present():
		if inst.Operator == OpIncrement {
			next := Value{flags: prev.flags, u: increment(inst.Kind, prev.u)}
			return v.equal(&next)
		}
		return v.equal(prev)
	default:
		return inst.Optional() && !v.Present()
	}
}

// increment returns u+1 wrapped to the width of kind.
func increment(kind Kind, u uint64) uint64 {
	switch kind {
	case KindInt32:
		return uint64(int64(int32(u) + 1))
	case KindUInt32, KindEnum:
		return uint64(uint32(u) + 1)
	default:
		return u + 1
	}
}

// addDelta returns base+delta for an integer of the given kind. 32-bit kinds
// are range checked; 64-bit kinds wrap, which mirrors subtractDelta.
func addDelta(kind Kind, base uint64, delta int64) (uint64, error) {
	switch kind {
	case KindInt32:
		// An int64 overflow lands far outside the int32 range.
		x := int64(base) + delta
		if !wire.FitsInt32(x) {
			return 0, ErrIntegerOverflow
		}
		return uint64(x), nil
	case KindUInt32, KindEnum:
		x := int64(base) + delta
		if x < 0 || !wire.FitsUint32(uint64(x)) {
			return 0, ErrIntegerOverflow
		}
		return uint64(x), nil
	default:
		return base + uint64(delta), nil
	}
}

// subtractDelta returns the delta that takes base to v.
func subtractDelta(kind Kind, v, base uint64) int64 {
	switch kind {
	case KindInt32, KindUInt32, KindEnum:
		return int64(v) - int64(base)
	default:
		return int64(v - base)
	}
}

// spliceDelta sets v to base with a string delta applied. A subtraction
// length sub >= 0 removes sub bytes from the end of base and appends s. A
// negative sub removes -sub-1 bytes from the front and prepends s, so -1
// removes nothing. If stop is set, the last byte of s carries a stop bit
// that is cleared in v.
func spliceDelta(v *Value, base []byte, sub int64, s []byte, stop bool, a Allocator) error {
	front := sub < 0
	drop := sub
	if front {
		drop = -sub - 1
	}
	if drop > int64(len(base)) {
		return ErrDeltaOutOfRange
	}
	keep := len(base) - int(drop)
	n := keep + len(s)
	v.growBytes(n, a)
	if front {
		copy(v.buf, s)
		copy(v.buf[len(s):], base[drop:])
		if stop && len(s) > 0 {
			v.buf[len(s)-1] &^= wire.StopBit
		}
	} else {
		copy(v.buf, base[:keep])
		copy(v.buf[keep:], s)
		if stop && len(s) > 0 {
			v.buf[n-1] &^= wire.StopBit
		}
	}
	v.setPresent()
	return nil
}

// diffDelta returns the subtraction length and the bytes that take base to
// s, choosing whichever of an end or a front edit sends fewer bytes.
func diffDelta(base, s []byte) (sub int64, add []byte) {
	prefix := 0
	for prefix < len(base) && prefix < len(s) && base[prefix] == s[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(base) && suffix < len(s) && base[len(base)-1-suffix] == s[len(s)-1-suffix] {
		suffix++
	}
	back := s[prefix:]
	frontAdd := s[:len(s)-suffix]
	if len(frontAdd) < len(back) {
		return -int64(len(base)-suffix) - 1, frontAdd
	}
	return int64(len(base) - prefix), back
}

// spliceTail sets v to base with its last len(t) bytes replaced by t. If
// stop is set, the last byte of t carries a stop bit that is cleared in v.
func spliceTail(v *Value, base, t []byte, stop bool, a Allocator) {
	keep := len(base) - len(t)
	if keep < 0 {
		keep = 0
	}
	n := keep + len(t)
	v.growBytes(n, a)
	copy(v.buf, base[:keep])
	copy(v.buf[keep:], t)
	if stop && len(t) > 0 {
		v.buf[n-1] &^= wire.StopBit
	}
	v.setPresent()
}

// diffTail returns the tail that takes base to s.
func diffTail(base, s []byte) ([]byte, error) {
	switch {
	case len(s) < len(base):
		return nil, ErrTailShorten
	case len(s) > len(base):
		return s, nil
	}
	prefix := 0
	for prefix < len(s) && base[prefix] == s[prefix] {
		prefix++
	}
	return s[prefix:], nil
}
