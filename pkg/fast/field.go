package fast

import (
	"encoding/hex"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/blockberries/fast/internal/wire"
)

// FieldRef is a read-only view of one field: its instruction and its value.
// A FieldRef is invalidated by the next Decode into the same storage.
type FieldRef struct {
	inst *Instruction
	v    *Value
}

// Valid reports whether the view refers to a field.
func (f FieldRef) Valid() bool {
	return f.inst != nil && f.v != nil
}

// Instruction returns the field's instruction.
func (f FieldRef) Instruction() *Instruction {
	return f.inst
}

// Name returns the field name.
func (f FieldRef) Name() string {
	return f.inst.Name
}

// Kind returns the field kind.
func (f FieldRef) Kind() Kind {
	return f.inst.Kind
}

// Present reports whether the field has a value.
func (f FieldRef) Present() bool {
	return f.v != nil && f.v.Present()
}

// Defined reports whether a value was ever assigned. It distinguishes an
// undefined dictionary entry from an empty one.
func (f FieldRef) Defined() bool {
	return f.v != nil && f.v.Defined()
}

// Int64 returns an integer field's value. Unsigned 64-bit values above
// math.MaxInt64 wrap.
func (f FieldRef) Int64() int64 {
	return int64(f.v.u)
}

// Uint64 returns an integer field's value as its two's complement bits.
func (f FieldRef) Uint64() uint64 {
	return f.v.u
}

// Decimal returns a decimal field's value.
func (f FieldRef) Decimal() Decimal {
	return f.v.decimal()
}

// Bytes returns the content of a string or byte vector field. The slice is
// owned by the message and must not be retained.
func (f FieldRef) Bytes() []byte {
	return f.v.buf
}

// Int64s returns the elements of an integer vector as signed values.
func (f FieldRef) Int64s() []int64 {
	out := make([]int64, len(f.v.ints))
	for i, u := range f.v.ints {
		out[i] = int64(u)
	}
	return out
}

// Uint64s returns the elements of an integer vector. The slice is owned by
// the message.
func (f FieldRef) Uint64s() []uint64 {
	return f.v.ints
}

// EnumName returns the name of an enum field's value.
func (f FieldRef) EnumName() string {
	return f.inst.EnumName(f.v.u)
}

// Len returns the number of sequence elements, vector elements or bytes.
func (f FieldRef) Len() int {
	switch {
	case f.inst.Kind == KindSequence:
		return len(f.v.elems)
	case f.inst.Kind.IsVector():
		return len(f.v.ints)
	default:
		return len(f.v.buf)
	}
}

// Element returns the i-th element of a sequence.
func (f FieldRef) Element(i int) AggregateRef {
	return AggregateRef{inst: f.inst, fields: f.inst.Fields, v: &f.v.elems[i], index: i}
}

// Group returns the fields of a group or template reference.
func (f FieldRef) Group() AggregateRef {
	return AggregateRef{inst: f.inst, fields: aggregateFields(f.inst, f.v), v: f.v, index: -1}
}

// Template returns the template selected by a dynamic template reference,
// or the target of a static one.
func (f FieldRef) Template() *Template {
	if f.inst.Target != nil {
		return f.inst.Target
	}
	return f.v.ref
}

// String formats the value for display. Absent values format as "".
func (f FieldRef) String() string {
	if !f.Present() {
		return ""
	}
	switch f.inst.Kind {
	case KindInt32, KindInt64:
		return strconv.FormatInt(int64(f.v.u), 10)
	case KindUInt32, KindUInt64:
		return strconv.FormatUint(f.v.u, 10)
	case KindEnum:
		if name := f.EnumName(); name != "" {
			return name
		}
		return strconv.FormatUint(f.v.u, 10)
	case KindDecimal:
		return f.v.decimal().String()
	case KindASCIIString, KindUnicodeString:
		return string(f.v.buf)
	case KindByteVector:
		return hex.EncodeToString(f.v.buf)
	case KindSequence:
		return "[" + strconv.Itoa(len(f.v.elems)) + "]"
	case KindTemplateRef:
		if t := f.Template(); t != nil {
			return t.Name
		}
	}
	return f.inst.Kind.String()
}

// aggregateFields returns the instructions describing v's children.
func aggregateFields(inst *Instruction, v *Value) []*Instruction {
	switch {
	case inst.Kind != KindTemplateRef:
		return inst.Fields
	case inst.Target != nil:
		return inst.Target.Fields
	case v.ref != nil:
		return v.ref.Fields
	}
	return nil
}

// AggregateRef is a read-only view of the fields of a message, group,
// sequence element or template reference.
type AggregateRef struct {
	inst   *Instruction // nil for the message root
	fields []*Instruction
	v      *Value
	index  int // element index in a sequence, or -1
}

// Instruction returns the group, sequence or template reference, or nil for
// the message root.
func (a AggregateRef) Instruction() *Instruction {
	return a.inst
}

// Present reports whether the aggregate has a value.
func (a AggregateRef) Present() bool {
	return a.v.Present()
}

// Index returns the element index within a sequence, or -1.
func (a AggregateRef) Index() int {
	return a.index
}

// Len returns the number of fields.
func (a AggregateRef) Len() int {
	return len(a.fields)
}

// Field returns a view of the i-th field.
func (a AggregateRef) Field(i int) FieldRef {
	var v *Value
	if i < len(a.v.elems) {
		v = &a.v.elems[i]
	}
	return FieldRef{inst: a.fields[i], v: v}
}

// FieldByName returns a view of the named field.
func (a AggregateRef) FieldByName(name string) (FieldRef, bool) {
	i := fieldIndex(a.fields, name)
	if i < 0 {
		return FieldRef{}, false
	}
	return a.Field(i), true
}

// FieldMRef is a mutable view of one field. Setters validate the value
// against the field type.
type FieldMRef struct {
	inst  *Instruction
	v     *Value
	alloc Allocator
}

// Ref returns a read-only view of the field.
func (f FieldMRef) Ref() FieldRef {
	return FieldRef{inst: f.inst, v: f.v}
}

// SetInt64 sets an integer field.
func (f FieldMRef) SetInt64(x int64) error {
	switch f.inst.Kind {
	case KindInt32:
		if !wire.FitsInt32(x) {
			return ErrIntegerOverflow
		}
	case KindUInt32, KindEnum:
		if x < 0 || x > math.MaxUint32 {
			return ErrIntegerOverflow
		}
	case KindUInt64:
		if x < 0 {
			return ErrIntegerOverflow
		}
	case KindInt64:
	default:
		return ErrTypeMismatch
	}
	f.v.setUint(uint64(x))
	return nil
}

// SetUint64 sets an integer field.
func (f FieldMRef) SetUint64(u uint64) error {
	switch f.inst.Kind {
	case KindInt32:
		if u > math.MaxInt32 {
			return ErrIntegerOverflow
		}
	case KindUInt32, KindEnum:
		if !wire.FitsUint32(u) {
			return ErrIntegerOverflow
		}
	case KindInt64:
		if u > math.MaxInt64 {
			return ErrIntegerOverflow
		}
	case KindUInt64:
	default:
		return ErrTypeMismatch
	}
	f.v.setUint(u)
	return nil
}

// SetEnum sets an enum field by element name.
func (f FieldMRef) SetEnum(name string) error {
	if f.inst.Kind != KindEnum {
		return ErrTypeMismatch
	}
	idx := indexOf(f.inst.Elements, name)
	if idx < 0 {
		return ErrTypeMismatch
	}
	f.v.setUint(uint64(idx))
	return nil
}

// SetDecimal sets a decimal field.
func (f FieldMRef) SetDecimal(d Decimal) error {
	if f.inst.Kind != KindDecimal {
		return ErrTypeMismatch
	}
	if d.Exponent < MinExponent || d.Exponent > MaxExponent {
		return ErrDecimalExponent
	}
	f.v.setDecimal(d)
	return nil
}

// SetString sets an ascii or unicode string field.
func (f FieldMRef) SetString(s string) error {
	switch f.inst.Kind {
	case KindASCIIString:
		for i := 0; i < len(s); i++ {
			if s[i] >= 0x80 {
				return ErrInvalidASCII
			}
		}
	case KindUnicodeString:
		if !utf8.ValidString(s) {
			return ErrInvalidUTF8
		}
	default:
		return ErrTypeMismatch
	}
	f.v.growBytes(len(s), f.alloc)
	copy(f.v.buf, s)
	f.v.setPresent()
	return nil
}

// SetBytes copies b into a byte vector or string field.
func (f FieldMRef) SetBytes(b []byte) error {
	if err := f.checkBytes(b); err != nil {
		return err
	}
	f.v.setBytes(b, f.alloc)
	return nil
}

// BorrowBytes points a byte vector or string field at b without copying.
// b must stay unchanged while the message is in use.
func (f FieldMRef) BorrowBytes(b []byte) error {
	if err := f.checkBytes(b); err != nil {
		return err
	}
	f.v.borrowBytes(b, f.alloc)
	return nil
}

func (f FieldMRef) checkBytes(b []byte) error {
	switch f.inst.Kind {
	case KindByteVector, KindUnicodeString:
		return nil
	case KindASCIIString:
		for _, c := range b {
			if c >= 0x80 {
				return ErrInvalidASCII
			}
		}
		return nil
	}
	return ErrTypeMismatch
}

// SetInt64s sets the elements of an integer vector.
func (f FieldMRef) SetInt64s(xs []int64) error {
	if !f.inst.Kind.IsVector() {
		return ErrTypeMismatch
	}
	elem := FieldMRef{inst: &Instruction{Kind: f.inst.Kind.elementKind()}, v: &Value{}}
	ints := f.v.ints[:0]
	for _, x := range xs {
		if err := elem.SetInt64(x); err != nil {
			return err
		}
		ints = append(ints, elem.v.u)
	}
	f.v.ints = ints
	f.v.setPresent()
	return nil
}

// SetUint64s sets the elements of an integer vector.
func (f FieldMRef) SetUint64s(us []uint64) error {
	if !f.inst.Kind.IsVector() {
		return ErrTypeMismatch
	}
	elem := FieldMRef{inst: &Instruction{Kind: f.inst.Kind.elementKind()}, v: &Value{}}
	for _, u := range us {
		if err := elem.SetUint64(u); err != nil {
			return err
		}
	}
	f.v.ints = append(f.v.ints[:0], us...)
	f.v.setPresent()
	return nil
}

// SetAbsent makes an optional field absent.
func (f FieldMRef) SetAbsent() error {
	if !f.inst.Optional() {
		return ErrMandatoryFieldAbsent
	}
	f.v.clear()
	return nil
}

// Resize sets the number of elements of a sequence and makes it present.
// Elements kept from earlier keep their content.
func (f FieldMRef) Resize(n int) error {
	if f.inst.Kind != KindSequence {
		return ErrTypeMismatch
	}
	if n < 0 {
		return ErrMaxLengthExceeded
	}
	resizeElems(f.v, n, f.inst.Fields, f.alloc)
	f.v.setPresent()
	return nil
}

// MutableElement returns the i-th element of a sequence.
func (f FieldMRef) MutableElement(i int) AggregateMRef {
	return AggregateMRef{inst: f.inst, fields: f.inst.Fields, v: &f.v.elems[i], alloc: f.alloc, index: i}
}

// MutableGroup makes a group or static template reference present and
// returns its fields.
func (f FieldMRef) MutableGroup() (AggregateMRef, error) {
	var fields []*Instruction
	switch {
	case f.inst.Kind == KindGroup:
		fields = f.inst.Fields
	case f.inst.Kind == KindTemplateRef && f.inst.Target != nil:
		fields = f.inst.Target.Fields
	case f.inst.Kind == KindTemplateRef && f.v.ref != nil:
		fields = f.v.ref.Fields
	default:
		return AggregateMRef{}, ErrTypeMismatch
	}
	f.v.setPresent()
	ensureElems(f.v, fields, f.alloc)
	return AggregateMRef{inst: f.inst, fields: fields, v: f.v, alloc: f.alloc, index: -1}, nil
}

// SetTemplate selects the template of a dynamic template reference and
// returns its fields, freshly initialized when the template changes.
func (f FieldMRef) SetTemplate(t *Template) (AggregateMRef, error) {
	if !f.inst.IsDynamic() || t == nil {
		return AggregateMRef{}, ErrTypeMismatch
	}
	if f.v.ref != t {
		f.v.releaseAll(f.alloc)
		f.v.elems = nil
		f.v.ref = t
	}
	f.v.u = uint64(t.ID)
	f.v.setPresent()
	ensureElems(f.v, t.Fields, f.alloc)
	return AggregateMRef{inst: f.inst, fields: t.Fields, v: f.v, alloc: f.alloc, index: -1}, nil
}

// AggregateMRef is a mutable view of the fields of a message, group,
// sequence element or template reference.
type AggregateMRef struct {
	inst   *Instruction
	fields []*Instruction
	v      *Value
	alloc  Allocator
	index  int
}

// Ref returns a read-only view of the aggregate.
func (a AggregateMRef) Ref() AggregateRef {
	return AggregateRef{inst: a.inst, fields: a.fields, v: a.v, index: a.index}
}

// Len returns the number of fields.
func (a AggregateMRef) Len() int {
	return len(a.fields)
}

// Field returns a mutable view of the i-th field.
func (a AggregateMRef) Field(i int) FieldMRef {
	return FieldMRef{inst: a.fields[i], v: &a.v.elems[i], alloc: a.alloc}
}

// FieldByName returns a mutable view of the named field.
func (a AggregateMRef) FieldByName(name string) (FieldMRef, bool) {
	i := fieldIndex(a.fields, name)
	if i < 0 {
		return FieldMRef{}, false
	}
	return a.Field(i), true
}
