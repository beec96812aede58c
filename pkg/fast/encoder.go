package fast

import (
	"errors"

	"github.com/go-logr/logr"
)

// Encoder encodes FAST messages into caller-supplied buffers.
//
// An Encoder owns its dictionary and must not be used from several
// goroutines at once.
type Encoder struct {
	templates *Templates
	opts      Options
	alloc     Allocator
	dict      *Dictionary
	w         writer
	log       logr.Logger
	metrics   *metrics

	active    uint32 // previous template id
	hasActive bool

	tmpl *Template // template of the message being encoded
}

// NewEncoder creates an Encoder with DefaultOptions.
func NewEncoder(t *Templates) *Encoder {
	return NewEncoderWithOptions(t, DefaultOptions)
}

// NewEncoderWithOptions creates an Encoder with the specified options.
func NewEncoderWithOptions(t *Templates, opts Options) *Encoder {
	e := &Encoder{
		templates: t,
		opts:      opts,
		alloc:     opts.allocator(),
		log:       opts.logger().WithName("encoder"),
	}
	e.dict = newDictionary(e.alloc)
	e.w.opts = &e.opts
	e.metrics = newMetrics(opts.MeterProvider, "encode", e.log)
	return e
}

// Dictionary returns the encoder's previous-value dictionary.
func (e *Encoder) Dictionary() *Dictionary {
	return e.dict
}

// Reset makes every dictionary entry undefined and forgets the previous
// template id, so that the next message carries its template id.
func (e *Encoder) Reset() {
	e.dict.Reset()
	e.hasActive = false
	e.log.V(1).Info("dictionary reset")
}

// Encode encodes msg into dst and returns the number of bytes written.
// dst is never grown: ErrBufferOverflow is returned when the message does
// not fit. If reset is set, the dictionary entries of the message's
// template are reset first.
func (e *Encoder) Encode(dst []byte, msg *Message, reset bool) (int, error) {
	e.tmpl = msg.tmpl
	err := e.encode(dst, msg, reset)
	n := len(e.w.buf)
	e.metrics.record(msg.tmpl.Name, n, err)
	if err != nil {
		var ee *EncodeError
		if !errors.As(err, &ee) {
			ee = &EncodeError{Template: msg.tmpl.Name, Offset: n, Cause: err}
		}
		e.log.V(1).Info("encode failed", "template", msg.tmpl.Name, "offset", ee.Offset, "error", ee.Cause)
		return 0, ee
	}
	return n, nil
}

func (e *Encoder) encode(dst []byte, msg *Message, reset bool) error {
	e.w.reset(dst)
	tmpl := msg.tmpl
	if t, ok := e.templates.Lookup(tmpl.ID); !ok || t != tmpl {
		return ErrUnknownTemplateID
	}
	e.dict.grow(e.templates.slotCount())
	if reset || tmpl.Reset {
		e.dict.resetSlots(tmpl.resetSlots)
		e.log.V(1).Info("dictionary reset", "template", tmpl.Name)
	}

	seg, err := e.w.beginSegment(tmpl.segmentBits())
	if err != nil {
		return err
	}
	if err := e.templateID(seg, tmpl.ID); err != nil {
		return err
	}
	if err := e.encodeFields(tmpl.Fields, msg.root.elems, seg); err != nil {
		return err
	}
	e.w.commit(seg)
	if max := e.opts.Limits.MaxMessageSize; max > 0 && len(e.w.buf) > max {
		return ErrMaxSizeExceeded
	}
	return nil
}

// templateID announces id in the first bit of seg and writes it unless it
// repeats the previous id.
func (e *Encoder) templateID(seg *segment, id uint32) error {
	if e.hasActive && id == e.active {
		seg.pm.SetNextBit(false)
		return nil
	}
	seg.pm.SetNextBit(true)
	if err := e.w.integer(KindUInt32, uint64(id), false); err != nil {
		return err
	}
	e.active, e.hasActive = id, true
	return nil
}

// encodeFields encodes vals, one value per field.
func (e *Encoder) encodeFields(fields []*Instruction, vals []Value, seg *segment) error {
	if len(vals) != len(fields) {
		return ErrTypeMismatch
	}
	for i, inst := range fields {
		start := len(e.w.buf)
		if err := e.encodeField(inst, &vals[i], seg); err != nil {
			return e.fieldError(inst, start, err)
		}
	}
	return nil
}

// fieldError attaches the innermost field to err.
func (e *Encoder) fieldError(inst *Instruction, offset int, err error) error {
	var ee *EncodeError
	if errors.As(err, &ee) {
		return err
	}
	return &EncodeError{Template: e.tmpl.Name, Field: inst.Name, Offset: offset, Cause: err}
}

func (e *Encoder) encodeField(inst *Instruction, v *Value, seg *segment) error {
	switch inst.Kind {
	case KindInt32, KindUInt32, KindInt64, KindUInt64, KindEnum,
		KindASCIIString, KindUnicodeString, KindByteVector,
		KindInt32Vector, KindUInt32Vector, KindInt64Vector, KindUInt64Vector:
		if err := checkValue(&e.opts, inst, v); err != nil {
			return err
		}
		return e.encodeScalar(inst, v, seg)

	case KindDecimal:
		if inst.Exponent != nil {
			return e.encodeSplitDecimal(inst, v, seg)
		}
		return e.encodeScalar(inst, v, seg)

	case KindGroup:
		if inst.Optional() {
			seg.pm.SetNextBit(v.Present())
			if !v.Present() {
				return nil
			}
		} else if !v.Present() {
			return ErrMandatoryFieldAbsent
		}
		return e.encodeAggregate(inst, inst.Fields, v, seg)

	case KindSequence:
		return e.encodeSequence(inst, v, seg)

	case KindTemplateRef:
		if inst.Target != nil {
			return e.encodeInline(inst.Target.Fields, v, seg)
		}
		return e.encodeDynamic(v)
	}
	return ErrTypeMismatch
}

// encodeAggregate encodes the fields of a group or sequence element inside
// their own presence map segment when they have one.
func (e *Encoder) encodeAggregate(inst *Instruction, fields []*Instruction, v *Value, seg *segment) error {
	if err := e.w.enterNested(); err != nil {
		return err
	}
	defer e.w.exitNested()
	if !inst.hasSegment() {
		return e.encodeFields(fields, v.elems, seg)
	}
	own, err := e.w.beginSegment(inst.segBits)
	if err != nil {
		return err
	}
	if err := e.encodeFields(fields, v.elems, own); err != nil {
		return err
	}
	e.w.commit(own)
	return nil
}

// encodeInline encodes the fields of a static template reference into the
// current segment.
func (e *Encoder) encodeInline(fields []*Instruction, v *Value, seg *segment) error {
	if err := e.w.enterNested(); err != nil {
		return err
	}
	defer e.w.exitNested()
	return e.encodeFields(fields, v.elems, seg)
}

func (e *Encoder) encodeSequence(inst *Instruction, v *Value, seg *segment) error {
	var length Value
	if v.Present() {
		if max := e.opts.Limits.MaxSequenceLength; max > 0 && len(v.elems) > max {
			return ErrMaxLengthExceeded
		}
		length.setUint(uint64(len(v.elems)))
	}
	if err := e.encodeScalar(inst.Length, &length, seg); err != nil {
		return err
	}
	if !v.Present() {
		return nil
	}
	for i := range v.elems {
		if err := e.encodeAggregate(inst, inst.Fields, &v.elems[i], seg); err != nil {
			return err
		}
	}
	return nil
}

// encodeDynamic encodes a dynamic template reference as a nested segment
// that names its template.
func (e *Encoder) encodeDynamic(v *Value) error {
	if !v.Present() || v.ref == nil {
		return ErrMandatoryFieldAbsent
	}
	t := v.ref
	if reg, ok := e.templates.Lookup(t.ID); !ok || reg != t {
		return ErrUnknownTemplateID
	}
	if err := e.w.enterNested(); err != nil {
		return err
	}
	defer e.w.exitNested()
	seg, err := e.w.beginSegment(t.segmentBits())
	if err != nil {
		return err
	}
	if err := e.templateID(seg, t.ID); err != nil {
		return err
	}
	if err := e.encodeFields(t.Fields, v.elems, seg); err != nil {
		return err
	}
	e.w.commit(seg)
	return nil
}

func (e *Encoder) encodeSplitDecimal(inst *Instruction, v *Value, seg *segment) error {
	var exp, man Value
	if v.Present() {
		exp.setUint(uint64(int64(v.exp)))
		man.setUint(v.u)
	}
	if err := e.encodeScalar(inst.Exponent, &exp, seg); err != nil {
		return err
	}
	if !exp.Present() {
		return nil
	}
	return e.encodeScalar(inst.Mantissa, &man, seg)
}

// writeValue writes v in its plain stream form. An absent value is written
// as NULL.
func (e *Encoder) writeValue(inst *Instruction, v *Value, nullable bool) error {
	if !v.Present() {
		return e.w.null()
	}
	switch inst.Kind {
	case KindInt32, KindUInt32, KindInt64, KindUInt64, KindEnum:
		return e.w.integer(inst.Kind, v.u, nullable)

	case KindDecimal:
		if err := e.w.exponent(v.exp, nullable); err != nil {
			return err
		}
		return e.w.signed(int64(v.u), false)

	case KindASCIIString:
		return e.w.ascii(v.buf, nullable)

	case KindUnicodeString, KindByteVector:
		return e.w.bytes(v.buf, nullable)

	case KindInt32Vector, KindUInt32Vector, KindInt64Vector, KindUInt64Vector:
		if max := e.opts.Limits.MaxSequenceLength; max > 0 && len(v.ints) > max {
			return ErrMaxLengthExceeded
		}
		if err := e.w.integer(KindUInt32, uint64(len(v.ints)), nullable); err != nil {
			return err
		}
		elem := inst.Kind.elementKind()
		for _, u := range v.ints {
			if err := e.w.integer(elem, u, false); err != nil {
				return err
			}
		}
		return nil
	}
	return ErrOperatorNotApplicable
}

// writeDelta writes the delta that takes base to v.
func (e *Encoder) writeDelta(inst *Instruction, v, base *Value, nullable bool) error {
	switch inst.Kind {
	case KindInt32, KindUInt32, KindInt64, KindUInt64, KindEnum:
		return e.w.signed(subtractDelta(inst.Kind, v.u, base.u), nullable)

	case KindDecimal:
		if v.exp < MinExponent || v.exp > MaxExponent {
			return ErrDecimalExponent
		}
		if err := e.w.signed(int64(v.exp)-int64(base.exp), nullable); err != nil {
			return err
		}
		return e.w.signed(int64(v.u-base.u), false)

	case KindASCIIString:
		sub, add := diffDelta(base.buf, v.buf)
		if err := e.w.signed(sub, nullable); err != nil {
			return err
		}
		return e.w.ascii(add, false)

	case KindUnicodeString, KindByteVector:
		sub, add := diffDelta(base.buf, v.buf)
		if err := e.w.signed(sub, nullable); err != nil {
			return err
		}
		return e.w.bytes(add, false)
	}
	return ErrOperatorNotApplicable
}

// writeTail writes the tail that takes the base value to v.
func (e *Encoder) writeTail(inst *Instruction, v, prev *Value, nullable bool) error {
	if !v.Present() {
		return e.w.null()
	}
	t, err := diffTail(baseOf(inst, prev).buf, v.buf)
	if err != nil {
		return err
	}
	switch inst.Kind {
	case KindASCIIString:
		return e.w.ascii(t, nullable)
	case KindUnicodeString, KindByteVector:
		return e.w.bytes(t, nullable)
	}
	return ErrOperatorNotApplicable
}
