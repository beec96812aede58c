package fast

import (
	"errors"
	"unicode/utf8"

	"github.com/go-logr/logr"

	"github.com/blockberries/fast/internal/wire"
)

// Decoder decodes FAST messages.
//
// A Decoder owns its dictionary and the storage of the messages it returns,
// so it must not be used from several goroutines at once. Decoders sharing
// one Templates are independent.
type Decoder struct {
	templates *Templates
	opts      Options
	alloc     Allocator
	dict      *Dictionary
	r         reader
	log       logr.Logger
	metrics   *metrics

	active    uint32 // previous template id
	hasActive bool

	messages map[uint32]*Message
	tmpl     *Template // template of the message being decoded
}

// NewDecoder creates a Decoder with DefaultOptions.
func NewDecoder(t *Templates) *Decoder {
	return NewDecoderWithOptions(t, DefaultOptions)
}

// NewDecoderWithOptions creates a Decoder with the specified options.
func NewDecoderWithOptions(t *Templates, opts Options) *Decoder {
	d := &Decoder{
		templates: t,
		opts:      opts,
		alloc:     opts.allocator(),
		log:       opts.logger().WithName("decoder"),
		messages:  make(map[uint32]*Message),
	}
	d.dict = newDictionary(d.alloc)
	d.r.opts = &d.opts
	d.metrics = newMetrics(opts.MeterProvider, "decode", d.log)
	return d
}

// Dictionary returns the decoder's previous-value dictionary.
func (d *Decoder) Dictionary() *Dictionary {
	return d.dict
}

// Reset makes every dictionary entry undefined and forgets the previous
// template id.
func (d *Decoder) Reset() {
	d.dict.Reset()
	d.hasActive = false
	d.log.V(1).Info("dictionary reset")
}

// Decode decodes the message at the start of data and returns it together
// with the number of bytes consumed. If reset is set, the dictionary entries
// of the message's template are reset first.
//
// The returned message and its values are owned by the Decoder and remain
// valid until the next call to Decode for the same template. With
// Options.ZeroCopy, byte vectors and unicode strings may reference data.
func (d *Decoder) Decode(data []byte, reset bool) (*Message, int, error) {
	d.tmpl = nil
	msg, err := d.decode(data, reset)
	name := ""
	if d.tmpl != nil {
		name = d.tmpl.Name
	}
	d.metrics.record(name, d.r.pos, err)
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			de = &DecodeError{Template: name, Offset: d.r.pos, Cause: err}
		}
		d.log.V(1).Info("decode failed", "template", name, "offset", de.Offset, "error", de.Cause)
		return nil, d.r.pos, de
	}
	return msg, d.r.pos, nil
}

func (d *Decoder) decode(data []byte, reset bool) (*Message, error) {
	d.r.reset(data)
	d.dict.grow(d.templates.slotCount())

	var pm wire.PMap
	if err := d.r.pmap(&pm); err != nil {
		return nil, err
	}
	tmpl, err := d.templateID(&pm)
	if err != nil {
		return nil, err
	}
	d.tmpl = tmpl
	if reset || tmpl.Reset {
		d.dict.resetSlots(tmpl.resetSlots)
		d.log.V(1).Info("dictionary reset", "template", tmpl.Name)
	}

	msg := d.messages[tmpl.ID]
	if msg == nil {
		msg = newMessage(tmpl, d.alloc)
		d.messages[tmpl.ID] = msg
	}
	if err := d.decodeFields(tmpl.Fields, msg.root.elems, &pm); err != nil {
		return nil, err
	}
	if max := d.opts.Limits.MaxMessageSize; max > 0 && d.r.pos > max {
		return nil, ErrMaxSizeExceeded
	}
	return msg, nil
}

// templateID reads the template id of a segment whose first bit announces
// it, and returns the template. A clear bit repeats the previous id.
func (d *Decoder) templateID(pm *wire.PMap) (*Template, error) {
	if pm.NextBit() {
		u, _, err := d.r.integer(KindUInt32, false)
		if err != nil {
			return nil, err
		}
		id := uint32(u)
		if !d.hasActive || id != d.active {
			d.log.V(1).Info("template switch", "id", id)
		}
		d.active, d.hasActive = id, true
	} else if !d.hasActive {
		// A stream that never names its template is only decodable when
		// there is a single candidate.
		t, ok := d.templates.only()
		if !ok {
			return nil, ErrUnknownTemplateID
		}
		d.active, d.hasActive = t.ID, true
	}
	t, ok := d.templates.Lookup(d.active)
	if !ok {
		return nil, ErrUnknownTemplateID
	}
	return t, nil
}

// decodeFields decodes fields into vals, one value per field.
func (d *Decoder) decodeFields(fields []*Instruction, vals []Value, pm *wire.PMap) error {
	for i, inst := range fields {
		start := d.r.pos
		if err := d.decodeField(inst, &vals[i], pm); err != nil {
			return d.fieldError(inst, start, err)
		}
	}
	return nil
}

// fieldError attaches the innermost field to err.
func (d *Decoder) fieldError(inst *Instruction, offset int, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	name := ""
	if d.tmpl != nil {
		name = d.tmpl.Name
	}
	return &DecodeError{Template: name, Field: inst.Name, Offset: offset, Cause: err}
}

func (d *Decoder) decodeField(inst *Instruction, v *Value, pm *wire.PMap) error {
	switch inst.Kind {
	case KindInt32, KindUInt32, KindInt64, KindUInt64, KindEnum,
		KindASCIIString, KindUnicodeString, KindByteVector,
		KindInt32Vector, KindUInt32Vector, KindInt64Vector, KindUInt64Vector:
		if err := d.decodeScalar(inst, v, pm); err != nil {
			return err
		}
		return checkValue(&d.opts, inst, v)

	case KindDecimal:
		if inst.Exponent != nil {
			return d.decodeSplitDecimal(inst, v, pm)
		}
		return d.decodeScalar(inst, v, pm)

	case KindGroup:
		if inst.Optional() && !pm.NextBit() {
			v.clear()
			return nil
		}
		v.setPresent()
		return d.decodeAggregate(inst, inst.Fields, v, pm)

	case KindSequence:
		return d.decodeSequence(inst, v, pm)

	case KindTemplateRef:
		if inst.Target != nil {
			v.setPresent()
			return d.decodeInline(inst.Target.Fields, v, pm)
		}
		return d.decodeDynamic(v)
	}
	return ErrTypeMismatch
}

// checkValue enforces limits and UTF-8 validity on a string or byte vector.
// Decoded values are checked after their operator ran, since delta and tail
// build them from several messages.
func checkValue(opts *Options, inst *Instruction, v *Value) error {
	if !v.Present() {
		return nil
	}
	switch inst.Kind {
	case KindASCIIString:
		if max := opts.Limits.MaxStringLength; max > 0 && len(v.buf) > max {
			return ErrMaxLengthExceeded
		}
	case KindUnicodeString:
		if max := opts.Limits.MaxStringLength; max > 0 && len(v.buf) > max {
			return ErrMaxLengthExceeded
		}
		if opts.ValidateUTF8 && !utf8.Valid(v.buf) {
			return ErrInvalidUTF8
		}
	case KindByteVector:
		if max := opts.Limits.MaxBytesLength; max > 0 && len(v.buf) > max {
			return ErrMaxLengthExceeded
		}
	}
	return nil
}

// decodeAggregate decodes the fields of a group or sequence element, reading
// its own presence map segment when it has one.
func (d *Decoder) decodeAggregate(inst *Instruction, fields []*Instruction, v *Value, pm *wire.PMap) error {
	if err := d.r.enterNested(); err != nil {
		return err
	}
	defer d.r.exitNested()
	ensureElems(v, fields, d.alloc)
	if !inst.hasSegment() {
		return d.decodeFields(fields, v.elems, pm)
	}
	var own wire.PMap
	if err := d.r.pmap(&own); err != nil {
		return err
	}
	return d.decodeFields(fields, v.elems, &own)
}

// decodeInline decodes the fields of a static template reference into the
// current segment.
func (d *Decoder) decodeInline(fields []*Instruction, v *Value, pm *wire.PMap) error {
	if err := d.r.enterNested(); err != nil {
		return err
	}
	defer d.r.exitNested()
	ensureElems(v, fields, d.alloc)
	return d.decodeFields(fields, v.elems, pm)
}

func (d *Decoder) decodeSequence(inst *Instruction, v *Value, pm *wire.PMap) error {
	var length Value
	if err := d.decodeScalar(inst.Length, &length, pm); err != nil {
		return err
	}
	if !length.Present() {
		v.clear()
		return nil
	}
	if max := d.opts.Limits.MaxSequenceLength; max > 0 && length.u > uint64(max) {
		return ErrMaxLengthExceeded
	}
	n := int(length.u)
	if inst.consumes && n > len(d.r.remaining()) {
		return ErrUnexpectedEOF
	}
	resizeElems(v, n, inst.Fields, d.alloc)
	v.setPresent()
	for i := 0; i < n; i++ {
		elem := &v.elems[i]
		elem.setPresent()
		if err := d.decodeAggregate(inst, inst.Fields, elem, pm); err != nil {
			return err
		}
	}
	return nil
}

// decodeDynamic decodes a dynamic template reference: a nested segment that
// names its template, followed by that template's fields.
func (d *Decoder) decodeDynamic(v *Value) error {
	if err := d.r.enterNested(); err != nil {
		return err
	}
	defer d.r.exitNested()
	var pm wire.PMap
	if err := d.r.pmap(&pm); err != nil {
		return err
	}
	t, err := d.templateID(&pm)
	if err != nil {
		return err
	}
	if v.ref != t {
		v.releaseAll(d.alloc)
		v.elems = nil
		v.ref = t
	}
	v.u = uint64(t.ID)
	v.setPresent()
	ensureElems(v, t.Fields, d.alloc)
	return d.decodeFields(t.Fields, v.elems, &pm)
}

func (d *Decoder) decodeSplitDecimal(inst *Instruction, v *Value, pm *wire.PMap) error {
	var exp, man Value
	if err := d.decodeScalar(inst.Exponent, &exp, pm); err != nil {
		return err
	}
	if !exp.Present() {
		// The mantissa is not transmitted for an absent decimal.
		v.clear()
		return nil
	}
	if x := int64(exp.u); x < MinExponent || x > MaxExponent {
		return ErrDecimalExponent
	}
	if err := d.decodeScalar(inst.Mantissa, &man, pm); err != nil {
		return err
	}
	v.setDecimal(Decimal{Mantissa: int64(man.u), Exponent: int8(int64(exp.u))})
	return nil
}

// readValue reads a value in its plain stream form, nullable for optional
// fields. NULL makes v absent.
func (d *Decoder) readValue(inst *Instruction, v *Value, nullable bool) error {
	switch inst.Kind {
	case KindInt32, KindUInt32, KindInt64, KindUInt64, KindEnum:
		u, null, err := d.r.integer(inst.Kind, nullable)
		if err != nil {
			return err
		}
		if null {
			v.clear()
			return nil
		}
		v.setUint(u)

	case KindDecimal:
		e, null, err := d.r.exponent(nullable)
		if err != nil {
			return err
		}
		if null {
			v.clear()
			return nil
		}
		m, _, err := d.r.signed(false)
		if err != nil {
			return err
		}
		v.setDecimal(Decimal{Mantissa: m, Exponent: e})

	case KindASCIIString:
		raw, start, null, err := d.r.ascii(nullable)
		if err != nil {
			return err
		}
		if null {
			v.clear()
			return nil
		}
		spliceTail(v, nil, raw[start:], true, d.alloc)

	case KindUnicodeString, KindByteVector:
		b, null, err := d.r.bytes(inst.Kind, nullable)
		if err != nil {
			return err
		}
		if null {
			v.clear()
			return nil
		}
		if d.opts.ZeroCopy {
			v.borrowBytes(b, d.alloc)
		} else {
			v.setBytes(b, d.alloc)
		}

	case KindInt32Vector, KindUInt32Vector, KindInt64Vector, KindUInt64Vector:
		n, null, err := d.r.length(nullable)
		if err != nil {
			return err
		}
		if null {
			v.clear()
			return nil
		}
		// Every element takes at least one byte.
		if n > len(d.r.remaining()) {
			return ErrUnexpectedEOF
		}
		v.ints = v.ints[:0]
		elem := inst.Kind.elementKind()
		for i := 0; i < n; i++ {
			u, _, err := d.r.integer(elem, false)
			if err != nil {
				return err
			}
			v.ints = append(v.ints, u)
		}
		v.setPresent()

	default:
		return ErrOperatorNotApplicable
	}
	return nil
}

// readDelta reads a delta and applies it to base. null reports a NULL delta.
func (d *Decoder) readDelta(inst *Instruction, v, base *Value, nullable bool) (bool, error) {
	switch inst.Kind {
	case KindInt32, KindUInt32, KindInt64, KindUInt64, KindEnum:
		delta, null, err := d.r.signed(nullable)
		if err != nil || null {
			return null, err
		}
		u, err := addDelta(inst.Kind, base.u, delta)
		if err != nil {
			return false, err
		}
		v.setUint(u)

	case KindDecimal:
		de, null, err := d.r.signed(nullable)
		if err != nil || null {
			return null, err
		}
		dm, _, err := d.r.signed(false)
		if err != nil {
			return false, err
		}
		e := int64(base.exp) + de
		if e < MinExponent || e > MaxExponent {
			return false, ErrDecimalExponent
		}
		v.setDecimal(Decimal{Mantissa: int64(base.u + uint64(dm)), Exponent: int8(e)})

	case KindASCIIString:
		sub, null, err := d.r.integer(KindInt32, nullable)
		if err != nil || null {
			return null, err
		}
		raw, start, _, err := d.r.ascii(false)
		if err != nil {
			return false, err
		}
		if err := spliceDelta(v, base.buf, int64(sub), raw[start:], true, d.alloc); err != nil {
			return false, err
		}

	case KindUnicodeString, KindByteVector:
		sub, null, err := d.r.integer(KindInt32, nullable)
		if err != nil || null {
			return null, err
		}
		s, _, err := d.r.bytes(inst.Kind, false)
		if err != nil {
			return false, err
		}
		if err := spliceDelta(v, base.buf, int64(sub), s, false, d.alloc); err != nil {
			return false, err
		}

	default:
		return false, ErrOperatorNotApplicable
	}
	return false, nil
}

// readTail reads a tail and applies it to the base value.
func (d *Decoder) readTail(inst *Instruction, v, prev *Value, nullable bool) error {
	var t []byte
	stop := false
	switch inst.Kind {
	case KindASCIIString:
		raw, start, null, err := d.r.ascii(nullable)
		if err != nil {
			return err
		}
		if null {
			v.clear()
			return nil
		}
		t, stop = raw[start:], true
	case KindUnicodeString, KindByteVector:
		b, null, err := d.r.bytes(inst.Kind, nullable)
		if err != nil {
			return err
		}
		if null {
			v.clear()
			return nil
		}
		t = b
	default:
		return ErrOperatorNotApplicable
	}
	spliceTail(v, baseOf(inst, prev).buf, t, stop, d.alloc)
	return nil
}
