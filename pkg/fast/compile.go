package fast

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/blockberries/fast/internal/wire"
)

// compiler carries the scope in which instructions are compiled.
type compiler struct {
	set     *Templates
	tmpl    *Template
	dict    string // inherited dictionary name
	typeRef string // nearest enclosing application type
	path    string // field path for error messages
}

// compileTemplate compiles t and every template it references statically.
// The caller must hold s.mu.
func (s *Templates) compileTemplate(t *Template) error {
	switch {
	case t.owner != nil && t.owner != s:
		return &TemplateError{Template: t.Name, ID: t.ID,
			Cause: errors.Wrap(ErrInvalidTemplate, "template belongs to another set")}
	case t.state == stateCompiled:
		return nil
	case t.state == stateCompiling:
		return &TemplateError{Template: t.Name, ID: t.ID,
			Cause: errors.Wrap(ErrInvalidTemplate, "recursive static template reference")}
	}

	t.owner = s
	t.state = stateCompiling
	c := &compiler{set: s, tmpl: t, dict: t.Dictionary, typeRef: t.TypeRef}
	bits, err := c.fields(t.Fields)
	if err != nil {
		t.owner = nil
		t.state = stateNew
		return err
	}
	t.bits = bits

	seen := make(map[int]bool)
	t.resetSlots = t.resetSlots[:0]
	collectSlots(t.Fields, seen, &t.resetSlots)
	t.state = stateCompiled
	return nil
}

// collectSlots appends the dictionary slots reachable from fields.
func collectSlots(fields []*Instruction, seen map[int]bool, out *[]int) {
	add := func(slot int) {
		if slot >= 0 && !seen[slot] {
			seen[slot] = true
			*out = append(*out, slot)
		}
	}
	for _, f := range fields {
		add(f.slot)
		switch f.Kind {
		case KindDecimal:
			if f.Exponent != nil {
				add(f.Exponent.slot)
				add(f.Mantissa.slot)
			}
		case KindGroup:
			collectSlots(f.Fields, seen, out)
		case KindSequence:
			add(f.Length.slot)
			collectSlots(f.Fields, seen, out)
		case KindTemplateRef:
			if f.Target != nil {
				for _, slot := range f.Target.resetSlots {
					add(slot)
				}
			}
		}
	}
}

func (c *compiler) errorf(inst *Instruction, cause error) error {
	path := c.path
	if inst != nil {
		if path != "" {
			path += "."
		}
		path += inst.Name
	}
	return &TemplateError{Template: c.tmpl.Name, ID: c.tmpl.ID, Field: path, Cause: cause}
}

// child returns a compiler for the fields nested in inst.
func (c *compiler) child(inst *Instruction, dict string) *compiler {
	nc := *c
	nc.dict = dict
	if inst.TypeRef != "" {
		nc.typeRef = inst.TypeRef
	}
	if nc.path != "" {
		nc.path += "."
	}
	nc.path += inst.Name
	return &nc
}

// fields compiles a field list and returns the number of presence map bits
// it uses in the enclosing segment.
func (c *compiler) fields(fields []*Instruction) (int, error) {
	bits := 0
	for _, f := range fields {
		if err := c.field(f); err != nil {
			return 0, err
		}
		bits += f.bits
	}
	return bits, nil
}

func (c *compiler) field(inst *Instruction) error {
	if inst == nil {
		return c.errorf(nil, errors.Wrap(ErrInvalidTemplate, "nil instruction"))
	}
	dict := inst.Dictionary
	if dict == "" {
		dict = c.dict
	}
	inst.slot = -1
	inst.bits = 0
	inst.segBits = 0
	if !operatorAllowed(inst.Kind, inst.Operator) {
		return c.errorf(inst, errors.Wrapf(ErrOperatorNotApplicable, "%s on %s", inst.Operator, inst.Kind))
	}

	switch inst.Kind {
	case KindInt32, KindUInt32, KindInt64, KindUInt64, KindEnum,
		KindASCIIString, KindUnicodeString, KindByteVector:
		return c.scalar(inst, dict)

	case KindDecimal:
		if inst.Exponent != nil || inst.Mantissa != nil {
			return c.splitDecimal(inst, dict)
		}
		return c.scalar(inst, dict)

	case KindInt32Vector, KindUInt32Vector, KindInt64Vector, KindUInt64Vector:
		if inst.HasInitial {
			return c.errorf(inst, errors.Wrap(ErrInvalidInitialValue, "integer vectors take no initial value"))
		}
		return nil

	case KindGroup:
		segBits, err := c.child(inst, dict).fields(inst.Fields)
		if err != nil {
			return err
		}
		inst.segBits = segBits
		if inst.Optional() {
			inst.bits = 1
		}
		return nil

	case KindSequence:
		if inst.Length == nil {
			inst.Length = NewField(KindUInt32, inst.Name+"Length", inst.Presence, OpNone)
		}
		length := inst.Length
		if length.Kind == 0 {
			length.Kind = KindUInt32
		}
		if length.Kind != KindUInt32 {
			return c.errorf(inst, errors.Wrapf(ErrInvalidTemplate, "sequence length must be uInt32, not %s", length.Kind))
		}
		length.Presence = inst.Presence
		nc := c.child(inst, dict)
		if err := nc.field(length); err != nil {
			return err
		}
		segBits, err := nc.fields(inst.Fields)
		if err != nil {
			return err
		}
		inst.segBits = segBits
		inst.bits = length.bits
		inst.consumes = segBits > 0 || readsStream(inst.Fields)
		return nil

	case KindTemplateRef:
		if inst.Target == nil {
			return nil
		}
		if err := c.set.compileTemplate(inst.Target); err != nil {
			return err
		}
		inst.bits = inst.Target.bits
		return nil
	}
	return c.errorf(inst, errors.Wrapf(ErrInvalidTemplate, "unknown field kind %d", inst.Kind))
}

// readsStream reports whether decoding fields always reads at least one
// byte, whatever the presence map and dictionary hold.
func readsStream(fields []*Instruction) bool {
	for _, inst := range fields {
		switch inst.Kind {
		case KindGroup:
			if !inst.Optional() && (inst.hasSegment() || readsStream(inst.Fields)) {
				return true
			}
		case KindSequence:
			if alwaysInStream(inst.Length.Operator) {
				return true
			}
		case KindTemplateRef:
			if inst.Target == nil || readsStream(inst.Target.Fields) {
				return true
			}
		case KindDecimal:
			if inst.Exponent != nil {
				if alwaysInStream(inst.Exponent.Operator) {
					return true
				}
			} else if alwaysInStream(inst.Operator) {
				return true
			}
		default:
			if alwaysInStream(inst.Operator) {
				return true
			}
		}
	}
	return false
}

// alwaysInStream reports whether a field with operator op is present in the
// stream on every message.
func alwaysInStream(op Operator) bool {
	return op == OpNone || op == OpDelta
}

// operatorAllowed reports whether op may be applied to fields of kind k.
func operatorAllowed(k Kind, op Operator) bool {
	switch k {
	case KindInt32, KindUInt32, KindInt64, KindUInt64, KindEnum:
		return op <= OpDelta
	case KindDecimal:
		return op <= OpDelta && op != OpIncrement
	case KindASCIIString, KindUnicodeString, KindByteVector:
		return op <= OpTail && op != OpIncrement
	default:
		return op == OpNone
	}
}

// scalar compiles a field that carries a single value.
func (c *compiler) scalar(inst *Instruction, dict string) error {
	inst.initial = Value{}
	if inst.HasInitial {
		if err := parseInitial(inst); err != nil {
			return c.errorf(inst, err)
		}
	}

	switch inst.Operator {
	case OpConstant:
		if !inst.HasInitial {
			return c.errorf(inst, errors.Wrap(ErrInvalidInitialValue, "constant operator requires an initial value"))
		}
		if inst.Optional() {
			inst.bits = 1
		}
	case OpDefault:
		if !inst.HasInitial && !inst.Optional() {
			return c.errorf(inst, errors.Wrap(ErrInvalidInitialValue, "mandatory default operator requires an initial value"))
		}
		inst.bits = 1
	case OpCopy, OpIncrement, OpTail:
		inst.bits = 1
	}

	if inst.Operator.stateful() {
		slot, err := c.slot(inst, dict)
		if err != nil {
			return err
		}
		inst.slot = slot
	}
	return nil
}

// splitDecimal compiles a decimal whose exponent and mantissa have
// individual operators.
func (c *compiler) splitDecimal(inst *Instruction, dict string) error {
	if inst.Exponent == nil {
		inst.Exponent = NewField(KindInt32, "", inst.Presence, OpNone)
	}
	if inst.Mantissa == nil {
		inst.Mantissa = NewField(KindInt64, "", Mandatory, OpNone)
	}
	exp, man := inst.Exponent, inst.Mantissa
	exp.Kind, exp.Presence = KindInt32, inst.Presence
	man.Kind, man.Presence = KindInt64, Mandatory
	if exp.Name == "" {
		exp.Name = inst.Name + "Exponent"
	}
	if man.Name == "" {
		man.Name = inst.Name + "Mantissa"
	}
	if inst.HasInitial {
		d, err := ParseDecimal(inst.Initial)
		if err != nil {
			return c.errorf(inst, errors.Wrapf(ErrInvalidInitialValue, "%q as decimal: %v", inst.Initial, err))
		}
		if !exp.HasInitial {
			WithInitial(strconv.Itoa(int(d.Exponent)))(exp)
		}
		if !man.HasInitial {
			WithInitial(strconv.FormatInt(d.Mantissa, 10))(man)
		}
	}

	nc := c.child(inst, dict)
	nc.path = c.path
	if err := nc.field(exp); err != nil {
		return err
	}
	if exp.initial.Present() {
		if e := int64(exp.initial.u); e < MinExponent || e > MaxExponent {
			return c.errorf(exp, errors.Wrapf(ErrInvalidInitialValue, "exponent %d: %v", e, ErrDecimalExponent))
		}
	}
	if err := nc.field(man); err != nil {
		return err
	}
	inst.slot = -1
	inst.bits = exp.bits + man.bits
	return nil
}

// slot returns the dictionary cell of a stateful instruction, creating it on
// first use.
func (c *compiler) slot(inst *Instruction, dict string) (int, error) {
	var scope string
	switch dict {
	case "", "global":
		scope = "global"
	case "template":
		scope = "template:" + c.tmpl.Namespace + ":" + c.tmpl.Name
	case "type":
		scope = "type:" + c.typeRef
	default:
		scope = "user:" + dict
	}
	key := inst.Key
	if key == "" {
		key = inst.Name
	}
	if key == "" {
		return -1, c.errorf(inst, errors.Wrapf(ErrInvalidTemplate, "%s operator needs a field name or key", inst.Operator))
	}

	k := slotKey{scope: scope, ns: inst.KeyNamespace, key: key}
	class := classOf(inst.Kind)
	if idx, ok := c.set.slots[k]; ok {
		if c.set.classes[idx] != class {
			return -1, c.errorf(inst, errors.Wrapf(ErrDictionaryTypeMismatch, "key %q in %s", key, scope))
		}
		return idx, nil
	}
	idx := len(c.set.classes)
	c.set.classes = append(c.set.classes, class)
	c.set.slots[k] = idx
	return idx, nil
}

// parseInitial parses an instruction's initial value literal.
func parseInitial(inst *Instruction) error {
	lit := inst.Initial
	v := &inst.initial
	fail := func(err error) error {
		return errors.Wrapf(ErrInvalidInitialValue, "%q as %s: %v", lit, inst.Kind, err)
	}

	switch inst.Kind {
	case KindInt32:
		x, err := strconv.ParseInt(strings.TrimSpace(lit), 10, 32)
		if err != nil {
			return fail(err)
		}
		v.setUint(uint64(x))
	case KindInt64:
		x, err := strconv.ParseInt(strings.TrimSpace(lit), 10, 64)
		if err != nil {
			return fail(err)
		}
		v.setUint(uint64(x))
	case KindUInt32:
		x, err := strconv.ParseUint(strings.TrimSpace(lit), 10, 32)
		if err != nil {
			return fail(err)
		}
		v.setUint(x)
	case KindUInt64:
		x, err := strconv.ParseUint(strings.TrimSpace(lit), 10, 64)
		if err != nil {
			return fail(err)
		}
		v.setUint(x)
	case KindEnum:
		if idx := indexOf(inst.Elements, lit); idx >= 0 {
			v.setUint(uint64(idx))
			return nil
		}
		x, err := strconv.ParseUint(strings.TrimSpace(lit), 10, 32)
		if err != nil {
			return fail(err)
		}
		v.setUint(x)
	case KindDecimal:
		d, err := ParseDecimal(strings.TrimSpace(lit))
		if err != nil {
			return fail(err)
		}
		v.setDecimal(d)
	case KindASCIIString:
		for i := 0; i < len(lit); i++ {
			if lit[i] >= 0x80 {
				return fail(wire.ErrInvalidASCII)
			}
		}
		v.setBytes([]byte(lit), HeapAllocator{})
	case KindUnicodeString:
		if !utf8.ValidString(lit) {
			return fail(ErrInvalidUTF8)
		}
		v.setBytes([]byte(lit), HeapAllocator{})
	case KindByteVector:
		b, err := hex.DecodeString(strings.Join(strings.Fields(lit), ""))
		if err != nil {
			return fail(err)
		}
		v.setBytes(b, HeapAllocator{})
	default:
		return errors.Wrapf(ErrInvalidInitialValue, "%s takes no initial value", inst.Kind)
	}
	return nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
