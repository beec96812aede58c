package fast

// Kind identifies the type of a field instruction.
type Kind uint8

// Field kinds.
const (
	KindInt32 Kind = iota + 1
	KindUInt32
	KindInt64
	KindUInt64
	KindDecimal
	KindASCIIString
	KindUnicodeString
	KindByteVector
	KindEnum
	KindInt32Vector
	KindUInt32Vector
	KindInt64Vector
	KindUInt64Vector
	KindGroup
	KindSequence
	KindTemplateRef
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindUInt32:
		return "uInt32"
	case KindInt64:
		return "int64"
	case KindUInt64:
		return "uInt64"
	case KindDecimal:
		return "decimal"
	case KindASCIIString:
		return "string"
	case KindUnicodeString:
		return "unicode"
	case KindByteVector:
		return "byteVector"
	case KindEnum:
		return "enum"
	case KindInt32Vector:
		return "int32Vector"
	case KindUInt32Vector:
		return "uInt32Vector"
	case KindInt64Vector:
		return "int64Vector"
	case KindUInt64Vector:
		return "uInt64Vector"
	case KindGroup:
		return "group"
	case KindSequence:
		return "sequence"
	case KindTemplateRef:
		return "templateRef"
	default:
		return "unknown"
	}
}

// IsInteger returns true for the integer kinds and enum.
func (k Kind) IsInteger() bool {
	switch k {
	case KindInt32, KindUInt32, KindInt64, KindUInt64, KindEnum:
		return true
	default:
		return false
	}
}

// IsSigned returns true for kinds whose integers are signed.
func (k Kind) IsSigned() bool {
	switch k {
	case KindInt32, KindInt64, KindInt32Vector, KindInt64Vector:
		return true
	default:
		return false
	}
}

// IsVector returns true for the integer vector kinds.
func (k Kind) IsVector() bool {
	switch k {
	case KindInt32Vector, KindUInt32Vector, KindInt64Vector, KindUInt64Vector:
		return true
	default:
		return false
	}
}

// IsAggregate returns true for group, sequence and template reference.
func (k Kind) IsAggregate() bool {
	return k == KindGroup || k == KindSequence || k == KindTemplateRef
}

// elementKind returns the scalar kind of a vector's elements.
func (k Kind) elementKind() Kind {
	switch k {
	case KindInt32Vector:
		return KindInt32
	case KindUInt32Vector:
		return KindUInt32
	case KindInt64Vector:
		return KindInt64
	default:
		return KindUInt64
	}
}

// Presence tells whether a field may be absent.
type Presence uint8

const (
	// Mandatory fields always have a value.
	Mandatory Presence = iota

	// Optional fields may be absent; their stream form is nullable.
	Optional
)

// String returns the presence name.
func (p Presence) String() string {
	if p == Optional {
		return "optional"
	}
	return "mandatory"
}

// Operator is a field's compression strategy.
type Operator uint8

// Field operators.
const (
	OpNone Operator = iota
	OpConstant
	OpDefault
	OpCopy
	OpIncrement
	OpDelta
	OpTail
)

// String returns the operator name.
func (op Operator) String() string {
	switch op {
	case OpNone:
		return "none"
	case OpConstant:
		return "constant"
	case OpDefault:
		return "default"
	case OpCopy:
		return "copy"
	case OpIncrement:
		return "increment"
	case OpDelta:
		return "delta"
	case OpTail:
		return "tail"
	default:
		return "unknown"
	}
}

// stateful reports whether the operator reads or writes the dictionary.
func (op Operator) stateful() bool {
	switch op {
	case OpDefault, OpCopy, OpIncrement, OpDelta, OpTail:
		return true
	default:
		return false
	}
}

// Instruction describes one field position of a template.
//
// Instructions are built once, compiled by Templates.Add and shared
// read-only by every Decoder and Encoder afterwards. The exported fields
// must not be changed after compilation.
type Instruction struct {
	Kind      Kind
	ID        uint32
	Name      string
	Namespace string
	Presence  Presence
	Operator  Operator

	// Dictionary names the scope of the previous value: "global",
	// "template", "type" or a user-defined name. Empty inherits the
	// enclosing group, sequence or template's dictionary.
	Dictionary string

	// Key and KeyNamespace name the dictionary entry. Key defaults to Name.
	Key          string
	KeyNamespace string

	// Initial is the initial value literal; HasInitial tells whether one is
	// configured.
	Initial    string
	HasInitial bool

	// Fields of a group or sequence element.
	Fields []*Instruction

	// Length is a sequence's length field. Nil means an implicit uInt32
	// length with no operator.
	Length *Instruction

	// Target of a static template reference. Nil makes the reference
	// dynamic.
	Target *Template

	// Exponent and Mantissa give a decimal individual operators.
	Exponent *Instruction
	Mantissa *Instruction

	// Elements are the names of an enum's values, indexed by value.
	Elements []string

	// TypeRef names the application type of a group or sequence.
	TypeRef string

	// Filled in by compilation.
	slot     int   // dictionary slot, -1 if stateless
	initial  Value // parsed initial value
	bits     int   // presence map bits used in the enclosing segment
	segBits  int   // presence map bits of the own segment (groups, sequences)
	consumes bool  // every sequence element reads at least one byte
}

// FieldOption configures an Instruction.
type FieldOption func(*Instruction)

// WithInitial sets the initial value literal.
func WithInitial(literal string) FieldOption {
	return func(i *Instruction) {
		i.Initial = literal
		i.HasInitial = true
	}
}

// WithID sets the field id.
func WithID(id uint32) FieldOption {
	return func(i *Instruction) { i.ID = id }
}

// WithNamespace sets the field namespace.
func WithNamespace(ns string) FieldOption {
	return func(i *Instruction) { i.Namespace = ns }
}

// WithDictionary sets the dictionary scope.
func WithDictionary(name string) FieldOption {
	return func(i *Instruction) { i.Dictionary = name }
}

// WithKey sets the dictionary key and its namespace.
func WithKey(ns, key string) FieldOption {
	return func(i *Instruction) {
		i.KeyNamespace = ns
		i.Key = key
	}
}

// WithLength sets a sequence's length field.
func WithLength(length *Instruction) FieldOption {
	return func(i *Instruction) { i.Length = length }
}

// WithTypeRef sets the application type of a group or sequence.
func WithTypeRef(name string) FieldOption {
	return func(i *Instruction) { i.TypeRef = name }
}

// WithEnumElements sets the names of an enum's values.
func WithEnumElements(names ...string) FieldOption {
	return func(i *Instruction) { i.Elements = names }
}

// WithExponent sets the exponent instruction of a decimal with individual
// operators. Its kind and presence are taken from the decimal.
func WithExponent(exp *Instruction) FieldOption {
	return func(i *Instruction) { i.Exponent = exp }
}

// WithMantissa sets the mantissa instruction of a decimal with individual
// operators.
func WithMantissa(m *Instruction) FieldOption {
	return func(i *Instruction) { i.Mantissa = m }
}

// NewField creates a scalar field instruction.
func NewField(kind Kind, name string, presence Presence, op Operator, opts ...FieldOption) *Instruction {
	inst := &Instruction{
		Kind:     kind,
		Name:     name,
		Presence: presence,
		Operator: op,
		slot:     -1,
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// NewDecimalField creates a decimal field. Pass WithExponent and WithMantissa
// to give the parts individual operators; op is then ignored.
func NewDecimalField(name string, presence Presence, op Operator, opts ...FieldOption) *Instruction {
	return NewField(KindDecimal, name, presence, op, opts...)
}

// NewGroup creates a group instruction.
func NewGroup(name string, presence Presence, fields []*Instruction, opts ...FieldOption) *Instruction {
	inst := NewField(KindGroup, name, presence, OpNone, opts...)
	inst.Fields = fields
	return inst
}

// NewSequence creates a sequence instruction.
func NewSequence(name string, presence Presence, fields []*Instruction, opts ...FieldOption) *Instruction {
	inst := NewField(KindSequence, name, presence, OpNone, opts...)
	inst.Fields = fields
	return inst
}

// NewTemplateRef creates a static template reference, which inlines the
// target's fields.
func NewTemplateRef(target *Template) *Instruction {
	inst := NewField(KindTemplateRef, "", Mandatory, OpNone)
	inst.Target = target
	if target != nil {
		inst.Name = target.Name
	}
	return inst
}

// NewDynamicTemplateRef creates a dynamic template reference, whose template
// is chosen per message by an embedded template id.
func NewDynamicTemplateRef(name string) *Instruction {
	return NewField(KindTemplateRef, name, Mandatory, OpNone)
}

// Optional reports whether the field may be absent.
func (i *Instruction) Optional() bool {
	return i.Presence == Optional
}

// IsDynamic reports whether the instruction is a dynamic template reference.
func (i *Instruction) IsDynamic() bool {
	return i.Kind == KindTemplateRef && i.Target == nil
}

// InitialValue returns the parsed initial value. The result is only
// meaningful after compilation.
func (i *Instruction) InitialValue() FieldRef {
	return FieldRef{inst: i, v: &i.initial}
}

// EnumName returns the name of an enum value, or "" if it has none.
func (i *Instruction) EnumName(v uint64) string {
	if v < uint64(len(i.Elements)) {
		return i.Elements[v]
	}
	return ""
}

// hasSegment reports whether a group or sequence element carries its own
// presence map.
func (i *Instruction) hasSegment() bool {
	return i.segBits > 0
}
