package fast

// Message is one decoded or to-be-encoded message: a template bound to the
// storage of its fields.
type Message struct {
	tmpl  *Template
	root  Value
	alloc Allocator
}

// NewMessage creates empty storage for a message of template t. Mandatory
// fields start present with the zero value of their type, or their initial
// value for constants; optional fields start absent.
func NewMessage(t *Template) *Message {
	return NewMessageWithAllocator(t, HeapAllocator{})
}

// NewMessageWithAllocator is like NewMessage but takes the storage of
// strings and byte vectors from a.
func NewMessageWithAllocator(t *Template, a Allocator) *Message {
	return newMessage(t, a)
}

func newMessage(t *Template, a Allocator) *Message {
	m := &Message{tmpl: t, alloc: a}
	m.root.setPresent()
	ensureElems(&m.root, t.Fields, a)
	return m
}

// Template returns the message's template.
func (m *Message) Template() *Template {
	return m.tmpl
}

// Len returns the number of top-level fields.
func (m *Message) Len() int {
	return len(m.tmpl.Fields)
}

// Field returns a read-only view of the i-th field.
func (m *Message) Field(i int) FieldRef {
	return m.Root().Field(i)
}

// FieldByName returns a read-only view of the named field.
func (m *Message) FieldByName(name string) (FieldRef, bool) {
	return m.Root().FieldByName(name)
}

// Mutable returns a mutable view of the i-th field.
func (m *Message) Mutable(i int) FieldMRef {
	return m.MutableRoot().Field(i)
}

// MutableByName returns a mutable view of the named field.
func (m *Message) MutableByName(name string) (FieldMRef, bool) {
	return m.MutableRoot().FieldByName(name)
}

// Root returns a read-only view of the top-level fields.
func (m *Message) Root() AggregateRef {
	return AggregateRef{fields: m.tmpl.Fields, v: &m.root, index: -1}
}

// MutableRoot returns a mutable view of the top-level fields.
func (m *Message) MutableRoot() AggregateMRef {
	return AggregateMRef{fields: m.tmpl.Fields, v: &m.root, alloc: m.alloc, index: -1}
}

// Release returns owned storage to the allocator. The message must not be
// used afterwards.
func (m *Message) Release() {
	m.root.releaseAll(m.alloc)
	m.root.elems = nil
}

// ensureElems gives v one child value per field unless it already has them.
// New children are initialized for encoding.
func ensureElems(v *Value, fields []*Instruction, a Allocator) {
	if len(v.elems) == len(fields) {
		return
	}
	for i := range v.elems {
		v.elems[i].releaseAll(a)
	}
	v.elems = make([]Value, len(fields))
	for i, f := range fields {
		initValue(f, &v.elems[i], a)
	}
}

// initValue sets up a fresh value for field f.
func initValue(f *Instruction, v *Value, a Allocator) {
	if f.Optional() {
		return
	}
	switch f.Kind {
	case KindGroup:
		v.setPresent()
		ensureElems(v, f.Fields, a)
	case KindTemplateRef:
		if f.Target != nil {
			v.setPresent()
			ensureElems(v, f.Target.Fields, a)
		}
	case KindSequence:
		v.setPresent()
	default:
		if f.initial.Present() {
			v.assign(&f.initial, a)
		}
		v.setPresent()
	}
}

// resizeElems sets the number of sequence elements to n, keeping existing
// elements and their storage.
func resizeElems(v *Value, n int, fields []*Instruction, a Allocator) {
	switch {
	case n <= cap(v.elems):
		old := len(v.elems)
		v.elems = v.elems[:n]
		for i := old; i < n; i++ {
			if len(v.elems[i].elems) != len(fields) {
				v.elems[i] = Value{}
			}
			v.elems[i].setPresent()
			ensureElems(&v.elems[i], fields, a)
		}
	default:
		elems := make([]Value, n)
		copy(elems, v.elems)
		for i := len(v.elems); i < n; i++ {
			elems[i].setPresent()
			ensureElems(&elems[i], fields, a)
		}
		v.elems = elems
	}
}
