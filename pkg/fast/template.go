package fast

import (
	"sort"
	"sync"
)

// Template is the schema of one message type.
type Template struct {
	// ID is the template identifier carried on the wire.
	ID uint32

	// Name and Namespace identify the template.
	Name      string
	Namespace string

	// Dictionary is the default dictionary scope of the template's fields.
	Dictionary string

	// TypeRef names the application type, which qualifies the "type"
	// dictionary.
	TypeRef string

	// Reset forces a dictionary reset before every message of this template.
	Reset bool

	// Fields are the template's instructions in wire order.
	Fields []*Instruction

	owner      *Templates
	state      compileState
	bits       int   // presence map bits of the fields, excluding the template id
	resetSlots []int // dictionary slots reachable from the template
}

type compileState uint8

const (
	stateNew compileState = iota
	stateCompiling
	stateCompiled
)

// NewTemplate creates a template.
func NewTemplate(id uint32, name string, fields ...*Instruction) *Template {
	return &Template{
		ID:     id,
		Name:   name,
		Fields: fields,
	}
}

// segmentBits returns the number of bits of the template's presence map
// segment, including the template id bit.
func (t *Template) segmentBits() int {
	return 1 + t.bits
}

// FieldIndex returns the index of the named field, or -1.
func (t *Template) FieldIndex(name string) int {
	return fieldIndex(t.Fields, name)
}

func fieldIndex(fields []*Instruction, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// slotKey identifies a dictionary entry: the dictionary scope, the key
// namespace and the key.
type slotKey struct {
	scope string
	ns    string
	key   string
}

// valueClass groups the field kinds that may share a dictionary entry.
type valueClass uint8

const (
	classInteger valueClass = iota
	classDecimal
	classASCII
	classBytes
)

func classOf(k Kind) valueClass {
	switch k {
	case KindDecimal:
		return classDecimal
	case KindASCIIString:
		return classASCII
	case KindUnicodeString, KindByteVector:
		return classBytes
	default:
		return classInteger
	}
}

// Templates is a set of compiled templates addressed by id and name,
// together with the dictionary layout their fields share.
// It is safe for concurrent use.
type Templates struct {
	mu sync.RWMutex

	// byID maps template id to template.
	byID map[uint32]*Template

	// byName maps template name to template.
	byName map[string]*Template

	// slots maps dictionary entries to cell indexes.
	slots map[slotKey]int

	// classes holds the value class of each cell.
	classes []valueClass
}

// NewTemplates creates a template set holding ts.
func NewTemplates(ts ...*Template) (*Templates, error) {
	set := &Templates{
		byID:   make(map[uint32]*Template),
		byName: make(map[string]*Template),
		slots:  make(map[slotKey]int),
	}
	if err := set.Add(ts...); err != nil {
		return nil, err
	}
	return set, nil
}

// Add compiles and registers templates. Templates referenced statically are
// compiled too but only registered when passed to Add themselves.
// A template belongs to a single set and must not be modified after Add.
func (s *Templates) Add(ts ...*Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[uint32]*Template, len(ts))
	for _, t := range ts {
		if t == nil {
			return &TemplateError{Cause: ErrInvalidTemplate}
		}
		if prev, ok := s.byID[t.ID]; ok && prev != t {
			return &TemplateError{Template: t.Name, ID: t.ID, Cause: ErrDuplicateTemplateID}
		}
		if prev, ok := batch[t.ID]; ok && prev != t {
			return &TemplateError{Template: t.Name, ID: t.ID, Cause: ErrDuplicateTemplateID}
		}
		batch[t.ID] = t
	}
	for _, t := range ts {
		if err := s.compileTemplate(t); err != nil {
			return err
		}
	}
	for _, t := range ts {
		s.byID[t.ID] = t
		if t.Name != "" {
			s.byName[t.Name] = t
		}
	}
	return nil
}

// Lookup returns the template with the given id.
func (s *Templates) Lookup(id uint32) (*Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	return t, ok
}

// LookupName returns the template with the given name.
func (s *Templates) LookupName(name string) (*Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byName[name]
	return t, ok
}

// All returns the registered templates ordered by id.
func (s *Templates) All() []*Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Template, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered templates.
func (s *Templates) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// only returns the template when exactly one is registered.
func (s *Templates) only() (*Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.byID) != 1 {
		return nil, false
	}
	for _, t := range s.byID {
		return t, true
	}
	return nil, false
}

// slotCount returns the number of dictionary cells.
func (s *Templates) slotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.classes)
}
