package fast

import (
	"fmt"
	"io"
	"strings"
)

// Visitor receives the present fields of a message in declared order.
// Returning an error stops the walk.
type Visitor interface {
	// VisitScalar is called for integer, enum, decimal and integer vector
	// fields.
	VisitScalar(f FieldRef) error

	// VisitString is called for ascii and unicode string fields.
	VisitString(f FieldRef) error

	// VisitBytes is called for byte vector fields.
	VisitBytes(f FieldRef) error

	// EnterAggregate and ExitAggregate bracket a group, a template reference
	// or a sequence element.
	EnterAggregate(a AggregateRef) error
	ExitAggregate(a AggregateRef) error

	// EnterSequence and ExitSequence bracket a sequence.
	EnterSequence(f FieldRef) error
	ExitSequence(f FieldRef) error
}

// Walk drives v over the present fields of msg.
func Walk(msg *Message, v Visitor) error {
	return walkFields(msg.Root(), v)
}

func walkFields(a AggregateRef, v Visitor) error {
	for i := 0; i < a.Len(); i++ {
		f := a.Field(i)
		if !f.Present() {
			continue
		}
		if err := walkField(f, v); err != nil {
			return err
		}
	}
	return nil
}

func walkField(f FieldRef, v Visitor) error {
	switch f.Kind() {
	case KindASCIIString, KindUnicodeString:
		return v.VisitString(f)
	case KindByteVector:
		return v.VisitBytes(f)
	case KindGroup, KindTemplateRef:
		return walkAggregate(f.Group(), v)
	case KindSequence:
		if err := v.EnterSequence(f); err != nil {
			return err
		}
		for i := 0; i < f.Len(); i++ {
			if err := walkAggregate(f.Element(i), v); err != nil {
				return err
			}
		}
		return v.ExitSequence(f)
	default:
		return v.VisitScalar(f)
	}
}

func walkAggregate(a AggregateRef, v Visitor) error {
	if err := v.EnterAggregate(a); err != nil {
		return err
	}
	if err := walkFields(a, v); err != nil {
		return err
	}
	return v.ExitAggregate(a)
}

// Dump writes an indented listing of msg to w, for debugging.
func Dump(w io.Writer, msg *Message) error {
	if _, err := fmt.Fprintf(w, "%s (id=%d)\n", msg.tmpl.Name, msg.tmpl.ID); err != nil {
		return err
	}
	return Walk(msg, &dumper{w: w, depth: 1})
}

type dumper struct {
	w     io.Writer
	depth int
}

func (d *dumper) line(format string, args ...any) error {
	_, err := fmt.Fprintf(d.w, strings.Repeat("  ", d.depth)+format+"\n", args...)
	return err
}

func (d *dumper) VisitScalar(f FieldRef) error {
	if f.Kind().IsVector() {
		return d.line("%s: %v", f.Name(), f.Int64s())
	}
	return d.line("%s: %s", f.Name(), f)
}

func (d *dumper) VisitString(f FieldRef) error {
	return d.line("%s: %q", f.Name(), f.Bytes())
}

func (d *dumper) VisitBytes(f FieldRef) error {
	return d.line("%s: 0x%s", f.Name(), f)
}

func (d *dumper) EnterAggregate(a AggregateRef) error {
	var err error
	switch {
	case a.Index() >= 0:
		err = d.line("[%d]", a.Index())
	case a.Instruction().IsDynamic():
		err = d.line("%s: %s", a.Instruction().Name, templateName(a))
	default:
		err = d.line("%s:", a.Instruction().Name)
	}
	d.depth++
	return err
}

func (d *dumper) ExitAggregate(AggregateRef) error {
	d.depth--
	return nil
}

func (d *dumper) EnterSequence(f FieldRef) error {
	err := d.line("%s: [%d]", f.Name(), f.Len())
	d.depth++
	return err
}

func (d *dumper) ExitSequence(FieldRef) error {
	d.depth--
	return nil
}

func templateName(a AggregateRef) string {
	if a.v.ref != nil {
		return a.v.ref.Name
	}
	return ""
}
