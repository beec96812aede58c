package fast

import (
	"bytes"
	"errors"
	"testing"
)

func must(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		tb.Fatal(err)
	}
}

func encode(tb testing.TB, enc *Encoder, msg *Message, reset bool) []byte {
	tb.Helper()
	buf := make([]byte, 256)
	n, err := enc.Encode(buf, msg, reset)
	if err != nil {
		tb.Fatalf("Encode error: %v", err)
	}
	return buf[:n]
}

func TestEncodeCopy(t *testing.T) {
	tmpl := copyTemplate(1)
	enc := NewEncoder(mustTemplates(t, tmpl))
	msg := NewMessage(tmpl)
	for i := 0; i < 3; i++ {
		must(t, msg.Mutable(i).SetUint64(uint64(i+1)))
	}

	if got, want := encode(t, enc, msg, false), []byte{0xf8, 0x81, 0x81, 0x82, 0x83}; !bytes.Equal(got, want) {
		t.Errorf("first message = % x, want % x", got, want)
	}
	if got, want := encode(t, enc, msg, false), []byte{0x80}; !bytes.Equal(got, want) {
		t.Errorf("repeated message = % x, want % x", got, want)
	}

	// After a reset the initial values are the base again.
	for i := 0; i < 3; i++ {
		must(t, msg.Mutable(i).SetUint64(uint64(i+11)))
	}
	if got, want := encode(t, enc, msg, true), []byte{0x80}; !bytes.Equal(got, want) {
		t.Errorf("initial values after reset = % x, want % x", got, want)
	}

	enc.Reset()
	if got, want := encode(t, enc, msg, false), []byte{0xc0, 0x81}; !bytes.Equal(got, want) {
		t.Errorf("after Reset = % x, want % x", got, want)
	}
}

func TestEncodeStringDelta(t *testing.T) {
	tmpl := NewTemplate(2, "Delta",
		NewField(KindASCIIString, "s", Mandatory, OpDelta, WithInitial("initial_string")))
	enc := NewEncoder(mustTemplates(t, tmpl))
	msg := NewMessage(tmpl)

	must(t, msg.Mutable(0).SetString("initial_striABCD"))
	want := []byte{0xc0, 0x82, 0x82, 'A', 'B', 'C', 'D' | 0x80}
	if got := encode(t, enc, msg, false); !bytes.Equal(got, want) {
		t.Errorf("back delta = % x, want % x", got, want)
	}

	must(t, msg.Mutable(0).SetString("ABCD_string"))
	want = []byte{0x80, 0xf8, 'A', 'B', 'C', 'D' | 0x80}
	if got := encode(t, enc, msg, true); !bytes.Equal(got, want) {
		t.Errorf("front delta = % x, want % x", got, want)
	}
}

func TestEncodeComposite(t *testing.T) {
	t.Run("sequence", func(t *testing.T) {
		tmpl := NewTemplate(10, "Seq",
			NewField(KindUInt32, "a", Mandatory, OpNone),
			NewSequence("legs", Mandatory, []*Instruction{
				NewField(KindUInt32, "px", Mandatory, OpCopy),
				NewField(KindUInt32, "qty", Mandatory, OpNone),
			}),
		)
		enc := NewEncoder(mustTemplates(t, tmpl))
		msg := NewMessage(tmpl)
		must(t, msg.Mutable(0).SetUint64(5))
		legs := msg.Mutable(1)
		must(t, legs.Resize(2))
		for i := 0; i < 2; i++ {
			leg := legs.MutableElement(i)
			must(t, leg.Field(0).SetUint64(7))
			must(t, leg.Field(1).SetUint64(uint64(i+1)))
		}

		want := []byte{0xc0, 0x8a, 0x85, 0x82, 0xc0, 0x87, 0x81, 0x80, 0x82}
		if got := encode(t, enc, msg, false); !bytes.Equal(got, want) {
			t.Errorf("Encode = % x, want % x", got, want)
		}
	})

	t.Run("optional_group", func(t *testing.T) {
		tmpl := NewTemplate(40, "Grp",
			NewGroup("g", Optional, []*Instruction{
				NewField(KindUInt32, "v", Mandatory, OpCopy),
			}),
		)
		enc := NewEncoder(mustTemplates(t, tmpl))
		msg := NewMessage(tmpl)
		g, err := msg.Mutable(0).MutableGroup()
		must(t, err)
		must(t, g.Field(0).SetUint64(3))

		if got, want := encode(t, enc, msg, false), []byte{0xe0, 0xa8, 0xc0, 0x83}; !bytes.Equal(got, want) {
			t.Errorf("present group = % x, want % x", got, want)
		}
		must(t, msg.Mutable(0).SetAbsent())
		if got, want := encode(t, enc, msg, false), []byte{0x80}; !bytes.Equal(got, want) {
			t.Errorf("absent group = % x, want % x", got, want)
		}
	})

	t.Run("static_ref", func(t *testing.T) {
		header := NewTemplate(30, "Header",
			NewField(KindUInt32, "seq", Mandatory, OpIncrement, WithInitial("1")))
		tmpl := NewTemplate(31, "Msg",
			NewTemplateRef(header),
			NewField(KindASCIIString, "sym", Mandatory, OpCopy),
		)
		enc := NewEncoder(mustTemplates(t, tmpl))
		msg := NewMessage(tmpl)
		hdr, err := msg.Mutable(0).MutableGroup()
		must(t, err)
		must(t, hdr.Field(0).SetUint64(1))
		must(t, msg.Mutable(1).SetString("A"))

		if got, want := encode(t, enc, msg, false), []byte{0xd0, 0x9f, 'A' | 0x80}; !bytes.Equal(got, want) {
			t.Errorf("first message = % x, want % x", got, want)
		}
		must(t, hdr.Field(0).SetUint64(2))
		if got, want := encode(t, enc, msg, false), []byte{0x80}; !bytes.Equal(got, want) {
			t.Errorf("incremented message = % x, want % x", got, want)
		}
	})

	t.Run("dynamic_ref", func(t *testing.T) {
		inner := NewTemplate(21, "Inner", NewField(KindUInt32, "y", Mandatory, OpCopy))
		outer := NewTemplate(20, "Outer",
			NewField(KindUInt32, "x", Mandatory, OpNone),
			NewDynamicTemplateRef("body"),
		)
		enc := NewEncoder(mustTemplates(t, outer, inner))
		msg := NewMessage(outer)
		must(t, msg.Mutable(0).SetUint64(1))
		body, err := msg.Mutable(1).SetTemplate(inner)
		must(t, err)
		must(t, body.Field(0).SetUint64(4))

		want := []byte{0xc0, 0x94, 0x81, 0xe0, 0x95, 0x84}
		if got := encode(t, enc, msg, false); !bytes.Equal(got, want) {
			t.Errorf("Encode = % x, want % x", got, want)
		}
	})
}

func TestEncodeErrors(t *testing.T) {
	t.Run("buffer_overflow", func(t *testing.T) {
		tmpl := copyTemplate(1)
		enc := NewEncoder(mustTemplates(t, tmpl))
		msg := NewMessage(tmpl)
		for i := 0; i < 3; i++ {
			must(t, msg.Mutable(i).SetUint64(uint64(i+1)))
		}
		for size := 0; size < 5; size++ {
			enc.Reset()
			if _, err := enc.Encode(make([]byte, size), msg, false); !errors.Is(err, ErrBufferOverflow) {
				t.Errorf("Encode into %d bytes error = %v, want %v", size, err, ErrBufferOverflow)
			}
		}
		enc.Reset()
		dst := make([]byte, 5)
		if n, err := enc.Encode(dst, msg, false); err != nil || n != 5 {
			t.Errorf("Encode into exact buffer = %d, %v; want 5, nil", n, err)
		}
	})

	t.Run("mandatory_absent", func(t *testing.T) {
		tmpl := NewTemplate(1, "T", NewDynamicTemplateRef("body"))
		enc := NewEncoder(mustTemplates(t, tmpl))
		_, err := enc.Encode(make([]byte, 16), NewMessage(tmpl), false)
		if !errors.Is(err, ErrMandatoryFieldAbsent) {
			t.Errorf("Encode error = %v, want %v", err, ErrMandatoryFieldAbsent)
		}
		var ee *EncodeError
		if !errors.As(err, &ee) || ee.Field != "body" {
			t.Errorf("Encode error = %#v, want an EncodeError for body", err)
		}
	})

	t.Run("set_absent_mandatory", func(t *testing.T) {
		msg := NewMessage(copyTemplate(1))
		if err := msg.Mutable(0).SetAbsent(); !errors.Is(err, ErrMandatoryFieldAbsent) {
			t.Errorf("SetAbsent error = %v, want %v", err, ErrMandatoryFieldAbsent)
		}
	})

	t.Run("constant_mismatch", func(t *testing.T) {
		for _, presence := range []Presence{Mandatory, Optional} {
			tmpl := NewTemplate(1, "T", NewField(KindUInt32, "c", presence, OpConstant, WithInitial("7")))
			enc := NewEncoder(mustTemplates(t, tmpl))
			msg := NewMessage(tmpl)
			must(t, msg.Mutable(0).SetUint64(7))
			encode(t, enc, msg, false)

			must(t, msg.Mutable(0).SetUint64(8))
			_, err := enc.Encode(make([]byte, 16), msg, false)
			if !errors.Is(err, ErrConstantMismatch) {
				t.Errorf("%s: Encode error = %v, want %v", presence, err, ErrConstantMismatch)
			}
			var ee *EncodeError
			if !errors.As(err, &ee) || ee.Field != "c" {
				t.Errorf("%s: Encode error = %#v, want an EncodeError for c", presence, err)
			}
		}
	})

	t.Run("tail_shorten", func(t *testing.T) {
		tmpl := NewTemplate(1, "T", NewField(KindASCIIString, "s", Mandatory, OpTail))
		enc := NewEncoder(mustTemplates(t, tmpl))
		msg := NewMessage(tmpl)
		must(t, msg.Mutable(0).SetString("abcd"))
		encode(t, enc, msg, false)
		must(t, msg.Mutable(0).SetString("ab"))
		if _, err := enc.Encode(make([]byte, 16), msg, false); !errors.Is(err, ErrTailShorten) {
			t.Errorf("Encode error = %v, want %v", err, ErrTailShorten)
		}
	})

	t.Run("unregistered_template", func(t *testing.T) {
		enc := NewEncoder(mustTemplates(t, copyTemplate(1)))
		other := copyTemplate(1)
		if _, err := enc.Encode(make([]byte, 16), NewMessage(other), false); !errors.Is(err, ErrUnknownTemplateID) {
			t.Errorf("Encode error = %v, want %v", err, ErrUnknownTemplateID)
		}
	})
}

func TestEncodeOverlong(t *testing.T) {
	fields := make([]*Instruction, 7)
	for i := range fields {
		fields[i] = NewField(KindUInt32, string(rune('a'+i)), Mandatory, OpCopy, WithInitial("1"))
	}
	tmpl := NewTemplate(1, "Wide", fields...)
	set := mustTemplates(t, tmpl)
	msg := NewMessage(tmpl)
	for i := range fields {
		must(t, msg.Mutable(i).SetUint64(1))
	}

	tests := []struct {
		name     string
		overlong bool
		expected []byte
	}{
		{"compact", false, []byte{0xc0, 0x81}},
		{"overlong", true, []byte{0x40, 0x80, 0x81}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions
			opts.Overlong = tc.overlong
			enc := NewEncoderWithOptions(set, opts)
			if got := encode(t, enc, msg, false); !bytes.Equal(got, tc.expected) {
				t.Errorf("Encode = % x, want % x", got, tc.expected)
			}

			// Both forms decode to the same message.
			dec := NewDecoder(set)
			out, _, err := dec.Decode(tc.expected, false)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			for i := range fields {
				if out.Field(i).Uint64() != 1 {
					t.Errorf("field %d = %d, want 1", i, out.Field(i).Uint64())
				}
			}
		})
	}
}
