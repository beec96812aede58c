//go:build go1.18

package fast

import (
	"math"
	"testing"
	"unicode/utf8"
)

// fuzzTemplates covers every field kind, operator and composite.
func fuzzTemplates(tb testing.TB) *Templates {
	inner := NewTemplate(3, "Inner",
		NewField(KindInt32, "i", Optional, OpDelta),
		NewField(KindByteVector, "b", Optional, OpTail),
	)
	header := NewTemplate(4, "Header",
		NewField(KindUInt32, "seq", Mandatory, OpIncrement, WithInitial("1")),
	)
	outer := NewTemplate(1, "Outer",
		NewTemplateRef(header),
		NewField(KindUInt32, "u32", Mandatory, OpCopy, WithInitial("7")),
		NewField(KindInt64, "i64", Optional, OpDelta),
		NewField(KindUInt64, "u64", Optional, OpDefault, WithInitial("9")),
		NewField(KindEnum, "side", Optional, OpCopy, WithEnumElements("buy", "sell")),
		NewDecimalField("px", Optional, OpDelta),
		NewDecimalField("qty", Optional, OpNone,
			WithExponent(NewField(KindInt32, "", Optional, OpCopy)),
			WithMantissa(NewField(KindInt64, "", Mandatory, OpDelta))),
		NewField(KindASCIIString, "sym", Mandatory, OpDelta, WithInitial("ABC")),
		NewField(KindUnicodeString, "text", Optional, OpCopy),
		NewField(KindInt32Vector, "tags", Optional, OpNone),
		NewGroup("g", Optional, []*Instruction{
			NewField(KindASCIIString, "s", Optional, OpTail),
		}),
		NewSequence("legs", Optional, []*Instruction{
			NewField(KindUInt32, "q", Mandatory, OpCopy),
			NewDynamicTemplateRef("body"),
		}),
	)
	flat := NewTemplate(2, "Flat",
		NewField(KindUInt32, "a", Mandatory, OpConstant, WithInitial("5")),
		NewField(KindASCIIString, "s", Optional, OpNone),
	)
	return mustTemplates(tb, outer, flat, inner)
}

// FuzzDecode tests that Decode never panics on arbitrary input.
func FuzzDecode(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x80})
	f.Add([]byte{0x00})
	f.Add([]byte{0xc0, 0x82, 0x80})
	f.Add([]byte{0xff, 0x81, 0xff, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0xff})
	f.Add([]byte{0xc0, 0x81, 0x00, 0x00, 0x00, 0x80})
	f.Add([]byte{0xc0, 0x83, 0x8f, 0x7f, 0x7f, 0x7f, 0xff})

	set := fuzzTemplates(f)
	f.Fuzz(func(t *testing.T, data []byte) {
		dec := NewDecoderWithOptions(set, SecureOptions)
		// Keep decoding the stream until it runs out or fails.
		for len(data) > 0 {
			msg, n, err := dec.Decode(data, false)
			if err != nil {
				return
			}
			if n <= 0 || n > len(data) {
				t.Fatalf("Decode consumed %d of %d bytes", n, len(data))
			}
			if err := Walk(msg, &recorder{}); err != nil {
				t.Fatalf("Walk error: %v", err)
			}
			data = data[n:]
		}
	})
}

// FuzzRoundTrip tests that encoded values decode unchanged.
func FuzzRoundTrip(f *testing.F) {
	f.Add(int64(0), "", int64(0))
	f.Add(int64(1), "hello", int64(125))
	f.Add(int64(-1), "héllo", int64(-7))
	f.Add(int64(math.MaxInt64), "max", int64(math.MaxInt64))
	f.Add(int64(math.MinInt64), "\x00\x00", int64(math.MinInt64))

	tmpl := NewTemplate(1, "T",
		NewField(KindInt64, "id", Mandatory, OpDelta),
		NewField(KindUnicodeString, "text", Optional, OpDelta),
		NewDecimalField("px", Mandatory, OpDelta),
		NewField(KindInt64, "seq", Mandatory, OpIncrement),
	)
	set := mustTemplates(f, tmpl)

	f.Fuzz(func(t *testing.T, id int64, text string, px int64) {
		if !utf8.ValidString(text) {
			t.Skip()
		}
		enc := NewEncoder(set)
		dec := NewDecoder(set)
		msg := NewMessage(tmpl)
		buf := make([]byte, 2*len(text)+128)

		for i := int64(0); i < 3; i++ {
			must(t, msg.Mutable(0).SetInt64(id+i))
			s := text[:len(text)-int(i)*len(text)/3]
			for !utf8.ValidString(s) {
				s = s[:len(s)-1]
			}
			must(t, msg.Mutable(1).SetString(s))
			must(t, msg.Mutable(2).SetDecimal(NewDecimal(px-i, -2)))
			must(t, msg.Mutable(3).SetInt64(id*i))

			n, err := enc.Encode(buf, msg, false)
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			out, m, err := dec.Decode(buf[:n], false)
			if err != nil {
				t.Fatalf("Decode % x error: %v", buf[:n], err)
			}
			if m != n {
				t.Fatalf("decoded %d of %d bytes", m, n)
			}
			if got, want := dump(t, out), dump(t, msg); got != want {
				t.Fatalf("round trip mismatch:\ngot:\n%s\nwant:\n%s", got, want)
			}
		}
	})
}
