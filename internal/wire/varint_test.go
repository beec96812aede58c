package wire

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// Test cases for unsigned stop-bit encoding
var uintTestCases = []struct {
	name     string
	value    uint64
	expected []byte
}{
	{"zero", 0, []byte{0x80}},
	{"one", 1, []byte{0x81}},
	{"max_1_byte", 127, []byte{0xff}},
	{"min_2_byte", 128, []byte{0x01, 0x80}},
	{"fast_spec_942755", 942755, []byte{0x39, 0x45, 0xa3}},
	{"max_2_byte", 16383, []byte{0x7f, 0xff}},
	{"min_3_byte", 16384, []byte{0x01, 0x00, 0x80}},
	{"max_uint32", math.MaxUint32, []byte{0x0f, 0x7f, 0x7f, 0x7f, 0xff}},
	{"max_uint64", math.MaxUint64, []byte{0x01, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0xff}},
	{"power_of_2_63", 1 << 63, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80}},
}

// Test cases for signed stop-bit encoding
var intTestCases = []struct {
	name     string
	value    int64
	expected []byte
}{
	{"zero", 0, []byte{0x80}},
	{"one", 1, []byte{0x81}},
	{"minus_one", -1, []byte{0xff}},
	{"63", 63, []byte{0xbf}},
	{"64_needs_sign_byte", 64, []byte{0x00, 0xc0}},
	{"minus_64", -64, []byte{0xc0}},
	{"minus_65", -65, []byte{0x7f, 0xbf}},
	{"fast_spec_942755", 942755, []byte{0x39, 0x45, 0xa3}},
	{"fast_spec_minus_942755", -942755, []byte{0x46, 0x3a, 0xdd}},
	{"max_int64", math.MaxInt64, []byte{0x00, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0xff}},
	{"min_int64", math.MinInt64, []byte{0x7f, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80}},
}

func TestAppendUint(t *testing.T) {
	for _, tc := range uintTestCases {
		t.Run(tc.name, func(t *testing.T) {
			result := AppendUint(nil, tc.value)
			if !bytes.Equal(result, tc.expected) {
				t.Errorf("AppendUint(%d) = %#v, want %#v", tc.value, result, tc.expected)
			}
			if got := UintSize(tc.value); got != len(tc.expected) {
				t.Errorf("UintSize(%d) = %d, want %d", tc.value, got, len(tc.expected))
			}
		})
	}
}

func TestAppendInt(t *testing.T) {
	for _, tc := range intTestCases {
		t.Run(tc.name, func(t *testing.T) {
			result := AppendInt(nil, tc.value)
			if !bytes.Equal(result, tc.expected) {
				t.Errorf("AppendInt(%d) = %#v, want %#v", tc.value, result, tc.expected)
			}
			if got := IntSize(tc.value); got != len(tc.expected) {
				t.Errorf("IntSize(%d) = %d, want %d", tc.value, got, len(tc.expected))
			}
		})
	}
}

func TestDecodeUint(t *testing.T) {
	for _, tc := range uintTestCases {
		t.Run(tc.name, func(t *testing.T) {
			value, n, err := DecodeUint(tc.expected)
			if err != nil {
				t.Fatalf("DecodeUint(%#v) error: %v", tc.expected, err)
			}
			if value != tc.value {
				t.Errorf("DecodeUint(%#v) value = %d, want %d", tc.expected, value, tc.value)
			}
			if n != len(tc.expected) {
				t.Errorf("DecodeUint(%#v) n = %d, want %d", tc.expected, n, len(tc.expected))
			}
		})
	}
}

func TestDecodeInt(t *testing.T) {
	for _, tc := range intTestCases {
		t.Run(tc.name, func(t *testing.T) {
			value, n, err := DecodeInt(tc.expected)
			if err != nil {
				t.Fatalf("DecodeInt(%#v) error: %v", tc.expected, err)
			}
			if value != tc.value {
				t.Errorf("DecodeInt(%#v) value = %d, want %d", tc.expected, value, tc.value)
			}
			if n != len(tc.expected) {
				t.Errorf("DecodeInt(%#v) n = %d, want %d", tc.expected, n, len(tc.expected))
			}
		})
	}
}

func TestNullableUint(t *testing.T) {
	tests := []struct {
		name     string
		value    uint64
		expected []byte
	}{
		{"zero", 0, []byte{0x81}},
		{"fast_spec_942755", 942755, []byte{0x39, 0x45, 0xa4}},
		{"max_uint32", math.MaxUint32, []byte{0x10, 0x00, 0x00, 0x00, 0x80}},
		{"max_uint64", math.MaxUint64, []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := AppendNullableUint(nil, tc.value)
			if !bytes.Equal(result, tc.expected) {
				t.Errorf("AppendNullableUint(%d) = %#v, want %#v", tc.value, result, tc.expected)
			}
			if got := NullableUintSize(tc.value); got != len(tc.expected) {
				t.Errorf("NullableUintSize(%d) = %d, want %d", tc.value, got, len(tc.expected))
			}
			v, null, n, err := DecodeNullableUint(result)
			if err != nil {
				t.Fatalf("DecodeNullableUint error: %v", err)
			}
			if null || v != tc.value || n != len(tc.expected) {
				t.Errorf("DecodeNullableUint = (%d, %v, %d), want (%d, false, %d)", v, null, n, tc.value, len(tc.expected))
			}
		})
	}

	_, null, n, err := DecodeNullableUint([]byte{0x80})
	if err != nil || !null || n != 1 {
		t.Errorf("DecodeNullableUint(NULL) = (%v, %d, %v), want (true, 1, nil)", null, n, err)
	}
}

func TestNullableInt(t *testing.T) {
	tests := []struct {
		name     string
		value    int64
		expected []byte
	}{
		{"zero", 0, []byte{0x81}},
		{"minus_one", -1, []byte{0xff}},
		{"fast_spec_942755", 942755, []byte{0x39, 0x45, 0xa4}},
		{"fast_spec_minus_942755", -942755, []byte{0x46, 0x3a, 0xdd}},
		{"max_int64", math.MaxInt64, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80}},
		{"min_int64", math.MinInt64, []byte{0x7f, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := AppendNullableInt(nil, tc.value)
			if !bytes.Equal(result, tc.expected) {
				t.Errorf("AppendNullableInt(%d) = %#v, want %#v", tc.value, result, tc.expected)
			}
			if got := NullableIntSize(tc.value); got != len(tc.expected) {
				t.Errorf("NullableIntSize(%d) = %d, want %d", tc.value, got, len(tc.expected))
			}
			v, null, n, err := DecodeNullableInt(result)
			if err != nil {
				t.Fatalf("DecodeNullableInt error: %v", err)
			}
			if null || v != tc.value || n != len(tc.expected) {
				t.Errorf("DecodeNullableInt = (%d, %v, %d), want (%d, false, %d)", v, null, n, tc.value, len(tc.expected))
			}
		})
	}

	_, null, _, err := DecodeNullableInt(AppendNull(nil))
	if err != nil || !null {
		t.Errorf("DecodeNullableInt(NULL) = (%v, %v), want (true, nil)", null, err)
	}
}

func TestIntRoundTrip(t *testing.T) {
	testValues := []int64{
		0, 1, -1, 62, 63, 64, -63, -64, -65,
		8191, 8192, -8192, -8193,
		1<<20 - 1, 1 << 20, -(1 << 20),
		1<<34 + 5, -(1<<34 + 5),
		math.MaxInt32, math.MinInt32,
		math.MaxInt64 - 1, math.MinInt64 + 1,
	}
	for _, v := range testValues {
		data := AppendInt(nil, v)
		got, n, err := DecodeInt(data)
		if err != nil || got != v || n != len(data) {
			t.Errorf("round trip %d: got (%d, %d, %v)", v, got, n, err)
		}

		data = AppendNullableInt(nil, v)
		got, null, n, err := DecodeNullableInt(data)
		if err != nil || null || got != v || n != len(data) {
			t.Errorf("nullable round trip %d: got (%d, %v, %d, %v)", v, got, null, n, err)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, ErrVarintTruncated},
		{"no_stop_bit", []byte{0x01, 0x02}, ErrVarintTruncated},
		{"eleven_bytes", []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x80}, ErrIntegerOverflow},
		{"uint_65_bits", []byte{0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0x80}, ErrIntegerOverflow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := DecodeUint(tc.data); !errors.Is(err, tc.err) {
				t.Errorf("DecodeUint(%#v) error = %v, want %v", tc.data, err, tc.err)
			}
		})
	}

	if _, _, err := DecodeInt([]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0x80}); !errors.Is(err, ErrIntegerOverflow) {
		t.Errorf("DecodeInt(2^63) error = %v, want %v", err, ErrIntegerOverflow)
	}
	if _, _, _, err := DecodeNullableInt([]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0x81}); !errors.Is(err, ErrIntegerOverflow) {
		t.Errorf("DecodeNullableInt(2^63+1) error = %v, want %v", err, ErrIntegerOverflow)
	}
	if _, _, err := DecodeInt([]byte{0x3f, 0, 0, 0, 0, 0, 0, 0, 0, 0x80}); !errors.Is(err, ErrIntegerOverflow) {
		t.Errorf("DecodeInt(bad sign extension) error = %v, want %v", err, ErrIntegerOverflow)
	}
}

func TestScanStopBit(t *testing.T) {
	if n := ScanStopBit([]byte{0x01, 0x02, 0x83, 0x84}); n != 3 {
		t.Errorf("ScanStopBit = %d, want 3", n)
	}
	if n := ScanStopBit([]byte{0x01}); n != -1 {
		t.Errorf("ScanStopBit = %d, want -1", n)
	}
}

func TestFits(t *testing.T) {
	if !FitsInt32(math.MinInt32) || FitsInt32(math.MaxInt32+1) {
		t.Error("FitsInt32 boundaries wrong")
	}
	if !FitsUint32(math.MaxUint32) || FitsUint32(math.MaxUint32+1) {
		t.Error("FitsUint32 boundaries wrong")
	}
}

func BenchmarkAppendUint(b *testing.B) {
	buf := make([]byte, 0, MaxIntLen)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf = AppendUint(buf[:0], uint64(i))
	}
}

func BenchmarkDecodeInt(b *testing.B) {
	data := AppendInt(nil, int64(-942755))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, _ = DecodeInt(data)
	}
}
