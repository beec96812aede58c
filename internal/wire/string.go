package wire

import "errors"

// Errors for string and byte vector decoding.
var (
	// ErrUnexpectedEOF indicates a length-prefixed value runs past the data.
	ErrUnexpectedEOF = errors.New("fast: unexpected end of data")

	// ErrInvalidASCII indicates a character outside the 7-bit range.
	ErrInvalidASCII = errors.New("fast: non 7-bit character in ascii string")
)

// ASCIISize returns the encoded size of s.
func ASCIISize(s []byte, nullable bool) int {
	switch {
	case len(s) == 0 && nullable:
		return 2
	case len(s) == 0:
		return 1
	case s[0] == 0 && nullable:
		return len(s) + 2
	case s[0] == 0:
		return len(s) + 1
	}
	return len(s)
}

// AppendASCII appends the stop-bit encoding of the 7-bit string s.
//
// The empty string is [0x80] when mandatory and [0x00, 0x80] when nullable,
// since [0x80] is NULL. A string that starts with NUL gets a NUL preamble so
// it cannot be mistaken for either.
func AppendASCII(buf []byte, s []byte, nullable bool) ([]byte, error) {
	for _, c := range s {
		if c >= 0x80 {
			return buf, ErrInvalidASCII
		}
	}
	if nullable && (len(s) == 0 || s[0] == 0) {
		buf = append(buf, 0)
	}
	if len(s) == 0 {
		return append(buf, StopBit), nil
	}
	if s[0] == 0 {
		buf = append(buf, 0)
	}
	buf = append(buf, s...)
	buf[len(buf)-1] |= StopBit
	return buf, nil
}

// ScanASCII returns the raw stop-bit terminated string at the start of data,
// including the byte that carries the stop bit.
func ScanASCII(data []byte) ([]byte, error) {
	n := ScanStopBit(data)
	if n < 0 {
		return nil, ErrVarintTruncated
	}
	return data[:n], nil
}

// ASCIIStart interprets a raw string returned by ScanASCII. It returns the
// index of the first character in raw and whether the value is NULL. The
// characters are raw[start:] with the stop bit cleared on the last byte.
func ASCIIStart(raw []byte, nullable bool) (start int, null bool) {
	if nullable {
		if len(raw) == 1 && raw[0] == Null {
			return 0, true
		}
		if raw[0] != 0 {
			return 0, false
		}
		raw = raw[1:]
		start = 1
	}
	if raw[0]&0x7f == 0 {
		start++
	}
	return start, false
}

// AppendASCIIChars appends the characters of raw[start:] to dst, clearing the
// stop bit.
func AppendASCIIChars(dst []byte, raw []byte, start int) []byte {
	if start >= len(raw) {
		return dst
	}
	dst = append(dst, raw[start:]...)
	dst[len(dst)-1] &^= StopBit
	return dst
}

// BytesSize returns the encoded size of a length-prefixed byte vector.
func BytesSize(b []byte, nullable bool) int {
	if nullable {
		return NullableUintSize(uint64(len(b))) + len(b)
	}
	return UintSize(uint64(len(b))) + len(b)
}

// AppendBytes appends a length-prefixed byte vector. The length is nullable
// when the field is nullable.
func AppendBytes(buf []byte, b []byte, nullable bool) []byte {
	if nullable {
		buf = AppendNullableUint(buf, uint64(len(b)))
	} else {
		buf = AppendUint(buf, uint64(len(b)))
	}
	return append(buf, b...)
}

// DecodeBytes decodes a length-prefixed byte vector. The returned slice
// aliases data.
func DecodeBytes(data []byte, nullable bool) (b []byte, null bool, n int, err error) {
	var length uint64
	if nullable {
		length, null, n, err = DecodeNullableUint(data)
	} else {
		length, n, err = DecodeUint(data)
	}
	if err != nil || null {
		return nil, null, n, err
	}
	if length > uint64(len(data)-n) {
		return nil, false, 0, ErrUnexpectedEOF
	}
	end := n + int(length)
	return data[n:end:end], false, end, nil
}
