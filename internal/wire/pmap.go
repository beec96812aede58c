package wire

import "errors"

// ErrPMapTruncated indicates the data ended before the presence map's stop
// bit.
var ErrPMapTruncated = errors.New("fast: presence map truncated")

// PMapSize returns the number of bytes a presence map of n bits occupies when
// every bit is kept.
func PMapSize(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + 6) / 7
}

// PMap reads bits from an encoded presence map.
//
// Each byte holds 7 bits, most significant first; bit 7 is the stop bit and
// is set only on the last byte. Reading past the encoded bits yields false,
// which lets templates gain trailing optional fields.
type PMap struct {
	data []byte
	bit  int
}

// Decode reads the presence map at the start of data and returns the number
// of bytes consumed. The map aliases data.
func (p *PMap) Decode(data []byte) (int, error) {
	n := ScanStopBit(data)
	if n < 0 {
		return 0, ErrPMapTruncated
	}
	p.data = data[:n]
	p.bit = 0
	return n, nil
}

// NextBit returns the next bit, or false once all bits are consumed.
func (p *PMap) NextBit() bool {
	i := p.bit / 7
	if i >= len(p.data) {
		return false
	}
	set := p.data[i]&(0x40>>uint(p.bit%7)) != 0
	p.bit++
	return set
}

// Bits returns the number of encoded bits.
func (p *PMap) Bits() int {
	return len(p.data) * 7
}

// Consumed returns the number of bits read so far.
func (p *PMap) Consumed() int {
	return p.bit
}

// PMapWriter accumulates presence map bits for encoding.
// The zero value is an empty map.
type PMapWriter struct {
	groups []byte // 7 bits per entry, stop bits not applied
	n      int
	end    int // one past the last set bit, 0 if none
}

// Reset clears the writer for reuse.
func (w *PMapWriter) Reset() {
	w.groups = w.groups[:0]
	w.n = 0
	w.end = 0
}

// SetNextBit appends one bit.
func (w *PMapWriter) SetNextBit(set bool) {
	i := w.n / 7
	if i >= len(w.groups) {
		w.groups = append(w.groups, 0)
	}
	if set {
		w.groups[i] |= 0x40 >> uint(w.n%7)
		w.end = w.n + 1
	}
	w.n++
}

// Bits returns the number of bits written.
func (w *PMapWriter) Bits() int {
	return w.n
}

// Size returns the number of bytes Put will write. When overlong is false,
// trailing all-zero bytes are dropped, keeping at least one byte.
func (w *PMapWriter) Size(overlong bool) int {
	if overlong {
		return PMapSize(w.n)
	}
	if w.end == 0 {
		return 1
	}
	return (w.end + 6) / 7
}

// Put writes the map into dst, which must hold Size(overlong) bytes, and
// returns the number of bytes written.
func (w *PMapWriter) Put(dst []byte, overlong bool) int {
	n := w.Size(overlong)
	for i := 0; i < n; i++ {
		var b byte
		if i < len(w.groups) {
			b = w.groups[i]
		}
		dst[i] = b
	}
	dst[n-1] |= StopBit
	return n
}

// Append appends the map to buf.
func (w *PMapWriter) Append(buf []byte, overlong bool) []byte {
	n := w.Size(overlong)
	start := len(buf)
	for i := 0; i < n; i++ {
		buf = append(buf, 0)
	}
	w.Put(buf[start:], overlong)
	return buf
}
