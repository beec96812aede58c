package fast

import (
	"github.com/blockberries/fast/internal/wire"
)

// writer encodes primitives into a caller-supplied buffer. It never grows
// the buffer: len(buf) is the number of bytes written and cap(buf) the space
// available.
type writer struct {
	buf   []byte
	depth int
	opts  *Options
	segs  []*segment // reusable presence map segments, innermost last
	nsegs int
}

// segment is a presence map whose bytes were reserved before the fields it
// describes were written.
type segment struct {
	pm    wire.PMapWriter
	start int
	size  int
}

func (w *writer) reset(dst []byte) {
	w.buf = dst[:0:len(dst)]
	w.depth = 0
	w.nsegs = 0
}

// ensure checks that n more bytes fit.
func (w *writer) ensure(n int) error {
	if len(w.buf)+n > cap(w.buf) {
		return ErrBufferOverflow
	}
	return nil
}

// enterNested increases the nesting depth and checks limits.
func (w *writer) enterNested() error {
	if w.opts.Limits.MaxDepth > 0 && w.depth >= w.opts.Limits.MaxDepth {
		return ErrMaxDepthExceeded
	}
	w.depth++
	return nil
}

// exitNested decreases the nesting depth.
func (w *writer) exitNested() {
	if w.depth > 0 {
		w.depth--
	}
}

// beginSegment reserves room for a presence map of up to bits bits.
func (w *writer) beginSegment(bits int) (*segment, error) {
	size := wire.PMapSize(bits)
	if err := w.ensure(size); err != nil {
		return nil, err
	}
	if w.nsegs == len(w.segs) {
		w.segs = append(w.segs, &segment{})
	}
	s := w.segs[w.nsegs]
	w.nsegs++
	s.pm.Reset()
	s.start = len(w.buf)
	s.size = size
	w.buf = w.buf[:len(w.buf)+size]
	return s, nil
}

// commit writes the segment's presence map into its reserved bytes and, unless
// overlong maps are requested, moves the following bytes down over the
// unused part of the reservation.
func (w *writer) commit(s *segment) {
	n := s.pm.Put(w.buf[s.start:], w.opts.Overlong)
	if n < s.size {
		copy(w.buf[s.start+n:], w.buf[s.start+s.size:])
		w.buf = w.buf[:len(w.buf)-(s.size-n)]
	}
	w.nsegs--
}

// integer writes an integer of the given kind from its two's complement bits.
func (w *writer) integer(kind Kind, u uint64, nullable bool) error {
	if kind.IsSigned() {
		return w.signed(int64(u), nullable)
	}
	if nullable {
		if err := w.ensure(wire.NullableUintSize(u)); err != nil {
			return err
		}
		w.buf = wire.AppendNullableUint(w.buf, u)
		return nil
	}
	if err := w.ensure(wire.UintSize(u)); err != nil {
		return err
	}
	w.buf = wire.AppendUint(w.buf, u)
	return nil
}

// signed writes a signed 64-bit integer.
func (w *writer) signed(x int64, nullable bool) error {
	if nullable {
		if err := w.ensure(wire.NullableIntSize(x)); err != nil {
			return err
		}
		w.buf = wire.AppendNullableInt(w.buf, x)
		return nil
	}
	if err := w.ensure(wire.IntSize(x)); err != nil {
		return err
	}
	w.buf = wire.AppendInt(w.buf, x)
	return nil
}

// null writes the NULL value of a nullable field.
func (w *writer) null() error {
	if err := w.ensure(1); err != nil {
		return err
	}
	w.buf = wire.AppendNull(w.buf)
	return nil
}

// exponent writes a decimal exponent after checking its range.
func (w *writer) exponent(e int8, nullable bool) error {
	if e < MinExponent || e > MaxExponent {
		return ErrDecimalExponent
	}
	return w.signed(int64(e), nullable)
}

// ascii writes a stop-bit encoded string.
func (w *writer) ascii(s []byte, nullable bool) error {
	if err := w.ensure(wire.ASCIISize(s, nullable)); err != nil {
		return err
	}
	buf, err := wire.AppendASCII(w.buf, s, nullable)
	if err != nil {
		return err
	}
	w.buf = buf
	return nil
}

// bytes writes a length-prefixed byte vector.
func (w *writer) bytes(b []byte, nullable bool) error {
	if err := w.ensure(wire.BytesSize(b, nullable)); err != nil {
		return err
	}
	w.buf = wire.AppendBytes(w.buf, b, nullable)
	return nil
}
