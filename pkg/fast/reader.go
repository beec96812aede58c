package fast

import (
	"github.com/blockberries/fast/internal/wire"
)

// reader decodes primitives from a message with position tracking.
type reader struct {
	data  []byte
	pos   int
	depth int
	opts  *Options
}

func (r *reader) reset(data []byte) {
	r.data = data
	r.pos = 0
	r.depth = 0
}

// remaining returns the unread portion of the data.
func (r *reader) remaining() []byte {
	return r.data[r.pos:]
}

// enterNested increases the nesting depth and checks limits.
func (r *reader) enterNested() error {
	if r.opts.Limits.MaxDepth > 0 && r.depth >= r.opts.Limits.MaxDepth {
		return ErrMaxDepthExceeded
	}
	r.depth++
	return nil
}

// exitNested decreases the nesting depth.
func (r *reader) exitNested() {
	if r.depth > 0 {
		r.depth--
	}
}

// pmap reads a presence map segment.
func (r *reader) pmap(pm *wire.PMap) error {
	n, err := pm.Decode(r.remaining())
	if err != nil {
		return err
	}
	r.pos += n
	return nil
}

// integer reads an integer of the given kind. The bits of signed kinds are
// returned as two's complement. 32-bit kinds are range checked.
func (r *reader) integer(kind Kind, nullable bool) (u uint64, null bool, err error) {
	data := r.remaining()
	var n int
	if kind.IsSigned() {
		var x int64
		if nullable {
			x, null, n, err = wire.DecodeNullableInt(data)
		} else {
			x, n, err = wire.DecodeInt(data)
		}
		if err == nil && !null && (kind == KindInt32 || kind == KindInt32Vector) && !wire.FitsInt32(x) {
			err = ErrIntegerOverflow
		}
		u = uint64(x)
	} else {
		if nullable {
			u, null, n, err = wire.DecodeNullableUint(data)
		} else {
			u, n, err = wire.DecodeUint(data)
		}
		if err == nil && !null && kind != KindInt64 && kind != KindUInt64 && kind != KindUInt64Vector && !wire.FitsUint32(u) {
			err = ErrIntegerOverflow
		}
	}
	if err != nil {
		return 0, false, err
	}
	r.pos += n
	return u, null, nil
}

// signed reads a signed 64-bit integer, used for deltas and mantissas.
func (r *reader) signed(nullable bool) (int64, bool, error) {
	u, null, err := r.integer(KindInt64, nullable)
	return int64(u), null, err
}

// exponent reads a decimal exponent and checks its range.
func (r *reader) exponent(nullable bool) (int8, bool, error) {
	x, null, err := r.signed(nullable)
	if err != nil || null {
		return 0, null, err
	}
	if x < MinExponent || x > MaxExponent {
		return 0, false, ErrDecimalExponent
	}
	return int8(x), false, nil
}

// ascii reads a stop-bit encoded string. The returned raw bytes alias the
// input; the characters are raw[start:] with the stop bit cleared on the
// last byte.
func (r *reader) ascii(nullable bool) (raw []byte, start int, null bool, err error) {
	raw, err = wire.ScanASCII(r.remaining())
	if err != nil {
		return nil, 0, false, err
	}
	start, null = wire.ASCIIStart(raw, nullable)
	if max := r.opts.Limits.MaxStringLength; max > 0 && len(raw)-start > max {
		return nil, 0, false, ErrMaxLengthExceeded
	}
	r.pos += len(raw)
	return raw, start, null, nil
}

// bytes reads a length-prefixed byte vector. The result aliases the input.
func (r *reader) bytes(kind Kind, nullable bool) ([]byte, bool, error) {
	b, null, n, err := wire.DecodeBytes(r.remaining(), nullable)
	if err != nil {
		return nil, false, err
	}
	max := r.opts.Limits.MaxBytesLength
	if kind == KindUnicodeString {
		max = r.opts.Limits.MaxStringLength
	}
	if max > 0 && len(b) > max {
		return nil, false, ErrMaxLengthExceeded
	}
	r.pos += n
	return b, null, nil
}

// length reads a sequence or vector length and checks the limit.
func (r *reader) length(nullable bool) (int, bool, error) {
	u, null, err := r.integer(KindUInt32, nullable)
	if err != nil || null {
		return 0, null, err
	}
	if max := r.opts.Limits.MaxSequenceLength; max > 0 && u > uint64(max) {
		return 0, false, ErrMaxLengthExceeded
	}
	return int(u), false, nil
}
