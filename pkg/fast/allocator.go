package fast

import "sync"

// Allocator provides the storage behind owned string and byte vector values.
//
// Grow returns a slice of length n whose first min(len(buf), n) bytes equal
// buf's. It may return buf itself when its capacity suffices. Free releases a
// buffer previously returned by Grow; the caller must not use it afterwards.
type Allocator interface {
	Grow(buf []byte, n int) []byte
	Free(buf []byte)
}

// HeapAllocator allocates from the Go heap and leaves reclamation to the
// garbage collector.
type HeapAllocator struct{}

// Grow implements Allocator.
func (HeapAllocator) Grow(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:n]
	}
	c := 2 * cap(buf)
	if c < n {
		c = n
	}
	nb := make([]byte, n, c)
	copy(nb, buf)
	return nb
}

// Free implements Allocator.
func (HeapAllocator) Free([]byte) {}

// Size classes of PoolAllocator: 16, 64, 256, 1024, 4096, 16384 and 65536
// bytes. Larger buffers come from the heap and are not pooled.
var poolSizes = [7]int{16, 64, 256, 1024, 4096, 16384, 65536}

// PoolAllocator recycles buffers through size-tiered sync.Pools so that
// steady-state decoding does not allocate. It is safe for concurrent use and
// may be shared by several decoders. The zero value is ready to use.
type PoolAllocator struct {
	pools [len(poolSizes)]sync.Pool
}

// NewPoolAllocator creates a PoolAllocator.
func NewPoolAllocator() *PoolAllocator {
	return &PoolAllocator{}
}

// poolIndex returns the smallest size class holding n bytes, or -1.
func poolIndex(n int) int {
	for i, size := range poolSizes {
		if n <= size {
			return i
		}
	}
	return -1
}

// Grow implements Allocator.
func (a *PoolAllocator) Grow(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:n]
	}
	var nb []byte
	if idx := poolIndex(n); idx >= 0 {
		if pooled, ok := a.pools[idx].Get().([]byte); ok {
			nb = pooled[:n]
		} else {
			nb = make([]byte, n, poolSizes[idx])
		}
	} else {
		nb = make([]byte, n)
	}
	copy(nb, buf)
	a.Free(buf)
	return nb
}

// Free implements Allocator. Only buffers whose capacity is exactly a size
// class are pooled.
func (a *PoolAllocator) Free(buf []byte) {
	c := cap(buf)
	if c == 0 {
		return
	}
	if idx := poolIndex(c); idx >= 0 && poolSizes[idx] == c {
		a.pools[idx].Put(buf[:0])
	}
}
