package fast

import (
	"sync"
	"testing"
)

// TestConcurrentCodecs runs independent encoder and decoder pairs over one
// shared Templates.
func TestConcurrentCodecs(t *testing.T) {
	const goroutines = 16
	const iterations = 200

	tmpl := NewTemplate(1, "Tick",
		NewField(KindUInt64, "seq", Mandatory, OpIncrement),
		NewField(KindASCIIString, "sym", Mandatory, OpCopy),
		NewDecimalField("px", Mandatory, OpDelta),
	)
	set := mustTemplates(t, tmpl)
	alloc := NewPoolAllocator()

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			opts := DefaultOptions
			opts.Allocator = alloc
			enc := NewEncoderWithOptions(set, opts)
			dec := NewDecoderWithOptions(set, opts)
			msg := NewMessageWithAllocator(tmpl, alloc)
			buf := make([]byte, 64)
			for i := 0; i < iterations; i++ {
				if err := msg.Mutable(0).SetUint64(uint64(i)); err != nil {
					errs <- err
					return
				}
				if err := msg.Mutable(1).SetString([]string{"AAPL", "MSFT", "GOOG"}[(id+i/10)%3]); err != nil {
					errs <- err
					return
				}
				if err := msg.Mutable(2).SetDecimal(NewDecimal(int64(10000+id*7+i), -2)); err != nil {
					errs <- err
					return
				}
				n, err := enc.Encode(buf, msg, false)
				if err != nil {
					errs <- err
					return
				}
				out, _, err := dec.Decode(buf[:n], false)
				if err != nil {
					errs <- err
					return
				}
				if out.Field(0).Uint64() != uint64(i) ||
					string(out.Field(1).Bytes()) != string(msg.Field(1).Bytes()) ||
					out.Field(2).Decimal() != msg.Field(2).Decimal() {
					t.Errorf("goroutine %d message %d: got %s %s %s", id, i,
						out.Field(0), out.Field(1), out.Field(2))
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("codec error: %v", err)
	}
}
