package fast

import (
	"context"
	"strings"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collect returns the summed value of every counter, keyed by name and
// template attribute.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != meterName {
			t.Errorf("scope = %q, want %q", sm.Scope.Name, meterName)
		}
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: data %T, want an int64 sum", m.Name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				tmpl, _ := dp.Attributes.Value(attribute.Key("template"))
				out[m.Name+"/"+tmpl.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	tmpl := copyTemplate(1)
	set := mustTemplates(t, tmpl)
	reader := sdkmetric.NewManualReader()
	opts := DefaultOptions
	opts.MeterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	enc := NewEncoderWithOptions(set, opts)
	dec := NewDecoderWithOptions(set, opts)
	msg := NewMessage(tmpl)
	for i := 0; i < 3; i++ {
		must(t, msg.Mutable(i).SetUint64(uint64(i+1)))
	}
	first := encode(t, enc, msg, false)
	second := encode(t, enc, msg, false)
	if _, err := enc.Encode(make([]byte, 1), msg, true); err == nil {
		t.Fatal("Encode into a one-byte buffer succeeded")
	}

	for _, data := range [][]byte{first, second} {
		if _, _, err := dec.Decode(data, false); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := dec.Decode([]byte{0x00}, false); err == nil {
		t.Fatal("Decode of a truncated presence map succeeded")
	}

	want := map[string]int64{
		"fast.encode.messages/Copy": 2,
		"fast.encode.bytes/Copy":    int64(len(first) + len(second)),
		"fast.encode.errors/Copy":   1,
		"fast.decode.messages/Copy": 2,
		"fast.decode.bytes/Copy":    int64(len(first) + len(second)),
		"fast.decode.errors/":       1,
	}
	if diff := cmp.Diff(want, collect(t, reader)); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestLogging(t *testing.T) {
	var lines []string
	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 1})

	tmpl := copyTemplate(1)
	opts := DefaultOptions
	opts.Logger = logger
	dec := NewDecoderWithOptions(mustTemplates(t, tmpl), opts)

	if _, _, err := dec.Decode([]byte{0xc0, 0x81}, false); err != nil {
		t.Fatal(err)
	}
	if _, _, err := dec.Decode([]byte{0xc0, 0x85}, false); err == nil {
		t.Fatal("Decode of an unknown template id succeeded")
	}
	dec.Reset()

	for _, want := range []string{"template switch", "decode failed", "dictionary reset"} {
		found := false
		for _, line := range lines {
			if strings.HasPrefix(line, "decoder ") && strings.Contains(line, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no decoder log line containing %q in %q", want, lines)
		}
	}
}
