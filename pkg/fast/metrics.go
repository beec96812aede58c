package fast

import (
	"context"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/blockberries/fast"

// metrics holds the instruments of one Decoder or Encoder.
type metrics struct {
	messages metric.Int64Counter
	bytes    metric.Int64Counter
	errors   metric.Int64Counter
}

// newMetrics creates the fast.<op>.* counters. Instruments that cannot be
// created are replaced by no-ops and the failure is logged.
func newMetrics(mp metric.MeterProvider, op string, log logr.Logger) *metrics {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(
			"fast."+op+"."+name,
			metric.WithDescription(desc),
			metric.WithUnit(unit),
		)
		if err != nil {
			log.Error(err, "creating counter", "name", name)
			return noop.Int64Counter{}
		}
		return c
	}
	return &metrics{
		messages: counter("messages", "Number of messages processed", "{message}"),
		bytes:    counter("bytes", "Number of bytes processed", "By"),
		errors:   counter("errors", "Number of messages that failed", "{message}"),
	}
}

// record counts one message of the named template.
func (m *metrics) record(template string, n int, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("template", template))
	if err != nil {
		m.errors.Add(ctx, 1, attrs)
		return
	}
	m.messages.Add(ctx, 1, attrs)
	m.bytes.Add(ctx, int64(n), attrs)
}
