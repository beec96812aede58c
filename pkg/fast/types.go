package fast

import (
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/metric"
)

// Limits defines resource limits for encoding/decoding.
type Limits struct {
	// MaxMessageSize is the maximum size of one encoded message in bytes.
	// A value of 0 means no limit.
	MaxMessageSize int

	// MaxDepth is the maximum nesting depth of groups, sequences and
	// template references. A value of 0 means no limit.
	MaxDepth int

	// MaxStringLength is the maximum length of an ascii or unicode string.
	// A value of 0 means no limit.
	MaxStringLength int

	// MaxBytesLength is the maximum length of a byte vector.
	// A value of 0 means no limit.
	MaxBytesLength int

	// MaxSequenceLength is the maximum number of elements in a sequence or
	// integer vector. A value of 0 means no limit.
	MaxSequenceLength int
}

// DefaultLimits are the default resource limits.
// These are generous limits suitable for most use cases.
var DefaultLimits = Limits{
	MaxMessageSize:    16 * 1024 * 1024, // 16 MB
	MaxDepth:          64,
	MaxStringLength:   1024 * 1024,      // 1 MB
	MaxBytesLength:    16 * 1024 * 1024, // 16 MB
	MaxSequenceLength: 1_000_000,
}

// SecureLimits are conservative limits for untrusted input.
var SecureLimits = Limits{
	MaxMessageSize:    64 * 1024, // 64 KB
	MaxDepth:          16,
	MaxStringLength:   4096,
	MaxBytesLength:    64 * 1024,
	MaxSequenceLength: 10_000,
}

// NoLimits disables all resource limits.
// Use with caution - only for trusted input.
var NoLimits = Limits{}

// Options configures a Decoder or Encoder.
type Options struct {
	// Limits specifies resource limits.
	Limits Limits

	// ValidateUTF8 validates that unicode strings are valid UTF-8.
	ValidateUTF8 bool

	// ZeroCopy lets decoded byte vectors and unicode strings that come
	// straight from the stream reference the input instead of being copied.
	// Such values are only valid while the input buffer is unchanged.
	ZeroCopy bool

	// Overlong keeps presence maps at their full reserved size instead of
	// dropping trailing all-zero bytes.
	Overlong bool

	// Allocator provides storage for variable-length values.
	// If nil, HeapAllocator is used.
	Allocator Allocator

	// Logger receives debug logs. The zero value discards them.
	Logger logr.Logger

	// MeterProvider for metrics. If nil, metrics are not recorded.
	MeterProvider metric.MeterProvider
}

// DefaultOptions are the default encoding/decoding options.
var DefaultOptions = Options{
	Limits:       DefaultLimits,
	ValidateUTF8: true,
}

// SecureOptions are conservative options for untrusted input.
var SecureOptions = Options{
	Limits:       SecureLimits,
	ValidateUTF8: true,
}

// FastOptions prioritize throughput over validation.
// Use when decoding output from a trusted encoder.
var FastOptions = Options{
	Limits:   DefaultLimits,
	ZeroCopy: true,
}

func (o *Options) allocator() Allocator {
	if o.Allocator == nil {
		return HeapAllocator{}
	}
	return o.Allocator
}

func (o *Options) logger() logr.Logger {
	if o.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return o.Logger
}
