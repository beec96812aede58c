// Package fast implements the FAST (FIX Adapted for STreaming) message codec.
package fast

import (
	"errors"
	"fmt"

	"github.com/blockberries/fast/internal/wire"
)

// Sentinel errors for common conditions.
// These can be checked using errors.Is().
var (
	// ErrPMapTruncated indicates a presence map whose stop bit was never found.
	ErrPMapTruncated = wire.ErrPMapTruncated

	// ErrVarintTruncated indicates the data ended inside a stop-bit encoded
	// integer or ascii string.
	ErrVarintTruncated = wire.ErrVarintTruncated

	// ErrUnexpectedEOF indicates a length-prefixed value runs past the data.
	ErrUnexpectedEOF = wire.ErrUnexpectedEOF

	// ErrIntegerOverflow indicates a decoded integer does not fit its field type.
	ErrIntegerOverflow = wire.ErrIntegerOverflow

	// ErrInvalidASCII indicates a character outside the 7-bit range.
	ErrInvalidASCII = wire.ErrInvalidASCII

	// ErrUnknownTemplateID indicates a template id that is not registered.
	ErrUnknownTemplateID = errors.New("fast: unknown template id")

	// ErrMandatoryFieldAbsent indicates a mandatory field has no value, either
	// because its operator derived an empty previous value or because the
	// message being encoded left it unset.
	ErrMandatoryFieldAbsent = errors.New("fast: mandatory field absent")

	// ErrBufferOverflow indicates the encoder ran out of destination space.
	ErrBufferOverflow = errors.New("fast: buffer overflow")

	// ErrInvalidInitialValue indicates an initial value that cannot be parsed
	// for the field type, or a missing initial value the operator requires.
	ErrInvalidInitialValue = errors.New("fast: invalid initial value")

	// ErrDecimalExponent indicates a decimal exponent outside [-63, 63].
	ErrDecimalExponent = errors.New("fast: decimal exponent out of range")

	// ErrInvalidUTF8 indicates a unicode string contains invalid UTF-8.
	ErrInvalidUTF8 = errors.New("fast: invalid UTF-8 string")

	// ErrTailShorten indicates a value that the tail operator cannot express
	// because it is shorter than the base value.
	ErrTailShorten = errors.New("fast: tail operator cannot shorten a value")

	// ErrConstantMismatch indicates a constant field set to a value other
	// than its constant.
	ErrConstantMismatch = errors.New("fast: value differs from constant")

	// ErrDeltaOutOfRange indicates a string delta subtraction length larger
	// than the base value.
	ErrDeltaOutOfRange = errors.New("fast: delta subtraction length out of range")

	// ErrOperatorNotApplicable indicates an operator used with a field type it
	// does not support.
	ErrOperatorNotApplicable = errors.New("fast: operator not applicable to field type")

	// ErrDictionaryTypeMismatch indicates two fields sharing a dictionary
	// entry with incompatible types.
	ErrDictionaryTypeMismatch = errors.New("fast: dictionary entry type mismatch")

	// ErrDuplicateTemplateID indicates a template id registered more than once.
	ErrDuplicateTemplateID = errors.New("fast: duplicate template id")

	// ErrInvalidTemplate indicates a malformed template definition.
	ErrInvalidTemplate = errors.New("fast: invalid template")

	// ErrMaxDepthExceeded indicates the maximum nesting depth was exceeded.
	ErrMaxDepthExceeded = errors.New("fast: maximum nesting depth exceeded")

	// ErrMaxSizeExceeded indicates the maximum message size was exceeded.
	ErrMaxSizeExceeded = errors.New("fast: maximum message size exceeded")

	// ErrMaxLengthExceeded indicates a string, byte vector or sequence longer
	// than the configured limit.
	ErrMaxLengthExceeded = errors.New("fast: maximum length exceeded")

	// ErrTypeMismatch indicates an accessor used on a field of another type.
	ErrTypeMismatch = errors.New("fast: type mismatch")
)

// DecodeError provides detailed context for decoding failures.
// It implements the error interface and supports error unwrapping.
type DecodeError struct {
	// Template is the name of the template being decoded (if known).
	Template string

	// Field is the name of the field being decoded (if applicable).
	Field string

	// Offset is the byte offset in the input where the error occurred.
	Offset int

	// Cause is the underlying error.
	Cause error
}

// Error returns a formatted error message.
func (e *DecodeError) Error() string {
	prefix := qualify(e.Template, e.Field)
	switch {
	case prefix != "" && e.Offset >= 0:
		return fmt.Sprintf("fast: decode %s at offset %d: %v", prefix, e.Offset, e.Cause)
	case prefix != "":
		return fmt.Sprintf("fast: decode %s: %v", prefix, e.Cause)
	case e.Offset >= 0:
		return fmt.Sprintf("fast: decode at offset %d: %v", e.Offset, e.Cause)
	}
	return fmt.Sprintf("fast: decode: %v", e.Cause)
}

// Unwrap returns the underlying cause of the error.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
// This supports errors.Is() for checking the cause.
func (e *DecodeError) Is(target error) bool {
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// EncodeError provides detailed context for encoding failures.
type EncodeError struct {
	// Template is the name of the template being encoded.
	Template string

	// Field is the name of the field being encoded (if applicable).
	Field string

	// Offset is the number of bytes written when the error occurred.
	Offset int

	// Cause is the underlying error.
	Cause error
}

// Error returns a formatted error message.
func (e *EncodeError) Error() string {
	if prefix := qualify(e.Template, e.Field); prefix != "" {
		return fmt.Sprintf("fast: encode %s at offset %d: %v", prefix, e.Offset, e.Cause)
	}
	return fmt.Sprintf("fast: encode at offset %d: %v", e.Offset, e.Cause)
}

// Unwrap returns the underlying cause of the error.
func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
func (e *EncodeError) Is(target error) bool {
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// TemplateError reports a template that failed to compile.
type TemplateError struct {
	// Template is the name of the template.
	Template string

	// ID is the template id.
	ID uint32

	// Field is the path of the offending instruction, if any.
	Field string

	// Cause is the underlying error.
	Cause error
}

// Error returns a formatted error message.
func (e *TemplateError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("fast: template %s (id=%d) field %s: %v", e.Template, e.ID, e.Field, e.Cause)
	}
	return fmt.Sprintf("fast: template %s (id=%d): %v", e.Template, e.ID, e.Cause)
}

// Unwrap returns the underlying cause of the error.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}

func qualify(template, field string) string {
	switch {
	case template != "" && field != "":
		return template + "." + field
	case template != "":
		return template
	}
	return field
}

// IsDynamic reports whether err is a dynamic error: one caused by the
// encoded data or the message contents rather than by the templates.
// Dynamic errors leave the dictionary in an unspecified state; callers
// should reset it before continuing.
func IsDynamic(err error) bool {
	var de *DecodeError
	var ee *EncodeError
	return errors.As(err, &de) || errors.As(err, &ee)
}

// IsStatic reports whether err was raised while compiling templates.
func IsStatic(err error) bool {
	var te *TemplateError
	return errors.As(err, &te)
}

// IsLimitExceeded returns true if the error indicates a configured limit was exceeded.
func IsLimitExceeded(err error) bool {
	switch {
	case errors.Is(err, ErrMaxDepthExceeded),
		errors.Is(err, ErrMaxSizeExceeded),
		errors.Is(err, ErrMaxLengthExceeded):
		return true
	default:
		return false
	}
}
