package veil

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrInvalidOptions indicates an Options value that cannot produce a
	// well-defined codec (duplicate alphabet characters, alphabet too
	// short, negative minimum length).
	ErrInvalidOptions = errors.New("invalid options")

	// ErrUnsupportedType indicates a field marked for obfuscation has a
	// type outside the supported numeric shapes.
	ErrUnsupportedType = errors.New("unsupported field type")

	// ErrDecode indicates input text that is not a valid token under the
	// configured options.
	ErrDecode = errors.New("decode failed")

	// ErrArity indicates a token that decoded to an unexpected number of
	// values where exactly one was required.
	ErrArity = errors.New("unexpected value count")

	// ErrUnmarshal indicates the codec failed to unmarshal input data.
	ErrUnmarshal = errors.New("unmarshal failed")

	// ErrMarshal indicates the codec failed to marshal output data.
	ErrMarshal = errors.New("marshal failed")
)

// ClassificationError reports a field whose declared type cannot be
// obfuscated. It is raised when a processor is built, never at
// marshal/unmarshal time.
type ClassificationError struct {
	Field string // qualified field name (e.g. "Order.CustomerID")
	Type  string // offending type (e.g. "float64")
}

func (e *ClassificationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %q (field %s)", ErrUnsupportedType.Error(), e.Type, e.Field)
	}
	return fmt.Sprintf("%s %q", ErrUnsupportedType.Error(), e.Type)
}

func (e *ClassificationError) Unwrap() error {
	return ErrUnsupportedType
}

// DecodeError reports text that does not correspond to any valid
// encoding under the current options: a character outside the
// configured alphabet, or a token that fails strict round-trip
// verification (tampering, wrong salt, wrong alphabet).
type DecodeError struct {
	Token  string // offending input text
	Reason string // short human-readable cause
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s for %q: %s", ErrDecode.Error(), e.Token, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// ArityError reports a token that decoded successfully but yielded a
// number of values other than the exactly-one a scalar field requires.
type ArityError struct {
	Token string
	Count int // number of values actually decoded
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s for %q: got %d values, want 1", ErrArity.Error(), e.Token, e.Count)
}

func (e *ArityError) Unwrap() error {
	return ErrArity
}

// FieldError wraps a codec failure with the field it occurred on.
// It unwraps to the underlying error, so errors.Is(err, ErrDecode) and
// errors.Is(err, ErrArity) see through it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// CodecError represents a marshal/unmarshal error from the host codec.
// Structural errors reported by the codec (missing fields, duplicate
// fields) propagate unchanged as the Cause.
type CodecError struct {
	Err   error // ErrMarshal or ErrUnmarshal
	Cause error // original error from the codec
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Err.Error(), e.Cause)
	}
	return e.Err.Error()
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// newDecodeError creates a DecodeError for malformed input text.
func newDecodeError(token, reason string) error {
	return &DecodeError{Token: token, Reason: reason}
}

// newFieldError attaches a field name to a transform failure.
func newFieldError(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// newCodecError creates a CodecError for marshal/unmarshal failures.
func newCodecError(sentinel, cause error) error {
	return &CodecError{Err: sentinel, Cause: cause}
}
