package veil

import "reflect"

// FieldCategory is the transformation rule assigned to a struct field.
// Categories are determined purely from the field's declared type,
// once per record type, and never re-evaluated per value.
type FieldCategory int

const (
	// Passthrough fields are forwarded to the host codec unchanged.
	// It is the implicit category of every unmarked field; Classify
	// never returns it.
	Passthrough FieldCategory = iota

	// Numeric is an unsigned integer of up to 64 bits.
	Numeric

	// SequenceOfNumeric is a slice of unsigned integers. Order and
	// count are preserved through encode/decode.
	SequenceOfNumeric

	// OptionalNumeric is a pointer to an unsigned integer; nil maps to
	// null/absent on the wire without invoking the codec.
	OptionalNumeric

	// OptionalSequenceOfNumeric is a pointer to a slice of unsigned
	// integers.
	OptionalSequenceOfNumeric
)

func (c FieldCategory) String() string {
	switch c {
	case Numeric:
		return "numeric"
	case SequenceOfNumeric:
		return "sequence of numeric"
	case OptionalNumeric:
		return "optional numeric"
	case OptionalSequenceOfNumeric:
		return "optional sequence of numeric"
	default:
		return "passthrough"
	}
}

// Classify determines the transformation category for a field marked
// for obfuscation. Supported shapes are the unsigned integer kinds
// (uint, uint8, uint16, uint32, uint64, including named types), slices
// of them, and pointers to either. Every other type returns a
// *ClassificationError.
//
// All widths are carried through the codec in the 64-bit domain; Go
// has no wider unsigned kind, so no value can be silently truncated on
// encode. Decoding a token into a narrower field checks for overflow.
func Classify(rt reflect.Type) (FieldCategory, error) {
	switch {
	case isUint(rt):
		return Numeric, nil
	case rt.Kind() == reflect.Slice && isUint(rt.Elem()):
		return SequenceOfNumeric, nil
	case rt.Kind() == reflect.Pointer && isUint(rt.Elem()):
		return OptionalNumeric, nil
	case rt.Kind() == reflect.Pointer &&
		rt.Elem().Kind() == reflect.Slice && isUint(rt.Elem().Elem()):
		return OptionalSequenceOfNumeric, nil
	default:
		return Passthrough, &ClassificationError{Type: rt.String()}
	}
}

// isUint reports whether the type's kind is an unsigned integer
// representable in 64 bits. uintptr is deliberately excluded: it
// identifies memory, not records.
func isUint(rt reflect.Type) bool {
	switch rt.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}
