// Package veil provides reversible obfuscation of numeric identifiers
// at the serialization boundary.
//
// Internal integer IDs often must not appear verbatim in a public wire
// format, yet must remain deterministically decodable by any party that
// shares the same configuration. veil maps non-negative integers to
// short, opaque, alphabet-constrained tokens and back, without a lookup
// table, and attaches that transformation to struct fields via tags.
//
// # Tag Syntax
//
// Fields are marked with the veil tag:
//
//	veil:"id"
//
// Supported field shapes are unsigned integers, slices of unsigned
// integers, and pointers to either (pointers model optional fields):
//
//	type User struct {
//	    ID      uint64   `json:"id" veil:"id"`
//	    Name    string   `json:"name"`
//	    Roles   []uint32 `json:"roles" veil:"id"`
//	    Manager *uint64  `json:"manager" veil:"id"`
//	}
//
// Marking a field of any other type is a classification error reported
// when the processor is built, not at first use.
//
// # Basic Usage
//
//	veil.Configure(veil.WithSalt("my secret"), veil.WithMinLength(10))
//
//	proc, _ := veil.NewProcessor[User](json.New())
//
//	// {"id":"BgRNw2V5aQ","name":"Dan","roles":[...],"manager":null}
//	data, _ := proc.Marshal(ctx, &user)
//
//	// Tokens decode back to the original integers.
//	user, _ := proc.Unmarshal(ctx, data)
//
// On the wire a marked integer always renders as a string token, a
// marked slice as an array of string tokens, and a nil pointer as
// null/absent. Everything else, including renaming tags such as
// `json:"..."`, passes through untouched.
//
// # Configuration
//
// Configure commits the process-wide salt, minimum token length, and
// alphabet. The first successful call wins; later calls are no-ops.
// If Configure is never called, defaults (random salt, minimum length
// 8, 62-character alphanumeric alphabet) are installed on first use.
// An explicit Obfuscator can also be built with New and injected per
// processor via WithObfuscator.
//
// # Codec Providers
//
// The following Codec implementations are available as subpackages:
//
//   - json - JSON encoding (application/json)
//   - xml - XML encoding (application/xml)
//   - yaml - YAML encoding (application/yaml)
//   - msgpack - MessagePack encoding (application/msgpack)
//   - cbor - CBOR encoding (application/cbor)
//
// # Errors
//
// All failures unwrap to sentinel errors for programmatic handling:
// ErrUnsupportedType (classification), ErrDecode (malformed or
// tampered token), ErrArity (token decoded to the wrong number of
// values), ErrInvalidOptions, ErrMarshal, ErrUnmarshal. A malformed
// token never decodes to a plausible-looking wrong integer; it always
// fails loudly.
//
// veil is not a cryptographic hash: tokens deter casual inspection and
// enumeration, but offer no preimage resistance against an adversary
// who knows the salt.
package veil

// Codec provides content-type aware marshaling.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}
