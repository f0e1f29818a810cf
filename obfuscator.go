package veil

import (
	"fmt"
	"math"
)

// sepChars are the default separator candidates, removed from the
// alphabet so no token reads as an accidental English word.
const sepChars = "cfhistuCFHISTU"

const (
	minAlphabetLength = 16
	sepDiv            = 3.5
	guardDiv          = 12.0
)

// Obfuscator maps sequences of unsigned integers to opaque
// alphabet-constrained tokens and back. The mapping is a bijective,
// salt-permuted positional numeral system compatible with the
// hashids.org reference scheme: for fixed Options, Decode(Encode(v))
// == v for every representable v, and distinct inputs never collide.
//
// Obfuscators are immutable and safe for concurrent use.
type Obfuscator struct {
	salt      []rune
	minLength int
	alphabet  []rune // shuffled working alphabet, seps and guards removed
	seps      []rune // separators between encoded numbers
	guards    []rune // padding anchors for short tokens
	charset   map[rune]bool // every rune a token may legally contain
}

// New builds an Obfuscator from opts. An empty Alphabet inherits
// DefaultAlphabet; the salt is used exactly as given (an empty salt is
// valid and yields an unpermuted, publicly predictable encoding).
// Returns an error wrapping ErrInvalidOptions for alphabets with
// duplicate characters, fewer than 16 unique characters, or spaces,
// and for a negative MinLength.
func New(opts Options) (*Obfuscator, error) {
	if opts.Alphabet == "" {
		opts.Alphabet = DefaultAlphabet
	}
	if opts.MinLength < 0 {
		return nil, fmt.Errorf("%w: minimum length must be non-negative, got %d", ErrInvalidOptions, opts.MinLength)
	}

	alphabet := []rune(opts.Alphabet)
	if len(alphabet) < minAlphabetLength {
		return nil, fmt.Errorf("%w: alphabet must contain at least %d characters", ErrInvalidOptions, minAlphabetLength)
	}
	seen := make(map[rune]bool, len(alphabet))
	for _, r := range alphabet {
		if r == ' ' {
			return nil, fmt.Errorf("%w: alphabet must not contain spaces", ErrInvalidOptions)
		}
		if seen[r] {
			return nil, fmt.Errorf("%w: duplicate character %q in alphabet", ErrInvalidOptions, r)
		}
		seen[r] = true
	}

	o := &Obfuscator{
		salt:      []rune(opts.Salt),
		minLength: opts.MinLength,
		charset:   seen,
	}

	// Carve separators out of the alphabet: keep only separator
	// candidates the alphabet actually contains.
	var seps []rune
	for _, s := range []rune(sepChars) {
		idx := runeIndex(alphabet, s)
		if idx < 0 {
			continue
		}
		seps = append(seps, s)
		alphabet = append(alphabet[:idx], alphabet[idx+1:]...)
	}
	seps = consistentShuffle(seps, o.salt)

	// Keep the alphabet/separator ratio bounded so tokens stay short.
	if len(seps) == 0 || float64(len(alphabet))/float64(len(seps)) > sepDiv {
		sepsLength := int(math.Ceil(float64(len(alphabet)) / sepDiv))
		if sepsLength == 1 {
			sepsLength = 2
		}
		if sepsLength > len(seps) {
			diff := sepsLength - len(seps)
			seps = append(seps, alphabet[:diff]...)
			alphabet = alphabet[diff:]
		} else {
			seps = seps[:sepsLength]
		}
	}

	alphabet = consistentShuffle(alphabet, o.salt)

	guardCount := int(math.Ceil(float64(len(alphabet)) / guardDiv))
	var guards []rune
	if len(alphabet) < 3 {
		guards = seps[:guardCount]
		seps = seps[guardCount:]
	} else {
		guards = alphabet[:guardCount]
		alphabet = alphabet[guardCount:]
	}

	o.alphabet = alphabet
	o.seps = seps
	o.guards = guards
	return o, nil
}

// Encode encodes a sequence of unsigned integers into a token. It
// never fails: every input, including the empty sequence, has a
// defined, deterministic, non-empty encoding of at least MinLength
// characters drawn from the configured alphabet.
func (o *Obfuscator) Encode(values []uint64) string {
	alphabet := duplicateRunes(o.alphabet)

	var valuesHash uint64
	for i, v := range values {
		valuesHash += v % uint64(i+100)
	}

	lottery := alphabet[valuesHash%uint64(len(alphabet))]
	result := []rune{lottery}

	buf := make([]rune, 0, len(alphabet)+len(o.salt)+1)
	for i, v := range values {
		buf = append(buf[:0], lottery)
		buf = append(buf, o.salt...)
		buf = append(buf, alphabet...)
		alphabet = consistentShuffle(alphabet, buf[:len(alphabet)])
		digits := toAlphabet(v, alphabet)
		result = append(result, digits...)

		if i+1 < len(values) {
			v %= uint64(digits[0]) + uint64(i)
			result = append(result, o.seps[v%uint64(len(o.seps))])
		}
	}

	if len(result) < o.minLength {
		guardIndex := (valuesHash + uint64(result[0])) % uint64(len(o.guards))
		result = append([]rune{o.guards[guardIndex]}, result...)

		if len(result) < o.minLength {
			// Reference indexes the third character; an empty input
			// sequence can leave fewer, so clamp.
			i := 2
			if i >= len(result) {
				i = len(result) - 1
			}
			guardIndex = (valuesHash + uint64(result[i])) % uint64(len(o.guards))
			result = append(result, o.guards[guardIndex])
		}
	}

	half := len(alphabet) / 2
	for len(result) < o.minLength {
		alphabet = consistentShuffle(alphabet, alphabet)
		padded := make([]rune, 0, len(alphabet)+len(result))
		padded = append(padded, alphabet[half:]...)
		padded = append(padded, result...)
		padded = append(padded, alphabet[:half]...)
		result = padded
		if excess := len(result) - o.minLength; excess > 0 {
			result = result[excess/2 : excess/2+o.minLength]
		}
	}

	return string(result)
}

// Decode recovers the integer sequence a token encodes. Decoding is
// strict: any character outside the configured alphabet, and any text
// that does not re-encode to the identical token (tampering, wrong
// salt, wrong alphabet), fails with a *DecodeError. There is no
// best-effort decode.
func (o *Obfuscator) Decode(text string) ([]uint64, error) {
	if text == "" {
		return nil, newDecodeError(text, "empty token")
	}
	runes := []rune(text)
	for _, r := range runes {
		if !o.charset[r] {
			return nil, newDecodeError(text, fmt.Sprintf("character %q outside alphabet", r))
		}
	}

	parts := splitRunes(runes, o.guards)
	i := 0
	if len(parts) == 2 || len(parts) == 3 {
		i = 1
	}
	breakdown := parts[i]

	values := []uint64{}
	if len(breakdown) > 0 {
		lottery := breakdown[0]
		segments := splitRunes(breakdown[1:], o.seps)
		if len(segments) == 1 && len(segments[0]) == 0 {
			segments = nil
		}

		alphabet := duplicateRunes(o.alphabet)
		buf := make([]rune, 0, len(alphabet)+len(o.salt)+1)
		for _, seg := range segments {
			buf = append(buf[:0], lottery)
			buf = append(buf, o.salt...)
			buf = append(buf, alphabet...)
			alphabet = consistentShuffle(alphabet, buf[:len(alphabet)])
			v, err := fromAlphabet(seg, alphabet)
			if err != nil {
				return nil, newDecodeError(text, err.Error())
			}
			values = append(values, v)
		}
	}

	// A decoded sequence must reproduce the exact input token,
	// otherwise the text was never produced by Encode under these
	// options.
	if o.Encode(values) != text {
		return nil, newDecodeError(text, "token does not round-trip")
	}

	return values, nil
}

// EncodeSingle encodes exactly one value.
func (o *Obfuscator) EncodeSingle(value uint64) string {
	return o.Encode([]uint64{value})
}

// DecodeSingle decodes a token that must contain exactly one value.
// Returns *DecodeError for malformed tokens and *ArityError when the
// token holds zero or several values.
func (o *Obfuscator) DecodeSingle(text string) (uint64, error) {
	values, err := o.Decode(text)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, &ArityError{Token: text, Count: len(values)}
	}
	return values[0], nil
}

// MinLength reports the configured minimum token length.
func (o *Obfuscator) MinLength() int {
	return o.minLength
}

// consistentShuffle permutes in using salt as the swap schedule. The
// result is a new slice; neither argument is modified, so shuffling a
// slice against itself reads the pre-shuffle order.
func consistentShuffle(in, salt []rune) []rune {
	if len(salt) == 0 {
		return in
	}
	out := duplicateRunes(in)
	for i, v, p := len(out)-1, 0, 0; i > 0; i, v = i-1, v+1 {
		v %= len(salt)
		n := int(salt[v])
		p += n
		j := (n + v + p) % i
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// toAlphabet renders v as big-endian digits over the given alphabet.
func toAlphabet(v uint64, alphabet []rune) []rune {
	base := uint64(len(alphabet))
	var digits []rune
	for {
		digits = append(digits, alphabet[v%base])
		v /= base
		if v == 0 {
			break
		}
	}
	for l, r := 0, len(digits)-1; l < r; l, r = l+1, r-1 {
		digits[l], digits[r] = digits[r], digits[l]
	}
	return digits
}

// fromAlphabet parses big-endian digits over the given alphabet.
func fromAlphabet(digits, alphabet []rune) (uint64, error) {
	base := uint64(len(alphabet))
	var v uint64
	for _, r := range digits {
		pos := runeIndex(alphabet, r)
		if pos < 0 {
			return 0, fmt.Errorf("character %q outside shuffled alphabet", r)
		}
		if v > (math.MaxUint64-uint64(pos))/base {
			return 0, fmt.Errorf("value overflows 64 bits")
		}
		v = v*base + uint64(pos)
	}
	return v, nil
}

// splitRunes splits input on any rune in seps, keeping empty segments.
func splitRunes(input, seps []rune) [][]rune {
	var out [][]rune
	start := 0
	for i, r := range input {
		if runeIndex(seps, r) >= 0 {
			out = append(out, input[start:i])
			start = i + 1
		}
	}
	out = append(out, input[start:])
	return out
}

func runeIndex(haystack []rune, needle rune) int {
	for i, r := range haystack {
		if r == needle {
			return i
		}
	}
	return -1
}

func duplicateRunes(in []rune) []rune {
	out := make([]rune, len(in))
	copy(out, in)
	return out
}
