package veil

import (
	"crypto/rand"
	"sync/atomic"
)

// DefaultAlphabet is the 62-character alphanumeric symbol set used when
// no custom alphabet is configured.
const DefaultAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890"

// DefaultMinLength is the minimum token length used when no custom
// minimum is configured. Shorter natural encodings are padded
// deterministically with alphabet-derived characters.
const DefaultMinLength = 8

const saltLength = 32

// Options configures an Obfuscator.
//
// The zero value is not usable directly; leave fields empty to inherit
// defaults (an empty Alphabet means DefaultAlphabet, an empty Salt
// means no salt). DefaultOptions returns a fully populated value with
// a freshly generated random salt.
type Options struct {
	// Salt seeds the alphabet permutation. Two obfuscators with
	// different salts produce different tokens for the same input.
	Salt string

	// MinLength is the minimum output token length. Must be >= 0.
	MinLength int

	// Alphabet is the symbol set for output tokens. Must contain at
	// least 16 unique characters and no spaces.
	Alphabet string
}

// DefaultOptions returns Options with a random 32-character
// alphanumeric salt, DefaultMinLength, and DefaultAlphabet.
func DefaultOptions() Options {
	return Options{
		Salt:      generateSalt(),
		MinLength: DefaultMinLength,
		Alphabet:  DefaultAlphabet,
	}
}

// Option mutates Options during Configure.
type Option func(*Options)

// WithSalt sets the salt for the process-wide obfuscator.
func WithSalt(salt string) Option {
	return func(o *Options) { o.Salt = salt }
}

// WithMinLength sets the minimum token length for the process-wide
// obfuscator.
func WithMinLength(n int) Option {
	return func(o *Options) { o.MinLength = n }
}

// WithAlphabet sets the token alphabet for the process-wide obfuscator.
func WithAlphabet(alphabet string) Option {
	return func(o *Options) { o.Alphabet = alphabet }
}

// global holds the process-wide obfuscator. Nil until the first
// successful Configure or the first lazy read. Installed exactly once
// by compare-and-swap: Unconfigured -> Configured, no further
// transitions.
var global atomic.Pointer[Obfuscator]

// Configure builds the process-wide obfuscator from defaults plus the
// given options and commits it. The first successful call wins; later
// calls (and calls after the first lazy default use) are silently
// ignored. Invalid options return an error wrapping ErrInvalidOptions
// and leave the process-wide state untouched.
func Configure(opts ...Option) error {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	obf, err := New(o)
	if err != nil {
		return err
	}
	global.CompareAndSwap(nil, obf)
	return nil
}

// Default returns the process-wide obfuscator, installing one built
// from DefaultOptions on first use. Concurrent first-time callers
// converge on a single instance.
func Default() *Obfuscator {
	if obf := global.Load(); obf != nil {
		return obf
	}
	obf, err := New(DefaultOptions())
	if err != nil {
		// DefaultOptions always satisfies validation.
		panic("veil: default options rejected: " + err.Error())
	}
	if global.CompareAndSwap(nil, obf) {
		return obf
	}
	return global.Load()
}

// Encode encodes values with the process-wide obfuscator.
func Encode(values []uint64) string {
	return Default().Encode(values)
}

// Decode decodes text with the process-wide obfuscator.
func Decode(text string) ([]uint64, error) {
	return Default().Decode(text)
}

// EncodeSingle encodes one value with the process-wide obfuscator.
func EncodeSingle(value uint64) string {
	return Default().EncodeSingle(value)
}

// DecodeSingle decodes one value with the process-wide obfuscator.
func DecodeSingle(text string) (uint64, error) {
	return Default().DecodeSingle(text)
}

// generateSalt returns a random 32-character alphanumeric string.
func generateSalt() string {
	buf := make([]byte, saltLength)
	if _, err := rand.Read(buf); err != nil {
		panic("veil: crypto/rand unavailable: " + err.Error())
	}
	out := make([]byte, saltLength)
	for i, b := range buf {
		out[i] = DefaultAlphabet[int(b)%len(DefaultAlphabet)]
	}
	return string(out)
}
