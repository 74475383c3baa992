package types

import (
	"fmt"
	"strings"
)

// MaxKeyLength is the maximum length of a normalized key in bytes.
const MaxKeyLength = 64

// Key is a normalized string identifier used for plugins, nodes, parameters,
// credentials, workflows and actions. Input is trimmed, lowercased,
// whitespace and hyphens are collapsed to underscores, runs of underscores
// are collapsed, and leading/trailing underscores are stripped. The result
// must be non-empty, contain only lowercase ASCII letters and underscores,
// and be at most MaxKeyLength characters.
//
// Keys are plain value types: comparable, usable as map keys, and ordered by
// their normalized string form.
type Key string

// Key construction errors. Matched with errors.Is.
var (
	ErrKeyEmpty             = NewError(KEY_EMPTY, "key is empty after normalization")
	ErrKeyInvalidCharacters = NewError(KEY_INVALID_CHARACTERS, "key contains invalid characters")
	ErrKeyTooLong           = NewError(KEY_TOO_LONG, fmt.Sprintf("key exceeds %d characters", MaxKeyLength))
)

// NewKey normalizes the input and returns it as a Key.
// Returns ErrKeyEmpty, ErrKeyInvalidCharacters or ErrKeyTooLong when the
// input cannot be normalized into a valid key.
func NewKey(input string) (Key, error) {
	normalized := NormalizeKey(input)
	if normalized == "" {
		return "", ErrKeyEmpty
	}
	if len(normalized) > MaxKeyLength {
		return "", ErrKeyTooLong
	}
	for _, r := range normalized {
		if !isKeyRune(r) {
			return "", ErrKeyInvalidCharacters
		}
	}
	return Key(normalized), nil
}

// MustKey is like NewKey but panics on invalid input.
// Intended for compile-time constant keys in tests and builtin registrations.
func MustKey(input string) Key {
	k, err := NewKey(input)
	if err != nil {
		panic(fmt.Sprintf("invalid key %q: %v", input, err))
	}
	return k
}

// NormalizeKey applies the key normalization rules without validating the
// result. Normalization is idempotent: NormalizeKey(NormalizeKey(s)) ==
// NormalizeKey(s) for all s.
func NormalizeKey(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || isSpaceRune(r):
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}

	return strings.Trim(b.String(), "_")
}

// Valid reports whether the key already satisfies all key invariants.
func (k Key) Valid() bool {
	parsed, err := NewKey(string(k))
	return err == nil && parsed == k
}

func (k Key) String() string { return string(k) }

// IsZero reports whether the key is empty.
func (k Key) IsZero() bool { return k == "" }

func isKeyRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || r == '_'
}

func isSpaceRune(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
