package types

import "log/slog"

// Secret wraps sensitive string material so that it cannot leak through
// logs, Stringer formatting or JSON serialization. All rendering paths
// produce the literal "***"; the plaintext is only reachable through an
// explicit Expose call at the point of use.
type Secret struct {
	value string
}

// NewSecret wraps plaintext secret material.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Expose returns the plaintext. Callers should keep the exposed value's
// lifetime as short as possible, ideally scoped to a single action
// invocation.
func (s Secret) Expose() string { return s.value }

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool { return s.value == "" }

// String implements fmt.Stringer and always redacts.
func (s Secret) String() string { return "***" }

// GoString implements fmt.GoStringer so %#v also redacts.
func (s Secret) GoString() string { return `types.Secret("***")` }

// MarshalJSON always serializes the redacted placeholder. Secrets cross
// process boundaries only inside encrypted envelopes, never as JSON.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"***"`), nil
}

// MarshalText mirrors MarshalJSON for text-based encoders.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("***"), nil
}

// LogValue implements slog.LogValuer so structured log output is redacted
// regardless of handler.
func (s Secret) LogValue() slog.Value { return slog.StringValue("***") }
