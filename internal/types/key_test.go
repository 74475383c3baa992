package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Key
	}{
		{name: "simple", input: "slack", want: "slack"},
		{name: "uppercase is lowered", input: "Slack", want: "slack"},
		{name: "surrounding whitespace trimmed", input: "  http request  ", want: "http_request"},
		{name: "hyphens become underscores", input: "http-request", want: "http_request"},
		{name: "consecutive separators collapse", input: "http -- request", want: "http_request"},
		{name: "leading and trailing underscores stripped", input: "__client_id__", want: "client_id"},
		{name: "tabs and newlines", input: "api\tkey\n", want: "api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewKey(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestNewKeyErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrKeyEmpty},
		{name: "only separators", input: " -_- ", wantErr: ErrKeyEmpty},
		{name: "digits rejected", input: "oauth2", wantErr: ErrKeyInvalidCharacters},
		{name: "unicode rejected", input: "café", wantErr: ErrKeyInvalidCharacters},
		{name: "too long", input: strings.Repeat("a", MaxKeyLength+1), wantErr: ErrKeyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKey(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeKeyIdempotent(t *testing.T) {
	inputs := []string{
		"Slack Channel",
		"http--request",
		"  A - B  ",
		"already_normalized",
		"",
	}

	for _, input := range inputs {
		once := NormalizeKey(input)
		twice := NormalizeKey(once)
		assert.Equal(t, once, twice, "normalization must be idempotent for %q", input)
	}
}

func TestKeyBoundaryLength(t *testing.T) {
	k, err := NewKey(strings.Repeat("a", MaxKeyLength))
	require.NoError(t, err)
	assert.Len(t, k.String(), MaxKeyLength)
}

func TestMustKeyPanics(t *testing.T) {
	assert.Panics(t, func() { MustKey("") })
	assert.NotPanics(t, func() { MustKey("valid_key") })
}
