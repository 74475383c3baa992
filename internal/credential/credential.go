// Package credential implements encrypted secret storage with pluggable
// backends, a short-lived access token cache and at-most-once refresh
// coordination across concurrent callers.
package credential

import (
	"context"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/crypto"
	"github.com/vanyastaff/nebula-sub011/internal/parameter"
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// FreshnessWindow is how close to expiry a cached token may get before it
// is treated as expired and refreshed.
const FreshnessWindow = 5 * time.Minute

// RotationPolicy describes how often stored secret material should be
// rotated. Enforcement is left to the operator; the manager only records
// the policy.
type RotationPolicy struct {
	Interval types.Duration `json:"interval"`
}

// Metadata is the unencrypted descriptive record stored alongside each
// credential envelope.
type Metadata struct {
	Type           types.Key       `json:"type"`
	Tags           []string        `json:"tags,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	RotationPolicy *RotationPolicy `json:"rotation_policy,omitempty"`
}

// Description declares a credential type: its plugin key, display strings
// and the parameter schema user-supplied values must satisfy.
type Description struct {
	PluginKey   types.Key
	Name        string
	Description string
	Properties  *parameter.Collection
}

// AccessToken is a short-lived token obtained by refreshing a credential.
// The secret itself is redacted in every serialization path.
type AccessToken struct {
	Secret    types.Secret      `json:"secret"`
	TokenType string            `json:"token_type"`
	IssuedAt  time.Time         `json:"issued_at"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Scopes    []string          `json:"scopes,omitempty"`
	Claims    map[string]string `json:"claims,omitempty"`
}

// Expired reports whether the token expires within the freshness window
// of now. Tokens without an expiry never expire.
func (t *AccessToken) Expired(now time.Time) bool {
	if t == nil {
		return true
	}
	if t.ExpiresAt == nil {
		return false
	}
	return !t.ExpiresAt.After(now.Add(FreshnessWindow))
}

// Record couples an encrypted envelope with its metadata as persisted by a
// storage provider.
type Record struct {
	ID       types.CredentialID `json:"id"`
	Envelope *crypto.Envelope   `json:"envelope"`
	Metadata Metadata           `json:"metadata"`
}

// Factory produces and refreshes tokens for one credential type. The
// plaintext passed to Refresh is the decrypted stored state, typically a
// long-lived refresh token or client secret.
type Factory interface {
	Type() types.Key
	Refresh(ctx context.Context, id types.CredentialID, plaintext []byte) (*AccessToken, error)
}
