package credential

import (
	"sync"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// tokenCache holds short-lived access tokens keyed by credential id.
// Long-lived refresh material never enters the cache; it stays inside
// encrypted envelopes.
type tokenCache struct {
	mu     sync.RWMutex
	tokens map[types.CredentialID]*AccessToken
}

func newTokenCache() *tokenCache {
	return &tokenCache{tokens: make(map[types.CredentialID]*AccessToken)}
}

// get returns a cached token unless it expires within the freshness
// window of now.
func (c *tokenCache) get(id types.CredentialID, now time.Time) (*AccessToken, bool) {
	c.mu.RLock()
	tok, ok := c.tokens[id]
	c.mu.RUnlock()
	if !ok || tok.Expired(now) {
		return nil, false
	}
	return tok, true
}

func (c *tokenCache) put(id types.CredentialID, tok *AccessToken) {
	c.mu.Lock()
	c.tokens[id] = tok
	c.mu.Unlock()
}

func (c *tokenCache) invalidate(id types.CredentialID) {
	c.mu.Lock()
	delete(c.tokens, id)
	c.mu.Unlock()
}
