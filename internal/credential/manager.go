package credential

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanyastaff/nebula-sub011/internal/crypto"
	"github.com/vanyastaff/nebula-sub011/internal/parameter"
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

const defaultBatchLimit = 8

// Manager is the single owner of credential storage. It encrypts secret
// material into envelopes, caches access tokens and coordinates refresh
// so each credential is refreshed by at most one caller at a time.
type Manager struct {
	storage   Storage
	enc       crypto.Encryptor
	masterKey []byte
	cache     *tokenCache
	lock      RefreshLock
	logger    *slog.Logger

	mu        sync.RWMutex
	factories map[types.Key]Factory

	batchLimit int
	now        func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithRefreshLock replaces the in-process refresh lock, typically with a
// RedisRefreshLock when several managers share a backend.
func WithRefreshLock(lock RefreshLock) ManagerOption {
	return func(m *Manager) { m.lock = lock }
}

// WithEncryptor overrides the envelope encryptor.
func WithEncryptor(enc crypto.Encryptor) ManagerOption {
	return func(m *Manager) { m.enc = enc }
}

// WithBatchLimit caps the parallelism of batch operations.
func WithBatchLimit(limit int) ManagerOption {
	return func(m *Manager) {
		if limit > 0 {
			m.batchLimit = limit
		}
	}
}

// NewManager builds a Manager over the given storage backend and master
// key.
func NewManager(storage Storage, masterKey []byte, opts ...ManagerOption) (*Manager, error) {
	if storage == nil {
		return nil, types.NewError(types.INVALID_INPUT, "credential manager requires a storage backend")
	}
	if len(masterKey) == 0 {
		return nil, types.NewError(types.CRYPTO_KEY_NOT_FOUND, "credential manager requires a master key")
	}
	m := &Manager{
		storage:    storage,
		enc:        crypto.NewAESGCM(),
		masterKey:  masterKey,
		cache:      newTokenCache(),
		lock:       NewLocalRefreshLock(),
		logger:     slog.Default(),
		factories:  make(map[types.Key]Factory),
		batchLimit: defaultBatchLimit,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RegisterFactory adds a credential type factory. Registering the same
// type twice fails.
func (m *Manager) RegisterFactory(f Factory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.factories[f.Type()]; dup {
		return types.NewErrorf(types.ALREADY_EXISTS, "credential factory %q already registered", f.Type())
	}
	m.factories[f.Type()] = f
	return nil
}

func (m *Manager) factory(kind types.Key) (Factory, bool) {
	m.mu.RLock()
	f, ok := m.factories[kind]
	m.mu.RUnlock()
	return f, ok
}

// Seal encrypts plaintext secret material into an envelope under the
// manager's master key.
func (m *Manager) Seal(plaintext []byte) (*crypto.Envelope, error) {
	return m.enc.Encrypt(plaintext, m.masterKey)
}

// Open decrypts an envelope sealed by this manager.
func (m *Manager) Open(env *crypto.Envelope) ([]byte, error) {
	return m.enc.Decrypt(env, m.masterKey)
}

// Store writes a credential, overwriting any prior value. The token
// cache entry for the id is invalidated since the stored state changed.
func (m *Manager) Store(ctx context.Context, id types.CredentialID, env *crypto.Envelope, meta Metadata) error {
	if id.IsZero() {
		return types.NewError(types.INVALID_INPUT, "credential id is required")
	}
	if env == nil {
		return types.NewError(types.INVALID_INPUT, "credential envelope is required")
	}
	now := m.now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	if err := m.storage.Store(ctx, &Record{ID: id, Envelope: env, Metadata: meta}); err != nil {
		return err
	}
	m.cache.invalidate(id)
	m.logger.Debug("credential stored", "credential_id", id, "type", meta.Type)
	return nil
}

// StoreValidated validates user-supplied values against the credential
// description's schema before any storage mutation. On schema violations
// the returned error aggregates every offending field and nothing is
// written.
func (m *Manager) StoreValidated(ctx context.Context, id types.CredentialID, desc Description, values parameter.Values, env *crypto.Envelope, meta Metadata) error {
	if desc.Properties != nil {
		if err := desc.Properties.Validate(values); err != nil {
			return types.WrapError(types.SCHEMA_VALIDATION,
				"credential values rejected by schema for type "+string(desc.PluginKey), err)
		}
	}
	if meta.Type == "" {
		meta.Type = desc.PluginKey
	}
	return m.Store(ctx, id, env, meta)
}

// Retrieve returns the stored record, or a CREDENTIAL_NOT_FOUND error.
func (m *Manager) Retrieve(ctx context.Context, id types.CredentialID) (*Record, error) {
	return m.storage.Retrieve(ctx, id)
}

// Delete removes a credential and its cached token. Deleting an absent
// credential succeeds.
func (m *Manager) Delete(ctx context.Context, id types.CredentialID) error {
	if err := m.storage.Delete(ctx, id); err != nil {
		return err
	}
	m.cache.invalidate(id)
	return nil
}

// Exists reports whether a credential is stored.
func (m *Manager) Exists(ctx context.Context, id types.CredentialID) (bool, error) {
	return m.storage.Exists(ctx, id)
}

// List returns credential ids matching the filter. A nil or zero filter
// returns everything without touching record metadata.
func (m *Manager) List(ctx context.Context, filter *Filter) ([]types.CredentialID, error) {
	ids, err := m.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	if filter.IsZero() {
		return ids, nil
	}

	matched := make([]types.CredentialID, 0, len(ids))
	for _, id := range ids {
		rec, err := m.storage.Retrieve(ctx, id)
		if err != nil {
			if types.CodeOf(err) == types.CREDENTIAL_NOT_FOUND {
				continue // deleted between List and Retrieve
			}
			return nil, err
		}
		if filter.Matches(rec.Metadata) {
			matched = append(matched, id)
		}
	}
	return matched, nil
}

// GetToken returns a fresh access token for the credential, refreshing
// through the registered factory when the cached token is missing or
// within the freshness window of expiry. Concurrent callers for the same
// id are serialized by the refresh lock and all but one reuse the
// refreshed token.
func (m *Manager) GetToken(ctx context.Context, id types.CredentialID) (*AccessToken, error) {
	if tok, ok := m.cache.get(id, m.now()); ok {
		return tok, nil
	}

	unlock, err := m.lock.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if uerr := unlock.Unlock(context.WithoutCancel(ctx)); uerr != nil {
			m.logger.Warn("refresh lock release failed", "credential_id", id, "error", uerr)
		}
	}()

	// Another waiter may have refreshed while we queued for the lock.
	if tok, ok := m.cache.get(id, m.now()); ok {
		return tok, nil
	}

	rec, err := m.storage.Retrieve(ctx, id)
	if err != nil {
		return nil, err
	}
	factory, ok := m.factory(rec.Metadata.Type)
	if !ok {
		return nil, types.NewErrorf(types.REFRESH_FAILED, "no factory registered for credential type %q", rec.Metadata.Type)
	}

	plaintext, err := m.Open(rec.Envelope)
	if err != nil {
		return nil, types.WrapError(types.REFRESH_FAILED, "decrypting credential state", err)
	}

	tok, err := factory.Refresh(ctx, id, plaintext)
	if err != nil {
		return nil, types.WrapError(types.REFRESH_FAILED, "credential factory refresh", err)
	}
	m.cache.put(id, tok)
	m.logger.Debug("credential token refreshed", "credential_id", id, "type", rec.Metadata.Type)
	return tok, nil
}

// StoreRequest is one item of a StoreBatch call.
type StoreRequest struct {
	Envelope *crypto.Envelope
	Metadata Metadata
}

// RetrieveResult is one item of a RetrieveBatch result.
type RetrieveResult struct {
	Record *Record
	Err    error
}

// StoreBatch stores all requests in parallel. Per-item failures do not
// abort the batch; the result maps each id to its outcome.
func (m *Manager) StoreBatch(ctx context.Context, reqs map[types.CredentialID]StoreRequest) map[types.CredentialID]error {
	results := make(map[types.CredentialID]error, len(reqs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.batchLimit)
	for id, req := range reqs {
		id, req := id, req
		g.Go(func() error {
			err := m.Store(ctx, id, req.Envelope, req.Metadata)
			mu.Lock()
			results[id] = err
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// RetrieveBatch loads all ids in parallel.
func (m *Manager) RetrieveBatch(ctx context.Context, ids []types.CredentialID) map[types.CredentialID]RetrieveResult {
	results := make(map[types.CredentialID]RetrieveResult, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.batchLimit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			rec, err := m.Retrieve(ctx, id)
			mu.Lock()
			results[id] = RetrieveResult{Record: rec, Err: err}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// DeleteBatch deletes all ids in parallel.
func (m *Manager) DeleteBatch(ctx context.Context, ids []types.CredentialID) map[types.CredentialID]error {
	results := make(map[types.CredentialID]error, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.batchLimit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := m.Delete(ctx, id)
			mu.Lock()
			results[id] = err
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}
