package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanyastaff/nebula-sub011/internal/crypto"
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

const credExtension = ".cred"

// FileStorage persists one file per credential under a root directory.
// Files are written 0600 and the root is created 0700; on platforms
// without POSIX permissions the modes are advisory.
type FileStorage struct {
	root string
}

// fileEnvelope is the on-disk container: the envelope fields flattened to
// the top level plus the metadata object.
type fileEnvelope struct {
	Version    uint16   `json:"version"`
	Salt       []byte   `json:"salt"`
	Nonce      []byte   `json:"nonce"`
	Ciphertext []byte   `json:"ciphertext"`
	Tag        []byte   `json:"tag"`
	Metadata   Metadata `json:"metadata"`
}

// NewFileStorage creates (if needed) the root directory and returns a
// file-backed Storage.
func NewFileStorage(root string) (*FileStorage, error) {
	if root == "" {
		return nil, types.NewError(types.INVALID_INPUT, "credential storage root is empty")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, types.WrapError(types.INTERNAL, "creating credential storage root", err)
	}
	// MkdirAll does not tighten an existing directory.
	if err := os.Chmod(root, 0o700); err != nil {
		return nil, types.WrapError(types.INTERNAL, "restricting credential storage root", err)
	}
	return &FileStorage{root: root}, nil
}

func (s *FileStorage) path(id types.CredentialID) string {
	return filepath.Join(s.root, id.String()+credExtension)
}

// Store writes the record atomically: serialize to a temp file, fsync by
// rename. Overwrites any prior value.
func (s *FileStorage) Store(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID.IsZero() {
		return types.NewError(types.INVALID_INPUT, "credential record requires an id")
	}
	if rec.Envelope == nil {
		return types.NewError(types.INVALID_INPUT, "credential record requires an envelope")
	}
	if err := ctx.Err(); err != nil {
		return types.WrapError(types.CANCELLED, "store aborted", err)
	}

	payload, err := json.Marshal(fileEnvelope{
		Version:    rec.Envelope.Version,
		Salt:       rec.Envelope.Salt,
		Nonce:      rec.Envelope.Nonce,
		Ciphertext: rec.Envelope.Ciphertext,
		Tag:        rec.Envelope.Tag,
		Metadata:   rec.Metadata,
	})
	if err != nil {
		return types.WrapError(types.SERIALIZATION_FAILED, "encoding credential envelope", err)
	}

	tmp := fmt.Sprintf("%s.tmp.%d", s.path(rec.ID), os.Getpid())
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return types.WrapError(types.INTERNAL, "writing credential file", err)
	}
	if err := os.Rename(tmp, s.path(rec.ID)); err != nil {
		os.Remove(tmp)
		return types.WrapError(types.INTERNAL, "committing credential file", err)
	}
	return nil
}

// Retrieve loads a record from disk.
func (s *FileStorage) Retrieve(ctx context.Context, id types.CredentialID) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.WrapError(types.CANCELLED, "retrieve aborted", err)
	}
	payload, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, types.WrapError(types.INTERNAL, "reading credential file", err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, types.WrapError(types.SERIALIZATION_FAILED, "decoding credential envelope", err)
	}
	return &Record{
		ID: id,
		Envelope: &crypto.Envelope{
			Version:    env.Version,
			Salt:       env.Salt,
			Nonce:      env.Nonce,
			Ciphertext: env.Ciphertext,
			Tag:        env.Tag,
		},
		Metadata: env.Metadata,
	}, nil
}

// Delete removes the credential file. A missing file is not an error.
func (s *FileStorage) Delete(ctx context.Context, id types.CredentialID) error {
	if err := ctx.Err(); err != nil {
		return types.WrapError(types.CANCELLED, "delete aborted", err)
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.WrapError(types.INTERNAL, "removing credential file", err)
	}
	return nil
}

// List scans the root for .cred files and parses their ids. Files with
// unparseable names are skipped.
func (s *FileStorage) List(ctx context.Context) ([]types.CredentialID, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.WrapError(types.CANCELLED, "list aborted", err)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, types.WrapError(types.INTERNAL, "scanning credential storage root", err)
	}

	var ids []types.CredentialID
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), credExtension) {
			continue
		}
		raw := strings.TrimSuffix(entry.Name(), credExtension)
		id, err := types.ParseCredentialID(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Exists reports whether the credential file is present.
func (s *FileStorage) Exists(ctx context.Context, id types.CredentialID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, types.WrapError(types.CANCELLED, "exists aborted", err)
	}
	_, err := os.Stat(s.path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, types.WrapError(types.INTERNAL, "checking credential file", err)
}
