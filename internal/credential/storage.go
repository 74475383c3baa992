package credential

import (
	"context"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Storage is the persistence backend for credential records. The manager
// is the exclusive writer; implementations serialize writes per id and
// allow concurrent reads.
//
// Retrieve returns a CREDENTIAL_NOT_FOUND error for absent ids. Delete is
// idempotent: removing an absent id succeeds.
type Storage interface {
	Store(ctx context.Context, rec *Record) error
	Retrieve(ctx context.Context, id types.CredentialID) (*Record, error)
	Delete(ctx context.Context, id types.CredentialID) error
	List(ctx context.Context) ([]types.CredentialID, error)
	Exists(ctx context.Context, id types.CredentialID) (bool, error)
}

// Filter narrows List results by metadata. Zero-value fields do not
// constrain. Tags are conjunctive: a record matches only if it carries
// every requested tag.
type Filter struct {
	Tags          []string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// IsZero reports whether the filter constrains anything.
func (f *Filter) IsZero() bool {
	return f == nil || (len(f.Tags) == 0 && f.CreatedAfter == nil && f.CreatedBefore == nil)
}

// Matches reports whether metadata satisfies the filter.
func (f *Filter) Matches(meta Metadata) bool {
	if f.IsZero() {
		return true
	}
	for _, want := range f.Tags {
		found := false
		for _, have := range meta.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedAfter != nil && !meta.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !meta.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

func notFound(id types.CredentialID) error {
	return types.NewErrorf(types.CREDENTIAL_NOT_FOUND, "credential %s not found", id)
}
