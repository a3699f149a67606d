/*
Package directory resolves private handles to user profile records.

Handle uniqueness is enforced through a dedicated collection mapping the
canonical handle to the owning user id, separate from the profile record
itself. Lookup is strictly read-only.
*/
package directory

import (
	"context"
	"errors"
	"fmt"

	"veilchat/internal/app/store"
	"veilchat/internal/app/user"
)

// Collection is the document collection mapping canonical handles to user ids.
const Collection = "handles"

// Directory resolves handles against the document store.
type Directory struct {
	store store.Store
}

// New creates a Directory backed by the given store.
func New(s store.Store) *Directory {
	return &Directory{store: s}
}

// Lookup normalizes the given handle and resolves it to the owning user's
// profile record. An unregistered handle yields (nil, nil): absence is a valid
// result, not an error. Only transport or store failures return a non-nil error.
func (d *Directory) Lookup(ctx context.Context, rawHandle string) (*user.User, error) {
	handle := user.NormalizeHandle(rawHandle)
	if !user.ValidHandle(handle) {
		return nil, nil
	}

	entry, err := d.store.Get(ctx, Collection, handle)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: lookup %s: %w", handle, err)
	}

	userID := store.AsString(entry.Fields["userId"])

	profile, err := d.store.Get(ctx, user.Collection, userID)
	if errors.Is(err, store.ErrNotFound) {
		// Dangling handle entry; treat as unregistered rather than failing.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: fetch user %s: %w", userID, err)
	}

	return user.FromDocument(profile), nil
}

// Claim writes the handle -> userID mapping, failing if the handle is taken.
// It runs against whatever store view it is given, so the identity layer can
// call it inside a signup transaction.
func Claim(ctx context.Context, s store.Store, handle, userID string) error {
	err := s.Create(ctx, Collection, handle, store.Fields{
		"userId": userID,
	})
	if errors.Is(err, store.ErrExists) {
		return err
	}
	if err != nil {
		return fmt.Errorf("directory: claim %s: %w", handle, err)
	}
	return nil
}

// Release removes the handle mapping. Used only as signup compensation when
// the store offers no transaction primitive.
func Release(ctx context.Context, s store.Store, handle string) error {
	return s.Delete(ctx, Collection, handle)
}
