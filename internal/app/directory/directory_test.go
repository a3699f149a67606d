package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilchat/internal/app/store"
	"veilchat/internal/app/user"
)

func seedUser(t *testing.T, s store.Store, id, handle, name string) {
	t.Helper()
	u := &user.User{ID: id, Handle: handle, Name: name}
	require.NoError(t, s.Put(context.Background(), user.Collection, id, u.Fields()))
}

// TestDirectory_LookupResolvesHandle verifies a claimed handle resolves to
// the owning profile, case-insensitively.
func TestDirectory_LookupResolvesHandle(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	seedUser(t, s, "u1", "@ghost", "Ghost")
	require.NoError(t, Claim(ctx, s, "@ghost", "u1"))

	d := New(s)

	found, err := d.Lookup(ctx, "@ghost")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.ID)
	assert.Equal(t, "Ghost", found.Name)

	// Uppercase and missing "@" normalize to the same handle.
	found, err = d.Lookup(ctx, "Ghost")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.ID)
}

// TestDirectory_LookupAbsentIsNil verifies an unregistered handle is a valid
// nil result, not an error.
func TestDirectory_LookupAbsentIsNil(t *testing.T) {
	d := New(store.NewMemoryStore())

	found, err := d.Lookup(context.Background(), "@nobody")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

// TestDirectory_LookupInvalidHandleIsNil verifies malformed input short-circuits
// to a nil result without touching the store.
func TestDirectory_LookupInvalidHandleIsNil(t *testing.T) {
	d := New(store.NewMemoryStore())

	for _, raw := range []string{"", "@", "@a", "not a handle!", "@UPPER CASE"} {
		found, err := d.Lookup(context.Background(), raw)
		assert.NoError(t, err, "input %q", raw)
		assert.Nil(t, found, "input %q", raw)
	}
}

// TestDirectory_ClaimConflict verifies the second claim of a handle fails
// with the store's conflict error.
func TestDirectory_ClaimConflict(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, Claim(ctx, s, "@ghost", "u1"))

	err := Claim(ctx, s, "@ghost", "u2")
	assert.ErrorIs(t, err, store.ErrExists)
}

// TestDirectory_ReleaseFreesHandle verifies a released handle can be claimed again.
func TestDirectory_ReleaseFreesHandle(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, Claim(ctx, s, "@ghost", "u1"))
	require.NoError(t, Release(ctx, s, "@ghost"))
	assert.NoError(t, Claim(ctx, s, "@ghost", "u2"))
}

// TestDirectory_DanglingEntryIsNil verifies a handle pointing at a deleted
// profile reads as unregistered.
func TestDirectory_DanglingEntryIsNil(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, Claim(ctx, s, "@ghost", "u1"))

	d := New(s)
	found, err := d.Lookup(ctx, "@ghost")
	assert.NoError(t, err)
	assert.Nil(t, found)
}
