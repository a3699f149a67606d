package user

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"veilchat/internal/app/store"
)

// TestNormalizeHandle verifies canonicalization of raw handle input.
func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "already canonical", raw: "@ghost_42", want: "@ghost_42"},
		{name: "missing at sign", raw: "ghost_42", want: "@ghost_42"},
		{name: "uppercase folded", raw: "@Ghost_42", want: "@ghost_42"},
		{name: "surrounding whitespace", raw: "  @ghost_42  ", want: "@ghost_42"},
		{name: "doubled at signs collapse", raw: "@@ghost", want: "@ghost"},
		{name: "empty input", raw: "", want: ""},
		{name: "only at sign", raw: "@", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHandle(tt.raw))
		})
	}
}

// TestValidHandle verifies the canonical handle format rules.
func TestValidHandle(t *testing.T) {
	tests := []struct {
		name   string
		handle string
		want   bool
	}{
		{name: "simple", handle: "@ghost", want: true},
		{name: "digits and underscore", handle: "@gh0st_42", want: true},
		{name: "minimum length", handle: "@abc", want: true},
		{name: "maximum length", handle: "@" + "a2345678901234567890", want: true},
		{name: "too short", handle: "@ab", want: false},
		{name: "too long", handle: "@a23456789012345678901", want: false},
		{name: "no at prefix", handle: "ghost", want: false},
		{name: "uppercase rejected", handle: "@Ghost", want: false},
		{name: "spaces rejected", handle: "@gh ost", want: false},
		{name: "symbols rejected", handle: "@gh-ost", want: false},
		{name: "empty", handle: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidHandle(tt.handle))
		})
	}
}

// TestUser_DocumentRoundTrip verifies Fields and FromDocument are inverses
// for the fields the profile owns.
func TestUser_DocumentRoundTrip(t *testing.T) {
	u := &User{
		ID:     "u1",
		Handle: "@ghost",
		Name:   "Ghost",
		Avatar: "avatars/u1/x",
		Bio:    "around",
		Online: true,
		Public: true,
	}

	rebuilt := FromDocument(store.Document{ID: "u1", Fields: u.Fields()})

	assert.Equal(t, u.ID, rebuilt.ID)
	assert.Equal(t, u.Handle, rebuilt.Handle)
	assert.Equal(t, u.Name, rebuilt.Name)
	assert.Equal(t, u.Avatar, rebuilt.Avatar)
	assert.Equal(t, u.Bio, rebuilt.Bio)
	assert.Equal(t, u.Online, rebuilt.Online)
	assert.Equal(t, u.Public, rebuilt.Public)
}
