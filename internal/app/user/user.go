/*
Package user contains the core data structures and logic for user identity and discovery.

A user is discoverable only through their private handle, a human-chosen unique string
independent of contact info. Handles are normalized to a canonical lowercase "@"-prefixed
form so that lookups are case-insensitive.
*/
package user

import (
	"regexp"
	"strings"
	"time"

	"veilchat/internal/app/store"
)

// Collection is the document collection holding user profile records.
const Collection = "users"

// handleRegex validates the canonical handle form: "@" followed by 3-20
// lowercase letters, digits, or underscores.
var handleRegex = regexp.MustCompile(`^@[a-z0-9_]{3,20}$`)

// User represents a chat participant's public profile record.
type User struct {
	// ID is the opaque, stable identifier for the user.
	ID string `json:"id"`

	// Handle is the canonical private handle, unique across all users.
	Handle string `json:"handle"`

	// Name is the display name shown in conversation lists.
	Name string `json:"name"`

	// Avatar is an optional media storage key for the user's avatar image.
	Avatar string `json:"avatar,omitempty"`

	// Bio is an optional free-form profile line.
	Bio string `json:"bio,omitempty"`

	// Online reports current presence as last written by the session layer.
	Online bool `json:"isOnline"`

	// LastSeen is the server-assigned timestamp of the last presence change.
	LastSeen time.Time `json:"lastSeen"`

	// Public controls whether the profile is returned to directory lookups
	// from users who do not already share a conversation.
	Public bool `json:"isPublic"`

	// CreatedAt is the server-assigned signup timestamp.
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeHandle converts a raw handle string to its canonical form:
// trimmed, lowercased, with exactly one leading "@".
func NormalizeHandle(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	h = strings.TrimLeft(h, "@")
	if h == "" {
		return ""
	}
	return "@" + h
}

// ValidHandle reports whether the given string is a valid canonical handle.
// Callers normalize first; this rejects anything NormalizeHandle did not fix.
func ValidHandle(handle string) bool {
	return handleRegex.MatchString(handle)
}

// Fields converts the user to its stored document representation.
// LastSeen and CreatedAt are written as server timestamps by callers that
// own those transitions; this method carries the current values through.
func (u *User) Fields() store.Fields {
	return store.Fields{
		"handle":    u.Handle,
		"name":      u.Name,
		"avatar":    u.Avatar,
		"bio":       u.Bio,
		"isOnline":  u.Online,
		"lastSeen":  u.LastSeen,
		"isPublic":  u.Public,
		"createdAt": u.CreatedAt,
	}
}

// FromDocument rebuilds a User from its stored document.
func FromDocument(doc store.Document) *User {
	return &User{
		ID:        doc.ID,
		Handle:    store.AsString(doc.Fields["handle"]),
		Name:      store.AsString(doc.Fields["name"]),
		Avatar:    store.AsString(doc.Fields["avatar"]),
		Bio:       store.AsString(doc.Fields["bio"]),
		Online:    store.AsBool(doc.Fields["isOnline"]),
		LastSeen:  store.AsTime(doc.Fields["lastSeen"]),
		Public:    store.AsBool(doc.Fields["isPublic"]),
		CreatedAt: store.AsTime(doc.Fields["createdAt"]),
	}
}
