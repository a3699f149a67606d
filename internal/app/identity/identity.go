/*
Package identity provides the authentication capability: account creation,
credential verification, session tokens, and presence transitions tied to
sign-in and sign-out.

The Service interface mirrors what the client core needs from a managed
identity provider. The store-backed implementation in this package keeps
credentials in an accounts collection separate from the public profile record,
hashes passwords with bcrypt, and issues signed session tokens.
*/
package identity

import (
	"context"
	"errors"

	"veilchat/internal/app/user"
)

// AccountsCollection holds credential records keyed by normalized email.
const AccountsCollection = "accounts"

var (
	// ErrEmailTaken indicates an account already exists for the email address.
	ErrEmailTaken = errors.New("identity: email already registered")

	// ErrHandleTaken indicates the requested private handle is already claimed.
	ErrHandleTaken = errors.New("identity: handle already taken")

	// ErrInvalidHandle indicates the handle failed canonical-form validation.
	ErrInvalidHandle = errors.New("identity: invalid handle")

	// ErrInvalidCredentials indicates a wrong email/password combination.
	// Unknown email and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")

	// ErrInvalidToken indicates a session token that failed verification.
	ErrInvalidToken = errors.New("identity: invalid session token")
)

// Session is an authenticated session: the bearer token plus the signed-in
// user's profile record at the time of authentication.
type Session struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// SignupInput carries the fields required to create an account.
// Validation of lengths and formats happens at the transport layer; the
// service enforces only the invariants it owns (uniqueness, normalization).
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Handle   string
}

// ProfileUpdate is a partial profile mutation. Nil pointers leave the field
// untouched.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
	Bio    *string
	Public *bool
}

// Service is the identity capability consumed by the transport and session layers.
type Service interface {
	// CreateAccount registers a new account, claims the private handle, writes
	// the profile record, and returns a fresh session. The account, handle,
	// and profile writes succeed or fail as a unit.
	CreateAccount(ctx context.Context, input SignupInput) (*Session, error)

	// Authenticate verifies credentials and returns a fresh session, marking
	// the user online.
	Authenticate(ctx context.Context, email, password string) (*Session, error)

	// Restore validates a previously issued token and rebuilds its session,
	// used to resume on process start without re-entering credentials.
	Restore(ctx context.Context, token string) (*Session, error)

	// EndSession marks the user offline and records last-seen. The token
	// itself is stateless and simply discarded by the caller.
	EndSession(ctx context.Context, userID string) error

	// Verify checks a bearer token and returns the session user id.
	Verify(token string) (string, error)

	// UpdateProfile applies a partial update to the user's profile record
	// and returns the updated profile.
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*user.User, error)
}
