package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilchat/internal/app/store"
	"veilchat/internal/app/user"
)

const testSecret = "test-secret"

func newTestService() (Service, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return NewService(s, testSecret), s
}

func signupInput() SignupInput {
	return SignupInput{
		Email:    "ada@example.com",
		Password: "hunter22",
		Name:     "Ada",
		Handle:   "@ada",
	}
}

// TestCreateAccount verifies a successful signup writes the account, handle,
// and profile, and returns a live session.
func TestCreateAccount(t *testing.T) {
	svc, s := newTestService()
	ctx := context.Background()

	sess, err := svc.CreateAccount(ctx, signupInput())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "@ada", sess.User.Handle)
	assert.Equal(t, "Ada", sess.User.Name)
	assert.True(t, sess.User.Online, "fresh signup is online")

	// The handle mapping exists and points at the new user.
	entry, err := s.Get(ctx, "handles", "@ada")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, store.AsString(entry.Fields["userId"]))

	// The token resolves back to the user.
	userID, err := svc.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, userID)
}

// TestCreateAccount_EmailTaken verifies the duplicate-email conflict.
func TestCreateAccount_EmailTaken(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, signupInput())
	require.NoError(t, err)

	second := signupInput()
	second.Handle = "@other"
	_, err = svc.CreateAccount(ctx, second)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

// TestCreateAccount_EmailCaseInsensitive verifies email normalization folds
// case before the uniqueness check.
func TestCreateAccount_EmailCaseInsensitive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, signupInput())
	require.NoError(t, err)

	second := signupInput()
	second.Email = "ADA@Example.Com"
	second.Handle = "@other"
	_, err = svc.CreateAccount(ctx, second)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

// TestCreateAccount_HandleTaken verifies the duplicate-handle conflict leaves
// no half-written account behind.
func TestCreateAccount_HandleTaken(t *testing.T) {
	svc, s := newTestService()
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, signupInput())
	require.NoError(t, err)

	second := signupInput()
	second.Email = "bob@example.com"
	_, err = svc.CreateAccount(ctx, second)
	assert.ErrorIs(t, err, ErrHandleTaken)

	// The losing signup's account record must not survive.
	_, err = s.Get(ctx, AccountsCollection, "bob@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// TestCreateAccount_InvalidHandle verifies format validation happens before
// any write.
func TestCreateAccount_InvalidHandle(t *testing.T) {
	svc, _ := newTestService()

	input := signupInput()
	input.Handle = "not a handle!"
	_, err := svc.CreateAccount(context.Background(), input)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

// TestAuthenticate verifies the credential paths: success, wrong password,
// and unknown email collapse into the same failure.
func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateAccount(ctx, signupInput())
	require.NoError(t, err)

	sess, err := svc.Authenticate(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, sess.User.ID)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials,
		"unknown email and wrong password must be indistinguishable")
}

// TestRestore verifies a previously issued token rebuilds its session and an
// invalid token does not.
func TestRestore(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateAccount(ctx, signupInput())
	require.NoError(t, err)

	sess, err := svc.Restore(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, sess.User.ID)
	assert.True(t, sess.User.Online)

	_, err = svc.Restore(ctx, "garbage.token.value")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// TestEndSession verifies sign-out flips presence offline.
func TestEndSession(t *testing.T) {
	svc, s := newTestService()
	ctx := context.Background()

	sess, err := svc.CreateAccount(ctx, signupInput())
	require.NoError(t, err)

	require.NoError(t, svc.EndSession(ctx, sess.User.ID))

	doc, err := s.Get(ctx, user.Collection, sess.User.ID)
	require.NoError(t, err)
	assert.False(t, store.AsBool(doc.Fields["isOnline"]))
	assert.False(t, store.AsTime(doc.Fields["lastSeen"]).IsZero())
}

// TestUpdateProfile verifies partial updates touch only the supplied fields.
func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sess, err := svc.CreateAccount(ctx, signupInput())
	require.NoError(t, err)

	bio := "cryptography enjoyer"
	updated, err := svc.UpdateProfile(ctx, sess.User.ID, ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, bio, updated.Bio)
	assert.Equal(t, "Ada", updated.Name, "unsupplied fields stay untouched")
	assert.Equal(t, "@ada", updated.Handle)

	pub := true
	updated, err = svc.UpdateProfile(ctx, sess.User.ID, ProfileUpdate{Public: &pub})
	require.NoError(t, err)
	assert.True(t, updated.Public)
	assert.Equal(t, bio, updated.Bio)
}
