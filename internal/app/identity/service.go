package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"veilchat/internal/app/directory"
	"veilchat/internal/app/store"
	"veilchat/internal/app/user"
	"veilchat/internal/pkg/auth/jwt"
	"veilchat/internal/pkg/logx"
	"veilchat/internal/pkg/randx"
)

// storeService implements Service on top of the document store.
type storeService struct {
	store     store.Store
	jwtSecret string
}

var _ Service = (*storeService)(nil)

// NewService creates the store-backed identity service.
func NewService(s store.Store, jwtSecret string) Service {
	return &storeService{store: s, jwtSecret: jwtSecret}
}

// CreateAccount registers the account record, claims the handle, and writes
// the profile. When the store supports transactions all three writes commit
// atomically; otherwise each step compensates the previous ones on failure,
// so a half-created signup never survives.
func (s *storeService) CreateAccount(ctx context.Context, input SignupInput) (*Session, error) {
	email := normalizeEmail(input.Email)
	handle := user.NormalizeHandle(input.Handle)
	if !user.ValidHandle(handle) {
		return nil, ErrInvalidHandle
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	userID := randx.NewID()
	profile := &user.User{
		ID:     userID,
		Handle: handle,
		Name:   input.Name,
		Online: true,
		Public: false,
	}

	signup := func(tx store.Store) error {
		err := tx.Create(ctx, AccountsCollection, email, store.Fields{
			"userId":       userID,
			"passwordHash": string(hashed),
			"createdAt":    store.ServerTimestamp,
		})
		if errors.Is(err, store.ErrExists) {
			return ErrEmailTaken
		}
		if err != nil {
			return fmt.Errorf("identity: create account: %w", err)
		}

		if err := directory.Claim(ctx, tx, handle, userID); err != nil {
			if errors.Is(err, store.ErrExists) {
				return ErrHandleTaken
			}
			return err
		}

		fields := profile.Fields()
		fields["createdAt"] = store.ServerTimestamp
		fields["lastSeen"] = store.ServerTimestamp
		return tx.Put(ctx, user.Collection, userID, fields)
	}

	if txStore, ok := s.store.(store.Transactional); ok {
		err = txStore.RunTransaction(ctx, signup)
	} else {
		err = s.signupWithCompensation(ctx, email, handle, userID, signup)
	}
	if err != nil {
		return nil, err
	}

	return s.issueSession(ctx, userID)
}

// signupWithCompensation runs the signup steps sequentially and rolls back
// already-written records when a later step fails.
func (s *storeService) signupWithCompensation(ctx context.Context, email, handle, userID string, signup func(store.Store) error) error {
	err := signup(s.store)
	if err == nil {
		return nil
	}

	// Uniqueness conflicts mean nothing was written past the conflict point.
	if !errors.Is(err, ErrEmailTaken) {
		if delErr := s.store.Delete(ctx, AccountsCollection, email); delErr != nil {
			logx.Error(delErr, "signup compensation: failed to remove account record")
		}
	}
	if !errors.Is(err, ErrEmailTaken) && !errors.Is(err, ErrHandleTaken) {
		if relErr := directory.Release(ctx, s.store, handle); relErr != nil {
			logx.Error(relErr, "signup compensation: failed to release handle", "handle", handle)
		}
		if delErr := s.store.Delete(ctx, user.Collection, userID); delErr != nil {
			logx.Error(delErr, "signup compensation: failed to remove profile record", "user_id", userID)
		}
	}
	return err
}

// Authenticate verifies credentials and returns a fresh session.
func (s *storeService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.store.Get(ctx, AccountsCollection, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("identity: fetch account: %w", err)
	}

	hash := store.AsString(account.Fields["passwordHash"])
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, store.AsString(account.Fields["userId"]))
}

// Restore validates a persisted token and rebuilds its session. Presence is
// refreshed the same way a fresh sign-in would.
func (s *storeService) Restore(ctx context.Context, token string) (*Session, error) {
	userID, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, userID)
}

// EndSession marks the user offline and stamps last-seen.
func (s *storeService) EndSession(ctx context.Context, userID string) error {
	err := s.store.Update(ctx, user.Collection, userID, store.Fields{
		"isOnline": false,
		"lastSeen": store.ServerTimestamp,
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("identity: end session for %s: %w", userID, err)
	}
	return nil
}

// Verify checks a bearer token and returns the session user id.
func (s *storeService) Verify(token string) (string, error) {
	payload, err := jwt.ParseToken(token, s.jwtSecret)
	if err != nil {
		return "", ErrInvalidToken
	}
	return payload.ID, nil
}

// UpdateProfile applies a partial profile mutation.
func (s *storeService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*user.User, error) {
	fields := store.Fields{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Avatar != nil {
		fields["avatar"] = *update.Avatar
	}
	if update.Bio != nil {
		fields["bio"] = *update.Bio
	}
	if update.Public != nil {
		fields["isPublic"] = *update.Public
	}

	if len(fields) > 0 {
		err := s.store.Update(ctx, user.Collection, userID, fields)
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("identity: update profile %s: %w", userID, err)
		}
	}

	doc, err := s.store.Get(ctx, user.Collection, userID)
	if err != nil {
		return nil, fmt.Errorf("identity: reload profile %s: %w", userID, err)
	}
	return user.FromDocument(doc), nil
}

// issueSession refreshes presence, loads the profile, and signs a token.
func (s *storeService) issueSession(ctx context.Context, userID string) (*Session, error) {
	err := s.store.Update(ctx, user.Collection, userID, store.Fields{
		"isOnline": true,
		"lastSeen": store.ServerTimestamp,
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("identity: refresh presence for %s: %w", userID, err)
	}

	doc, err := s.store.Get(ctx, user.Collection, userID)
	if err != nil {
		return nil, fmt.Errorf("identity: load profile for %s: %w", userID, err)
	}
	profile := user.FromDocument(doc)

	token, err := jwt.GenerateToken(&jwt.Payload{
		ID:     userID,
		Handle: profile.Handle,
	}, s.jwtSecret, jwt.SessionExpiration)
	if err != nil {
		return nil, fmt.Errorf("identity: sign session token: %w", err)
	}

	return &Session{Token: token, User: profile}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
