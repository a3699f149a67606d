/*
Package handler provides HTTP handler functions for account and session management.
*/
package handler

import (
	"errors"
	"net/http"
	"regexp"
	"unicode/utf8"

	"veilchat/internal/app/identity"
	"veilchat/internal/app/store"
	"veilchat/internal/app/user"
	"veilchat/internal/pkg/auth/jwt"
	"veilchat/internal/pkg/errs"
	"veilchat/internal/pkg/logx"
	"veilchat/internal/pkg/req"
	"veilchat/internal/pkg/resp"
)

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const (
	minPasswordRunes = 6
	maxPasswordRunes = 50
	maxNameRunes     = 50
	maxBioRunes      = 200
)

type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Handle   string `json:"handle"`
}

// HandleSignUp processes the request to create a new account with its private
// handle, returning a fresh session on success.
func HandleSignUp(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadySignedIn))
			return
		}

		var input SignUpInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !emailRegex.MatchString(input.Email) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidEmail))
			return
		}

		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < minPasswordRunes || passwordLen > maxPasswordRunes {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		if input.Name == "" || utf8.RuneCountInString(input.Name) > maxNameRunes {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if !user.ValidHandle(user.NormalizeHandle(input.Handle)) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidHandle))
			return
		}

		session, err := deps.Identity.CreateAccount(r.Context(), identity.SignupInput{
			Email:    input.Email,
			Password: input.Password,
			Name:     input.Name,
			Handle:   input.Handle,
		})
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrEmailTaken):
				logx.Warn("signup conflict: email already registered")
				resp.RespondError(w, r, errs.NewError(errs.ErrEmailTaken))
			case errors.Is(err, identity.ErrHandleTaken):
				logx.Warn("signup conflict: handle already taken", "handle", input.Handle)
				resp.RespondError(w, r, errs.NewError(errs.ErrHandleTaken))
			case errors.Is(err, identity.ErrInvalidHandle):
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidHandle))
			default:
				logx.Error(err, "signup failed")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			}
			return
		}

		resp.RespondSuccess(w, r, session)
	}
}

type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignIn verifies credentials and issues a session token.
func HandleSignIn(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadySignedIn))
			return
		}

		var input SignInInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		session, err := deps.Identity.Authenticate(r.Context(), input.Email, input.Password)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				logx.Warn("signin: invalid credentials")
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
				return
			}
			logx.Error(err, "signin failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, session)
	}
}

// HandleSignOut ends the caller's session: presence goes offline and last-seen
// is stamped. The token itself is stateless and simply discarded client-side.
func HandleSignOut(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if err := deps.Identity.EndSession(r.Context(), payload.ID); err != nil {
			logx.Error(err, "signout failed", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

type RestoreInput struct {
	Token string `json:"token"`
}

// HandleRestoreSession validates a persisted token and rebuilds its session,
// so a client resumes on launch without re-entering credentials.
func HandleRestoreSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RestoreInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		session, err := deps.Identity.Restore(r.Context(), input.Token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			logx.Error(err, "session restore failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, session)
	}
}

// HandleGetProfile returns the caller's own profile record.
func HandleGetProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		doc, err := deps.Store.Get(r.Context(), user.Collection, payload.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "get_profile: fetch failed", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": user.FromDocument(doc),
		})
	}
}

type UpdateProfileInput struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
	Bio    *string `json:"bio,omitempty"`
	Public *bool   `json:"isPublic,omitempty"`
}

// HandleUpdateProfile applies a partial update to the caller's profile.
// Absent fields stay untouched.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input UpdateProfileInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Name != nil {
			if *input.Name == "" || utf8.RuneCountInString(*input.Name) > maxNameRunes {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
		}
		if input.Bio != nil && utf8.RuneCountInString(*input.Bio) > maxBioRunes {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		updated, err := deps.Identity.UpdateProfile(r.Context(), payload.ID, identity.ProfileUpdate{
			Name:   input.Name,
			Avatar: input.Avatar,
			Bio:    input.Bio,
			Public: input.Public,
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "update_profile failed", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": updated,
		})
	}
}
