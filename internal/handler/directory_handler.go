package handler

import (
	"net/http"

	"veilchat/internal/pkg/auth/jwt"
	"veilchat/internal/pkg/errs"
	"veilchat/internal/pkg/logx"
	"veilchat/internal/pkg/resp"
)

// HandleLookupHandle resolves a private handle to its owner's profile. An
// unregistered handle yields a success response with a null user rather than
// an error; absence is a valid answer here.
func HandleLookupHandle(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		handle := r.URL.Query().Get("handle")
		if handle == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		found, err := deps.Directory.Lookup(r.Context(), handle)
		if err != nil {
			logx.Error(err, "handle lookup failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": found,
		})
	}
}
