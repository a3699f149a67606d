package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"veilchat/internal/pkg/auth/jwt"
	"veilchat/internal/pkg/errs"
	"veilchat/internal/pkg/req"
	"veilchat/internal/pkg/resp"
)

type SendMessageInput struct {
	Content string `json:"content"`
}

// HandleSendMessage appends a message to a conversation. The hub pushes the
// message to both participants; the HTTP response carries the authoritative
// record for the sender's own optimistic update.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID := chi.URLParam(r, "chatID")

		var input SendMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, err := deps.Chats.SendMessage(r.Context(), payload.ID, chatID, input.Content)
		if err != nil {
			respondChatError(w, r, err, "send_message", payload.ID)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"message": msg,
		})
	}
}

// HandleListMessages returns a page of a conversation's log in ascending
// timestamp order. The optional "before" query parameter (RFC 3339) pages
// backwards from the given instant; "limit" caps the page size.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID := chi.URLParam(r, "chatID")

		var before time.Time
		if raw := r.URL.Query().Get("before"); raw != "" {
			parsed, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			before = parsed
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = parsed
		}

		messages, err := deps.Chats.ListMessages(r.Context(), payload.ID, chatID, before, limit)
		if err != nil {
			respondChatError(w, r, err, "list_messages", payload.ID)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messages": messages,
		})
	}
}
