/*
Package handler provides HTTP handler functions for conversation management.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veilchat/internal/app/chat"
	"veilchat/internal/pkg/auth/jwt"
	"veilchat/internal/pkg/errs"
	"veilchat/internal/pkg/logx"
	"veilchat/internal/pkg/req"
	"veilchat/internal/pkg/resp"
)

// HandleListChats returns the caller's conversation list, each entry joined
// with the counterpart's profile, ordered pinned-first then by last activity.
func HandleListChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		previews, err := deps.Chats.ListChats(r.Context(), payload.ID)
		if err != nil {
			logx.Error(err, "list_chats failed", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"chats": previews,
		})
	}
}

type CreateChatInput struct {
	// UserID is the counterpart's user id. Either UserID or Handle must be set.
	UserID string `json:"userId,omitempty"`

	// Handle is the counterpart's private handle, resolved through the directory.
	Handle string `json:"handle,omitempty"`
}

// HandleCreateChat resolves the conversation with the given counterpart,
// creating it on first contact. Repeated calls for the same pair return the
// same conversation id.
func HandleCreateChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateChatInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		counterpartID := input.UserID
		if counterpartID == "" && input.Handle != "" {
			found, err := deps.Directory.Lookup(r.Context(), input.Handle)
			if err != nil {
				logx.Error(err, "create_chat: handle lookup failed")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			if found == nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			counterpartID = found.ID
		}

		chatID, err := deps.Chats.CreateOrGetChat(r.Context(), payload.ID, counterpartID)
		if err != nil {
			if errors.Is(err, chat.ErrInvalidCounterpart) {
				resp.RespondError(w, r, errs.NewError(errs.ErrChatParticipantInvalid))
				return
			}
			logx.Error(err, "create_chat failed", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"chatId": chatID,
		})
	}
}

// HandleMarkChatRead clears the caller's unread state for a conversation.
func HandleMarkChatRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID := chi.URLParam(r, "chatID")

		if err := deps.Chats.MarkChatRead(r.Context(), payload.ID, chatID); err != nil {
			respondChatError(w, r, err, "mark_chat_read", payload.ID)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

type ToggleInput struct {
	// TimerSeconds applies only to the vanish flag: the disappearing-message
	// delay to use when enabling. Zero selects the default.
	TimerSeconds int `json:"timerSeconds,omitempty"`
}

// HandleToggleFlag flips one of the per-conversation flags (lock, pin,
// archive, hide, vanish). Toggling an unknown conversation succeeds with a
// null chat; toggles are fire-and-forget on the client side.
func HandleToggleFlag(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID := chi.URLParam(r, "chatID")
		flag := chi.URLParam(r, "flag")

		var input ToggleInput
		if r.ContentLength > 0 {
			if customErr := req.BindJSON(r, &input); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
		}

		var (
			updated *chat.Chat
			err     error
		)

		switch flag {
		case "lock":
			updated, err = deps.Chats.ToggleLock(r.Context(), payload.ID, chatID)
		case "pin":
			updated, err = deps.Chats.TogglePin(r.Context(), payload.ID, chatID)
		case "archive":
			updated, err = deps.Chats.ToggleArchive(r.Context(), payload.ID, chatID)
		case "hide":
			updated, err = deps.Chats.ToggleHide(r.Context(), payload.ID, chatID)
		case "vanish":
			updated, err = deps.Chats.ToggleVanishMode(r.Context(), payload.ID, chatID, input.TimerSeconds)
		default:
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err != nil {
			respondChatError(w, r, err, "toggle_"+flag, payload.ID)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"chat": updated,
		})
	}
}

// HandleDeleteChat removes a conversation and its entire message log.
func HandleDeleteChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID := chi.URLParam(r, "chatID")

		if err := deps.Chats.DeleteChat(r.Context(), payload.ID, chatID); err != nil {
			respondChatError(w, r, err, "delete_chat", payload.ID)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandlePanicWipe destroys every conversation the caller participates in,
// messages included. There is no confirmation step at this layer.
func HandlePanicWipe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if err := deps.Chats.PanicWipe(r.Context(), payload.ID); err != nil {
			logx.Error(err, "panic_wipe failed", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrWipeFailed))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// respondChatError maps chat service errors onto the wire error taxonomy.
func respondChatError(w http.ResponseWriter, r *http.Request, err error, op, userID string) {
	switch {
	case errors.Is(err, chat.ErrChatNotFound):
		resp.RespondError(w, r, errs.NewError(errs.ErrChatNotFound))
	case errors.Is(err, chat.ErrInvalidCounterpart):
		resp.RespondError(w, r, errs.NewError(errs.ErrChatParticipantInvalid))
	case errors.Is(err, chat.ErrEmptyContent):
		resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentEmpty))
	case errors.Is(err, chat.ErrContentTooLong):
		resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
	case errors.Is(err, chat.ErrNotAuthenticated):
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
	default:
		logx.Error(err, op+" failed", "user_id", userID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
	}
}
