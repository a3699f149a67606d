package handler

import (
	"net/http"
	"strings"
	"time"

	"veilchat/internal/app/storage"
	"veilchat/internal/pkg/auth/jwt"
	"veilchat/internal/pkg/errs"
	"veilchat/internal/pkg/req"
	"veilchat/internal/pkg/resp"
)

// PresignAvatarInput defines the JSON input for generating an avatar upload URL.
type PresignAvatarInput struct {
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// HandlePresignAvatar generates a time-limited pre-signed URL for uploading
// the caller's avatar. The returned key goes into the profile's avatar field
// once the upload completes.
func HandlePresignAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignAvatarInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := storage.ValidateAvatarUpload(input.MimeType, input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key := storage.AvatarKey(payload.ID)

		url, err := deps.Media.PresignUpload(r.Context(), key, input.MimeType, input.FileSize, storage.UploadExpiry)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"presignedUrl": url,
			"key":          key,
		})
	}
}

// PresignMediaInput defines the JSON input for generating a message media upload URL.
type PresignMediaInput struct {
	ChatID   string `json:"chatId"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// HandlePresignMediaUpload generates a time-limited pre-signed URL for
// uploading message media into a conversation the caller participates in.
func HandlePresignMediaUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignMediaInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.FileSize <= 0 || input.FileSize > storage.MaxMediaBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaKeyInvalid))
			return
		}

		if _, err := deps.Chats.ListMessages(r.Context(), payload.ID, input.ChatID, time.Time{}, 1); err != nil {
			respondChatError(w, r, err, "presign_media", payload.ID)
			return
		}

		key := storage.MediaKey(input.ChatID)

		url, err := deps.Media.PresignUpload(r.Context(), key, input.MimeType, input.FileSize, storage.UploadExpiry)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"presignedUrl": url,
			"key":          key,
		})
	}
}

// HandlePresignDownload redirects to a time-limited pre-signed download URL
// for a media or avatar key the caller may access.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		key := r.URL.Query().Get("key")
		if key == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if !mayAccessKey(r, deps, payload.ID, key) {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaKeyInvalid))
			return
		}

		url, err := deps.Media.PresignDownload(r.Context(), key, storage.DownloadExpiry)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}

// mayAccessKey checks that the requested key sits in a namespace the caller
// can read: any avatar, or media of a conversation they participate in.
func mayAccessKey(r *http.Request, deps *AppDeps, userID, key string) bool {
	if strings.HasPrefix(key, "avatars/") {
		return true
	}

	if strings.HasPrefix(key, "media/") {
		rest := strings.TrimPrefix(key, "media/")
		chatID, _, ok := strings.Cut(rest, "/")
		if !ok || !storage.KeyBelongsToChat(key, chatID) {
			return false
		}

		// Participation check rides on the message read path's access control.
		_, err := deps.Chats.ListMessages(r.Context(), userID, chatID, time.Time{}, 1)
		return err == nil
	}

	return false
}
