/*
Package storage provides presigned access to the S3-compatible bucket backing
avatars and message media. The server never proxies file bytes; clients upload
and download directly against short-lived presigned URLs and the server only
validates keys and mints URLs.
*/
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"veilchat/internal/pkg/errs"
	"veilchat/internal/pkg/randx"
)

const (
	// UploadExpiry is the lifetime of a presigned upload URL.
	UploadExpiry = 10 * time.Minute

	// DownloadExpiry is the lifetime of a presigned download URL.
	DownloadExpiry = 1 * time.Hour

	// MaxAvatarBytes caps an avatar upload.
	MaxAvatarBytes = 5 << 20

	// MaxMediaBytes caps a message media upload.
	MaxMediaBytes = 50 << 20
)

// allowedImageTypes lists the MIME types accepted for avatars.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ServiceConfig holds the connection settings for the bucket.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// MediaService is the public interface for presigned media access.
type MediaService interface {
	// PresignUpload generates a pre-signed URL for uploading a file.
	PresignUpload(ctx context.Context, key, mimeType string, fileSize int64, duration time.Duration) (string, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error

	// GetObjectMetadata retrieves the object's Content-Type and Content-Length.
	GetObjectMetadata(ctx context.Context, key string) (map[string]string, error)
}

// NewMediaService initializes the S3-compatible implementation.
func NewMediaService(cfg ServiceConfig) (MediaService, error) {
	return newS3Client(cfg)
}

// AvatarKey builds the object key for a user's avatar. Each upload gets a
// fresh suffix so stale CDN caches never serve a replaced avatar.
func AvatarKey(userID string) string {
	return fmt.Sprintf("avatars/%s/%s", userID, randx.NewID())
}

// MediaKey builds the object key for a message attachment within a
// conversation.
func MediaKey(chatID string) string {
	return fmt.Sprintf("media/%s/%s", chatID, randx.NewID())
}

// ValidateAvatarUpload checks the MIME type and size of an avatar upload
// request before presigning.
func ValidateAvatarUpload(mimeType string, fileSize int64) *errs.CustomError {
	if !allowedImageTypes[mimeType] {
		return errs.NewError(errs.ErrMediaKeyInvalid)
	}
	if fileSize <= 0 || fileSize > MaxAvatarBytes {
		return errs.NewError(errs.ErrMediaKeyInvalid)
	}
	return nil
}

// KeyBelongsToUser reports whether an avatar key is scoped under the given
// user, preventing one account from overwriting another's objects.
func KeyBelongsToUser(key, userID string) bool {
	return strings.HasPrefix(key, "avatars/"+userID+"/")
}

// KeyBelongsToChat reports whether a media key is scoped under the given
// conversation.
func KeyBelongsToChat(key, chatID string) bool {
	return strings.HasPrefix(key, "media/"+chatID+"/")
}
