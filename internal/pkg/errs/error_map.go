/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
// Entries without an explicit Status default to HTTP 200 with a non-zero business code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat and Message Business Logic Errors
	ErrChatNotFound:           {Code: ErrChatNotFound, Message: "Conversation not found."},
	ErrChatParticipantInvalid: {Code: ErrChatParticipantInvalid, Message: "You cannot start a conversation with this user."},
	ErrMessageContentEmpty:    {Code: ErrMessageContentEmpty, Message: "Message cannot be empty."},
	ErrMessageContentTooLong:  {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrWipeFailed:             {Code: ErrWipeFailed, Message: "Some conversations could not be deleted. Please try again."},

	// 3xxx: Account, Session, and Security Errors
	ErrInvalidEmail:       {Code: ErrInvalidEmail, Message: "Invalid email address."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Password must be between 6 and 50 characters."},
	ErrInvalidHandle:      {Code: ErrInvalidHandle, Message: "Invalid private handle."},
	ErrHandleTaken:        {Code: ErrHandleTaken, Message: "This private handle is already taken."},
	ErrEmailTaken:         {Code: ErrEmailTaken, Message: "An account already exists for this email."},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect email or password."},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found."},
	ErrAlreadySignedIn:    {Code: ErrAlreadySignedIn, Message: "You are already signed in."},

	// 4xxx: Media Storage Errors
	ErrMediaStorageFailed: {Code: ErrMediaStorageFailed, Message: "Upload failed. Please try again."},
	ErrMediaKeyInvalid:    {Code: ErrMediaKeyInvalid, Message: "Invalid media reference."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
