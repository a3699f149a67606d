/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system failures both internally
within the server and in responses sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1005

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1006
)

// 2xxx: Chat and Message Business Logic Errors
const (
	// ErrChatNotFound indicates that the referenced conversation does not exist or is not visible to the caller.
	ErrChatNotFound = 2101

	// ErrChatParticipantInvalid indicates an attempt to open a conversation with an invalid counterpart
	// (unknown user id, or the caller themselves).
	ErrChatParticipantInvalid = 2102

	// ErrMessageContentEmpty indicates that an empty message body was submitted.
	ErrMessageContentEmpty = 2201

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrWipeFailed indicates that a bulk conversation wipe stopped before completing.
	// Bulk deletes are best-effort: no per-item detail is reported.
	ErrWipeFailed = 2301
)

// 3xxx: Account, Session, and Security Errors
const (
	// ErrInvalidEmail indicates that the supplied email address failed validation.
	ErrInvalidEmail = 3001

	// ErrInvalidPassword indicates that the supplied password failed validation (e.g., too short).
	ErrInvalidPassword = 3002

	// ErrInvalidHandle indicates that the supplied private handle failed validation.
	ErrInvalidHandle = 3003

	// ErrHandleTaken indicates that the requested private handle is already registered.
	ErrHandleTaken = 3004

	// ErrEmailTaken indicates that an account already exists for the supplied email address.
	ErrEmailTaken = 3005

	// ErrInvalidCredentials indicates that sign-in failed due to a wrong email/password combination.
	ErrInvalidCredentials = 3006

	// ErrUnauthorized indicates that the operation requires an authenticated session and none was present.
	ErrUnauthorized = 3007

	// ErrUserNotFound indicates that the referenced account record does not exist.
	ErrUserNotFound = 3008

	// ErrAlreadySignedIn indicates that a sign-in or sign-up was attempted with an active session.
	ErrAlreadySignedIn = 3009
)

// 4xxx: Media Storage Errors
const (
	// ErrMediaStorageFailed indicates that generating a storage URL or deleting an object failed.
	ErrMediaStorageFailed = 4001

	// ErrMediaKeyInvalid indicates that the referenced storage key is malformed or outside the caller's namespace.
	ErrMediaKeyInvalid = 4002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified server failure, including backend store errors.
	// The client sees a generic notice; details stay in the server log.
	ErrUnknown = 5000
)
