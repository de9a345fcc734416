package chat

import "errors"

// Validation errors. All map to a client error at the API boundary and are
// returned before any state is written.
var (
	// ErrEmptyMessage indicates the message body was missing or blank.
	ErrEmptyMessage = errors.New("message must not be empty")

	// ErrMessageTooLong indicates the message exceeds the configured limit.
	ErrMessageTooLong = errors.New("message too long")

	// ErrInvalidSessionID indicates the supplied session id is not a UUID.
	ErrInvalidSessionID = errors.New("session id must be a valid UUID")
)
