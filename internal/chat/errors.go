package chat

import "errors"

var (
	// ErrNotParticipant covers both "no such session" and "not a
	// member": callers cannot probe for session existence.
	ErrNotParticipant = errors.New("session not found or access denied")

	ErrEmptyContent       = errors.New("message content is empty")
	ErrInvalidMessageType = errors.New("invalid message type")
)
