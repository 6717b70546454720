package models

import "errors"

var (
	// ErrNotFound is returned when a referenced conversation does not exist
	// or is not visible to the requesting owner.
	ErrNotFound = errors.New("conversation not found")

	// ErrIndexOutOfRange is returned by edit/delete when the positional
	// index falls outside the current message sequence.
	ErrIndexOutOfRange = errors.New("message index out of range")

	// ErrExternalService is returned when the store or the completion API
	// fails at the transport or service level.
	ErrExternalService = errors.New("external service error")

	// ErrUnauthenticated is returned when an operation requires an owner id
	// and none was supplied.
	ErrUnauthenticated = errors.New("missing owner id")
)
