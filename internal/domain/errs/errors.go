// Package errs defines the sentinel errors shared across the messaging core.
package errs

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input data is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidChatType is returned when a group-only operation targets a non-group chat
	ErrInvalidChatType = errors.New("invalid chat type for operation")

	// ErrCapacityExceeded is returned when a group chat is at its member limit
	ErrCapacityExceeded = errors.New("group capacity exceeded")

	// ErrForbidden is returned when an action is forbidden
	ErrForbidden = errors.New("forbidden")
)
