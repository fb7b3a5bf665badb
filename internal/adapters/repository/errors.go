package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrConflict      = errors.New("record already exists")
	ErrNotRegistered = errors.New("user is not registered for this event")
	ErrUnknownDriver = errors.New("unknown database driver")
)
