package jobs

import "errors"

var (
	// ErrSessionNotFound is returned for identifiers that are not registered
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when an identifier is already registered
	ErrSessionExists = errors.New("session already exists")
)
