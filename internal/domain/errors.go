package domain

import "errors"

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTopic indicates a malformed topic identity (a caller bug).
	ErrInvalidTopic = errors.New("invalid topic")
	// ErrNotStreamable is returned when a local-only topic is used where a stream is required.
	ErrNotStreamable = errors.New("topic is not streamable")
	// ErrInvalidTarget indicates a connection target without host or port.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrNoActiveBackend is returned when no backend profile is marked active.
	ErrNoActiveBackend = errors.New("no active backend")
)
