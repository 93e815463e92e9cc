package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoryOver is returned when a turn targets a story that already ended.
	ErrStoryOver = errors.New("story is over")
	// ErrStoryBusy is returned when another turn holds or has just advanced the story.
	ErrStoryBusy = errors.New("story is busy")
)
