package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNoSuchFunction is returned when calling an undefined global.
	ErrNoSuchFunction = errors.New("lua function not found")
)
