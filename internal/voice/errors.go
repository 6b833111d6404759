package voice

import "errors"

var (
	// ErrUnavailable marks a speech daemon that cannot be reached.
	ErrUnavailable = errors.New("voice: daemon unavailable")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("voice: client closed")
)
