package dispatcher

import (
	"errors"
	"fmt"
)

var (
	// ErrNilRegistry is returned by NewRouter when no registry is supplied.
	ErrNilRegistry = errors.New("dispatcher: registry is nil")

	// ErrNoGenerator marks a fallback attempt with no language model wired.
	ErrNoGenerator = errors.New("dispatcher: no language model configured")

	// ErrPanic marks a plugin that panicked during dispatch.
	ErrPanic = errors.New("dispatcher: plugin panicked")
)

// ExecutionError wraps a failure inside a matched plugin.
type ExecutionError struct {
	Plugin string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return "dispatcher: execution error"
	}
	return fmt.Sprintf("dispatcher: plugin %q: %v", e.Plugin, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
