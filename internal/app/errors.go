package app

import (
	"errors"
	"fmt"
)

var (
	// ErrQuit signals that the assistant should exit normally.
	ErrQuit = errors.New("quit requested")

	// ErrNilConfig reports a missing configuration.
	ErrNilConfig = errors.New("nil config")

	// ErrAlreadyRunning reports a second concurrent Run call.
	ErrAlreadyRunning = errors.New("assistant already running")
)

// InitError reports a component that failed during bootstrap.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("initializing %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
