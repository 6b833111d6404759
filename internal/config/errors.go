package config

import "errors"

// Validation errors.
var (
	// ErrUnknownProvider indicates an unrecognized model provider name.
	ErrUnknownProvider = errors.New("config: unknown model provider")

	// ErrEmptyWakeWord indicates voice mode without a wake word.
	ErrEmptyWakeWord = errors.New("config: voice enabled with empty wake word")

	// ErrEmptyDaemonURL indicates voice mode without a daemon endpoint.
	ErrEmptyDaemonURL = errors.New("config: voice enabled with empty daemon URL")

	// ErrBadSpeakLimit indicates a negative speak limit.
	ErrBadSpeakLimit = errors.New("config: speak limit must be >= 0")

	// ErrBadLogLevel indicates an unrecognized log level.
	ErrBadLogLevel = errors.New("config: unknown log level")

	// ErrBadLogFormat indicates an unrecognized log format.
	ErrBadLogFormat = errors.New("config: unknown log format")

	// ErrEmptyDiscoverDir indicates auto-discovery without a directory.
	ErrEmptyDiscoverDir = errors.New("config: auto discover enabled with empty discover dir")
)
