package plugin

import (
	"errors"
	"fmt"
)

// Registry and lifecycle errors.
var (
	// ErrDuplicateName is returned when registering a name already taken.
	// The first registration wins; the registry is never silently replaced.
	ErrDuplicateName = errors.New("plugin: duplicate plugin name")

	// ErrNotFound is returned for operations on an unregistered name.
	ErrNotFound = errors.New("plugin: plugin not found")

	// ErrNilPlugin is returned when registering a nil plugin.
	ErrNilPlugin = errors.New("plugin: plugin is nil")

	// ErrEmptyName is returned when a plugin reports an empty name.
	ErrEmptyName = errors.New("plugin: plugin name is empty")

	// ErrNotLoaded is returned when executing a definition that has not
	// been loaded into its runtime.
	ErrNotLoaded = errors.New("plugin: plugin is not loaded")

	// ErrNoEntryPoint is returned when a plugin directory has no valid
	// entry point (plugin.json, init.lua, or plugin.lua).
	ErrNoEntryPoint = errors.New("plugin: no entry point")

	// ErrNilManifest is returned when building a host from a nil manifest.
	ErrNilManifest = errors.New("plugin: manifest is nil")
)

// DiscoveryError reports one plugin definition that failed to load during
// directory discovery. Discovery failures are collected, never fatal.
type DiscoveryError struct {
	// Name is the plugin name, or the directory name when the manifest
	// never parsed.
	Name string

	// Path is the definition location.
	Path string

	// Err is the underlying failure.
	Err error
}

func (e *DiscoveryError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("plugin: discovering %q at %s: %v", e.Name, e.Path, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
