package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Manifest describes a discovered plugin definition.
type Manifest struct {
	// Name is the unique registry identifier (e.g. "weather").
	Name string `json:"name"`

	// DisplayName is the human-readable name. Defaults to Name.
	DisplayName string `json:"displayName"`

	// Version is a semver string.
	Version string `json:"version"`

	// Description is a short summary, used as the help line when the
	// plugin defines no help function.
	Description string `json:"description"`

	// Keywords seed substring matching when the plugin defines no
	// can_handle function.
	Keywords []string `json:"keywords"`

	// Main is the relative path to the entry Lua file (default "init.lua").
	Main string `json:"main"`

	// Author is the author name or org.
	Author string `json:"author"`

	// dir is the plugin directory.
	dir string
}

// Manifest validation errors.
var (
	ErrMissingName    = errors.New("manifest: name is required")
	ErrInvalidName    = errors.New("manifest: name must be lowercase alphanumeric with hyphens")
	ErrInvalidVersion = errors.New("manifest: version must be valid semver")
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file")
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest loads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	m.dir = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewManifestMinimal creates a manifest for plugins without a plugin.json,
// such as single-file Lua plugins.
func NewManifestMinimal(name, dir string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
		Main:    "init.lua",
		dir:     dir,
	}
}

// MainPath returns the absolute path of the entry Lua file.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.dir, m.Main)
}

// Dir returns the plugin directory.
func (m *Manifest) Dir() string { return m.dir }

func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = "init.lua"
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
	if m.DisplayName == "" {
		m.DisplayName = m.Name
	}
}

// Validate checks the manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	if filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	return nil
}
