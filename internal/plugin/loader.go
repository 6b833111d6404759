package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader discovers plugin definitions on the filesystem.
type Loader struct {
	// Search paths, checked in order. First path wins on name clashes.
	paths []string
}

// Info describes one discovered definition. Err is set when the
// definition is unusable; discovery itself still succeeds.
type Info struct {
	Name     string
	Path     string
	Manifest *Manifest
	Err      error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string { return l.paths }

// Discover walks the search paths and returns everything found, sorted by
// name. Missing paths yield nothing; an unreadable existing path yields a
// single errored Info for that path.
func (l *Loader) Discover() []*Info {
	found := make(map[string]*Info)

	for _, base := range l.paths {
		l.discoverInPath(base, found)
	}

	infos := make([]*Info, 0, len(found))
	for _, info := range found {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (l *Loader) discoverInPath(base string, found map[string]*Info) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		// NUL prefix keeps the key from colliding with a plugin name.
		found["\x00"+base] = &Info{
			Name: filepath.Base(base),
			Path: base,
			Err:  fmt.Errorf("reading plugin directory: %w", err),
		}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			if filepath.Ext(entry.Name()) == ".lua" {
				name := strings.TrimSuffix(entry.Name(), ".lua")
				if _, exists := found[name]; exists {
					continue
				}
				found[name] = singleFileInfo(name, filepath.Join(base, entry.Name()))
			}
			continue
		}

		info := inspectDir(entry.Name(), filepath.Join(base, entry.Name()))
		if _, exists := found[info.Name]; !exists {
			found[info.Name] = info
		}
	}
}

// singleFileInfo builds the Info for a bare name.lua plugin.
func singleFileInfo(name, luaPath string) *Info {
	manifest := NewManifestMinimal(name, filepath.Dir(luaPath))
	manifest.Main = filepath.Base(luaPath)

	info := &Info{Name: name, Path: filepath.Dir(luaPath), Manifest: manifest}
	if err := manifest.Validate(); err != nil {
		info.Err = err
		info.Manifest = nil
	}
	return info
}

// inspectDir examines one plugin directory.
func inspectDir(name, path string) *Info {
	info := &Info{Name: name, Path: path}

	manifestPath := filepath.Join(path, "plugin.json")
	if _, err := os.Stat(manifestPath); err == nil {
		manifest, err := LoadManifest(manifestPath)
		if err != nil {
			info.Err = err
			return info
		}
		info.Manifest = manifest
		info.Name = manifest.Name
		return info
	}

	for _, main := range []string{"init.lua", "plugin.lua"} {
		if _, err := os.Stat(filepath.Join(path, main)); err == nil {
			manifest := NewManifestMinimal(name, path)
			manifest.Main = main
			if err := manifest.Validate(); err != nil {
				info.Err = err
				return info
			}
			info.Manifest = manifest
			return info
		}
	}

	info.Err = ErrNoEntryPoint
	return info
}

// Discover scans dirs for Lua plugin definitions, loads the usable ones,
// and registers them in order of discovery. Every failed definition is
// returned as a DiscoveryError and emitted as an EventDiscoveryFailed
// event; failures never abort the scan.
func (r *Registry) Discover(dirs ...string) []*DiscoveryError {
	loader := NewLoader(WithPaths(dirs...))

	var issues []*DiscoveryError
	fail := func(name, path string, err error) {
		derr := &DiscoveryError{Name: name, Path: path, Err: err}
		issues = append(issues, derr)
		r.emit(Event{Type: EventDiscoveryFailed, Plugin: name, Error: derr})
	}

	for _, info := range loader.Discover() {
		if info.Err != nil {
			fail(info.Name, info.Path, info.Err)
			continue
		}

		host, err := NewHost(info.Manifest)
		if err != nil {
			fail(info.Name, info.Path, err)
			continue
		}
		if err := host.Load(); err != nil {
			fail(info.Name, info.Path, err)
			continue
		}
		if err := r.Register(host); err != nil {
			host.Close()
			fail(info.Name, info.Path, err)
		}
	}
	return issues
}
