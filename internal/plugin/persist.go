package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// registryState is the on-disk enabled/disabled snapshot.
type registryState struct {
	Plugins map[string]bool `json:"plugins"`
}

// SaveState writes the enabled/disabled map to path, creating parent
// directories as needed.
func (r *Registry) SaveState(path string) error {
	r.mu.RLock()
	state := registryState{Plugins: make(map[string]bool, len(r.order))}
	for _, name := range r.order {
		state.Plugins[name] = r.plugins[name].enabled
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry state: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating state directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing registry state: %w", err)
	}
	return nil
}

// LoadState applies a saved enabled/disabled map. Names that are not
// registered are ignored, so stale state never blocks startup. A missing
// file is not an error.
func (r *Registry) LoadState(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading registry state: %w", err)
	}

	var state registryState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parsing registry state: %w", err)
	}

	for name, enabled := range state.Plugins {
		if _, ok := r.Lookup(name); !ok {
			continue
		}
		// Known name, apply the saved flag.
		_ = r.setEnabled(name, enabled)
	}
	return nil
}
