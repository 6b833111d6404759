package plugin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	plua "github.com/dshills/valet/internal/plugin/lua"
	lua "github.com/yuin/gopher-lua"
)

// Lua entry points a plugin definition may provide.
const (
	luaCanHandle = "can_handle"
	luaExecute   = "execute"
	luaHelp      = "help"
)

// DefaultExecuteTimeout bounds one Lua execute call. The router imposes no
// deadline of its own; the host owns it.
const DefaultExecuteTimeout = 5 * time.Second

// Host runs one Lua plugin definition behind the Plugin interface.
//
// A Host is constructed without I/O; Load creates the sandboxed state and
// executes the entry file. The definition must provide an execute
// function. can_handle is optional when the manifest carries keywords,
// which then drive substring matching. help is optional and falls back to
// the manifest description.
type Host struct {
	mu sync.Mutex

	manifest *Manifest
	state    *plua.State
	loaded   bool

	// Detected entry points.
	hasCanHandle bool
	hasHelp      bool

	// Folded manifest keywords for fallback matching.
	keywords []string

	executeTimeout time.Duration
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithExecuteTimeout sets the per-call deadline for the Lua execute
// function. Zero disables the host deadline.
func WithExecuteTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.executeTimeout = d
	}
}

// NewHost creates a host for the manifest. No I/O happens until Load.
func NewHost(manifest *Manifest, opts ...HostOption) (*Host, error) {
	if manifest == nil {
		return nil, ErrNilManifest
	}

	keywords := make([]string, 0, len(manifest.Keywords))
	for _, kw := range manifest.Keywords {
		if kw = Normalize(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	h := &Host{
		manifest:       manifest,
		keywords:       keywords,
		executeTimeout: DefaultExecuteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Load creates the Lua state and runs the entry file.
func (h *Host) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loaded {
		return nil
	}

	state := plua.NewState()
	if err := state.DoFile(h.manifest.MainPath()); err != nil {
		state.Close()
		return fmt.Errorf("loading %s: %w", h.manifest.MainPath(), err)
	}

	if !state.HasFunction(luaExecute) {
		state.Close()
		return fmt.Errorf("%w: %s defines no execute function", ErrNoEntryPoint, h.manifest.Main)
	}

	h.hasCanHandle = state.HasFunction(luaCanHandle)
	if !h.hasCanHandle && len(h.keywords) == 0 {
		state.Close()
		return fmt.Errorf("%w: no can_handle function and no manifest keywords", ErrNoEntryPoint)
	}
	h.hasHelp = state.HasFunction(luaHelp)

	h.state = state
	h.loaded = true
	return nil
}

// Close releases the Lua state. Idempotent.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != nil {
		h.state.Close()
	}
	h.loaded = false
}

// Name implements Plugin.
func (h *Host) Name() string { return h.manifest.Name }

// DisplayName implements Plugin.
func (h *Host) DisplayName() string { return h.manifest.DisplayName }

// Manifest returns the definition's manifest.
func (h *Host) Manifest() *Manifest { return h.manifest }

// CanHandle implements Plugin. A Lua can_handle error counts as no match.
func (h *Host) CanHandle(text string) bool {
	h.mu.Lock()
	state, loaded, hasFn := h.state, h.loaded, h.hasCanHandle
	h.mu.Unlock()

	if !loaded {
		return false
	}

	if hasFn {
		results, err := state.Call(context.Background(), luaCanHandle, lua.LString(text))
		if err != nil || len(results) == 0 {
			return false
		}
		return lua.LVAsBool(results[0])
	}

	for _, kw := range h.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Execute implements Plugin.
func (h *Host) Execute(ctx context.Context, cmd Command) (string, error) {
	h.mu.Lock()
	state, loaded, timeout := h.state, h.loaded, h.executeTimeout
	h.mu.Unlock()

	if !loaded {
		return "", ErrNotLoaded
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results, err := state.Call(ctx, luaExecute, lua.LString(cmd.Text))
	if err != nil {
		return "", fmt.Errorf("plugin %q execute: %w", h.manifest.Name, err)
	}
	if len(results) == 0 || results[0] == lua.LNil {
		return "", fmt.Errorf("plugin %q execute returned nothing", h.manifest.Name)
	}

	res := results[0]
	switch res.Type() {
	case lua.LTString, lua.LTNumber:
		return lua.LVAsString(res), nil
	default:
		return "", fmt.Errorf("plugin %q execute returned %s, want string", h.manifest.Name, res.Type())
	}
}

// Help implements Plugin.
func (h *Host) Help() string {
	h.mu.Lock()
	state, loaded, hasFn := h.state, h.loaded, h.hasHelp
	h.mu.Unlock()

	if loaded && hasFn {
		results, err := state.Call(context.Background(), luaHelp)
		if err == nil && len(results) > 0 && results[0].Type() == lua.LTString {
			return lua.LVAsString(results[0])
		}
	}
	if h.manifest.Description != "" {
		return h.manifest.Description
	}
	return fmt.Sprintf("%s plugin", h.manifest.DisplayName)
}
