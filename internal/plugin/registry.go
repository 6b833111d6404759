package plugin

import (
	"fmt"
	"sync"
)

// Registry holds registered plugins in registration order.
//
// All methods are safe for concurrent use. The registry lock is never held
// while plugin code runs; Enabled and List hand out snapshots and callers
// execute outside the lock.
type Registry struct {
	mu sync.RWMutex

	// Registered plugins by name.
	plugins map[string]*entry

	// Registration order (routing priority).
	order []string

	// Event handlers (protected by mu).
	eventHandlers []EventHandler
}

type entry struct {
	plugin  Plugin
	enabled bool
}

// EventHandler handles registry lifecycle events.
// Handlers run outside the registry lock, so read-only calls back into
// the Registry are safe. Handlers must not mutate the Registry; a
// mutation would emit again and recurse. Panics in handlers are
// recovered.
type EventHandler func(event Event)

// Event is one registry lifecycle event.
type Event struct {
	Type   EventType
	Plugin string
	Error  error
}

// EventType is the kind of registry event.
type EventType int

const (
	// EventRegistered is emitted when a plugin is registered.
	EventRegistered EventType = iota
	// EventEnabled is emitted when a disabled plugin becomes enabled.
	EventEnabled
	// EventDisabled is emitted when an enabled plugin becomes disabled.
	EventDisabled
	// EventDiscoveryFailed is emitted for each definition that failed
	// during directory discovery.
	EventDiscoveryFailed
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventEnabled:
		return "enabled"
	case EventDisabled:
		return "disabled"
	case EventDiscoveryFailed:
		return "discovery-failed"
	default:
		return "unknown"
	}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*entry),
		order:   make([]string, 0),
	}
}

// Register adds a plugin, enabled, at the end of the registration order.
// Returns ErrDuplicateName if the name is already taken.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	name := p.Name()
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	if _, exists := r.plugins[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.plugins[name] = &entry{plugin: p, enabled: true}
	r.order = append(r.order, name)
	r.mu.Unlock()

	r.emit(Event{Type: EventRegistered, Plugin: name})
	return nil
}

// Enable marks a plugin as matchable. Enabling an enabled plugin is a
// no-op. Returns ErrNotFound for unknown names.
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable removes a plugin from matching without unregistering it.
// Disabling a disabled plugin is a no-op. Returns ErrNotFound for
// unknown names.
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	e, ok := r.plugins[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	changed := e.enabled != enabled
	e.enabled = enabled
	r.mu.Unlock()

	if changed {
		typ := EventEnabled
		if !enabled {
			typ = EventDisabled
		}
		r.emit(Event{Type: typ, Plugin: name})
	}
	return nil
}

// Lookup returns a plugin by name.
func (r *Registry) Lookup(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.plugins[name]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// IsEnabled reports whether a registered plugin is enabled.
// Unknown names report false.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.plugins[name]
	return ok && e.enabled
}

// Enabled returns the enabled plugins in registration order. The slice is
// a snapshot; callers run CanHandle and Execute without any registry lock.
func (r *Registry) Enabled() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Plugin, 0, len(r.order))
	for _, name := range r.order {
		if e := r.plugins[name]; e.enabled {
			out = append(out, e.plugin)
		}
	}
	return out
}

// List returns descriptors in registration order. Disabled plugins are
// included only when includeDisabled is set.
func (r *Registry) List(includeDisabled bool) []Descriptor {
	r.mu.RLock()
	type item struct {
		p       Plugin
		enabled bool
	}
	items := make([]item, 0, len(r.order))
	for _, name := range r.order {
		e := r.plugins[name]
		if !e.enabled && !includeDisabled {
			continue
		}
		items = append(items, item{p: e.plugin, enabled: e.enabled})
	}
	r.mu.RUnlock()

	// Build descriptors outside the lock; Help is plugin code.
	out := make([]Descriptor, len(items))
	for i, it := range items {
		out[i] = Descriptor{
			Name:        it.p.Name(),
			DisplayName: it.p.DisplayName(),
			Enabled:     it.enabled,
			Help:        it.p.Help(),
		}
	}
	return out
}

// Len returns the number of registered plugins, disabled included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Subscribe adds a lifecycle event handler and returns its unsubscribe
// function.
func (r *Registry) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	r.mu.Lock()
	r.eventHandlers = append(r.eventHandlers, handler)
	index := len(r.eventHandlers) - 1
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// Nil out instead of removing to keep indexes stable.
		if index < len(r.eventHandlers) {
			r.eventHandlers[index] = nil
		}
	}
}

// emit calls handlers outside the lock with panic recovery.
func (r *Registry) emit(event Event) {
	r.mu.RLock()
	handlers := make([]EventHandler, len(r.eventHandlers))
	copy(handlers, r.eventHandlers)
	r.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() { recover() }()
			handler(event)
		}()
	}
}
