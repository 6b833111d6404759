package dispatcher

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/valet/internal/plugin"
)

// PreHook rewrites a command before matching, for embedders that need
// to normalize or tag input ahead of dispatch.
type PreHook func(plugin.Command) plugin.Command

// PostHook rewrites a result before the router returns it, for
// embedders that need to decorate or redact responses.
type PostHook func(plugin.Command, DispatchResult) DispatchResult

// hookSet holds the router's rewrite hooks. Hooks run in the order they
// were added; a panicking hook is skipped and the value passes through
// unchanged.
type hookSet struct {
	mu   sync.RWMutex
	pre  []PreHook
	post []PostHook
}

// AddPreHook registers a command rewrite applied before matching.
func (r *Router) AddPreHook(h PreHook) {
	if h == nil {
		return
	}
	r.hooks.mu.Lock()
	r.hooks.pre = append(r.hooks.pre, h)
	r.hooks.mu.Unlock()
}

// AddPostHook registers a result rewrite applied after dispatch.
func (r *Router) AddPostHook(h PostHook) {
	if h == nil {
		return
	}
	r.hooks.mu.Lock()
	r.hooks.post = append(r.hooks.post, h)
	r.hooks.mu.Unlock()
}

func (s *hookSet) applyPre(log *zerolog.Logger, cmd plugin.Command) plugin.Command {
	s.mu.RLock()
	hooks := make([]PreHook, len(s.pre))
	copy(hooks, s.pre)
	s.mu.RUnlock()

	for _, h := range hooks {
		cmd = runPreHook(log, h, cmd)
	}
	return cmd
}

func (s *hookSet) applyPost(log *zerolog.Logger, cmd plugin.Command, result DispatchResult) DispatchResult {
	s.mu.RLock()
	hooks := make([]PostHook, len(s.post))
	copy(hooks, s.post)
	s.mu.RUnlock()

	for _, h := range hooks {
		result = runPostHook(log, h, cmd, result)
	}
	return result
}

func runPreHook(log *zerolog.Logger, h PreHook, cmd plugin.Command) (out plugin.Command) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Msg("pre hook panicked")
			out = cmd
		}
	}()
	return h(cmd)
}

func runPostHook(log *zerolog.Logger, h PostHook, cmd plugin.Command, result DispatchResult) (out DispatchResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Msg("post hook panicked")
			out = result
		}
	}()
	return h(cmd, result)
}
