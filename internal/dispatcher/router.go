package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/valet/internal/plugin"
)

// Fixed responses the router gives without consulting plugins or the model.
const (
	// ApologyResponse answers commands nothing could handle.
	ApologyResponse = "I'm sorry, I can't help with that right now."
	// BusyResponse answers commands that arrive while one is in flight.
	BusyResponse = "I'm still working on the last request."
	// EmptyInputResponse answers blank input.
	EmptyInputResponse = "I didn't catch that. Say \"help\" to see what I can do."
)

// FailureNotice is the response for a plugin that matched but failed.
func FailureNotice(displayName string) string {
	return fmt.Sprintf("Sorry, %s ran into a problem handling that.", displayName)
}

// Generator produces free-form answers for commands no plugin claims.
type Generator interface {
	// Generate answers the prompt. Implementations own their own
	// deadlines; the router imposes none beyond the caller's context.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name identifies the backing model for logs.
	Name() string
}

// Router matches commands against registered plugins and falls back to a
// language model. It keeps no state between calls; the busy flag and
// metrics are operational counters, not dispatch state.
type Router struct {
	registry *plugin.Registry
	model    Generator
	metrics  *Metrics
	log      zerolog.Logger
	busy     atomic.Bool

	hooks hookSet
}

// Option configures a Router.
type Option func(*Router)

// WithGenerator wires the language model used when no plugin matches.
// Without one, unmatched commands get the fixed apology.
func WithGenerator(g Generator) Option {
	return func(r *Router) { r.model = g }
}

// WithLogger sets the logger for dispatch events.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Router) { r.log = log }
}

// NewRouter builds a router over the given registry.
func NewRouter(reg *plugin.Registry, opts ...Option) (*Router, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	r := &Router{
		registry: reg,
		metrics:  NewMetrics(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Metrics exposes the router's dispatch counters.
func (r *Router) Metrics() *Metrics { return r.metrics }

// Busy reports whether a command is currently in flight.
func (r *Router) Busy() bool { return r.busy.Load() }

// Route dispatches one command and always returns a result.
//
// Matching walks enabled plugins in registration order over the trimmed,
// case-folded text; the first plugin whose CanHandle reports true
// executes, outside any registry lock. Plugins receive the command as
// given; folding applies to matching only. A matched plugin that fails
// still counts as handled and answers with a generic failure notice.
// Unmatched commands go to the language model, and when that is missing
// or unavailable the router answers with the fixed apology.
func (r *Router) Route(ctx context.Context, cmd plugin.Command) DispatchResult {
	if !r.busy.CompareAndSwap(false, true) {
		r.metrics.recordBusy()
		return Unhandled(BusyResponse, nil)
	}
	defer r.busy.Store(false)

	start := time.Now()
	cmd = r.hooks.applyPre(&r.log, cmd)
	result := r.dispatch(ctx, cmd)
	result = r.hooks.applyPost(&r.log, cmd, result)
	r.observe(cmd, result, time.Since(start))
	return result
}

func (r *Router) dispatch(ctx context.Context, cmd plugin.Command) DispatchResult {
	trimmed := strings.TrimSpace(cmd.Text)
	if trimmed == "" {
		return Unhandled(EmptyInputResponse, nil)
	}
	folded := plugin.Fold(trimmed)

	for _, p := range r.registry.Enabled() {
		if !r.match(p, folded) {
			continue
		}
		response, err := r.execute(ctx, p, cmd)
		if err != nil {
			return PluginFailure(p.Name(), FailureNotice(p.DisplayName()), &ExecutionError{Plugin: p.Name(), Err: err})
		}
		return PluginResult(p.Name(), response)
	}

	return r.fallback(ctx, trimmed)
}

// match asks one plugin whether it claims the folded text. A panicking
// CanHandle counts as no match.
func (r *Router) match(p plugin.Plugin, folded string) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn().Str("plugin", p.Name()).Interface("panic", rec).Msg("can_handle panicked")
			matched = false
		}
	}()
	return p.CanHandle(folded)
}

// execute runs the matched plugin, converting a panic into an error so
// dispatch stays total.
func (r *Router) execute(ctx context.Context, p plugin.Plugin, cmd plugin.Command) (response string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()
	return p.Execute(ctx, cmd)
}

func (r *Router) fallback(ctx context.Context, prompt string) DispatchResult {
	if r.model == nil {
		return Unhandled(ApologyResponse, ErrNoGenerator)
	}
	response, err := r.model.Generate(ctx, prompt)
	if err != nil {
		r.log.Warn().Err(err).Str("model", r.model.Name()).Msg("language model fallback failed")
		return Unhandled(ApologyResponse, err)
	}
	return LLMResult(response)
}

func (r *Router) observe(cmd plugin.Command, result DispatchResult, elapsed time.Duration) {
	r.metrics.record(result, elapsed)

	evt := r.log.Debug()
	if result.Err != nil {
		evt = r.log.Error().Err(result.Err)
	}
	evt.Str("source", result.Source).
		Bool("handled", result.Handled).
		Str("origin", cmd.Source).
		Dur("elapsed", elapsed).
		Msg("command dispatched")
}
