// Package app wires the assistant together and runs the conversation
// loop. It owns component lifecycles: configuration feeds the registry,
// router, language model, and voice client, and Close tears them down.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/valet/internal/config"
	"github.com/dshills/valet/internal/dispatcher"
	"github.com/dshills/valet/internal/llm"
	"github.com/dshills/valet/internal/plugin"
	"github.com/dshills/valet/internal/plugins/knowledge"
	"github.com/dshills/valet/internal/plugins/meta"
	"github.com/dshills/valet/internal/plugins/system"
	"github.com/dshills/valet/internal/plugins/weather"
	"github.com/dshills/valet/internal/plugins/websearch"
	"github.com/dshills/valet/internal/voice"
)

// Application is the assembled assistant.
type Application struct {
	cfg *config.Config
	log zerolog.Logger

	// Dispatch pipeline
	registry *plugin.Registry
	router   *dispatcher.Router
	model    llm.Client

	// Voice collaborator, nil in text-only sessions
	voice voice.Transceiver
	gate  *voice.WakeWordGate

	// Conversation endpoints
	in          io.Reader
	out         io.Writer
	interactive bool

	running     atomic.Bool
	unsubscribe func()
}

// Options configures the application.
type Options struct {
	// Config is the effective configuration. Required.
	Config *config.Config

	// Input is the text command source. Defaults to os.Stdin.
	Input io.Reader

	// Output receives responses. Defaults to os.Stdout.
	Output io.Writer

	// LogOutput receives logs. Defaults to os.Stderr.
	LogOutput io.Writer

	// Interactive turns on the prompt, banner, and colored plugin
	// listings. Off when input is piped.
	Interactive bool

	// Model replaces the configured language model client.
	Model llm.Client

	// Voice replaces the configured speech daemon connection.
	Voice voice.Transceiver

	// NoVoice skips the speech daemon even when configuration asks
	// for it.
	NoVoice bool
}

// New builds the application and bootstraps its components. Missing
// collaborators degrade the assistant rather than failing it: a dead
// speech daemon means text only, a dead model means fixed fallbacks.
func New(ctx context.Context, opts Options) (*Application, error) {
	if opts.Config == nil {
		return nil, &InitError{Component: "config", Err: ErrNilConfig}
	}

	app := &Application{
		cfg:         opts.Config,
		in:          opts.Input,
		out:         opts.Output,
		interactive: opts.Interactive,
	}
	if app.in == nil {
		app.in = os.Stdin
	}
	if app.out == nil {
		app.out = os.Stdout
	}

	if err := app.bootstrap(ctx, opts); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap initializes components in dependency order.
func (app *Application) bootstrap(ctx context.Context, opts Options) error {
	cfg := app.cfg

	// 1. Logging
	app.log = NewLogger(cfg.Logging, opts.LogOutput)

	// 2. Registry with the built-in plugins
	app.registry = plugin.NewRegistry()
	if err := app.registerBuiltins(); err != nil {
		return &InitError{Component: "plugins", Err: err}
	}

	// 3. Directory discovery. Bad definitions are skipped, not fatal.
	if cfg.Plugins.AutoDiscover {
		for _, derr := range app.registry.Discover(cfg.Plugins.DiscoverDir) {
			app.log.Warn().Str("plugin", derr.Name).Str("path", derr.Path).
				Err(derr.Err).Msg("plugin definition skipped")
		}
	}

	// 4. Enabled/disabled choices from the previous run
	if cfg.Plugins.StateFile != "" {
		if err := app.registry.LoadState(cfg.Plugins.StateFile); err != nil {
			app.log.Warn().Err(err).Msg("registry state not loaded")
		}
	}

	// 5. Config lists override persisted state; disable wins over enable
	app.applyPluginConfig()

	// 6. Persist runtime toggles as they happen
	app.unsubscribe = app.registry.Subscribe(app.persistToggle)

	// 7. Language model fallback
	app.model = opts.Model
	if app.model == nil {
		model, err := llm.New(cfg.Model)
		if err != nil {
			app.log.Warn().Err(err).Msg("language model unavailable")
		} else {
			app.model = model
		}
	}

	// 8. Router
	routerOpts := []dispatcher.Option{dispatcher.WithLogger(app.log)}
	if app.model != nil {
		routerOpts = append(routerOpts, dispatcher.WithGenerator(app.model))
	}
	router, err := dispatcher.NewRouter(app.registry, routerOpts...)
	if err != nil {
		return &InitError{Component: "router", Err: err}
	}
	app.router = router

	// 9. Voice
	app.gate = voice.NewWakeWordGate(cfg.Voice.WakeWord)
	app.voice = opts.Voice
	if app.voice == nil && cfg.Voice.Enabled && !opts.NoVoice {
		client, err := voice.Dial(ctx, cfg.Voice.DaemonURL, voice.WithLogger(app.log))
		if err != nil {
			app.log.Warn().Err(err).Str("url", cfg.Voice.DaemonURL).
				Msg("speech daemon unavailable, running text only")
		} else {
			app.voice = client
		}
	}

	return nil
}

// registerBuiltins registers the built-in plugins. Registration order
// is dispatch order, so the broad meta plugin goes last where it cannot
// shadow a specific one.
func (app *Application) registerBuiltins() error {
	store, err := knowledge.Open(app.cfg.Plugins.KnowledgeFile)
	if err != nil {
		app.log.Warn().Err(err).Str("path", app.cfg.Plugins.KnowledgeFile).
			Msg("knowledge store unreadable, starting in memory")
		store, _ = knowledge.Open("")
	}

	var metaOpts []meta.Option
	if app.interactive {
		metaOpts = append(metaOpts, meta.WithStyles(meta.TTYStyles()))
	}

	builtins := []plugin.Plugin{
		weather.New(os.Getenv("OPENWEATHER_API_KEY")),
		websearch.New(),
		system.New(),
		knowledge.New(store),
		meta.New(app.registry, metaOpts...),
	}
	for _, p := range builtins {
		if err := app.registry.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// applyPluginConfig applies the configured enable and disable lists.
// Unknown names are logged and skipped. Disable runs second, so a name
// in both lists ends up disabled.
func (app *Application) applyPluginConfig() {
	for _, name := range app.cfg.Plugins.EnabledPlugins {
		if err := app.registry.Enable(name); err != nil {
			app.log.Warn().Str("plugin", name).Err(err).Msg("cannot enable plugin")
		}
	}
	for _, name := range app.cfg.Plugins.DisabledPlugins {
		if err := app.registry.Disable(name); err != nil {
			app.log.Warn().Str("plugin", name).Err(err).Msg("cannot disable plugin")
		}
	}
}

// persistToggle saves registry state on runtime enable and disable so
// toggles survive restarts.
func (app *Application) persistToggle(event plugin.Event) {
	if event.Type != plugin.EventEnabled && event.Type != plugin.EventDisabled {
		return
	}
	path := app.cfg.Plugins.StateFile
	if path == "" {
		return
	}
	if err := app.registry.SaveState(path); err != nil {
		app.log.Warn().Err(err).Str("path", path).Msg("registry state not saved")
	}
}

// Registry returns the plugin registry.
func (app *Application) Registry() *plugin.Registry {
	return app.registry
}

// Router returns the command router.
func (app *Application) Router() *dispatcher.Router {
	return app.router
}

// Close releases collaborator connections and persists final registry
// state. Safe to call after a failed Run.
func (app *Application) Close() error {
	if app.unsubscribe != nil {
		app.unsubscribe()
		app.unsubscribe = nil
	}

	var errs []error
	if app.voice != nil {
		if err := app.voice.Close(); err != nil && !errors.Is(err, voice.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if closer, ok := app.model.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if path := app.cfg.Plugins.StateFile; path != "" {
		if err := app.registry.SaveState(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
