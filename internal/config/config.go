// Package config loads and validates valet configuration.
//
// Configuration is layered: compiled defaults, then an optional TOML file,
// then VALET_* environment variables. Later layers win. API keys are never
// read from the file; collaborator clients take them from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration for the assistant.
type Config struct {
	Plugins PluginsConfig `toml:"plugins"`
	Voice   VoiceConfig   `toml:"voice"`
	Model   ModelConfig   `toml:"model"`
	Logging LoggingConfig `toml:"logging"`
}

// PluginsConfig controls plugin registration and discovery.
type PluginsConfig struct {
	// EnabledPlugins lists plugin names to force-enable at startup.
	EnabledPlugins []string `toml:"enabled_plugins"`

	// DisabledPlugins lists plugin names to disable at startup.
	// A name in both lists is disabled; DisabledPlugins wins.
	DisabledPlugins []string `toml:"disabled_plugins"`

	// AutoDiscover scans DiscoverDir for plugin definitions at startup.
	AutoDiscover bool `toml:"auto_discover"`

	// DiscoverDir is the directory scanned when AutoDiscover is set.
	DiscoverDir string `toml:"discover_dir"`

	// StateFile persists enabled/disabled choices between runs.
	// Empty disables persistence.
	StateFile string `toml:"state_file"`

	// KnowledgeFile is where the knowledge plugin keeps what it learns.
	KnowledgeFile string `toml:"knowledge_file"`
}

// VoiceConfig controls the speech daemon client.
type VoiceConfig struct {
	// Enabled connects to the speech daemon and multiplexes transcripts
	// into the assistant loop.
	Enabled bool `toml:"enabled"`

	// WakeWord must prefix a transcript for it to be dispatched.
	WakeWord string `toml:"wake_word"`

	// DaemonURL is the speech daemon websocket endpoint.
	DaemonURL string `toml:"daemon_url"`

	// SpeakLimit truncates spoken responses to this many runes.
	// Zero speaks responses in full.
	SpeakLimit int `toml:"speak_limit"`
}

// ModelConfig selects and configures the language model fallback.
type ModelConfig struct {
	// Provider is one of "ollama", "openai", "anthropic", "gemini", "none".
	Provider string `toml:"provider"`

	// Endpoint is the generate endpoint for ollama, or a base URL
	// override for openai-compatible servers. Empty uses the provider
	// default.
	Endpoint string `toml:"endpoint"`

	// ID is the model identifier passed to the provider.
	ID string `toml:"id"`

	// TimeoutSeconds bounds a single generate call.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// Format is "console" or "json".
	Format string `toml:"format"`
}

// Known model providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderNone      = "none"
)

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Plugins: PluginsConfig{
			AutoDiscover:  true,
			DiscoverDir:   filepath.Join(userConfigDir(), "plugins"),
			StateFile:     filepath.Join(userConfigDir(), "registry.json"),
			KnowledgeFile: filepath.Join(userConfigDir(), "knowledge.json"),
		},
		Voice: VoiceConfig{
			WakeWord:   "assistant",
			DaemonURL:  "ws://localhost:8092/speech",
			SpeakLimit: 500,
		},
		Model: ModelConfig{
			Provider:       ProviderOllama,
			Endpoint:       "http://localhost:11434/api/generate",
			ID:             "llama3.2",
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the effective configuration: defaults, then the TOML file at
// path (or the default location when path is empty), then the environment.
// A missing file is only an error when the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(userConfigDir(), "config.toml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Default location absent, run on defaults.
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Timeout returns the model call deadline.
func (m ModelConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// applyEnv overlays VALET_* environment variables onto the config.
// Set-but-empty values count as set; unset variables leave the field alone.
func (c *Config) applyEnv() {
	setString := func(env string, dst *string) {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}
	setString("VALET_LOG_LEVEL", &c.Logging.Level)
	setString("VALET_LOG_FORMAT", &c.Logging.Format)
	setString("VALET_MODEL_PROVIDER", &c.Model.Provider)
	setString("VALET_MODEL_ENDPOINT", &c.Model.Endpoint)
	setString("VALET_MODEL_ID", &c.Model.ID)
	setString("VALET_WAKE_WORD", &c.Voice.WakeWord)
	setString("VALET_VOICE_URL", &c.Voice.DaemonURL)
	setString("VALET_PLUGIN_DIR", &c.Plugins.DiscoverDir)
	setString("VALET_STATE_FILE", &c.Plugins.StateFile)
	setString("VALET_KNOWLEDGE_FILE", &c.Plugins.KnowledgeFile)

	if v, ok := os.LookupEnv("VALET_VOICE_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Voice.Enabled = b
		}
	}
	if v, ok := os.LookupEnv("VALET_AUTO_DISCOVER"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Plugins.AutoDiscover = b
		}
	}
}

// Validate checks the configuration and returns all problems found,
// joined into one error.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProvider, c.Model.Provider))
	}

	if c.Voice.Enabled {
		if strings.TrimSpace(c.Voice.WakeWord) == "" {
			errs = append(errs, ErrEmptyWakeWord)
		}
		if c.Voice.DaemonURL == "" {
			errs = append(errs, ErrEmptyDaemonURL)
		}
	}
	if c.Voice.SpeakLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrBadSpeakLimit, c.Voice.SpeakLimit))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrBadLogLevel, c.Logging.Level))
	}
	switch c.Logging.Format {
	case "console", "json", "":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrBadLogFormat, c.Logging.Format))
	}

	if c.Plugins.AutoDiscover && c.Plugins.DiscoverDir == "" {
		errs = append(errs, ErrEmptyDiscoverDir)
	}

	return errors.Join(errs...)
}

// userConfigDir returns the valet directory under the platform config root.
// Falls back to a dotted directory in the working directory when the
// platform root is unknown.
func userConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".valet"
	}
	return filepath.Join(base, "valet")
}
