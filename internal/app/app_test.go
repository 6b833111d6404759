package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/valet/internal/config"
	"github.com/dshills/valet/internal/plugin"
)

// testConfig returns a config with every collaborator turned off, so
// bootstrap never touches the network or the user's home directory.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Plugins.AutoDiscover = false
	cfg.Plugins.StateFile = ""
	cfg.Plugins.KnowledgeFile = ""
	cfg.Model.Provider = config.ProviderNone
	cfg.Voice.Enabled = false
	cfg.Logging.Level = "error"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	app, err := New(context.Background(), Options{
		Config:    cfg,
		Input:     strings.NewReader(""),
		Output:    &bytes.Buffer{},
		LogOutput: io.Discard,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if !errors.Is(err, ErrNilConfig) {
		t.Fatalf("New() error = %v, want ErrNilConfig", err)
	}

	var initErr *InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("New() error is %T, want *InitError", err)
	}
	if initErr.Component != "config" {
		t.Errorf("InitError component = %q, want config", initErr.Component)
	}
}

func TestBuiltinsRegisteredInOrder(t *testing.T) {
	app := newTestApp(t, testConfig())

	want := []string{"weather", "websearch", "system", "knowledge", "meta"}
	descriptors := app.Registry().List(true)
	if len(descriptors) != len(want) {
		t.Fatalf("registered %d plugins, want %d", len(descriptors), len(want))
	}
	for i, name := range want {
		if descriptors[i].Name != name {
			t.Errorf("plugin %d = %q, want %q", i, descriptors[i].Name, name)
		}
		if !descriptors[i].Enabled {
			t.Errorf("plugin %q starts disabled", name)
		}
	}
}

func TestConfigDisablesPlugin(t *testing.T) {
	cfg := testConfig()
	cfg.Plugins.DisabledPlugins = []string{"weather"}
	app := newTestApp(t, cfg)

	if app.Registry().IsEnabled("weather") {
		t.Error("weather enabled despite disabled_plugins entry")
	}
	if !app.Registry().IsEnabled("websearch") {
		t.Error("websearch disabled without a config entry")
	}
}

func TestDisableListWinsOverEnableList(t *testing.T) {
	cfg := testConfig()
	cfg.Plugins.EnabledPlugins = []string{"weather"}
	cfg.Plugins.DisabledPlugins = []string{"weather"}
	app := newTestApp(t, cfg)

	if app.Registry().IsEnabled("weather") {
		t.Error("weather enabled; a name in both lists must end up disabled")
	}
}

func TestUnknownConfigNameIsNotFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Plugins.DisabledPlugins = []string{"no-such-plugin"}
	app := newTestApp(t, cfg)

	if app.Registry().Len() == 0 {
		t.Error("registry empty after unknown config name")
	}
}

func TestRuntimeTogglePersists(t *testing.T) {
	cfg := testConfig()
	cfg.Plugins.StateFile = filepath.Join(t.TempDir(), "registry.json")

	app := newTestApp(t, cfg)
	if err := app.Registry().Disable("weather"); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}

	data, err := os.ReadFile(cfg.Plugins.StateFile)
	if err != nil {
		t.Fatalf("state file not written: %v", err)
	}
	if !strings.Contains(string(data), `"weather": false`) {
		t.Errorf("state file missing the toggle: %s", data)
	}

	// A fresh bootstrap picks the toggle back up.
	second := newTestApp(t, cfg)
	if second.Registry().IsEnabled("weather") {
		t.Error("persisted disable lost across restart")
	}
}

func TestMetaToggleRunsThroughRouter(t *testing.T) {
	cfg := testConfig()
	cfg.Plugins.StateFile = filepath.Join(t.TempDir(), "registry.json")
	app := newTestApp(t, cfg)

	result := app.Router().Route(context.Background(),
		plugin.Command{Text: "disable the weather plugin", Source: plugin.SourceText})
	if result.Source != "meta" {
		t.Fatalf("toggle answered by %q, want meta", result.Source)
	}
	if app.Registry().IsEnabled("weather") {
		t.Error("weather still enabled after the disable command")
	}
	if _, err := os.Stat(cfg.Plugins.StateFile); err != nil {
		t.Errorf("toggle not persisted: %v", err)
	}
}

func TestDispatchReachesBuiltins(t *testing.T) {
	app := newTestApp(t, testConfig())

	result := app.Router().Route(context.Background(),
		plugin.Command{Text: "what time is it?", Source: plugin.SourceText})
	if result.Source != "system" {
		t.Fatalf("time question answered by %q, want system", result.Source)
	}
	if !strings.HasPrefix(result.Response, "It's ") {
		t.Errorf("time response = %q", result.Response)
	}
}

func TestCorruptKnowledgeFileFallsBackToMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	if err := os.WriteFile(path, []byte("not json {{{"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	cfg := testConfig()
	cfg.Plugins.KnowledgeFile = path
	app := newTestApp(t, cfg)

	if _, ok := app.Registry().Lookup("knowledge"); !ok {
		t.Error("knowledge plugin missing after corrupt store file")
	}
}

func TestCloseIsSafeTwice(t *testing.T) {
	app := newTestApp(t, testConfig())

	if err := app.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
