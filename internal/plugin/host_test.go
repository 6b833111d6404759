package plugin_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/valet/internal/plugin"
)

func loadHost(t *testing.T, manifestJSON, luaSource string) *plugin.Host {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifestJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte(luaSource), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := plugin.LoadManifest(filepath.Join(dir, "plugin.json"))
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	h, err := plugin.NewHost(m)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	if err := h.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}

const timeManifest = `{
	"name": "clock",
	"displayName": "Clock",
	"version": "1.0.0",
	"description": "Tells the time"
}`

func TestHostExecutesLuaPlugin(t *testing.T) {
	h := loadHost(t, timeManifest, `
function can_handle(text)
	return string.find(text, "time") ~= nil
end

function execute(text)
	return "it is lua o'clock"
end

function help()
	return "ask me the time"
end
`)

	if h.Name() != "clock" || h.DisplayName() != "Clock" {
		t.Errorf("unexpected identity %q / %q", h.Name(), h.DisplayName())
	}
	if !h.CanHandle("what time is it") {
		t.Error("expected can_handle match")
	}
	if h.CanHandle("weather today") {
		t.Error("expected can_handle reject")
	}

	got, err := h.Execute(context.Background(), plugin.Command{Text: "what time is it"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != "it is lua o'clock" {
		t.Errorf("unexpected response %q", got)
	}

	if h.Help() != "ask me the time" {
		t.Errorf("unexpected help %q", h.Help())
	}
}

func TestHostKeywordFallbackWhenNoCanHandle(t *testing.T) {
	h := loadHost(t, `{
		"name": "clock",
		"version": "1.0.0",
		"keywords": ["Time", "date"],
		"description": "Tells the time"
	}`, `
function execute(text)
	return "noon"
end
`)

	if !h.CanHandle("what time is it") {
		t.Error("expected keyword fallback to match folded keyword")
	}
	if h.CanHandle("weather") {
		t.Error("expected keyword fallback to reject")
	}
	if h.Help() != "Tells the time" {
		t.Errorf("expected description fallback, got %q", h.Help())
	}
}

func TestHostLoadRejectsMissingExecute(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte(`x = 1`), 0o644); err != nil {
		t.Fatal(err)
	}

	m := plugin.NewManifestMinimal("naked", dir)
	h, err := plugin.NewHost(m)
	if err != nil {
		t.Fatal(err)
	}

	err = h.Load()
	if !errors.Is(err, plugin.ErrNoEntryPoint) {
		t.Fatalf("expected ErrNoEntryPoint, got %v", err)
	}
}

func TestHostLoadRejectsUnmatchablePlugin(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte(`
function execute(text)
	return "unreachable"
end
`), 0o644); err != nil {
		t.Fatal(err)
	}

	// No can_handle and no keywords: nothing could ever route here.
	m := plugin.NewManifestMinimal("orphan", dir)
	h, err := plugin.NewHost(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Load(); !errors.Is(err, plugin.ErrNoEntryPoint) {
		t.Fatalf("expected ErrNoEntryPoint, got %v", err)
	}
}

func TestHostExecuteErrorSurfaces(t *testing.T) {
	h := loadHost(t, timeManifest, `
function can_handle(text)
	return true
end

function execute(text)
	error("clock spring snapped")
end
`)

	_, err := h.Execute(context.Background(), plugin.Command{Text: "time"})
	if err == nil {
		t.Fatal("expected lua error to surface")
	}
	if !strings.Contains(err.Error(), "clock spring snapped") {
		t.Errorf("expected lua message in error, got %v", err)
	}
}

func TestHostExecuteRejectsNonStringReturn(t *testing.T) {
	h := loadHost(t, timeManifest, `
function can_handle(text)
	return true
end

function execute(text)
	return {1, 2, 3}
end
`)

	_, err := h.Execute(context.Background(), plugin.Command{Text: "time"})
	if err == nil {
		t.Fatal("expected type error for table return")
	}
}

func TestHostUnloadedBehavior(t *testing.T) {
	m := plugin.NewManifestMinimal("idle", t.TempDir())
	h, err := plugin.NewHost(m)
	if err != nil {
		t.Fatal(err)
	}

	if h.CanHandle("anything") {
		t.Error("unloaded host must not match")
	}
	if _, err := h.Execute(context.Background(), plugin.Command{Text: "x"}); !errors.Is(err, plugin.ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestNewHostNilManifest(t *testing.T) {
	if _, err := plugin.NewHost(nil); !errors.Is(err, plugin.ErrNilManifest) {
		t.Errorf("expected ErrNilManifest, got %v", err)
	}
}
