// Package meta answers questions about the assistant itself: what it
// can do, which plugins are loaded, and turning plugins on and off.
package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/valet/internal/plugin"
)

// Registry is the view of the plugin registry the meta plugin needs:
// listing for help output, toggling for enable and disable commands.
type Registry interface {
	List(includeDisabled bool) []plugin.Descriptor
	Enable(name string) error
	Disable(name string) error
}

// Styles controls terminal rendering. The zero value renders plain
// text, which keeps spoken responses free of escape codes.
type Styles struct {
	Title    lipgloss.Style
	Item     lipgloss.Style
	Disabled lipgloss.Style
}

// TTYStyles returns colored styles for interactive terminals.
func TTYStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Item:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Disabled: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Plugin describes and manages the assistant's own capabilities.
type Plugin struct {
	plugin.Base
	registry Registry
	styles   Styles
}

// Option configures the plugin.
type Option func(*Plugin)

// WithStyles replaces the plain default rendering.
func WithStyles(s Styles) Option {
	return func(p *Plugin) { p.styles = s }
}

// New builds the meta plugin over a registry view.
func New(registry Registry, opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase("meta", "Assistant",
			"help, list plugins, enable <plugin>, disable <plugin>",
			"help", "what can you do", "list plugins", "plugins", "enable", "disable"),
		registry: registry,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute dispatches between the plugin list, plugin toggles, and the
// capability summary.
func (p *Plugin) Execute(_ context.Context, cmd plugin.Command) (string, error) {
	text := plugin.Normalize(cmd.Text)

	switch {
	case strings.Contains(text, "disable"):
		return p.toggle(text, false)
	case strings.Contains(text, "enable"):
		return p.toggle(text, true)
	case strings.Contains(text, "plugin") && (strings.Contains(text, "list") || strings.Contains(text, "show")):
		return p.listPlugins(), nil
	default:
		return p.help(), nil
	}
}

// help aggregates one line per enabled plugin from its Help text.
func (p *Plugin) help() string {
	var b strings.Builder
	b.WriteString(p.styles.Title.Render("Here's what I can do:"))
	for _, d := range p.registry.List(false) {
		b.WriteString("\n")
		b.WriteString(p.styles.Item.Render(fmt.Sprintf("%s: %s", d.DisplayName, d.Help)))
	}
	b.WriteString("\n")
	b.WriteString(p.styles.Item.Render("Say 'exit' or 'quit' to leave."))
	return b.String()
}

func (p *Plugin) listPlugins() string {
	descriptors := p.registry.List(true)
	if len(descriptors) == 0 {
		return "No plugins are registered."
	}

	lines := make([]string, 0, len(descriptors)+1)
	lines = append(lines, p.styles.Title.Render(fmt.Sprintf("Plugins (%d):", len(descriptors))))
	for _, d := range descriptors {
		line := fmt.Sprintf("%s %s (%s): %s", marker(d.Enabled), d.DisplayName, d.Name, d.Help)
		style := p.styles.Item
		if !d.Enabled {
			style = p.styles.Disabled
		}
		lines = append(lines, style.Render(line))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (p *Plugin) toggle(text string, enable bool) (string, error) {
	name := pluginName(text)
	if name == "" {
		return "Which plugin? Try 'disable weather' or say 'list plugins'.", nil
	}

	var err error
	if enable {
		err = p.registry.Enable(name)
	} else {
		err = p.registry.Disable(name)
	}
	switch {
	case errors.Is(err, plugin.ErrNotFound):
		return fmt.Sprintf("I don't know a plugin called '%s'. Say 'list plugins' to see them.", name), nil
	case err != nil:
		return "", err
	case enable:
		return fmt.Sprintf("Enabled the %s plugin.", name), nil
	default:
		return fmt.Sprintf("Disabled the %s plugin.", name), nil
	}
}

// pluginName pulls the target name out of a toggle command. Display
// names with spaces collapse to the registered form ("web search"
// becomes "websearch").
func pluginName(text string) string {
	var kept []string
	for _, word := range strings.Fields(text) {
		switch strings.Trim(word, "?!.,") {
		case "enable", "disable", "plugin", "plugins", "the", "a", "please":
			continue
		default:
			kept = append(kept, strings.Trim(word, "?!.,"))
		}
	}
	return strings.Join(kept, "")
}

func marker(enabled bool) string {
	if enabled {
		return "[on] "
	}
	return "[off]"
}
