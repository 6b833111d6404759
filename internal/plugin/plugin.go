package plugin

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
)

// Command is one user request moving through the dispatch pipeline.
type Command struct {
	// Text is the trimmed request exactly as the user gave it.
	Text string

	// Source identifies the input channel ("text" or "voice").
	Source string

	// Meta carries optional per-command context for hooks and plugins.
	Meta map[string]string
}

// Command sources.
const (
	SourceText  = "text"
	SourceVoice = "voice"
)

// Plugin handles a family of user commands.
//
// CanHandle receives case-folded text and must be pure and cheap: no I/O,
// no side effects, no retained state. Execute receives the original
// command and may block, perform I/O, and fail. Help returns a one-line
// usage summary.
type Plugin interface {
	// Name returns the unique registry name.
	Name() string

	// DisplayName returns the human-readable name.
	DisplayName() string

	// CanHandle reports whether Execute should receive this command.
	// The text is trimmed and case-folded before the call.
	CanHandle(text string) bool

	// Execute performs the command and returns the response text.
	Execute(ctx context.Context, cmd Command) (string, error)

	// Help returns a one-line usage summary.
	Help() string
}

// Fold returns text lowered by Unicode case folding, for matching.
func Fold(text string) string {
	return cases.Fold().String(text)
}

// Normalize trims and case-folds text the way the router does before
// matching. Plugins and tests can use it to mirror router behavior.
func Normalize(text string) string {
	return Fold(strings.TrimSpace(text))
}

// Func adapts plain functions to the Plugin interface.
type Func struct {
	// PluginName is the unique registry name.
	PluginName string

	// PluginDisplayName is the human-readable name. Empty falls back to
	// PluginName.
	PluginDisplayName string

	// Match is the capability predicate. Nil never matches.
	Match func(text string) bool

	// Run performs the command. Nil fails with ErrNotLoaded.
	Run func(ctx context.Context, cmd Command) (string, error)

	// Usage is the help line.
	Usage string
}

// Name implements Plugin.
func (f *Func) Name() string { return f.PluginName }

// DisplayName implements Plugin.
func (f *Func) DisplayName() string {
	if f.PluginDisplayName == "" {
		return f.PluginName
	}
	return f.PluginDisplayName
}

// CanHandle implements Plugin.
func (f *Func) CanHandle(text string) bool {
	if f.Match == nil {
		return false
	}
	return f.Match(text)
}

// Execute implements Plugin.
func (f *Func) Execute(ctx context.Context, cmd Command) (string, error) {
	if f.Run == nil {
		return "", ErrNotLoaded
	}
	return f.Run(ctx, cmd)
}

// Help implements Plugin.
func (f *Func) Help() string { return f.Usage }

// Base gives embedders identity plus keyword-substring matching, the
// common shape of the built-in plugins. Keywords are folded once at
// construction; CanHandle reports true when any keyword is a substring
// of the folded input.
type Base struct {
	name        string
	displayName string
	keywords    []string
	usage       string
}

// NewBase builds a Base. The display name falls back to name when empty.
func NewBase(name, displayName, usage string, keywords ...string) Base {
	folded := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = Normalize(kw)
		if kw != "" {
			folded = append(folded, kw)
		}
	}
	if displayName == "" {
		displayName = name
	}
	return Base{
		name:        name,
		displayName: displayName,
		keywords:    folded,
		usage:       usage,
	}
}

// Name implements Plugin.
func (b Base) Name() string { return b.name }

// DisplayName implements Plugin.
func (b Base) DisplayName() string { return b.displayName }

// Help implements Plugin.
func (b Base) Help() string { return b.usage }

// Keywords returns the folded match keywords.
func (b Base) Keywords() []string {
	out := make([]string, len(b.keywords))
	copy(out, b.keywords)
	return out
}

// CanHandle implements Plugin with keyword-substring matching.
func (b Base) CanHandle(text string) bool {
	for _, kw := range b.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Descriptor is a point-in-time snapshot of a registered plugin.
type Descriptor struct {
	Name        string
	DisplayName string
	Enabled     bool
	Help        string
}
