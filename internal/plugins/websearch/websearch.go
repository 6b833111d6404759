// Package websearch opens web searches and websites in the user's
// browser.
package websearch

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/dshills/valet/internal/plugin"
)

// UsageResponse is the answer when the command names no query or site.
const UsageResponse = "Web commands: 'search <query>', 'youtube <query>', 'wikipedia <topic>', 'open <website>'."

// Opener launches a URL in the user's browser.
type Opener func(url string) error

// Plugin turns search commands into browser launches.
type Plugin struct {
	plugin.Base
	open Opener
}

// Option configures the plugin.
type Option func(*Plugin)

// WithOpener replaces the browser launcher, mainly for tests.
func WithOpener(open Opener) Option {
	return func(p *Plugin) { p.open = open }
}

// New builds the plugin with the platform browser launcher.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase("websearch", "Web Search",
			"search <query>, youtube <query>, wikipedia <topic>, open <website>",
			"search", "google", "website", "open", "browse", "youtube", "wiki", "wikipedia"),
		open: systemOpener,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute implements plugin.Plugin.
func (p *Plugin) Execute(_ context.Context, cmd plugin.Command) (string, error) {
	text := plugin.Normalize(cmd.Text)

	switch {
	case strings.Contains(text, "youtube"):
		return p.searchYouTube(text)
	case strings.Contains(text, "wiki"):
		return p.searchWikipedia(text)
	case strings.Contains(text, "open") && siteIn(text) != "":
		return p.openWebsite(siteIn(text))
	case strings.Contains(text, "search") || strings.Contains(text, "google") || strings.Contains(text, "find"):
		return p.searchGoogle(text)
	default:
		return UsageResponse, nil
	}
}

// stopWords are command words removed before building the query.
var stopWords = map[string]bool{
	"search": true, "google": true, "find": true, "youtube": true,
	"wikipedia": true, "wiki": true, "open": true, "for": true,
	"about": true, "on": true,
}

// ExtractQuery removes command words from folded text, leaving the
// search terms.
func ExtractQuery(text string) string {
	var kept []string
	for _, word := range strings.Fields(text) {
		if !stopWords[strings.Trim(word, "?!.,")] {
			kept = append(kept, word)
		}
	}
	return strings.Trim(strings.Join(kept, " "), "?!., ")
}

func (p *Plugin) searchGoogle(text string) (string, error) {
	query := ExtractQuery(text)
	if query == "" {
		return "What should I search for? Try 'search golang generics'.", nil
	}
	target := "https://www.google.com/search?q=" + url.QueryEscape(query)
	if err := p.open(target); err != nil {
		return "", fmt.Errorf("websearch: open browser: %w", err)
	}
	return fmt.Sprintf("Opened a Google search for '%s' in your browser.", query), nil
}

func (p *Plugin) searchYouTube(text string) (string, error) {
	query := ExtractQuery(text)
	if query == "" {
		return "What should I look for on YouTube? Try 'youtube lofi beats'.", nil
	}
	target := "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)
	if err := p.open(target); err != nil {
		return "", fmt.Errorf("websearch: open browser: %w", err)
	}
	return fmt.Sprintf("Opened a YouTube search for '%s' in your browser.", query), nil
}

func (p *Plugin) searchWikipedia(text string) (string, error) {
	query := ExtractQuery(text)
	if query == "" {
		return "Which topic should I look up? Try 'wikipedia alan turing'.", nil
	}
	article := strings.ReplaceAll(query, " ", "_")
	target := "https://en.wikipedia.org/wiki/" + url.PathEscape(article)
	if err := p.open(target); err != nil {
		return "", fmt.Errorf("websearch: open browser: %w", err)
	}
	return fmt.Sprintf("Opened the Wikipedia article for '%s' in your browser.", query), nil
}

// siteIn returns the first word that looks like a website, or "".
func siteIn(text string) string {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, "?!.,")
		if strings.HasPrefix(word, "www.") || strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://") {
			return word
		}
		for _, tld := range []string{".com", ".org", ".net", ".gov", ".edu", ".io", ".dev"} {
			if strings.Contains(word, tld) {
				return word
			}
		}
	}
	return ""
}

func (p *Plugin) openWebsite(site string) (string, error) {
	if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
		site = "https://" + site
	}
	if err := p.open(site); err != nil {
		return "", fmt.Errorf("websearch: open browser: %w", err)
	}
	return fmt.Sprintf("Opened %s in your browser.", site), nil
}

// systemOpener hands the URL to the platform browser launcher.
func systemOpener(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}
