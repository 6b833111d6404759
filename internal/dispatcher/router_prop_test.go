package dispatcher_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/dshills/valet/internal/dispatcher"
	"github.com/dshills/valet/internal/plugin"
)

// TestRoutePropertyFirstEnabledMatchWins drives the router with random
// plugin sets and inputs and checks the documented policy against a
// straight-line model: the answer comes from the first enabled plugin,
// in registration order, whose keyword occurs in the folded text, or
// from the model fallback when none does.
func TestRoutePropertyFirstEnabledMatchWins(t *testing.T) {
	words := []string{"weather", "time", "news", "music", "lights", "timer"}

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "plugins")

		type spec struct {
			name    string
			keyword string
			enabled bool
		}
		specs := make([]spec, n)
		reg := plugin.NewRegistry()
		for i := range specs {
			specs[i] = spec{
				name:    fmt.Sprintf("plugin-%d", i),
				keyword: rapid.SampledFrom(words).Draw(rt, "keyword"),
				enabled: rapid.Bool().Draw(rt, "enabled"),
			}
			if err := reg.Register(keywordPlugin(specs[i].name, specs[i].keyword, "answer from "+specs[i].name)); err != nil {
				rt.Fatalf("Register failed: %v", err)
			}
			if !specs[i].enabled {
				if err := reg.Disable(specs[i].name); err != nil {
					rt.Fatalf("Disable failed: %v", err)
				}
			}
		}

		prefix := rapid.StringMatching(`[a-z ]{0,12}`).Draw(rt, "prefix")
		word := rapid.SampledFrom(words).Draw(rt, "word")
		if rapid.Bool().Draw(rt, "shout") {
			word = strings.ToUpper(word)
		}
		suffix := rapid.StringMatching(`[a-z ]{0,12}`).Draw(rt, "suffix")
		input := prefix + word + suffix

		r, err := dispatcher.NewRouter(reg, dispatcher.WithGenerator(&fakeModel{response: "fallback"}))
		if err != nil {
			rt.Fatalf("NewRouter failed: %v", err)
		}
		result := r.Route(context.Background(), textCommand(input))

		expected := dispatcher.SourceLLM
		folded := plugin.Normalize(input)
		for _, s := range specs {
			if s.enabled && strings.Contains(folded, s.keyword) {
				expected = s.name
				break
			}
		}

		if result.Source != expected {
			rt.Fatalf("input %q went to %q, want %q", input, result.Source, expected)
		}

		again := r.Route(context.Background(), textCommand(input))
		if again.Source != result.Source || again.Response != result.Response {
			rt.Fatalf("input %q not deterministic: %+v then %+v", input, result, again)
		}
	})
}
