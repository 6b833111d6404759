// Package knowledge stores facts the user teaches the assistant and
// answers questions from them.
//
// Questions are only claimed when a stored entry scores above the
// relevance threshold, so anything the assistant has not learned stays
// free for the model fallback.
package knowledge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dshills/valet/internal/plugin"
)

// LearnUsageResponse is the answer to a malformed learn command.
const LearnUsageResponse = "Please use the format 'learn <topic>: <information>'."

const (
	// relevanceThreshold is the minimum score for a stored entry to
	// count as an answer.
	relevanceThreshold = 0.7

	listLimit = 20
)

// questionStarters introduce a lookup rather than a teaching command.
var questionStarters = []string{
	"what is", "who is", "what are", "who are", "what's", "who's", "explain",
}

// Plugin answers from and maintains a persistent fact store.
type Plugin struct {
	plugin.Base
	store *Store
	now   func() time.Time
}

// Option configures the plugin.
type Option func(*Plugin)

// WithClock replaces the wall clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) { p.now = now }
}

// New builds the knowledge plugin around store.
func New(store *Store, opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase("knowledge", "Knowledge Base",
			"learn <topic>: <fact>, remember <fact>, what is <topic>, forget <topic>, list knowledge",
			"learn", "remember", "recall", "forget", "knowledge", "teach"),
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CanHandle claims teaching commands outright. Question-style commands
// are claimed only when the store already holds a relevant entry.
func (p *Plugin) CanHandle(text string) bool {
	if p.Base.CanHandle(text) {
		return true
	}
	topic, ok := questionTopic(text)
	if !ok || topic == "" {
		return false
	}
	_, _, found := p.bestMatch(topic)
	return found
}

// Execute dispatches on the leading command word.
func (p *Plugin) Execute(_ context.Context, cmd plugin.Command) (string, error) {
	text := plugin.Normalize(cmd.Text)

	if topic, ok := questionTopic(text); ok {
		return p.answer(topic), nil
	}

	switch {
	case strings.HasPrefix(text, "learn"):
		return p.learn(text)
	case strings.HasPrefix(text, "remember"):
		return p.remember(text)
	case strings.HasPrefix(text, "recall"):
		return p.answer(strings.TrimSpace(strings.TrimPrefix(text, "recall"))), nil
	case strings.HasPrefix(text, "forget"):
		return p.forget(text)
	case strings.Contains(text, "knowledge") && (strings.Contains(text, "list") || strings.Contains(text, "show")):
		return p.list(), nil
	case strings.Contains(text, "knowledge") && strings.Contains(text, "clear"):
		return p.clear()
	default:
		return p.answer(text), nil
	}
}

func (p *Plugin) learn(text string) (string, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(text, "learn"))
	topic, info, ok := strings.Cut(rest, ":")
	topic, info = strings.TrimSpace(topic), strings.TrimSpace(info)
	if !ok || info == "" || NormalizeTopic(topic) == "" {
		return LearnUsageResponse, nil
	}
	if err := p.put(topic, info, "manual"); err != nil {
		return "", err
	}
	return fmt.Sprintf("I've learned that %s: %s", topic, info), nil
}

func (p *Plugin) remember(text string) (string, error) {
	info := strings.TrimSpace(strings.TrimPrefix(text, "remember"))
	info = strings.TrimSpace(strings.TrimPrefix(info, "that "))
	if info == "" {
		return "What should I remember? Try 'remember the wifi password is hunter2'.", nil
	}
	topic := rememberTopic(info)
	if err := p.put(topic, info, "remember"); err != nil {
		return "", err
	}
	return "I'll remember: " + info, nil
}

// rememberTopic picks a key for free-form facts: the first word that
// is not an article.
func rememberTopic(info string) string {
	for _, word := range strings.Fields(info) {
		switch word {
		case "a", "an", "the":
			continue
		}
		return word
	}
	return "general"
}

func (p *Plugin) forget(text string) (string, error) {
	topic := strings.TrimSpace(strings.TrimPrefix(text, "forget"))
	topic = strings.TrimPrefix(topic, "about ")
	if topic == "" {
		return "What should I forget?", nil
	}
	removed, err := p.store.Delete(topic)
	if err != nil {
		return "", err
	}
	if !removed {
		return fmt.Sprintf("I don't have information about '%s' to forget.", topic), nil
	}
	return fmt.Sprintf("I've forgotten information about '%s'.", topic), nil
}

func (p *Plugin) list() string {
	var lines []string
	p.store.Each(func(key string, e Entry) bool {
		topic := e.Topic
		if topic == "" {
			topic = strings.ReplaceAll(key, "_", " ")
		}
		lines = append(lines, fmt.Sprintf("- %s (confidence %.0f%%, recalled %dx)",
			topic, e.Confidence*100, e.AccessCount))
		return len(lines) < listLimit
	})
	if len(lines) == 0 {
		return "My knowledge base is empty."
	}
	return fmt.Sprintf("My knowledge base (%d entries):\n%s",
		p.store.Len(), strings.Join(lines, "\n"))
}

func (p *Plugin) clear() (string, error) {
	if err := p.store.Reset(); err != nil {
		return "", err
	}
	return "Knowledge base cleared.", nil
}

func (p *Plugin) answer(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "What would you like to know about?"
	}
	key, entry, ok := p.bestMatch(query)
	if !ok {
		return fmt.Sprintf("I don't have information about '%s' in my knowledge base.", query)
	}
	_ = p.store.Touch(key)

	response := entry.Summary
	if entry.Confidence < 0.8 {
		response += fmt.Sprintf(" (confidence %.0f%%)", entry.Confidence*100)
	}
	return response
}

func (p *Plugin) put(topic, summary, source string) error {
	now := p.now()
	return p.store.Put(topic, Entry{
		Topic:        topic,
		Summary:      summary,
		Sources:      []string{source},
		Confidence:   1,
		StoredAt:     now,
		LastAccessed: now,
	})
}

// bestMatch scans every entry and returns the highest scorer above the
// relevance threshold.
func (p *Plugin) bestMatch(query string) (string, Entry, bool) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return "", Entry{}, false
	}

	var (
		bestKey   string
		best      Entry
		bestScore float64
	)
	p.store.Each(func(key string, e Entry) bool {
		if score := Relevance(query, key, e); score > bestScore {
			bestScore, bestKey, best = score, key, e
		}
		return true
	})
	if bestScore <= relevanceThreshold {
		return "", Entry{}, false
	}
	return bestKey, best, true
}

// Relevance scores how well an entry answers a query, from 0 to 1.
// The whole query matching the storage key or the stored topic scores
// highest; individual words of three letters or more add smaller
// amounts for key and summary hits. The entry's confidence scales the
// result.
func Relevance(query, key string, e Entry) float64 {
	score := 0.0

	if strings.Contains(key, query) {
		score += 0.8
	}

	summary := strings.ToLower(e.Summary)
	for _, word := range strings.Fields(query) {
		if len(word) <= 2 {
			continue
		}
		if strings.Contains(summary, word) {
			score += 0.2
		}
		if strings.Contains(key, word) {
			score += 0.3
		}
	}

	topic := strings.ToLower(e.Topic)
	if topic != "" && (strings.Contains(topic, query) || strings.Contains(query, topic)) {
		score += 0.5
	}

	score *= e.Confidence
	if score > 1 {
		score = 1
	}
	return score
}

var articleWords = regexp.MustCompile(`\b(a|an|the)\b`)

// questionTopic extracts the subject of a question-style command.
func questionTopic(text string) (string, bool) {
	for _, starter := range questionStarters {
		if !strings.HasPrefix(text, starter) {
			continue
		}
		topic := strings.TrimSpace(text[len(starter):])
		topic = articleWords.ReplaceAllString(topic, "")
		topic = strings.Join(strings.Fields(topic), " ")
		return strings.Trim(topic, "?!. "), true
	}
	return "", false
}
