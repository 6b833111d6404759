package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Entry is one learned fact.
type Entry struct {
	Topic        string
	Summary      string
	Sources      []string
	Confidence   float64
	StoredAt     time.Time
	LastAccessed time.Time
	AccessCount  int
}

// Store keeps entries in a single JSON document, persisted to disk on
// every change. The document is the source of truth; unknown fields in
// an existing file survive edits untouched.
type Store struct {
	mu   sync.Mutex
	path string
	doc  []byte
}

// Open loads the store at path. A missing file starts an empty store;
// an empty path keeps the store in memory only.
func Open(path string) (*Store, error) {
	s := &Store{path: path, doc: emptyDoc()}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, path)
		}
		s.doc = data
	case os.IsNotExist(err):
		// First run.
	default:
		return nil, fmt.Errorf("knowledge: reading %s: %w", path, err)
	}
	return s, nil
}

func emptyDoc() []byte {
	doc, _ := sjson.SetBytes([]byte(`{"entries":{}}`),
		"metadata.created", time.Now().Format(time.RFC3339))
	return doc
}

// Put stores an entry under the normalized form of topic, replacing any
// previous entry for the same key.
func (s *Store) Put(topic string, e Entry) error {
	key := NormalizeTopic(topic)
	if key == "" {
		return ErrEmptyTopic
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := "entries." + key
	doc := s.doc
	var err error
	for _, field := range []struct {
		path  string
		value any
	}{
		{base + ".topic", e.Topic},
		{base + ".summary", e.Summary},
		{base + ".sources", e.Sources},
		{base + ".confidence", e.Confidence},
		{base + ".stored_date", e.StoredAt.Format(time.RFC3339)},
		{base + ".last_accessed", e.LastAccessed.Format(time.RFC3339)},
		{base + ".access_count", e.AccessCount},
	} {
		doc, err = sjson.SetBytes(doc, field.path, field.value)
		if err != nil {
			return fmt.Errorf("knowledge: storing %q: %w", topic, err)
		}
	}
	s.doc = doc
	return s.save()
}

// Get returns the entry stored under topic.
func (s *Store) Get(topic string) (Entry, bool) {
	key := NormalizeTopic(topic)

	s.mu.Lock()
	defer s.mu.Unlock()

	v := gjson.GetBytes(s.doc, "entries."+key)
	if !v.Exists() {
		return Entry{}, false
	}
	return entryFrom(v), true
}

// Delete removes the entry stored under topic and reports whether one
// was there.
func (s *Store) Delete(topic string) (bool, error) {
	key := NormalizeTopic(topic)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !gjson.GetBytes(s.doc, "entries."+key).Exists() {
		return false, nil
	}
	doc, err := sjson.DeleteBytes(s.doc, "entries."+key)
	if err != nil {
		return false, fmt.Errorf("knowledge: deleting %q: %w", topic, err)
	}
	s.doc = doc
	return true, s.save()
}

// Touch bumps the access statistics for the entry under topic. Missing
// entries are ignored.
func (s *Store) Touch(topic string) error {
	key := NormalizeTopic(topic)

	s.mu.Lock()
	defer s.mu.Unlock()

	base := "entries." + key
	if !gjson.GetBytes(s.doc, base).Exists() {
		return nil
	}
	count := gjson.GetBytes(s.doc, base+".access_count").Int()
	doc, err := sjson.SetBytes(s.doc, base+".access_count", count+1)
	if err != nil {
		return fmt.Errorf("knowledge: touching %q: %w", topic, err)
	}
	doc, err = sjson.SetBytes(doc, base+".last_accessed", time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("knowledge: touching %q: %w", topic, err)
	}
	s.doc = doc
	return s.save()
}

// Each calls fn for every entry in document order until fn returns
// false. fn must not call back into the store.
func (s *Store) Each(fn func(key string, e Entry) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gjson.GetBytes(s.doc, "entries").ForEach(func(key, value gjson.Result) bool {
		return fn(key.String(), entryFrom(value))
	})
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	gjson.GetBytes(s.doc, "entries").ForEach(func(_, _ gjson.Result) bool {
		n++
		return true
	})
	return n
}

// Reset drops every entry.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = emptyDoc()
	return s.save()
}

// save writes the document to disk. Caller holds s.mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("knowledge: creating store directory: %w", err)
		}
	}
	pretty := gjson.GetBytes(s.doc, "@pretty").String()
	if err := os.WriteFile(s.path, []byte(pretty), 0o644); err != nil {
		return fmt.Errorf("knowledge: writing %s: %w", s.path, err)
	}
	return nil
}

func entryFrom(v gjson.Result) Entry {
	var sources []string
	for _, src := range v.Get("sources").Array() {
		sources = append(sources, src.String())
	}
	stored, _ := time.Parse(time.RFC3339, v.Get("stored_date").String())
	accessed, _ := time.Parse(time.RFC3339, v.Get("last_accessed").String())
	return Entry{
		Topic:        v.Get("topic").String(),
		Summary:      v.Get("summary").String(),
		Sources:      sources,
		Confidence:   v.Get("confidence").Float(),
		StoredAt:     stored,
		LastAccessed: accessed,
		AccessCount:  int(v.Get("access_count").Int()),
	}
}

var (
	nonWordChars = regexp.MustCompile(`[^\w\s]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// NormalizeTopic folds a topic to its storage key: lowercase, stripped
// of punctuation, spaces as underscores. Keys stay safe for JSON paths.
func NormalizeTopic(topic string) string {
	t := nonWordChars.ReplaceAllString(strings.ToLower(topic), "")
	return spaceRuns.ReplaceAllString(strings.TrimSpace(t), "_")
}
