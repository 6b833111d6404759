// Package voice connects the assistant to a speech daemon that performs
// recognition and synthesis. Transcripts arrive over a websocket as JSON
// frames; speech requests go out the same way. A wake-word gate decides
// which transcripts become commands.
package voice

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// AckResponse is spoken when the wake word arrives with no command.
const AckResponse = "Yes, how can I help you?"

// Transcript is one recognized utterance from the daemon.
type Transcript struct {
	Text string
	At   time.Time
}

// Transceiver carries transcripts in and speech out.
type Transceiver interface {
	// Transcripts returns the stream of recognized utterances. The
	// channel closes when the connection is gone for good.
	Transcripts() <-chan Transcript

	// Speak queues text for synthesis.
	Speak(ctx context.Context, text string) error

	// Close tears down the connection.
	Close() error
}

// WakeWordGate filters transcripts down to addressed commands.
type WakeWordGate struct {
	word string
}

// NewWakeWordGate builds a gate for the given word. The word is trimmed
// and case-folded once.
func NewWakeWordGate(word string) *WakeWordGate {
	return &WakeWordGate{word: fold(word)}
}

// Word returns the folded wake word.
func (g *WakeWordGate) Word() string { return g.word }

// Strip reports whether the utterance contains the wake word and returns
// the folded command following it. Anything before the wake word is
// treated as noise. An empty remainder with ok=true means the user said
// only the wake word and is waiting.
func (g *WakeWordGate) Strip(text string) (remainder string, ok bool) {
	if g.word == "" {
		return strings.TrimSpace(text), true
	}
	folded := fold(text)
	idx := strings.Index(folded, g.word)
	if idx < 0 {
		return "", false
	}
	remainder = folded[idx+len(g.word):]
	return strings.TrimSpace(strings.TrimLeft(remainder, ",.!?: ")), true
}

func fold(text string) string {
	return cases.Fold().String(strings.TrimSpace(text))
}
