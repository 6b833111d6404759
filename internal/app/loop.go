package app

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/dshills/valet/internal/plugin"
	"github.com/dshills/valet/internal/voice"
)

// exitWords end the session before any dispatch happens.
var exitWords = map[string]bool{
	"exit": true,
	"quit": true,
	"bye":  true,
}

// Run drives the conversation until the user asks to leave, input ends,
// or the context is canceled. Typed lines and voice transcripts feed
// the same dispatch path; commands are handled one at a time in arrival
// order. Returns ErrQuit on an exit word, nil on end of input or
// cancellation.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	app.greet()

	lines := make(chan string)
	go app.readLines(ctx, lines)

	var transcripts <-chan voice.Transcript
	if app.voice != nil {
		transcripts = app.voice.Transcripts()
	}

	for {
		app.prompt()
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := app.handleText(ctx, line); err != nil {
				return err
			}

		case t, ok := <-transcripts:
			if !ok {
				// Daemon gone for good; keep serving text.
				transcripts = nil
				continue
			}
			if err := app.handleTranscript(ctx, t); err != nil {
				return err
			}
		}
	}
}

// readLines feeds input lines to the loop until input ends or the
// context is canceled.
func (app *Application) readLines(ctx context.Context, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(app.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (app *Application) handleText(ctx context.Context, line string) error {
	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}
	if exitWords[plugin.Normalize(text)] {
		app.farewell()
		return ErrQuit
	}
	app.dispatch(ctx, plugin.Command{Text: text, Source: plugin.SourceText})
	return nil
}

// handleTranscript gates a transcript on the wake word. Unaddressed
// speech is dropped; a bare wake word gets an acknowledgement.
func (app *Application) handleTranscript(ctx context.Context, t voice.Transcript) error {
	text, ok := app.gate.Strip(t.Text)
	if !ok {
		app.log.Debug().Str("text", t.Text).Msg("transcript lacks wake word, ignored")
		return nil
	}
	if text == "" {
		app.respond(ctx, voice.AckResponse)
		return nil
	}
	if exitWords[plugin.Normalize(text)] {
		app.farewell()
		return ErrQuit
	}
	app.dispatch(ctx, plugin.Command{Text: text, Source: plugin.SourceVoice})
	return nil
}

func (app *Application) dispatch(ctx context.Context, cmd plugin.Command) {
	result := app.router.Route(ctx, cmd)
	app.respond(ctx, result.Response)
}

// respond prints the response and, when a speech daemon is connected,
// speaks a plain-text rendition of it. Styling never reaches the
// synthesizer, and long responses are cut at the configured limit.
func (app *Application) respond(ctx context.Context, text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(app.out, text)

	if app.voice == nil {
		return
	}
	spoken := truncate(ansi.Strip(text), app.cfg.Voice.SpeakLimit)
	if err := app.voice.Speak(ctx, spoken); err != nil {
		app.log.Warn().Err(err).Msg("speak failed")
	}
}

// truncate caps text at limit runes. Zero or negative means no cap.
func truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func (app *Application) greet() {
	if !app.interactive {
		return
	}
	fmt.Fprintln(app.out, "Valet is ready. Say 'help' for what I can do, 'exit' to leave.")
	if app.voice != nil && app.gate.Word() != "" {
		fmt.Fprintf(app.out, "Voice is on. Address me as '%s'.\n", app.gate.Word())
	}
}

func (app *Application) farewell() {
	fmt.Fprintln(app.out, "Goodbye!")
}

func (app *Application) prompt() {
	if app.interactive {
		fmt.Fprint(app.out, "> ")
	}
}
