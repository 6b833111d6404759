package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dshills/valet/internal/retry"
)

// Frame types on the daemon socket.
const (
	frameTranscript = "transcript"
	frameSpeak      = "speak"
	frameError      = "error"
)

// frame is the JSON envelope both directions use.
type frame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// transcriptBuffer bounds how far recognition may run ahead of dispatch.
const transcriptBuffer = 16

// Client is a websocket Transceiver. One goroutine owns reads; writes are
// serialized by a mutex. A dropped connection is redialed with backoff,
// and the transcript channel closes only when reconnecting gives up or
// Close is called.
type Client struct {
	url       string
	log       zerolog.Logger
	reconnect retry.Config

	mu   sync.Mutex
	conn *websocket.Conn

	transcripts chan Transcript
	done        chan struct{}
	closeOnce   sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the connection logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithReconnect replaces the redial policy.
func WithReconnect(cfg retry.Config) ClientOption {
	return func(c *Client) { c.reconnect = cfg }
}

// Dial connects to the speech daemon and starts the read loop.
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url: url,
		log: zerolog.Nop(),
		reconnect: retry.Config{
			MaxAttempts:       5,
			InitialDelay:      time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
		},
		transcripts: make(chan Transcript, transcriptBuffer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.conn = conn

	go c.readLoop()
	return c, nil
}

// Transcripts implements Transceiver.
func (c *Client) Transcripts() <-chan Transcript { return c.transcripts }

// Speak implements Transceiver.
func (c *Client) Speak(ctx context.Context, text string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	payload, err := json.Marshal(frame{Type: frameSpeak, Text: text})
	if err != nil {
		return fmt.Errorf("voice: encode frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close implements Transceiver. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
		c.mu.Unlock()
	})
	return nil
}

func (c *Client) readLoop() {
	defer close(c.transcripts)

	for {
		conn := c.current()
		_, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Warn().Err(err).Msg("speech daemon connection lost")
			if !c.redial() {
				c.log.Error().Msg("giving up on speech daemon")
				return
			}
			continue
		}
		c.handle(payload)
	}
}

func (c *Client) handle(payload []byte) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		c.log.Warn().Err(err).Str("payload", string(payload)).Msg("unreadable frame")
		return
	}

	switch f.Type {
	case frameTranscript:
		select {
		case c.transcripts <- Transcript{Text: f.Text, At: time.Now()}:
		default:
			c.log.Warn().Str("text", f.Text).Msg("transcript dropped, dispatch is behind")
		}
	case frameError:
		c.log.Warn().Str("error", f.Text).Msg("speech daemon reported an error")
	default:
		c.log.Debug().Str("type", f.Type).Msg("ignoring unknown frame type")
	}
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// redial replaces the dead connection. It reports false when the retry
// budget is spent or the client is closing.
func (c *Client) redial() bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg := c.reconnect
	userRetryable := cfg.Retryable
	cfg.Retryable = func(err error) bool {
		if errors.Is(err, ErrClosed) {
			return false
		}
		if userRetryable != nil {
			return userRetryable(err)
		}
		return true
	}

	err := retry.DoFunc(ctx, cfg, func() error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			return err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		select {
		case <-c.done:
			conn.Close()
			return ErrClosed
		default:
		}
		c.conn = conn
		return nil
	})
	if err != nil {
		return false
	}

	c.log.Info().Str("url", c.url).Msg("speech daemon reconnected")
	return true
}
