// Package capture accumulates a dictated answer from a continuous speech
// recognizer.
package capture

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/mockinterview/domain/repositories"
)

// Capture wraps a SpeechRecognizer. Text from successive recognition streams
// is concatenated until Reset.
type Capture struct {
	recognizer repositories.SpeechRecognizer
	config     repositories.AudioConfig
	micEnabled func() bool
	onChange   func(text string)
	logger     *zap.Logger

	mu          sync.Mutex
	gen         uint64
	capturing   bool
	unavailable bool
	stream      repositories.RecognitionStream
	cancel      context.CancelFunc
	base        string
	live        string
}

// Option configures a Capture
type Option func(*Capture)

// WithMicEnabled sets the predicate consulted by Start
func WithMicEnabled(enabled func() bool) Option {
	return func(c *Capture) {
		c.micEnabled = enabled
	}
}

// WithOnChange registers a callback invoked with the accumulated text after
// every change. It is called without internal locks held.
func WithOnChange(onChange func(text string)) Option {
	return func(c *Capture) {
		c.onChange = onChange
	}
}

// New creates a Capture
func New(recognizer repositories.SpeechRecognizer, config repositories.AudioConfig, logger *zap.Logger, opts ...Option) *Capture {
	c := &Capture{
		recognizer: recognizer,
		config:     config,
		micEnabled: func() bool { return true },
		onChange:   func(string) {},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins continuous capture. It is a no-op when already capturing or
// when the microphone is disabled. Once the recognizer has reported
// ErrRecognizerUnavailable every call returns it without touching the engine.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.unavailable {
		c.mu.Unlock()
		return repositories.ErrRecognizerUnavailable
	}
	if c.capturing || !c.micEnabled() {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.capturing = true
	c.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := c.recognizer.Begin(streamCtx, c.config, func(text string) {
		c.update(gen, text)
	})
	if err != nil {
		cancel()
		c.mu.Lock()
		if c.gen == gen {
			c.capturing = false
		}
		if errors.Is(err, repositories.ErrRecognizerUnavailable) {
			c.unavailable = true
		}
		c.mu.Unlock()

		c.logger.Warn("Failed to start speech capture", zap.Error(err))
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		// Stopped while the stream was opening.
		c.mu.Unlock()
		cancel()
		if _, err := stream.Close(); err != nil {
			c.logger.Debug("Closing superseded recognition stream failed", zap.Error(err))
		}
		return nil
	}
	c.stream = stream
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Debug("Speech capture started", zap.Uint64("generation", gen))
	return nil
}

// Stop ends capture and returns the accumulated text, which stays readable
// until Reset. Updates that arrive afterwards from the closed stream are
// dropped.
func (c *Capture) Stop() string {
	c.mu.Lock()
	if !c.capturing {
		text := c.textLocked()
		c.mu.Unlock()
		return text
	}
	c.gen++
	c.capturing = false
	stream, cancel := c.stream, c.cancel
	c.stream, c.cancel = nil, nil
	c.mu.Unlock()

	var final string
	if stream != nil {
		var err error
		final, err = stream.Close()
		if err != nil {
			c.logger.Warn("Recognition stream closed with error", zap.Error(err))
		}
	}
	if cancel != nil {
		cancel()
	}

	c.mu.Lock()
	if final != "" {
		c.live = final
	}
	c.base = join(c.base, c.live)
	c.live = ""
	text := c.base
	c.mu.Unlock()

	c.logger.Debug("Speech capture stopped", zap.Int("textLength", len(text)))
	c.onChange(text)
	return text
}

// Reset clears the accumulated text
func (c *Capture) Reset() {
	c.mu.Lock()
	c.base = ""
	c.live = ""
	c.mu.Unlock()

	c.onChange("")
}

// Feed forwards microphone audio to the open stream. Audio received while not
// capturing is dropped.
func (c *Capture) Feed(audio []byte) error {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Feed(audio)
}

// IsCapturing reports whether a recognition stream is open
func (c *Capture) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// Unavailable reports whether the recognizer is unsupported or denied
func (c *Capture) Unavailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unavailable
}

// Text returns the accumulated text including the live stream's transcript
func (c *Capture) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textLocked()
}

func (c *Capture) update(gen uint64, text string) {
	c.mu.Lock()
	if c.gen != gen || !c.capturing {
		c.mu.Unlock()
		return
	}
	c.live = text
	current := c.textLocked()
	c.mu.Unlock()

	c.onChange(current)
}

func (c *Capture) textLocked() string {
	return join(c.base, c.live)
}

func join(base, next string) string {
	base = strings.TrimSpace(base)
	next = strings.TrimSpace(next)
	switch {
	case base == "":
		return next
	case next == "":
		return base
	default:
		return base + " " + next
	}
}
