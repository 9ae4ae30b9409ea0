package stt

import (
	"context"
	"strings"
	"sync"

	"github.com/satriahrh/mockinterview/domain/repositories"
)

// TypedRecognizer turns typed lines into recognition results. The console
// surface uses it in place of a microphone.
type TypedRecognizer struct {
	mu      sync.Mutex
	current *typedStream
}

var _ repositories.SpeechRecognizer = (*TypedRecognizer)(nil)

// NewTypedRecognizer creates a typed recognizer
func NewTypedRecognizer() *TypedRecognizer {
	return &TypedRecognizer{}
}

// Begin implements repositories.SpeechRecognizer
func (r *TypedRecognizer) Begin(ctx context.Context, config repositories.AudioConfig, onText func(string)) (repositories.RecognitionStream, error) {
	s := &typedStream{onText: onText, owner: r}

	r.mu.Lock()
	r.current = s
	r.mu.Unlock()

	return s, nil
}

// Type appends a line to the open stream. It reports false when no stream is
// open.
func (r *TypedRecognizer) Type(line string) bool {
	r.mu.Lock()
	s := r.current
	r.mu.Unlock()

	if s == nil {
		return false
	}
	return s.add(line)
}

func (r *TypedRecognizer) detach(s *typedStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == s {
		r.current = nil
	}
}

type typedStream struct {
	mu     sync.Mutex
	lines  []string
	closed bool
	onText func(string)
	owner  *TypedRecognizer
}

func (s *typedStream) add(line string) bool {
	line = strings.TrimSpace(line)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if line != "" {
		s.lines = append(s.lines, line)
	}
	text := strings.Join(s.lines, " ")
	s.mu.Unlock()

	s.onText(text)
	return true
}

// Feed ignores audio
func (s *typedStream) Feed(data []byte) error {
	return nil
}

// Close returns the typed text
func (s *typedStream) Close() (string, error) {
	s.mu.Lock()
	s.closed = true
	text := strings.Join(s.lines, " ")
	s.mu.Unlock()

	s.owner.detach(s)
	return text, nil
}
