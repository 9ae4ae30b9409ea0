package stt

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/mockinterview/domain/repositories"
)

// ScriptedRecognizer replays a fixed list of utterances, one per stream.
// Every audio chunk fed reveals one more word as an interim result. It backs
// demos and tests that have no speech service.
type ScriptedRecognizer struct {
	mu          sync.Mutex
	utterances  []string
	next        int
	unavailable bool

	logger *zap.Logger
}

var _ repositories.SpeechRecognizer = (*ScriptedRecognizer)(nil)

// NewScriptedRecognizer creates a recognizer that cycles through utterances
func NewScriptedRecognizer(utterances []string, logger *zap.Logger) *ScriptedRecognizer {
	return &ScriptedRecognizer{
		utterances: utterances,
		logger:     logger,
	}
}

// NewUnavailableRecognizer creates a recognizer that always reports
// ErrRecognizerUnavailable, as on a host without capture support
func NewUnavailableRecognizer(logger *zap.Logger) *ScriptedRecognizer {
	return &ScriptedRecognizer{
		unavailable: true,
		logger:      logger,
	}
}

// Begin implements repositories.SpeechRecognizer
func (r *ScriptedRecognizer) Begin(ctx context.Context, config repositories.AudioConfig, onText func(string)) (repositories.RecognitionStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unavailable {
		return nil, repositories.ErrRecognizerUnavailable
	}
	if len(r.utterances) == 0 {
		return nil, errors.New("no scripted utterances")
	}

	utterance := r.utterances[r.next%len(r.utterances)]
	r.next++

	r.logger.Info("Initializing scripted recognition stream",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &scriptedStream{
		words:  strings.Fields(utterance),
		onText: onText,
		logger: r.logger,
	}, nil
}

type scriptedStream struct {
	mu       sync.Mutex
	words    []string
	revealed int
	closed   bool
	onText   func(string)
	logger   *zap.Logger
}

// Feed reveals the next word of the utterance
func (s *scriptedStream) Feed(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("recognition stream closed")
	}
	if s.revealed >= len(s.words) {
		s.mu.Unlock()
		return nil
	}
	s.revealed++
	text := strings.Join(s.words[:s.revealed], " ")
	s.mu.Unlock()

	s.onText(text)
	return nil
}

// Close returns the whole utterance once any audio was fed
func (s *scriptedStream) Close() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.revealed == 0 {
		return "", nil
	}
	result := strings.Join(s.words, " ")
	s.logger.Info("Ending scripted recognition stream", zap.String("result", result))
	return result, nil
}
