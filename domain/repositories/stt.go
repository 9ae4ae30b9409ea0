package repositories

import (
	"context"
	"errors"
)

// ErrRecognizerUnavailable reports that speech capture is unsupported or
// denied on this host. It is persistent: callers should stop retrying.
var ErrRecognizerUnavailable = errors.New("speech recognizer unavailable")

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// SpeechRecognizer abstracts continuous speech recognition engines
type SpeechRecognizer interface {
	// Begin opens a continuous recognition stream. onText receives the full
	// transcript of this stream each time it changes, interim results
	// included.
	Begin(ctx context.Context, config AudioConfig, onText func(text string)) (RecognitionStream, error)
}

// RecognitionStream is one open recognition stream
type RecognitionStream interface {
	// Feed pushes captured audio into the stream
	Feed(data []byte) error
	// Close ends the stream and returns its final transcript
	Close() (string, error)
}
