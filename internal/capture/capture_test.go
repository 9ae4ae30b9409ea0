package capture

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mockinterview/domain/repositories"
)

type fakeStream struct {
	mu     sync.Mutex
	fed    [][]byte
	final  string
	closed bool
}

func (s *fakeStream) Feed(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	s.fed = append(s.fed, data)
	return nil
}

func (s *fakeStream) Close() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.final, nil
}

// fakeRecognizer hands out streams and keeps each stream's onText callback
type fakeRecognizer struct {
	mu      sync.Mutex
	err     error
	begins  int
	streams []*fakeStream
	onText  []func(string)
}

func (r *fakeRecognizer) Begin(ctx context.Context, config repositories.AudioConfig, onText func(string)) (repositories.RecognitionStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begins++
	if r.err != nil {
		return nil, r.err
	}
	stream := &fakeStream{}
	r.streams = append(r.streams, stream)
	r.onText = append(r.onText, onText)
	return stream, nil
}

func (r *fakeRecognizer) say(i int, text string) {
	r.mu.Lock()
	onText := r.onText[i]
	r.mu.Unlock()
	onText(text)
}

func newCapture(t *testing.T, recognizer repositories.SpeechRecognizer, opts ...Option) *Capture {
	return New(recognizer, repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16", Language: "en-US"}, zaptest.NewLogger(t), opts...)
}

func TestCapture_AccumulatesAcrossStreams(t *testing.T) {
	recognizer := &fakeRecognizer{}
	c := newCapture(t, recognizer)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsCapturing())

	recognizer.say(0, "I have")
	recognizer.say(0, "I have five years")
	assert.Equal(t, "I have five years", c.Text())

	assert.Equal(t, "I have five years", c.Stop())
	assert.False(t, c.IsCapturing())

	require.NoError(t, c.Start(context.Background()))
	recognizer.say(1, "of experience")
	assert.Equal(t, "I have five years of experience", c.Text())
	assert.Equal(t, "I have five years of experience", c.Stop())

	c.Reset()
	assert.Empty(t, c.Text())
}

func TestCapture_StopUsesFinalTranscript(t *testing.T) {
	recognizer := &fakeRecognizer{}
	c := newCapture(t, recognizer)

	require.NoError(t, c.Start(context.Background()))
	recognizer.say(0, "I half five")
	recognizer.streams[0].final = "I have five years of experience"

	assert.Equal(t, "I have five years of experience", c.Stop())
	assert.True(t, recognizer.streams[0].closed)
}

func TestCapture_IgnoresLateUpdates(t *testing.T) {
	recognizer := &fakeRecognizer{}
	c := newCapture(t, recognizer)

	require.NoError(t, c.Start(context.Background()))
	recognizer.say(0, "hello")
	c.Stop()

	recognizer.say(0, "hello there, late")
	assert.Equal(t, "hello", c.Text())

	require.NoError(t, c.Start(context.Background()))
	recognizer.say(0, "stale stream")
	recognizer.say(1, "world")
	assert.Equal(t, "hello world", c.Text())
}

func TestCapture_StartIsNoopWhenMicDisabled(t *testing.T) {
	recognizer := &fakeRecognizer{}
	enabled := false
	c := newCapture(t, recognizer, WithMicEnabled(func() bool { return enabled }))

	require.NoError(t, c.Start(context.Background()))
	assert.False(t, c.IsCapturing())
	assert.Zero(t, recognizer.begins)

	enabled = true
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsCapturing())
	assert.Equal(t, 1, recognizer.begins)
}

func TestCapture_UnavailableIsPersistent(t *testing.T) {
	recognizer := &fakeRecognizer{err: repositories.ErrRecognizerUnavailable}
	c := newCapture(t, recognizer)

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, repositories.ErrRecognizerUnavailable)
	assert.True(t, c.Unavailable())
	assert.False(t, c.IsCapturing())

	err = c.Start(context.Background())
	assert.ErrorIs(t, err, repositories.ErrRecognizerUnavailable)
	assert.Equal(t, 1, recognizer.begins)
}

func TestCapture_TransientStartError(t *testing.T) {
	recognizer := &fakeRecognizer{err: errors.New("network down")}
	c := newCapture(t, recognizer)

	assert.Error(t, c.Start(context.Background()))
	assert.False(t, c.Unavailable())

	recognizer.err = nil
	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsCapturing())
}

func TestCapture_Feed(t *testing.T) {
	recognizer := &fakeRecognizer{}
	c := newCapture(t, recognizer)

	require.NoError(t, c.Feed([]byte{1, 2}))

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Feed([]byte{3, 4}))
	c.Stop()
	require.NoError(t, c.Feed([]byte{5, 6}))

	assert.Equal(t, [][]byte{{3, 4}}, recognizer.streams[0].fed)
}

func TestCapture_OnChange(t *testing.T) {
	recognizer := &fakeRecognizer{}

	var changes []string
	c := newCapture(t, recognizer, WithOnChange(func(text string) {
		changes = append(changes, text)
	}))

	require.NoError(t, c.Start(context.Background()))
	recognizer.say(0, "hello")
	c.Stop()
	c.Reset()

	assert.Equal(t, []string{"hello", "hello", ""}, changes)
}
