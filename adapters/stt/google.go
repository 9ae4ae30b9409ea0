package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/satriahrh/mockinterview/domain/repositories"
)

// flushTimeout bounds how long Close waits for trailing results
const flushTimeout = 3 * time.Second

// GoogleConfig holds configuration for the Google Cloud recognizer
// Optional fields:
// - CredentialsFile: service account JSON; application default credentials
// are used when empty
type GoogleConfig struct {
	CredentialsFile string
}

// GoogleRecognizer implements SpeechRecognizer with Google Cloud streaming
// recognition. Interim results are reported as they arrive.
type GoogleRecognizer struct {
	opts   []option.ClientOption
	logger *zap.Logger
}

var _ repositories.SpeechRecognizer = (*GoogleRecognizer)(nil)

// NewGoogleRecognizer creates a new Google Cloud recognizer
func NewGoogleRecognizer(config GoogleConfig, logger *zap.Logger) *GoogleRecognizer {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	} else {
		logger.Info("Using application default credentials for speech recognition")
	}

	return &GoogleRecognizer{
		opts:   opts,
		logger: logger,
	}
}

// Begin implements repositories.SpeechRecognizer. A client that cannot be
// created (missing credentials, API disabled) is reported as
// ErrRecognizerUnavailable.
func (g *GoogleRecognizer) Begin(ctx context.Context, config repositories.AudioConfig, onText func(string)) (repositories.RecognitionStream, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	client, err := speech.NewClient(ctx, g.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create speech client: %v", repositories.ErrRecognizerUnavailable, err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encoding,
					SampleRateHertz:            int32(config.SampleRate),
					LanguageCode:               config.Language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults:  true,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	g.logger.Debug("Google recognition stream opened",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	s := &googleStream{
		client: client,
		stream: stream,
		ctx:    ctx,
		done:   make(chan struct{}),
		logger: g.logger,
	}
	go s.receive(onText)

	return s, nil
}

type googleStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	ctx    context.Context

	sendMu sync.Mutex
	closed bool

	done    chan struct{}
	final   string
	recvErr error

	logger *zap.Logger
}

// Feed implements repositories.RecognitionStream
func (s *googleStream) Feed(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed {
		return errors.New("recognition stream closed")
	}
	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Close implements repositories.RecognitionStream. It waits for the service
// to flush pending results.
func (s *googleStream) Close() (string, error) {
	defer s.client.Close()

	s.sendMu.Lock()
	if !s.closed {
		s.closed = true
		if err := s.stream.CloseSend(); err != nil {
			s.logger.Debug("CloseSend failed", zap.Error(err))
		}
	}
	s.sendMu.Unlock()

	select {
	case <-s.done:
		return s.final, s.recvErr
	case <-s.ctx.Done():
		return "", fmt.Errorf("context cancelled while waiting for result: %w", s.ctx.Err())
	case <-time.After(flushTimeout):
		return "", fmt.Errorf("timed out waiting for final transcript")
	}
}

func (s *googleStream) receive(onText func(string)) {
	defer close(s.done)

	var finals []string
	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			s.final = strings.Join(finals, " ")
			return
		}
		if err != nil {
			s.final = strings.Join(finals, " ")
			if s.ctx.Err() == nil {
				s.recvErr = fmt.Errorf("failed to receive response: %w", err)
			}
			return
		}

		var interim []string
		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			transcript := strings.TrimSpace(result.Alternatives[0].Transcript)
			if transcript == "" {
				continue
			}
			if result.IsFinal {
				finals = append(finals, transcript)
			} else {
				interim = append(interim, transcript)
			}
		}

		onText(strings.Join(append(append([]string{}, finals...), interim...), " "))
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
