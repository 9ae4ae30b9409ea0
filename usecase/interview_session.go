package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mockinterview/domain"
	"github.com/satriahrh/mockinterview/domain/entities"
	"github.com/satriahrh/mockinterview/domain/repositories"
	"github.com/satriahrh/mockinterview/internal/capture"
	"github.com/satriahrh/mockinterview/internal/device"
	"github.com/satriahrh/mockinterview/internal/interview"
	"github.com/satriahrh/mockinterview/internal/notify"
)

const defaultCallTimeout = 15 * time.Second

// ErrSessionClosed is returned by commands issued after Run has returned
var ErrSessionClosed = errors.New("interview session closed")

// Dependencies are the collaborators of an interview session
type Dependencies struct {
	Backend    repositories.SessionBackend
	Streamer   repositories.ResponseStreamer
	Avatars    repositories.AvatarGenerator
	Recognizer repositories.SpeechRecognizer
}

// Options configures an interview session
type Options struct {
	Config entities.SessionConfig
	Audio  repositories.AudioConfig
	// TickInterval is the elapsed-time ticker period (default: 1s)
	TickInterval time.Duration
	// CallTimeout bounds the best-effort end and feedback calls (default: 15s)
	CallTimeout time.Duration
}

// Snapshot is the renderer view of the session
type Snapshot struct {
	interview.View
	Devices   entities.DeviceState `json:"devices"`
	Listening bool                 `json:"listening"`
	Dictation string               `json:"dictation"`
	CanSend   bool                 `json:"can_send"`
}

// InterviewSession runs one interview. Every state change happens on the Run
// goroutine; stream callbacks, avatar results, the recognizer and user
// commands post to its inbox.
type InterviewSession struct {
	deps    Dependencies
	options Options

	machine *interview.Machine
	devices *device.Controller
	capture *capture.Capture

	inbox   chan input
	refresh chan struct{}
	done    chan struct{}
	runCtx  context.Context

	snapshots *notify.Bus[Snapshot]
	notices   *notify.Bus[domain.Notice]

	mu      sync.RWMutex
	current Snapshot

	logger *zap.Logger
}

// NewInterviewSession creates a session in the connecting state. Call Run to
// start it.
func NewInterviewSession(deps Dependencies, options Options, logger *zap.Logger) (*InterviewSession, error) {
	if deps.Backend == nil || deps.Streamer == nil || deps.Avatars == nil || deps.Recognizer == nil {
		return nil, fmt.Errorf("backend, streamer, avatar generator and recognizer are required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	if options.TickInterval <= 0 {
		options.TickInterval = entities.DefaultTickInterval
	}
	if options.CallTimeout <= 0 {
		options.CallTimeout = defaultCallTimeout
	}

	s := &InterviewSession{
		deps:      deps,
		options:   options,
		machine:   interview.NewMachine(options.Config, options.TickInterval),
		devices:   device.NewController(logger),
		inbox:     make(chan input, 64),
		refresh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		runCtx:    context.Background(),
		snapshots: notify.NewBus[Snapshot](),
		notices:   notify.NewBus[domain.Notice](),
		logger:    logger,
	}

	s.capture = capture.New(deps.Recognizer, options.Audio, logger,
		capture.WithMicEnabled(s.devices.MicrophoneEnabled),
		capture.WithOnChange(func(string) { s.markDirty() }),
	)

	// Turning the microphone off discards the dictation in progress.
	s.devices.OnMicrophoneDisabled(func() {
		s.capture.Stop()
		s.capture.Reset()
	})

	s.current = s.snapshot()
	return s, nil
}

// Run starts the session and handles inputs until ctx is cancelled
func (s *InterviewSession) Run(ctx context.Context) error {
	defer close(s.done)
	s.runCtx = ctx

	s.logger.Info("Starting interview session",
		zap.String("role", s.options.Config.Role),
		zap.String("domain", s.options.Config.Domain))

	go s.start(ctx)

	ticker := time.NewTicker(s.options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.capture.Stop()
			s.logger.Info("Interview session stopped", zap.String("status", string(s.machine.Status())))
			return nil
		case <-ticker.C:
			if s.machine.Status() == entities.SessionStatusActive {
				s.apply(interview.Tick{})
				s.publish()
			}
		case <-s.refresh:
			s.publish()
		case in := <-s.inbox:
			err := in.fn()
			s.publish()
			if in.reply != nil {
				in.reply <- err
			}
		}
	}
}

// Done is closed when Run returns
func (s *InterviewSession) Done() <-chan struct{} {
	return s.done
}

// Current returns the latest snapshot
func (s *InterviewSession) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SubscribeSnapshots registers an observer of state changes
func (s *InterviewSession) SubscribeSnapshots(handler notify.Handler[Snapshot]) (unsubscribe func()) {
	return s.snapshots.Subscribe(handler)
}

// SubscribeNotices registers an observer of user-visible notices
func (s *InterviewSession) SubscribeNotices(handler notify.Handler[domain.Notice]) (unsubscribe func()) {
	return s.notices.Subscribe(handler)
}

// StartDictation begins speech capture
func (s *InterviewSession) StartDictation(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.machine.Status() != entities.SessionStatusActive {
			return fmt.Errorf("%w: session is %s", interview.ErrRejected, s.machine.Status())
		}
		if !s.devices.MicrophoneEnabled() {
			return fmt.Errorf("%w: microphone is off", interview.ErrRejected)
		}

		err := s.capture.Start(s.runCtx)
		if errors.Is(err, repositories.ErrRecognizerUnavailable) {
			s.microphoneUnavailable()
		}
		return err
	})
}

// StopDictation ends capture and sends the dictated text as a user turn. The
// text is kept for another attempt when the turn is rejected.
func (s *InterviewSession) StopDictation(ctx context.Context) error {
	return s.do(ctx, func() error {
		text := s.capture.Stop()
		if err := s.apply(interview.UserTurnSent{Text: text}); err != nil {
			return err
		}
		s.capture.Reset()
		return nil
	})
}

// ToggleMicrophone flips the microphone flag
func (s *InterviewSession) ToggleMicrophone(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.capture.Unavailable() {
			return fmt.Errorf("%w: microphone unavailable", interview.ErrRejected)
		}
		s.devices.ToggleMicrophone()
		return nil
	})
}

// ToggleCamera flips the camera flag
func (s *InterviewSession) ToggleCamera(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.devices.ToggleCamera()
		return nil
	})
}

// EndInterview ends the session. In-flight stream and avatar calls are
// abandoned.
func (s *InterviewSession) EndInterview(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.capture.Stop()
		s.capture.Reset()
		return s.apply(interview.SessionEnded{})
	})
}

// SubmitFeedback sends the post-interview rating
func (s *InterviewSession) SubmitFeedback(ctx context.Context, feedback entities.Feedback) error {
	return s.do(ctx, func() error {
		return s.apply(interview.FeedbackSubmitted{Feedback: feedback})
	})
}

// FeedAudio forwards microphone audio to speech capture
func (s *InterviewSession) FeedAudio(audio []byte) error {
	return s.capture.Feed(audio)
}

func (s *InterviewSession) start(ctx context.Context) {
	result, err := s.deps.Backend.StartSession(ctx, s.options.Config)
	if err != nil {
		s.logger.Error("Failed to start interview session", zap.Error(err))
		s.post(interview.SessionStartFailed{Err: err})
		return
	}
	s.post(interview.SessionStarted{
		SessionID:     result.SessionID,
		FirstQuestion: result.FirstQuestion,
	})
}

// input is one unit of work for the loop. The reply, if any, is sent after
// the resulting snapshot has been published.
type input struct {
	fn    func() error
	reply chan error
}

// do runs fn on the loop and waits for its result
func (s *InterviewSession) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	if err := s.enqueue(ctx, input{fn: fn, reply: reply}); err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-s.done:
		// The loop may have run fn just before exiting.
		select {
		case err := <-reply:
			return err
		default:
			return ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues event for the loop. It gives up once the loop has exited, so
// abandoned goroutines never block.
func (s *InterviewSession) post(event interview.Event) {
	_ = s.enqueue(context.Background(), input{fn: func() error {
		s.apply(event)
		return nil
	}})
}

func (s *InterviewSession) enqueue(ctx context.Context, in input) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.inbox <- in:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *InterviewSession) markDirty() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// apply feeds an event to the machine and executes the resulting effects
func (s *InterviewSession) apply(event interview.Event) error {
	effects, err := s.machine.Apply(event)
	if err != nil {
		s.logger.Debug("Event rejected",
			zap.String("event", fmt.Sprintf("%T", event)),
			zap.Error(err))
	}
	for _, effect := range effects {
		s.execute(effect)
	}
	return err
}

func (s *InterviewSession) execute(effect interview.Effect) {
	switch e := effect.(type) {
	case interview.SendMessage:
		s.logger.Info("Sending user turn",
			zap.String("sessionID", e.SessionID),
			zap.Uint64("streamID", e.StreamID))
		s.deps.Streamer.Send(s.runCtx, e.SessionID, e.Text, &streamRelay{session: s, streamID: e.StreamID})

	case interview.GenerateAvatar:
		go func(ctx context.Context) {
			url, err := s.deps.Avatars.Generate(ctx, e.Text)
			if err != nil {
				s.logger.Warn("Avatar generation failed", zap.Uint64("seq", e.Seq), zap.Error(err))
			}
			s.post(interview.AvatarResolved{Seq: e.Seq, URL: url, Err: err})
		}(s.runCtx)

	case interview.NotifyEnd:
		s.bestEffort("end session", func(ctx context.Context) error {
			return s.deps.Backend.EndSession(ctx, e.SessionID)
		})

	case interview.SubmitFeedback:
		s.bestEffort("submit feedback", func(ctx context.Context) error {
			return s.deps.Backend.SubmitFeedback(ctx, e.SessionID, e.Feedback)
		})

	case interview.Notify:
		s.notices.Publish(e.Notice)

	default:
		s.logger.Error("Unknown effect", zap.String("effect", fmt.Sprintf("%T", effect)))
	}
}

// bestEffort runs call on its own goroutine; failures are logged only
func (s *InterviewSession) bestEffort(name string, call func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.options.CallTimeout)
		defer cancel()

		if err := call(ctx); err != nil {
			s.logger.Warn("Best-effort backend call failed", zap.String("call", name), zap.Error(err))
			return
		}
		s.logger.Debug("Best-effort backend call succeeded", zap.String("call", name))
	}()
}

func (s *InterviewSession) microphoneUnavailable() {
	if s.devices.DisableMicrophone() {
		s.notices.Publish(domain.NewNotice(domain.NoticeWarning, domain.NoticeCodeMicUnavailable,
			"Speech recognition is not available. The microphone has been turned off."))
	}
}

func (s *InterviewSession) snapshot() Snapshot {
	return Snapshot{
		View:      s.machine.View(),
		Devices:   s.devices.State(),
		Listening: s.capture.IsCapturing(),
		Dictation: s.capture.Text(),
		CanSend:   s.machine.CanSend(),
	}
}

func (s *InterviewSession) publish() {
	snapshot := s.snapshot()

	s.mu.Lock()
	s.current = snapshot
	s.mu.Unlock()

	s.snapshots.Publish(snapshot)
}

// streamRelay posts stream callbacks to the loop tagged with their stream
type streamRelay struct {
	session  *InterviewSession
	streamID uint64
}

func (r *streamRelay) OnChunk(content string) {
	r.session.post(interview.ChunkReceived{StreamID: r.streamID, Content: content})
}

func (r *streamRelay) OnComplete(fullResponse string, confidence float64) {
	r.session.post(interview.TurnCompleted{
		StreamID:     r.streamID,
		FullResponse: fullResponse,
		Confidence:   confidence,
	})
}

func (r *streamRelay) OnError(err error) {
	r.session.logger.Warn("Response stream failed", zap.Uint64("streamID", r.streamID), zap.Error(err))
	r.session.post(interview.StreamFailed{StreamID: r.streamID, Err: err})
}
