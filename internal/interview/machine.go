// Package interview implements the interview session state machine. The
// machine performs no I/O: Apply mutates state and returns the effects the
// caller must execute.
package interview

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/mockinterview/domain"
	"github.com/satriahrh/mockinterview/domain/entities"
)

// ErrRejected is returned for user actions not allowed in the current state
var ErrRejected = errors.New("action rejected")

// Machine holds the session, the transcript, the streaming buffer and the
// avatar sequencing state.
type Machine struct {
	session    *entities.Session
	transcript entities.Transcript

	processing   bool
	buffer       *entities.StreamingBuffer
	lastStreamID uint64

	avatar         *entities.AvatarAsset
	avatarSeq      uint64
	avatarInFlight bool
	pendingAvatar  *GenerateAvatar

	feedbackSubmitted bool
}

// NewMachine creates a machine in the connecting state
func NewMachine(config entities.SessionConfig, tickInterval time.Duration) *Machine {
	session := entities.NewSession(config)
	if tickInterval > 0 {
		session.TickInterval = tickInterval
	}
	return &Machine{session: session}
}

// Apply handles one event. Stale or out-of-state results are dropped with no
// effects and a nil error; user actions that are not allowed return an error
// wrapping ErrRejected.
func (m *Machine) Apply(event Event) ([]Effect, error) {
	switch ev := event.(type) {
	case SessionStarted:
		return m.started(ev), nil
	case SessionStartFailed:
		return m.startFailed(ev), nil
	case UserTurnSent:
		return m.userTurn(ev)
	case ChunkReceived:
		if m.matches(ev.StreamID) {
			m.buffer.Append(ev.Content)
		}
		return nil, nil
	case TurnCompleted:
		return m.completed(ev), nil
	case StreamFailed:
		return m.streamFailed(ev), nil
	case AvatarResolved:
		return m.avatarResolved(ev), nil
	case SessionEnded:
		return m.ended(), nil
	case FeedbackSubmitted:
		return m.feedback(ev)
	case Tick:
		m.session.Tick()
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown event %T", event)
	}
}

func (m *Machine) started(ev SessionStarted) []Effect {
	if m.session.Status != entities.SessionStatusConnecting || m.session.Failed() {
		return nil
	}

	m.session.Activate(ev.SessionID)

	question := strings.TrimSpace(ev.FirstQuestion)
	if question == "" {
		return nil
	}
	m.transcript.Append(entities.NewOpeningTurn(question))
	return m.requestAvatar(question)
}

func (m *Machine) startFailed(ev SessionStartFailed) []Effect {
	if m.session.Status != entities.SessionStatusConnecting || m.session.Failed() {
		return nil
	}

	reason := "unable to start the interview"
	if ev.Err != nil {
		reason = ev.Err.Error()
	}
	m.session.Fail(reason)

	return []Effect{notify(domain.NoticeError, domain.NoticeCodeConnectFailed,
		"Could not connect to the interview service: "+reason)}
}

func (m *Machine) userTurn(ev UserTurnSent) ([]Effect, error) {
	switch {
	case !m.session.IsActive():
		return nil, fmt.Errorf("%w: session is %s", ErrRejected, m.session.Status)
	case m.processing:
		return nil, fmt.Errorf("%w: a response is still in progress", ErrRejected)
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: nothing was said", ErrRejected)
	}

	m.transcript.Append(entities.NewUserTurn(text))
	m.processing = true
	m.lastStreamID++
	m.buffer = &entities.StreamingBuffer{StreamID: m.lastStreamID}

	return []Effect{SendMessage{
		StreamID:  m.lastStreamID,
		SessionID: m.session.ID,
		Text:      text,
	}}, nil
}

// matches reports whether id names the live stream
func (m *Machine) matches(id uint64) bool {
	return m.buffer != nil && m.buffer.StreamID == id && !m.session.IsEnded()
}

func (m *Machine) completed(ev TurnCompleted) []Effect {
	if !m.matches(ev.StreamID) {
		return nil
	}

	m.buffer = nil
	m.processing = false

	text := strings.TrimSpace(ev.FullResponse)
	if text == "" {
		return []Effect{notify(domain.NoticeError, domain.NoticeCodeStreamFailed,
			"The interviewer returned an empty response. Please try again.")}
	}

	m.transcript.Append(entities.NewAITurn(ev.FullResponse, ev.Confidence))
	return m.requestAvatar(ev.FullResponse)
}

func (m *Machine) streamFailed(ev StreamFailed) []Effect {
	if !m.matches(ev.StreamID) {
		return nil
	}

	m.buffer = nil
	m.processing = false

	message := "The response was interrupted. Please try again."
	if ev.Err != nil {
		message = "The response failed: " + ev.Err.Error()
	}
	return []Effect{notify(domain.NoticeError, domain.NoticeCodeStreamFailed, message)}
}

// requestAvatar supersedes any earlier request. Only one request is issued at
// a time; a request made while one is outstanding waits in a single slot.
func (m *Machine) requestAvatar(text string) []Effect {
	m.avatarSeq++
	request := GenerateAvatar{Seq: m.avatarSeq, Text: text}

	if m.avatarInFlight {
		m.pendingAvatar = &request
		return nil
	}
	m.avatarInFlight = true
	return []Effect{request}
}

func (m *Machine) avatarResolved(ev AvatarResolved) []Effect {
	if !m.avatarInFlight {
		return nil
	}
	m.avatarInFlight = false

	var effects []Effect
	current := ev.Seq == m.avatarSeq && !m.session.IsEnded()
	if current {
		if ev.Err != nil {
			effects = append(effects, notify(domain.NoticeWarning, domain.NoticeCodeAvatarFailed,
				"The interviewer video could not be generated."))
		} else {
			m.avatar = &entities.AvatarAsset{URL: ev.URL, Seq: ev.Seq}
		}
	}

	if m.pendingAvatar != nil && !m.session.IsEnded() {
		next := *m.pendingAvatar
		m.pendingAvatar = nil
		m.avatarInFlight = true
		effects = append(effects, next)
	}
	return effects
}

func (m *Machine) ended() []Effect {
	if m.session.IsEnded() {
		return nil
	}

	m.session.End()
	m.buffer = nil
	m.processing = false
	m.pendingAvatar = nil

	var effects []Effect
	if m.session.ID != "" {
		effects = append(effects, NotifyEnd{SessionID: m.session.ID})
	}
	return append(effects, notify(domain.NoticeInfo, domain.NoticeCodeInterviewEnded,
		"The interview has ended."))
}

func (m *Machine) feedback(ev FeedbackSubmitted) ([]Effect, error) {
	switch {
	case !m.session.IsEnded():
		return nil, fmt.Errorf("%w: feedback is collected after the interview ends", ErrRejected)
	case m.feedbackSubmitted:
		return nil, fmt.Errorf("%w: feedback was already submitted", ErrRejected)
	}

	if err := ev.Feedback.Validate(); err != nil {
		return []Effect{notify(domain.NoticeWarning, domain.NoticeCodeFeedbackInvalid, err.Error())},
			fmt.Errorf("%w: %v", ErrRejected, err)
	}

	m.feedbackSubmitted = true

	var effects []Effect
	if m.session.ID != "" {
		effects = append(effects, SubmitFeedback{SessionID: m.session.ID, Feedback: ev.Feedback})
	}
	return append(effects, notify(domain.NoticeInfo, domain.NoticeCodeFeedbackSubmitted,
		"Thank you for your feedback.")), nil
}

func notify(level domain.NoticeLevel, code, message string) Effect {
	return Notify{Notice: domain.NewNotice(level, code, message)}
}
