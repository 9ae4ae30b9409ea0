package interview

import (
	"github.com/satriahrh/mockinterview/domain"
	"github.com/satriahrh/mockinterview/domain/entities"
)

// Event is an input to the machine
type Event interface {
	isEvent()
}

// SessionStarted is the backend acknowledgment of the start request
type SessionStarted struct {
	SessionID     string
	FirstQuestion string
}

// SessionStartFailed reports that the start request failed
type SessionStartFailed struct {
	Err error
}

// UserTurnSent submits a finished user utterance
type UserTurnSent struct {
	Text string
}

// ChunkReceived carries one partial token of the stream identified by StreamID
type ChunkReceived struct {
	StreamID uint64
	Content  string
}

// TurnCompleted carries the authoritative answer of a stream
type TurnCompleted struct {
	StreamID     uint64
	FullResponse string
	Confidence   float64
}

// StreamFailed reports a failed or truncated stream
type StreamFailed struct {
	StreamID uint64
	Err      error
}

// AvatarResolved is the outcome of the avatar request with sequence Seq
type AvatarResolved struct {
	Seq uint64
	URL string
	Err error
}

// SessionEnded is the explicit end action
type SessionEnded struct{}

// FeedbackSubmitted carries the post-interview rating
type FeedbackSubmitted struct {
	Feedback entities.Feedback
}

// Tick is one period of the elapsed-time ticker
type Tick struct{}

func (SessionStarted) isEvent()     {}
func (SessionStartFailed) isEvent() {}
func (UserTurnSent) isEvent()       {}
func (ChunkReceived) isEvent()      {}
func (TurnCompleted) isEvent()      {}
func (StreamFailed) isEvent()       {}
func (AvatarResolved) isEvent()     {}
func (SessionEnded) isEvent()       {}
func (FeedbackSubmitted) isEvent()  {}
func (Tick) isEvent()               {}

// Effect is an action the caller must perform after Apply
type Effect interface {
	isEffect()
}

// SendMessage opens the response stream for a user turn
type SendMessage struct {
	StreamID  uint64
	SessionID string
	Text      string
}

// GenerateAvatar requests the avatar video for an AI turn
type GenerateAvatar struct {
	Seq  uint64
	Text string
}

// NotifyEnd tells the backend that the session ended
type NotifyEnd struct {
	SessionID string
}

// SubmitFeedback sends the rating to the backend
type SubmitFeedback struct {
	SessionID string
	Feedback  entities.Feedback
}

// Notify surfaces a notice to the user
type Notify struct {
	Notice domain.Notice
}

func (SendMessage) isEffect()    {}
func (GenerateAvatar) isEffect() {}
func (NotifyEnd) isEffect()      {}
func (SubmitFeedback) isEffect() {}
func (Notify) isEffect()         {}
