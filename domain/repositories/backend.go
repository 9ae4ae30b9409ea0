package repositories

import (
	"context"

	"github.com/satriahrh/mockinterview/domain/entities"
)

// StartResult is the backend acknowledgment of a session start
type StartResult struct {
	SessionID     string `json:"sessionId"`
	FirstQuestion string `json:"firstQuestion"`
}

// SessionBackend abstracts the interview session REST endpoints
type SessionBackend interface {
	// StartSession opens a session for the chosen role and domain
	StartSession(ctx context.Context, config entities.SessionConfig) (StartResult, error)
	// EndSession notifies the backend that the interview is over
	EndSession(ctx context.Context, sessionID string) error
	// SubmitFeedback sends the post-interview rating
	SubmitFeedback(ctx context.Context, sessionID string, feedback entities.Feedback) error
}

// StreamHandler receives the results of one streamed exchange. Exactly one
// of OnComplete or OnError is called, after zero or more OnChunk calls.
type StreamHandler interface {
	OnChunk(content string)
	OnComplete(fullResponse string, confidence float64)
	OnError(err error)
}

// ResponseStreamer sends one user utterance and streams the AI answer back
type ResponseStreamer interface {
	// Send returns immediately; results arrive on the handler
	Send(ctx context.Context, sessionID, text string, handler StreamHandler)
}

// AvatarGenerator synthesizes a talking-avatar video for an AI turn
type AvatarGenerator interface {
	Generate(ctx context.Context, text string) (string, error)
}
