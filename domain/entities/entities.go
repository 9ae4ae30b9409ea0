package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who produced a turn
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

// Turn is one finalized utterance in the transcript. It is never mutated
// after it has been appended.
type Turn struct {
	ID         string    `json:"id"`
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	Confidence *float64  `json:"confidence,omitempty"`
	Opening    bool      `json:"opening,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewUserTurn creates a user turn
func NewUserTurn(text string) Turn {
	return Turn{
		ID:        uuid.New().String(),
		Speaker:   SpeakerUser,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewAITurn creates an AI turn answering the previous user turn
func NewAITurn(text string, confidence float64) Turn {
	return Turn{
		ID:         uuid.New().String(),
		Speaker:    SpeakerAI,
		Text:       text,
		Confidence: &confidence,
		Timestamp:  time.Now(),
	}
}

// NewOpeningTurn creates the interviewer's first question
func NewOpeningTurn(text string) Turn {
	return Turn{
		ID:        uuid.New().String(),
		Speaker:   SpeakerAI,
		Text:      text,
		Opening:   true,
		Timestamp: time.Now(),
	}
}

// Transcript is the ordered, append-only conversation record
type Transcript struct {
	turns []Turn
	users int
	ais   int
}

// Append adds a turn at the end of the transcript
func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
	switch {
	case turn.Speaker == SpeakerUser:
		t.users++
	case turn.Speaker == SpeakerAI && !turn.Opening:
		t.ais++
	}
}

// Turns returns a copy of the turns in conversation order
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Last returns the most recent turn
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// UserTurns counts user turns
func (t *Transcript) UserTurns() int {
	return t.users
}

// AITurns counts AI answers, excluding the opening question
func (t *Transcript) AITurns() int {
	return t.ais
}

// StreamingBuffer holds the partial AI answer of the exchange in flight
type StreamingBuffer struct {
	StreamID uint64
	text     strings.Builder
}

// Append adds a chunk in arrival order
func (b *StreamingBuffer) Append(content string) {
	b.text.WriteString(content)
}

// Text returns the partial text received so far
func (b *StreamingBuffer) Text() string {
	return b.text.String()
}

// AvatarAsset is the current talking-avatar video
type AvatarAsset struct {
	URL string `json:"url"`
	Seq uint64 `json:"seq"`
}

// Feedback is the post-interview rating collected on the feedback surface
type Feedback struct {
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

// Validate validates the feedback
func (f Feedback) Validate() error {
	if f.Rating < 1 || f.Rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}
