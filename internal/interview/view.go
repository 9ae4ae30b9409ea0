package interview

import (
	"github.com/satriahrh/mockinterview/domain/entities"
)

// View is a read-only copy of the machine state
type View struct {
	SessionID         string                 `json:"session_id,omitempty"`
	Status            entities.SessionStatus `json:"status"`
	Failure           string                 `json:"failure,omitempty"`
	Config            entities.SessionConfig `json:"config"`
	Turns             []entities.Turn        `json:"turns"`
	Processing        bool                   `json:"processing"`
	StreamingText     string                 `json:"streaming_text,omitempty"`
	Avatar            *entities.AvatarAsset  `json:"avatar,omitempty"`
	AvatarPending     bool                   `json:"avatar_pending"`
	ElapsedSeconds    int                    `json:"elapsed_seconds"`
	FeedbackSubmitted bool                   `json:"feedback_submitted"`
}

// View returns a copy of the current state
func (m *Machine) View() View {
	view := View{
		SessionID:         m.session.ID,
		Status:            m.session.Status,
		Failure:           m.session.Failure,
		Config:            m.session.Config,
		Turns:             m.transcript.Turns(),
		Processing:        m.processing,
		AvatarPending:     m.avatarInFlight && !m.session.IsEnded(),
		ElapsedSeconds:    int(m.session.Elapsed().Seconds()),
		FeedbackSubmitted: m.feedbackSubmitted,
	}
	if m.buffer != nil {
		view.StreamingText = m.buffer.Text()
	}
	if m.avatar != nil {
		avatar := *m.avatar
		view.Avatar = &avatar
	}
	return view
}

// Status returns the session status
func (m *Machine) Status() entities.SessionStatus {
	return m.session.Status
}

// Processing reports whether a response stream is in flight
func (m *Machine) Processing() bool {
	return m.processing
}

// CanSend reports whether a user turn would be accepted
func (m *Machine) CanSend() bool {
	return m.session.IsActive() && !m.processing
}

// Transcript returns the counts and turns of the transcript
func (m *Machine) Transcript() *entities.Transcript {
	copied := entities.Transcript{}
	for _, turn := range m.transcript.Turns() {
		copied.Append(turn)
	}
	return &copied
}
