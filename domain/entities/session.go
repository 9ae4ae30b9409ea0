package entities

import (
	"errors"
	"strings"
	"time"
)

// SessionStatus represents the lifecycle status of an interview session
type SessionStatus string

const (
	SessionStatusConnecting SessionStatus = "connecting"
	SessionStatusActive     SessionStatus = "active"
	SessionStatusEnded      SessionStatus = "ended"
)

// DefaultTickInterval is the period of the elapsed-time ticker
const DefaultTickInterval = time.Second

// SessionConfig is the role/domain pair chosen before the interview starts
type SessionConfig struct {
	Role   string `json:"role"`
	Domain string `json:"domain"`
}

// Validate validates the session configuration
func (c SessionConfig) Validate() error {
	if strings.TrimSpace(c.Role) == "" {
		return errors.New("role is required")
	}
	if strings.TrimSpace(c.Domain) == "" {
		return errors.New("domain is required")
	}
	return nil
}

// Session represents one live mock interview
type Session struct {
	ID        string        `json:"id"`
	Config    SessionConfig `json:"config"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	// Ticks counts ticker periods observed while active. Elapsed time is
	// derived from it and never stored on its own.
	Ticks        int           `json:"ticks"`
	TickInterval time.Duration `json:"-"`
	// Failure holds the start error when the backend refused the session.
	// The status stays connecting; there is no retry.
	Failure string `json:"failure,omitempty"`
}

// NewSession creates a session in the connecting state
func NewSession(config SessionConfig) *Session {
	return &Session{
		Config:       config,
		Status:       SessionStatusConnecting,
		CreatedAt:    time.Now(),
		TickInterval: DefaultTickInterval,
	}
}

// Activate records the backend-issued ID and moves the session to active
func (s *Session) Activate(id string) {
	s.ID = id
	s.Status = SessionStatusActive
}

// Fail marks the start attempt as failed
func (s *Session) Fail(reason string) {
	s.Failure = reason
}

// Failed reports whether the start attempt failed
func (s *Session) Failed() bool {
	return s.Failure != ""
}

// End moves the session to the terminal ended state
func (s *Session) End() {
	s.Status = SessionStatusEnded
}

// IsActive checks if user turns may be sent
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// IsEnded checks if the session reached its terminal state
func (s *Session) IsEnded() bool {
	return s.Status == SessionStatusEnded
}

// Tick advances the elapsed counter, only while active
func (s *Session) Tick() {
	if s.IsActive() {
		s.Ticks++
	}
}

// Elapsed returns the accumulated active duration
func (s *Session) Elapsed() time.Duration {
	interval := s.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return time.Duration(s.Ticks) * interval
}

// Validate validates the session data
func (s *Session) Validate() error {
	if err := s.Config.Validate(); err != nil {
		return err
	}

	switch s.Status {
	case SessionStatusConnecting, SessionStatusEnded:
	case SessionStatusActive:
		if s.ID == "" {
			return errors.New("active session requires an id")
		}
	default:
		return errors.New("invalid session status")
	}

	return nil
}
