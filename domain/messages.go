package domain

import "time"

// NoticeLevel is the severity of a user-visible notice
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice codes surfaced to the renderer
const (
	NoticeCodeConnectFailed     = "connect_failed"
	NoticeCodeStreamFailed      = "stream_failed"
	NoticeCodeAvatarFailed      = "avatar_failed"
	NoticeCodeMicUnavailable    = "microphone_unavailable"
	NoticeCodeFeedbackInvalid   = "feedback_invalid"
	NoticeCodeInterviewEnded    = "interview_ended"
	NoticeCodeFeedbackSubmitted = "feedback_submitted"
)

// Notice is a transient user-visible message (toast)
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// NewNotice creates a notice stamped with the current time
func NewNotice(level NoticeLevel, code, message string) Notice {
	return Notice{
		Level:   level,
		Code:    code,
		Message: message,
		At:      time.Now(),
	}
}
