package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/mockinterview/domain"
	"github.com/satriahrh/mockinterview/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Commands sent by the renderer
const (
	MessageTypePing             MessageType = "ping"
	MessageTypeStartDictation   MessageType = "start_dictation"
	MessageTypeStopDictation    MessageType = "stop_dictation"
	MessageTypeToggleMicrophone MessageType = "toggle_microphone"
	MessageTypeToggleCamera     MessageType = "toggle_camera"
	MessageTypeEndInterview     MessageType = "end_interview"
	MessageTypeSubmitFeedback   MessageType = "submit_feedback"
)

// Messages sent to the renderer
const (
	MessageTypePong         MessageType = "pong"
	MessageTypeAck          MessageType = "ack"
	MessageTypeError        MessageType = "error"
	MessageTypeSessionState MessageType = "session_state"
	MessageTypeNotice       MessageType = "notice"
)

// Error codes carried by error messages
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeRejected       = "rejected"
	ErrorCodeSessionClosed  = "session_closed"
	ErrorCodeInternal       = "internal_error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// CommandMessage is a renderer command without a payload
type CommandMessage struct {
	BaseMessage
}

// FeedbackMessage carries the post-interview rating
type FeedbackMessage struct {
	BaseMessage
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

// Feedback converts the message into the domain value
func (m *FeedbackMessage) Feedback() entities.Feedback {
	return entities.Feedback{Rating: m.Rating, Comments: strings.TrimSpace(m.Comments)}
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// AckMessage confirms that a command was accepted
type AckMessage struct {
	BaseMessage
	Command MessageType `json:"command"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// StateMessage carries a full session snapshot
type StateMessage struct {
	BaseMessage
	State any `json:"state"`
}

// NoticeMessage carries a transient user-visible notice
type NoticeMessage struct {
	BaseMessage
	Notice domain.Notice `json:"notice"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an incoming message. The result is a *PingMessage,
// a *FeedbackMessage or a *CommandMessage.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (any, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	if base.Timestamp == "" {
		base.Timestamp = time.Now().Format(time.RFC3339)
	}

	switch base.Type {
	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		msg.BaseMessage = base
		return &msg, nil

	case MessageTypeSubmitFeedback:
		var msg FeedbackMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid feedback message: %w", err)
		}
		msg.BaseMessage = base
		if err := msg.Feedback().Validate(); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeStartDictation, MessageTypeStopDictation, MessageTypeToggleMicrophone,
		MessageTypeToggleCamera, MessageTypeEndInterview:
		return &CommandMessage{BaseMessage: base}, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func newBase(messageType MessageType, messageID string) BaseMessage {
	return BaseMessage{
		Type:      messageType,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: messageID,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(messageID, code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError, messageID),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(messageID, data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong, messageID),
		Data:        data,
	}
}

// CreateAckMessage confirms command
func CreateAckMessage(messageID string, command MessageType) *AckMessage {
	return &AckMessage{
		BaseMessage: newBase(MessageTypeAck, messageID),
		Command:     command,
	}
}

// CreateStateMessage wraps a session snapshot
func CreateStateMessage(state any) *StateMessage {
	return &StateMessage{
		BaseMessage: newBase(MessageTypeSessionState, ""),
		State:       state,
	}
}

// CreateNoticeMessage wraps a notice
func CreateNoticeMessage(notice domain.Notice) *NoticeMessage {
	return &NoticeMessage{
		BaseMessage: newBase(MessageTypeNotice, ""),
		Notice:      notice,
	}
}
