package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/satriahrh/mockinterview/domain/repositories"
	"github.com/satriahrh/mockinterview/internal/sse"
)

// Stream event discriminators
const (
	eventChunk    = "chunk"
	eventComplete = "complete"
	eventError    = "error"
)

type messageRequest struct {
	Text string `json:"text"`
}

// streamEvent is one decoded `data:` payload
type streamEvent struct {
	Type         string  `json:"type"`
	Content      string  `json:"content,omitempty"`
	FullResponse string  `json:"fullResponse,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Send implements repositories.ResponseStreamer. It returns immediately; the
// handler receives OnChunk in arrival order followed by exactly one of
// OnComplete or OnError.
func (c *Client) Send(ctx context.Context, sessionID, text string, handler repositories.StreamHandler) {
	go c.consume(ctx, sessionID, text, handler)
}

func (c *Client) consume(ctx context.Context, sessionID, text string, handler repositories.StreamHandler) {
	logger := c.logger.With(zap.String("sessionID", sessionID))

	resp, err := c.openStream(ctx, sessionID, text)
	if err != nil {
		logger.Error("Failed to open response stream", zap.Error(err))
		handler.OnError(toStreamError(err))
		return
	}
	defer resp.Body.Close()

	scanner := sse.NewScanner(resp.Body)
	chunks := 0
	for scanner.Scan() {
		var event streamEvent
		if err := json.Unmarshal(scanner.Data(), &event); err != nil {
			logger.Debug("Skipping malformed stream event",
				zap.ByteString("data", scanner.Data()),
				zap.Error(err))
			continue
		}

		switch event.Type {
		case eventChunk:
			chunks++
			handler.OnChunk(event.Content)
		case eventComplete:
			logger.Debug("Response stream completed",
				zap.Int("chunks", chunks),
				zap.Float64("confidence", event.Confidence))
			handler.OnComplete(event.FullResponse, event.Confidence)
			return
		case eventError:
			logger.Warn("Backend reported stream error", zap.String("error", event.Error))
			handler.OnError(&StreamError{Code: CodeServer, Message: event.Error})
			return
		default:
			logger.Debug("Ignoring unknown stream event", zap.String("type", event.Type))
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("Response stream read failed", zap.Int("chunks", chunks), zap.Error(err))
		handler.OnError(&StreamError{Code: CodeStreamRead, Err: err})
		return
	}

	logger.Warn("Response stream closed without completion", zap.Int("chunks", chunks))
	handler.OnError(&StreamError{
		Code:    CodeStreamClosed,
		Message: "stream closed without completion",
	})
}

func (c *Client) openStream(ctx context.Context, sessionID, text string) (*http.Response, error) {
	req, err := c.newRequest(ctx, "/session/"+url.PathEscape(sessionID)+"/message", messageRequest{Text: text})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, &StatusError{Code: CodeTransport, Err: err}
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func toStreamError(err error) *StreamError {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return &StreamError{Code: statusErr.Code, Status: statusErr.Status, Message: statusErr.Body, Err: err}
	}
	return &StreamError{Code: CodeTransport, Err: err}
}
