package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler captures callbacks and signals done on the terminal one
type recordingHandler struct {
	mu         sync.Mutex
	chunks     []string
	full       string
	confidence float64
	err        error
	terminals  int
	done       chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{done: make(chan struct{})}
}

func (h *recordingHandler) OnChunk(content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks = append(h.chunks, content)
}

func (h *recordingHandler) OnComplete(fullResponse string, confidence float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.full = fullResponse
	h.confidence = confidence
	h.terminal()
}

func (h *recordingHandler) OnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	h.terminal()
}

func (h *recordingHandler) terminal() {
	h.terminals++
	if h.terminals == 1 {
		close(h.done)
	}
}

func (h *recordingHandler) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not reach a terminal callback")
	}
}

func streamHandler(t *testing.T, lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/s-1/message", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var body messageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "I have five years of experience", body.Text)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprint(w, line)
			flusher.Flush()
		}
	}
}

func TestClient_Send_ChunksThenComplete(t *testing.T) {
	client := newTestClient(t, streamHandler(t,
		"data: {\"type\":\"chunk\",\"content\":\"Great\"}\n\n",
		"data: {\"type\":\"chunk\",\"content\":\", tell me\"}\n\n",
		"data: {\"type\":\"chunk\",\"content\":\" about a project\"}\n\n",
		"data: {\"type\":\"complete\",\"fullResponse\":\"Great, tell me about a project you led.\",\"confidence\":0.92}\n\n",
		"data: {\"type\":\"chunk\",\"content\":\"ignored\"}\n\n",
	))

	handler := newRecordingHandler()
	client.Send(context.Background(), "s-1", "I have five years of experience", handler)
	handler.wait(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []string{"Great", ", tell me", " about a project"}, handler.chunks)
	assert.Equal(t, "Great, tell me about a project you led.", handler.full)
	assert.InDelta(t, 0.92, handler.confidence, 1e-9)
	assert.NoError(t, handler.err)
	assert.Equal(t, 1, handler.terminals)
}

func TestClient_Send_ServerError(t *testing.T) {
	client := newTestClient(t, streamHandler(t,
		"data: {\"type\":\"chunk\",\"content\":\"Gre\"}\n",
		"data: {\"type\":\"error\",\"error\":\"model overloaded\"}\n",
		"data: {\"type\":\"complete\",\"fullResponse\":\"late\",\"confidence\":1}\n",
	))

	handler := newRecordingHandler()
	client.Send(context.Background(), "s-1", "I have five years of experience", handler)
	handler.wait(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	var streamErr *StreamError
	require.ErrorAs(t, handler.err, &streamErr)
	assert.Equal(t, CodeServer, streamErr.Code)
	assert.Equal(t, "model overloaded", streamErr.Message)
	assert.Empty(t, handler.full)
	assert.Equal(t, 1, handler.terminals)
}

func TestClient_Send_ClosedWithoutCompletion(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		chunks int
	}{
		{name: "no data lines", lines: nil, chunks: 0},
		{name: "only comments", lines: []string{": keepalive\n\n", "event: ping\n"}, chunks: 0},
		{name: "chunks only", lines: []string{"data: {\"type\":\"chunk\",\"content\":\"a\"}\n"}, chunks: 1},
		{name: "malformed json", lines: []string{"data: {not json}\n"}, chunks: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, streamHandler(t, tt.lines...))

			handler := newRecordingHandler()
			client.Send(context.Background(), "s-1", "I have five years of experience", handler)
			handler.wait(t)

			handler.mu.Lock()
			defer handler.mu.Unlock()
			assert.True(t, IsStreamClosed(handler.err), "got %v", handler.err)
			assert.Len(t, handler.chunks, tt.chunks)
			assert.Equal(t, 1, handler.terminals)
		})
	}
}

func TestClient_Send_HTTPStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	}))

	handler := newRecordingHandler()
	client.Send(context.Background(), "s-1", "hello", handler)
	handler.wait(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	var streamErr *StreamError
	require.ErrorAs(t, handler.err, &streamErr)
	assert.Equal(t, CodeHTTPStatus, streamErr.Code)
	assert.Equal(t, http.StatusNotFound, streamErr.Status)
	assert.Equal(t, "session not found", streamErr.Message)
}

func TestClient_Send_Transport(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client.baseURL = "http://127.0.0.1:1"

	handler := newRecordingHandler()
	client.Send(context.Background(), "s-1", "hello", handler)
	handler.wait(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	var streamErr *StreamError
	require.ErrorAs(t, handler.err, &streamErr)
	assert.Equal(t, CodeTransport, streamErr.Code)
}
