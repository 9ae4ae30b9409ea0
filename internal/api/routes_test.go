package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mockinterview/domain"
	"github.com/satriahrh/mockinterview/domain/entities"
	"github.com/satriahrh/mockinterview/internal/auth"
	"github.com/satriahrh/mockinterview/internal/interview"
	"github.com/satriahrh/mockinterview/internal/metrics"
	"github.com/satriahrh/mockinterview/internal/notify"
	"github.com/satriahrh/mockinterview/internal/websocket"
	"github.com/satriahrh/mockinterview/usecase"
)

type stubSession struct {
	snapshots *notify.Bus[usecase.Snapshot]
	notices   *notify.Bus[domain.Notice]
}

func (s *stubSession) Current() usecase.Snapshot {
	return usecase.Snapshot{
		View:    interview.View{SessionID: "session-1", Status: entities.SessionStatusActive},
		Devices: entities.DefaultDeviceState(),
		CanSend: true,
	}
}

func (s *stubSession) SubscribeSnapshots(handler notify.Handler[usecase.Snapshot]) func() {
	return s.snapshots.Subscribe(handler)
}

func (s *stubSession) SubscribeNotices(handler notify.Handler[domain.Notice]) func() {
	return s.notices.Subscribe(handler)
}

func (s *stubSession) StartDictation(context.Context) error { return nil }
func (s *stubSession) StopDictation(context.Context) error { return nil }
func (s *stubSession) ToggleMicrophone(context.Context) error { return nil }
func (s *stubSession) ToggleCamera(context.Context) error { return nil }
func (s *stubSession) EndInterview(context.Context) error { return nil }
func (s *stubSession) SubmitFeedback(context.Context, entities.Feedback) error { return nil }
func (s *stubSession) FeedAudio([]byte) error { return nil }

type routesHarness struct {
	server *httptest.Server
	issuer *auth.Issuer
	token  string
}

func setupRoutes(t *testing.T) *routesHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	session := &stubSession{
		snapshots: notify.NewBus[usecase.Snapshot](),
		notices:   notify.NewBus[domain.Notice](),
	}
	hub := websocket.NewHub(session, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	token, err := issuer.GenerateRendererToken("viewer-1")
	require.NoError(t, err)

	e := echo.New()
	recorder := metrics.New()
	recorder.RegisterClientCount(hub.ClientCount)
	InitRoutes(e, hub, session, issuer, recorder.Handler(), logger)
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &routesHarness{server: server, issuer: issuer, token: token}
}

func (h *routesHarness) do(t *testing.T, method, path, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var value T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&value))
	return value
}

func TestHealth(t *testing.T) {
	h := setupRoutes(t)

	resp := h.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decode[HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "active", health.SessionStatus)
}

func TestMetrics(t *testing.T) {
	h := setupRoutes(t)

	resp := h.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mockinterview_renderer_clients 0")
}

func TestSession_RequiresToken(t *testing.T) {
	h := setupRoutes(t)

	resp := h.do(t, http.MethodGet, "/api/v1/session", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing_token", decode[ErrorResponse](t, resp).Error)

	resp = h.do(t, http.MethodGet, "/api/v1/session", "forged")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_token", decode[ErrorResponse](t, resp).Error)
}

func TestSession_ReturnsSnapshot(t *testing.T) {
	h := setupRoutes(t)

	for _, path := range []string{"/api/v1/session", "/api/v1/session?token=" + h.token} {
		bearer := h.token
		if strings.Contains(path, "token=") {
			bearer = ""
		}

		resp := h.do(t, http.MethodGet, path, bearer)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		snapshot := decode[map[string]any](t, resp)
		assert.Equal(t, "session-1", snapshot["session_id"])
		assert.Equal(t, true, snapshot["can_send"])
		devices := snapshot["devices"].(map[string]any)
		assert.Equal(t, true, devices["microphone_enabled"])
	}
}

func TestRefreshToken(t *testing.T) {
	h := setupRoutes(t)

	resp := h.do(t, http.MethodPost, "/api/v1/renderer/refresh", h.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	refreshed := decode[TokenResponse](t, resp)
	assert.Equal(t, "viewer-1", refreshed.ViewerID)
	assert.True(t, refreshed.ExpiresAt.After(time.Now()))

	claims, err := h.issuer.ValidateToken(refreshed.Token)
	require.NoError(t, err)
	assert.Equal(t, "viewer-1", claims.ViewerID)
}

func TestWebSocket_Auth(t *testing.T) {
	h := setupRoutes(t)
	base := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"

	_, resp, err := gorilla.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := gorilla.DefaultDialer.Dial(base+"?token="+h.token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "session_state", msg["type"])
}
