package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mockinterview/adapters/token"
)

func TestClient_Generate(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/avatar/generate", r.URL.Path)

		var body avatarRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Great, tell me about a project you led.", body.Text)

		fmt.Fprint(w, `{"videoUrl":"https://cdn.example.com/v/1.mp4"}`)
	}))

	videoURL, err := client.Generate(context.Background(), "Great, tell me about a project you led.")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/v/1.mp4", videoURL)
	assert.False(t, client.AvatarInFlight())
}

func TestClient_Generate_RejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		fmt.Fprint(w, `{"videoUrl":"https://cdn.example.com/v/1.mp4"}`)
	}))

	type result struct {
		url string
		err error
	}
	first := make(chan result, 1)
	go func() {
		url, err := client.Generate(context.Background(), "first")
		first <- result{url, err}
	}()

	<-started
	assert.True(t, client.AvatarInFlight())

	_, err := client.Generate(context.Background(), "second")
	assert.ErrorIs(t, err, ErrAvatarInFlight)

	close(release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, "https://cdn.example.com/v/1.mp4", res.url)

	// The guard is released once the first call resolves.
	assert.False(t, client.AvatarInFlight())
}

func TestClient_Generate_Failures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "synthesis failed", http.StatusBadGateway)
		}))

		_, err := client.Generate(context.Background(), "hello")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.Status)
		assert.False(t, client.AvatarInFlight())
	})

	t.Run("missing url", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}))

		_, err := client.Generate(context.Background(), "hello")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, CodeAvatarNoURL, statusErr.Code)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer close(release)

		client, err := NewClient(Config{
			BaseURL:       server.baseURL,
			AvatarTimeout: 50 * time.Millisecond,
		}, token.Static("test-token"), zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = client.Generate(context.Background(), "hello")
		assert.Error(t, err)
		assert.False(t, client.AvatarInFlight())
	})
}
