package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type avatarRequest struct {
	Text string `json:"text"`
}

type avatarResponse struct {
	VideoURL string `json:"videoUrl"`
}

// inFlightGuard admits one holder at a time
type inFlightGuard struct {
	busy atomic.Bool
}

func (g *inFlightGuard) acquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *inFlightGuard) release() {
	g.busy.Store(false)
}

// AvatarInFlight reports whether a synthesis request is running
func (c *Client) AvatarInFlight() bool {
	return c.avatarGuard.busy.Load()
}

// Generate implements repositories.AvatarGenerator. Only one request runs at
// a time; a call made while another is pending fails with ErrAvatarInFlight.
func (c *Client) Generate(ctx context.Context, text string) (string, error) {
	if !c.avatarGuard.acquire() {
		return "", ErrAvatarInFlight
	}
	defer c.avatarGuard.release()

	start := time.Now()
	c.logger.Info("Requesting avatar video", zap.Int("textLength", len(text)))

	resp, err := c.postJSON(ctx, c.avatar, "/avatar/generate", avatarRequest{Text: text})
	if err != nil {
		c.logger.Error("Avatar generation failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("failed to generate avatar: %w", err)
	}
	defer resp.Body.Close()

	var result avatarResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode avatar response: %w", err)
	}
	if result.VideoURL == "" {
		return "", &StatusError{Code: CodeAvatarNoURL, Status: resp.StatusCode}
	}

	c.logger.Info("Avatar video ready",
		zap.String("videoURL", result.VideoURL),
		zap.Duration("elapsed", time.Since(start)))

	return result.VideoURL, nil
}
