package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mockinterview/domain/entities"
	"github.com/satriahrh/mockinterview/domain/repositories"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultAvatarTimeout  = 5 * time.Minute
	maxErrorBody          = 4 * 1024
)

// Config holds configuration for the backend client
// Required fields:
// - BaseURL: root of the interview API, e.g. "https://api.example.com/api"
// Optional fields with defaults:
// - RequestTimeout: timeout for start/end/feedback calls (default: 15s)
// - AvatarTimeout: timeout for avatar synthesis (default: 5m)
// The streaming call has no client timeout beyond the transport default.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	AvatarTimeout  time.Duration
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.BaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}

	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base URL must be absolute, got %q", config.BaseURL)
	}

	if config.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must be positive, got %s", config.RequestTimeout)
	}

	if config.AvatarTimeout < 0 {
		return fmt.Errorf("avatar timeout must be positive, got %s", config.AvatarTimeout)
	}

	return nil
}

// NewConfigFromEnv creates a Config from environment variables
func NewConfigFromEnv() Config {
	config := Config{
		BaseURL: os.Getenv("INTERVIEW_BACKEND_URL"),
	}

	if v := os.Getenv("INTERVIEW_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.RequestTimeout = d
		}
	}

	if v := os.Getenv("INTERVIEW_AVATAR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.AvatarTimeout = d
		}
	}

	return config
}

// Client talks to the interview backend. It implements SessionBackend,
// ResponseStreamer and AvatarGenerator.
type Client struct {
	baseURL string
	tokens  repositories.TokenSource

	// http carries start/end/feedback calls, stream the message call and
	// avatar the synthesis call.
	http   *http.Client
	stream *http.Client
	avatar *http.Client

	avatarGuard inFlightGuard

	logger *zap.Logger
}

var (
	_ repositories.SessionBackend   = (*Client)(nil)
	_ repositories.ResponseStreamer = (*Client)(nil)
	_ repositories.AvatarGenerator  = (*Client)(nil)
)

// NewClient creates a new backend client
func NewClient(config Config, tokens repositories.TokenSource, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	requestTimeout := config.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = defaultRequestTimeout
		logger.Info("Using default request timeout", zap.Duration("requestTimeout", requestTimeout))
	}

	avatarTimeout := config.AvatarTimeout
	if avatarTimeout == 0 {
		avatarTimeout = defaultAvatarTimeout
		logger.Info("Using default avatar timeout", zap.Duration("avatarTimeout", avatarTimeout))
	}

	return &Client{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: requestTimeout},
		stream:  &http.Client{},
		avatar:  &http.Client{Timeout: avatarTimeout},
		logger:  logger,
	}, nil
}

type startRequest struct {
	Role   string `json:"role"`
	Domain string `json:"domain"`
}

type feedbackRequest struct {
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

// StartSession implements repositories.SessionBackend
func (c *Client) StartSession(ctx context.Context, config entities.SessionConfig) (repositories.StartResult, error) {
	var result repositories.StartResult

	if err := config.Validate(); err != nil {
		return result, err
	}

	resp, err := c.postJSON(ctx, c.http, "/session/start", startRequest{
		Role:   config.Role,
		Domain: config.Domain,
	})
	if err != nil {
		return result, fmt.Errorf("failed to start session: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("failed to decode start response: %w", err)
	}
	if result.SessionID == "" {
		return result, fmt.Errorf("start response carries no session id")
	}

	c.logger.Info("Interview session started",
		zap.String("sessionID", result.SessionID),
		zap.String("role", config.Role),
		zap.String("domain", config.Domain))

	return result, nil
}

// EndSession implements repositories.SessionBackend
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	resp, err := c.postJSON(ctx, c.http, "/session/"+url.PathEscape(sessionID)+"/end", struct{}{})
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	resp.Body.Close()
	return nil
}

// SubmitFeedback implements repositories.SessionBackend
func (c *Client) SubmitFeedback(ctx context.Context, sessionID string, feedback entities.Feedback) error {
	if err := feedback.Validate(); err != nil {
		return err
	}

	resp, err := c.postJSON(ctx, c.http, "/session/"+url.PathEscape(sessionID)+"/feedback", feedbackRequest{
		Rating:   feedback.Rating,
		Comments: feedback.Comments,
	})
	if err != nil {
		return fmt.Errorf("failed to submit feedback: %w", err)
	}
	resp.Body.Close()
	return nil
}

// newRequest builds an authenticated JSON POST. The token is fetched from the
// token source for every request.
func (c *Client) newRequest(ctx context.Context, path string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &StatusError{Code: CodeUnauthorized, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return req, nil
}

// postJSON sends the request and returns the response only for 2xx statuses
func (c *Client) postJSON(ctx context.Context, client *http.Client, path string, payload interface{}) (*http.Response, error) {
	req, err := c.newRequest(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Sending request to interview backend", zap.String("path", path))

	resp, err := client.Do(req)
	if err != nil {
		return nil, &StatusError{Code: CodeTransport, Err: err}
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code:   CodeHTTPStatus,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(errorBody)),
	}
}
