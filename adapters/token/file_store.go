package token

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/satriahrh/mockinterview/domain/repositories"
)

var (
	// ErrNoToken is returned when the store holds no token
	ErrNoToken = errors.New("no bearer token stored")
	// ErrTokenExpired is returned for a JWT whose exp claim is in the past
	ErrTokenExpired = errors.New("bearer token expired")
)

// FileStore reads the bearer token from a file on every call, the way a
// browser client reads local storage at request time.
type FileStore struct {
	path   string
	now    func() time.Time
	logger *zap.Logger
}

// Ensure FileStore implements the TokenSource interface
var _ repositories.TokenSource = (*FileStore)(nil)

// NewFileStore creates a token store backed by path
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:   path,
		now:    time.Now,
		logger: logger,
	}
}

// Token implements repositories.TokenSource
func (f *FileStore) Token(ctx context.Context) (string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", ErrNoToken
	}

	if err := checkExpiry(token, f.now()); err != nil {
		f.logger.Warn("Stored bearer token rejected", zap.String("path", f.path), zap.Error(err))
		return "", err
	}

	return token, nil
}

// Save writes a new token, replacing the previous one
func (f *FileStore) Save(token string) error {
	if err := os.WriteFile(f.path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Static is a fixed token, used when the token is supplied on the command line
type Static string

// Token implements repositories.TokenSource
func (s Static) Token(ctx context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", ErrNoToken
	}
	if err := checkExpiry(token, time.Now()); err != nil {
		return "", err
	}
	return token, nil
}

// checkExpiry inspects the exp claim of tokens that look like JWTs. The
// signature is the backend's business; opaque tokens pass through.
func checkExpiry(token string, now time.Time) error {
	if strings.Count(token, ".") != 2 {
		return nil
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}

	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}
