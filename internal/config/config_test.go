package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"INTERVIEW_BACKEND_URL", "INTERVIEW_REQUEST_TIMEOUT", "INTERVIEW_AVATAR_TIMEOUT",
	"INTERVIEW_TOKEN_FILE", "INTERVIEW_ROLE", "INTERVIEW_DOMAIN", "INTERVIEW_TICK_INTERVAL",
	"INTERVIEW_STT_PROVIDER", "INTERVIEW_STT_LANGUAGE", "INTERVIEW_STT_SAMPLE_RATE",
	"INTERVIEW_STT_ENCODING", "INTERVIEW_STT_SCRIPT", "GOOGLE_APPLICATION_CREDENTIALS",
	"INTERVIEW_HOST", "PORT", "INTERVIEW_RENDERER_SECRET", "INTERVIEW_RENDERER_TOKEN_TTL",
}

// clearEnv unsets every variable the package reads. t.Setenv restores the
// previous values when the test ends.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func validConfig() Config {
	config := NewConfigFromEnv()
	config.Backend.BaseURL = "http://localhost:8000"
	config.Session.Role = "Software Engineer"
	config.Session.Domain = "Software Engineering"
	return config
}

func TestNewConfigFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	config := NewConfigFromEnv()
	assert.Equal(t, defaultTokenFile, config.TokenFile)
	assert.Equal(t, time.Second, config.TickInterval)
	assert.Equal(t, ProviderGoogle, config.STT.Provider)
	assert.Equal(t, "en-US", config.STT.Language)
	assert.Equal(t, 16000, config.STT.SampleRate)
	assert.Equal(t, "LINEAR16", config.STT.Encoding)
	assert.Equal(t, "127.0.0.1:8080", config.Server.Addr())
	assert.Equal(t, 24*time.Hour, config.Server.RendererTokenTTL)
	assert.Empty(t, config.STT.Script)
}

func TestNewConfigFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("INTERVIEW_BACKEND_URL", "https://interview.example.com/api")
	t.Setenv("INTERVIEW_AVATAR_TIMEOUT", "2m")
	t.Setenv("INTERVIEW_TOKEN_FILE", "/tmp/token")
	t.Setenv("INTERVIEW_ROLE", "Data Scientist")
	t.Setenv("INTERVIEW_DOMAIN", "Machine Learning")
	t.Setenv("INTERVIEW_TICK_INTERVAL", "500ms")
	t.Setenv("INTERVIEW_STT_PROVIDER", "scripted")
	t.Setenv("INTERVIEW_STT_SAMPLE_RATE", "48000")
	t.Setenv("INTERVIEW_STT_SCRIPT", "hello there | I led a migration|")
	t.Setenv("PORT", "9090")

	config := NewConfigFromEnv()
	assert.Equal(t, "https://interview.example.com/api", config.Backend.BaseURL)
	assert.Equal(t, 2*time.Minute, config.Backend.AvatarTimeout)
	assert.Equal(t, "/tmp/token", config.TokenFile)
	assert.Equal(t, "Data Scientist", config.Session.Role)
	assert.Equal(t, "Machine Learning", config.Session.Domain)
	assert.Equal(t, 500*time.Millisecond, config.TickInterval)
	assert.Equal(t, ProviderScripted, config.STT.Provider)
	assert.Equal(t, 48000, config.STT.SampleRate)
	assert.Equal(t, []string{"hello there", "I led a migration"}, config.STT.Script)
	assert.Equal(t, "127.0.0.1:9090", config.Server.Addr())
	require.NoError(t, config.Validate())

	audio := config.Audio()
	assert.Equal(t, 48000, audio.SampleRate)
	assert.Equal(t, "LINEAR16", audio.Encoding)
}

func TestNewConfigFromEnv_IgnoresBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("INTERVIEW_TICK_INTERVAL", "soon")
	t.Setenv("INTERVIEW_STT_SAMPLE_RATE", "-1")

	config := NewConfigFromEnv()
	assert.Equal(t, time.Second, config.TickInterval)
	assert.Equal(t, 16000, config.STT.SampleRate)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Setenv("INTERVIEW_DOMAIN", "Set In Environment"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"INTERVIEW_ROLE=Software Engineer\nINTERVIEW_DOMAIN=From File\n"), 0o600))

	config, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "Software Engineer", config.Session.Role)
	assert.Equal(t, "Set In Environment", config.Session.Domain)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing backend", func(c *Config) { c.Backend.BaseURL = "" }, false},
		{"missing token file", func(c *Config) { c.TokenFile = "" }, false},
		{"missing role", func(c *Config) { c.Session.Role = " " }, false},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, false},
		{"typed provider", func(c *Config) { c.STT.Provider = ProviderTyped }, true},
		{"unknown provider", func(c *Config) { c.STT.Provider = "whisper" }, false},
		{"scripted without script", func(c *Config) { c.STT.Provider = ProviderScripted }, false},
		{"sample rate too low", func(c *Config) { c.STT.SampleRate = 100 }, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
