// Package config loads the CLI configuration from .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/satriahrh/mockinterview/adapters/backend"
	"github.com/satriahrh/mockinterview/domain/entities"
	"github.com/satriahrh/mockinterview/domain/repositories"
)

// Speech recognizer providers
const (
	ProviderGoogle   = "google"
	ProviderTyped    = "typed"
	ProviderScripted = "scripted"
)

const (
	defaultTokenFile  = ".interview_token"
	defaultLanguage   = "en-US"
	defaultSampleRate = 16000
	defaultEncoding   = "LINEAR16"
	defaultHost       = "127.0.0.1"
	defaultPort       = "8080"
	defaultTokenTTL   = 24 * time.Hour
)

// STTConfig selects and configures the speech recognizer
type STTConfig struct {
	Provider        string
	Language        string
	SampleRate      int
	Encoding        string
	CredentialsFile string
	// Script holds the utterances of the scripted recognizer
	Script []string
}

// ServerConfig configures the renderer HTTP surface
type ServerConfig struct {
	Host             string
	Port             string
	RendererSecret   string
	RendererTokenTTL time.Duration
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Config is the full CLI configuration
type Config struct {
	Backend      backend.Config
	TokenFile    string
	Session      entities.SessionConfig
	TickInterval time.Duration
	STT          STTConfig
	Server       ServerConfig
}

// Load reads the given .env files, skipping missing ones, and then builds the
// configuration from the environment. Variables already set in the
// environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return NewConfigFromEnv(), nil
}

// NewConfigFromEnv creates a Config from environment variables
func NewConfigFromEnv() Config {
	config := Config{
		Backend:   backend.NewConfigFromEnv(),
		TokenFile: envOr("INTERVIEW_TOKEN_FILE", defaultTokenFile),
		Session: entities.SessionConfig{
			Role:   os.Getenv("INTERVIEW_ROLE"),
			Domain: os.Getenv("INTERVIEW_DOMAIN"),
		},
		TickInterval: envDuration("INTERVIEW_TICK_INTERVAL", entities.DefaultTickInterval),
		STT: STTConfig{
			Provider:        envOr("INTERVIEW_STT_PROVIDER", ProviderGoogle),
			Language:        envOr("INTERVIEW_STT_LANGUAGE", defaultLanguage),
			SampleRate:      defaultSampleRate,
			Encoding:        envOr("INTERVIEW_STT_ENCODING", defaultEncoding),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			Script:          splitScript(os.Getenv("INTERVIEW_STT_SCRIPT")),
		},
		Server: ServerConfig{
			Host:             envOr("INTERVIEW_HOST", defaultHost),
			Port:             envOr("PORT", defaultPort),
			RendererSecret:   os.Getenv("INTERVIEW_RENDERER_SECRET"),
			RendererTokenTTL: envDuration("INTERVIEW_RENDERER_TOKEN_TTL", defaultTokenTTL),
		},
	}

	if v := os.Getenv("INTERVIEW_STT_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
			config.STT.SampleRate = rate
		}
	}

	return config
}

// Audio returns the recognizer audio settings
func (c Config) Audio() repositories.AudioConfig {
	return repositories.AudioConfig{
		SampleRate: c.STT.SampleRate,
		Encoding:   c.STT.Encoding,
		Language:   c.STT.Language,
	}
}

// Validate checks the configuration. The session role and domain are
// required, and each provider has its own requirements.
func (c Config) Validate() error {
	if err := backend.ValidateConfig(c.Backend); err != nil {
		return err
	}
	if c.TokenFile == "" {
		return fmt.Errorf("token file is required")
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}

	switch c.STT.Provider {
	case ProviderGoogle, ProviderTyped:
	case ProviderScripted:
		if len(c.STT.Script) == 0 {
			return fmt.Errorf("scripted recognizer needs INTERVIEW_STT_SCRIPT")
		}
	default:
		return fmt.Errorf("unknown speech provider %q (want %s, %s or %s)",
			c.STT.Provider, ProviderGoogle, ProviderTyped, ProviderScripted)
	}
	if c.STT.SampleRate < 8000 || c.STT.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// splitScript splits utterances on "|"
func splitScript(raw string) []string {
	var script []string
	for _, part := range strings.Split(raw, "|") {
		if part = strings.TrimSpace(part); part != "" {
			script = append(script, part)
		}
	}
	return script
}
