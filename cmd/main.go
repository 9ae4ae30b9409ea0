package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/mockinterview/adapters/backend"
	"github.com/satriahrh/mockinterview/adapters/stt"
	"github.com/satriahrh/mockinterview/adapters/token"
	"github.com/satriahrh/mockinterview/domain/repositories"
	"github.com/satriahrh/mockinterview/internal/config"
	"github.com/satriahrh/mockinterview/usecase"
)

// Version information (set at build time)
var version = "dev"

type rootFlags struct {
	envFile    string
	debug      bool
	backendURL string
	tokenFile  string
	role       string
	domain     string
	provider   string
}

func main() {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "mockinterview",
		Short:         "Live mock interview session client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.BoolVar(&flags.debug, "debug", false, "enable development logging")
	pf.StringVar(&flags.backendURL, "backend-url", "", "interview backend base URL (INTERVIEW_BACKEND_URL)")
	pf.StringVar(&flags.tokenFile, "token-file", "", "file holding the bearer token (INTERVIEW_TOKEN_FILE)")
	pf.StringVar(&flags.role, "role", "", "interview role (INTERVIEW_ROLE)")
	pf.StringVar(&flags.domain, "domain", "", "interview domain (INTERVIEW_DOMAIN)")
	pf.StringVar(&flags.provider, "stt", "", "speech provider: google, typed or scripted (INTERVIEW_STT_PROVIDER)")

	rootCmd.AddCommand(newServeCmd(flags), newConsoleCmd(flags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the flags that were set
func loadConfig(cmd *cobra.Command, flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return config.Config{}, err
	}

	pf := cmd.Flags()
	if pf.Changed("backend-url") {
		cfg.Backend.BaseURL = flags.backendURL
	}
	if pf.Changed("token-file") {
		cfg.TokenFile = flags.tokenFile
	}
	if pf.Changed("role") {
		cfg.Session.Role = flags.role
	}
	if pf.Changed("domain") {
		cfg.Session.Domain = flags.domain
	}
	if pf.Changed("stt") {
		cfg.STT.Provider = flags.provider
	}
	return cfg, nil
}

func newLogger(debug bool, level zapcore.Level) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func newRecognizer(cfg config.Config, logger *zap.Logger) repositories.SpeechRecognizer {
	switch cfg.STT.Provider {
	case config.ProviderTyped:
		return stt.NewTypedRecognizer()
	case config.ProviderScripted:
		return stt.NewScriptedRecognizer(cfg.STT.Script, logger)
	default:
		return stt.NewGoogleRecognizer(stt.GoogleConfig{CredentialsFile: cfg.STT.CredentialsFile}, logger)
	}
}

// newSession wires the backend client, the token store and the recognizer
// into one interview session
func newSession(cfg config.Config, recognizer repositories.SpeechRecognizer, logger *zap.Logger) (*usecase.InterviewSession, error) {
	tokens := token.NewFileStore(cfg.TokenFile, logger)

	client, err := backend.NewClient(cfg.Backend, tokens, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	return usecase.NewInterviewSession(
		usecase.Dependencies{
			Backend:    client,
			Streamer:   client,
			Avatars:    client,
			Recognizer: recognizer,
		},
		usecase.Options{
			Config:       cfg.Session,
			Audio:        cfg.Audio(),
			TickInterval: cfg.TickInterval,
		},
		logger,
	)
}
