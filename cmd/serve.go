package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/mockinterview/internal/api"
	"github.com/satriahrh/mockinterview/internal/auth"
	"github.com/satriahrh/mockinterview/internal/metrics"
	"github.com/satriahrh/mockinterview/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var host, port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an interview session for a local browser renderer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := newLogger(flags.debug, zap.InfoLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			session, err := newSession(cfg, newRecognizer(cfg, logger), logger)
			if err != nil {
				return err
			}

			issuer, err := auth.NewIssuer(cfg.Server.RendererSecret, cfg.Server.RendererTokenTTL)
			if err != nil {
				return err
			}
			token, err := issuer.GenerateRendererToken(uuid.NewString())
			if err != nil {
				return err
			}

			hub := websocket.NewHub(session, logger)

			recorder := metrics.New()
			recorder.RegisterClientCount(hub.ClientCount)
			defer recorder.Observe(session)()

			// Create Echo instance
			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Recover())
			e.Use(middleware.CORS())
			api.InitRoutes(e, hub, session, issuer, recorder.Handler(), logger)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return session.Run(ctx)
			})
			g.Go(func() error {
				hub.Run(ctx)
				return nil
			})
			g.Go(func() error {
				if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				logger.Info("Server is shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return e.Shutdown(shutdownCtx)
			})

			logger.Info("Server started",
				zap.String("addr", cfg.Server.Addr()),
				zap.String("role", cfg.Session.Role),
				zap.String("domain", cfg.Session.Domain))
			fmt.Fprintf(cmd.OutOrStdout(), "Renderer: ws://%s/ws?token=%s\n", cfg.Server.Addr(), token)

			err = g.Wait()
			logger.Info("Server exited")
			return err
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (INTERVIEW_HOST)")
	cmd.Flags().StringVar(&port, "port", "", "listen port (PORT)")
	return cmd
}
