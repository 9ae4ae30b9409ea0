package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mockinterview/internal/auth"
	"github.com/satriahrh/mockinterview/internal/websocket"
	"github.com/satriahrh/mockinterview/usecase"
)

const claimsKey = "renderer_claims"

// SnapshotSource provides the current session view
type SnapshotSource interface {
	Current() usecase.Snapshot
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, session SnapshotSource, issuer *auth.Issuer, metrics http.Handler, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:        "ok",
			Service:       "mockinterview",
			SessionStatus: string(session.Current().Status),
			Clients:       hub.ClientCount(),
		})
	})

	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	// API v1 routes
	v1 := e.Group("/api/v1", requireRenderer(issuer, logger))

	v1.GET("/session", func(c echo.Context) error {
		return c.JSON(http.StatusOK, session.Current())
	})

	v1.POST("/renderer/refresh", func(c echo.Context) error {
		return refreshToken(c, issuer, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		claims, ok := rendererClaims(c)
		if !ok {
			return missingClaims(c)
		}
		logger.Info("WebSocket connection authenticated", zap.String("viewer_id", claims.ViewerID))
		return websocket.HandleWebSocket(hub, c, claims.ViewerID, logger)
	}, requireRenderer(issuer, logger))
}

// requireRenderer rejects requests without a valid renderer token
func requireRenderer(issuer *auth.Issuer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "A renderer token is required",
				})
			}

			claims, err := issuer.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired renderer token",
				})
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

func rendererClaims(c echo.Context) (*auth.JWTClaims, bool) {
	claims, ok := c.Get(claimsKey).(*auth.JWTClaims)
	return claims, ok
}

func missingClaims(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   "invalid_token_claims",
		Message: "Renderer claims not found",
	})
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter since browsers cannot set headers on WebSocket requests.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return token
	}
	return c.QueryParam("token")
}

func refreshToken(c echo.Context, issuer *auth.Issuer, logger *zap.Logger) error {
	claims, ok := rendererClaims(c)
	if !ok {
		return missingClaims(c)
	}

	token, err := issuer.GenerateRendererToken(claims.ViewerID)
	if err != nil {
		logger.Error("Failed to issue renderer token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to issue renderer token",
		})
	}

	refreshed, err := issuer.ValidateToken(token)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to issue renderer token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: refreshed.ExpiresAt.Time,
		ViewerID:  claims.ViewerID,
	})
}
