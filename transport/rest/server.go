package rest

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server - the REST surface over the game sessions, served by echo.
type Server struct {
	logger *slog.Logger
	echo   *echo.Echo
}

func New(logger *slog.Logger, sessions SessionHandler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/ping", pingHandler)

	api := e.Group("/api")
	api.POST("/sessions", sessions.Create)
	api.GET("/sessions/:id", sessions.Get)
	api.POST("/sessions/:id/turn", sessions.Turn)
	api.POST("/sessions/:id/reset", sessions.Reset)
	api.POST("/sessions/:id/new", sessions.NewGame)
	api.DELETE("/sessions/:id", sessions.Delete)

	return &Server{
		logger: logger.With("component", "rest"),
		echo:   e,
	}
}

// Routes - the handler with every route mounted, split from Start so tests
// can serve it on their own listener.
func (that *Server) Routes() http.Handler {
	return that.echo
}

// Start - starts HTTP server.
func (that *Server) Start(port string) error {
	if err := that.echo.Start(":" + port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
