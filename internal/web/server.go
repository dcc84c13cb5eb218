// Package web serves the dashboard and JSON API over the backup engine. The
// dashboard triggers backups and browses logs; it deliberately exposes no way
// to modify configuration or delete anything.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stackvault/stackvault/pkg/config"
	"github.com/stackvault/stackvault/pkg/engine"
	"github.com/stackvault/stackvault/pkg/plog"
)

const shutdownGrace = 10 * time.Second

// Server is the embedded web dashboard.
type Server struct {
	echo *echo.Echo
	eng  *engine.Engine
	cfg  config.Config
}

// New wires the routes over the given engine.
func New(cfg config.Config, eng *engine.Engine) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = newRenderer()
	e.Use(middleware.Recover())

	s := &Server{echo: e, eng: eng, cfg: cfg}

	e.GET("/", s.handleIndex)
	e.POST("/backup", s.handleBackup)
	e.GET("/logs", s.handleLogList)
	e.GET("/logs/:name", s.handleLogView)
	e.GET("/download_log/:name", s.handleLogDownload)

	e.GET("/api/status", s.handleAPIStatus)
	e.GET("/api/logs", s.handleAPILogs)
	e.GET("/api/config", s.handleAPIConfig)

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully. In-flight
// requests get shutdownGrace to finish; a running backup batch is not
// interrupted, it continues on its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.cfg.Web.Listen)
	}()
	plog.Info("Web dashboard listening", "addr", s.cfg.Web.Listen)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		plog.Info("Shutting down web dashboard")
		return s.echo.Shutdown(shutdownCtx)
	}
}
