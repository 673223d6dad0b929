// Package server is the HTTP API for consumers of the selection and for
// status pages.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/feed"
	"go.ntppool.org/tablerank/scorer/score"
	"go.ntppool.org/tablerank/selector"
)

// Selector is what the API needs from the selector.
type Selector interface {
	Current() selector.SelectionCycle
	RoundsRemaining() int
	Score(e entity.Entity) score.Score
	Choose(id string) (selector.Action, error)
	MarkActed(id string) bool
}

type Server struct {
	log   *slog.Logger
	e     *echo.Echo
	sel   Selector
	table *entity.Table
	rec   feed.Recorder
	m     *metrics
}

// New sets up the API. rec receives observations posted to the API; it
// may be nil to disable that endpoint.
func New(log *slog.Logger, sel Selector, table *entity.Table, rec feed.Recorder, reg prometheus.Registerer) *Server {
	srv := &Server{
		log:   log.WithGroup("api"),
		sel:   sel,
		table: table,
		rec:   rec,
		m:     newMetrics(reg),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(otelecho.Middleware("tablerank"))
	e.Use(slogecho.New(srv.log))
	e.Use(srv.m.middleware)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/selection", srv.getSelection)
	e.GET("/tables", srv.getTables)
	e.GET("/tables/:id", srv.getTable)
	e.POST("/tables/:id/outcomes", srv.postOutcome)
	e.POST("/tables/:id/choose", srv.postChoose)
	e.POST("/tables/:id/acted", srv.postActed)

	srv.e = e
	return srv
}

func (srv *Server) Handler() http.Handler {
	return srv.e
}

// Run serves on addr until ctx is done.
func (srv *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		srv.log.InfoContext(ctx, "api listening", "addr", addr)
		errc <- srv.e.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.e.Shutdown(shutdownCtx); err != nil {
		srv.log.Warn("api shutdown", "err", err)
	}
	return nil
}
