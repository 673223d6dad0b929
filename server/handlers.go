package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/feed"
	"go.ntppool.org/tablerank/scorer/score"
	"go.ntppool.org/tablerank/selector"
)

type selectionJSON struct {
	selector.SelectionCycle
	RoundsRemaining int `json:"rounds_remaining"`
}

type tableJSON struct {
	ID        string           `json:"id"`
	Active    bool             `json:"active"`
	Selected  bool             `json:"selected"`
	FirstSeen time.Time        `json:"first_seen"`
	LastSeen  time.Time        `json:"last_seen"`
	Score     score.Score      `json:"score"`
	Outcomes  []entity.Outcome `json:"outcomes,omitempty"`
}

type outcomeJSON struct {
	Outcome entity.Outcome `json:"outcome"`
	Ts      time.Time      `json:"ts,omitzero"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func (srv *Server) getSelection(c echo.Context) error {
	return c.JSON(http.StatusOK, selectionJSON{
		SelectionCycle:  srv.sel.Current(),
		RoundsRemaining: srv.sel.RoundsRemaining(),
	})
}

func (srv *Server) tableInfo(e entity.Entity, current selector.SelectionCycle) tableJSON {
	return tableJSON{
		ID:        e.ID,
		Active:    e.Active,
		Selected:  current.Contains(e.ID),
		FirstSeen: e.FirstSeen,
		LastSeen:  e.LastSeen,
		Score:     srv.sel.Score(e),
	}
}

func (srv *Server) getTables(c echo.Context) error {
	current := srv.sel.Current()

	r := []tableJSON{}
	for _, e := range srv.table.Snapshot() {
		r = append(r, srv.tableInfo(e, current))
	}
	return c.JSON(http.StatusOK, r)
}

func (srv *Server) getTable(c echo.Context) error {
	id := c.Param("id")
	e, ok := srv.table.Get(id)
	if !ok {
		return c.JSON(http.StatusNotFound, errorJSON{"unknown table"})
	}

	r := srv.tableInfo(e, srv.sel.Current())
	r.Outcomes = e.Outcomes
	return c.JSON(http.StatusOK, r)
}

func (srv *Server) postOutcome(c echo.Context) error {
	if srv.rec == nil {
		return c.JSON(http.StatusNotFound, errorJSON{"observations are not accepted here"})
	}

	var req outcomeJSON
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON{"could not parse request"})
	}

	ctx := c.Request().Context()
	err := srv.rec.Record(ctx, feed.Observation{
		EntityID: c.Param("id"),
		Outcome:  req.Outcome,
		Ts:       req.Ts,
	})
	if err != nil {
		if errors.Is(err, feed.ErrInvalidObservation) {
			return c.JSON(http.StatusBadRequest, errorJSON{err.Error()})
		}
		srv.log.ErrorContext(ctx, "record observation", "id", c.Param("id"), "err", err)
		return c.JSON(http.StatusInternalServerError, errorJSON{"could not record observation"})
	}

	return c.NoContent(http.StatusAccepted)
}

func (srv *Server) postChoose(c echo.Context) error {
	ctx := c.Request().Context()

	a, err := srv.sel.Choose(c.Param("id"))
	if err != nil {
		srv.log.ErrorContext(ctx, "choose", "id", c.Param("id"), "err", err)
		return c.JSON(http.StatusInternalServerError, errorJSON{"could not choose"})
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("table", a.EntityID),
		attribute.Bool("selected", a.Selected),
	)

	return c.JSON(http.StatusOK, a)
}

func (srv *Server) postActed(c echo.Context) error {
	acted := srv.sel.MarkActed(c.Param("id"))
	return c.JSON(http.StatusOK, map[string]bool{"acted": acted})
}
