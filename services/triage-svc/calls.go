package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

// Operator JSON API over the call store.

func (s *Server) handleListCalls(c echo.Context) error {
	filter := CallFilter{
		Status:   c.QueryParam("status"),
		Kind:     c.QueryParam("kind"),
		Severity: c.QueryParam("severity"),
	}

	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(c.QueryParam("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	if raw := strings.TrimSpace(c.QueryParam("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from time")
		}
		filter.From = from
	}
	if raw := strings.TrimSpace(c.QueryParam("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to time")
		}
		filter.To = to
	}

	calls, err := s.store.ListCalls(c.Request().Context(), filter)
	if err != nil {
		slog.Error("failed to list calls", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve calls")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"calls": calls,
		"count": len(calls),
	})
}

// resolveCall accepts either the surrogate row id or the provider call
// sid; operator links use both.
func (s *Server) resolveCall(c echo.Context) (*common.CallRecord, error) {
	param := c.Param("id")
	if id, err := strconv.ParseInt(param, 10, 64); err == nil {
		return s.store.GetByID(c.Request().Context(), id)
	}
	return s.store.GetByCallSid(c.Request().Context(), param)
}

func (s *Server) handleGetCall(c echo.Context) error {
	record, err := s.resolveCall(c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "call not found")
		}
		slog.Error("failed to fetch call", "id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve call")
	}
	callSid := record.CallSid

	notes, err := s.store.ListNotes(c.Request().Context(), callSid)
	if err != nil {
		slog.Error("failed to fetch call notes", "call_sid", callSid, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve call")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"call":  record,
		"notes": notes,
	})
}

type callUpdateRequest struct {
	Status       string `json:"status,omitempty"`
	AssignedUnit string `json:"assigned_unit,omitempty"`
	Note         string `json:"note,omitempty"`
	CreatedBy    string `json:"created_by,omitempty"`
}

func (s *Server) handleUpdateCall(c echo.Context) error {
	var req callUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" && req.AssignedUnit == "" && req.Note == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	ctx := c.Request().Context()
	record, err := s.resolveCall(c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "call not found")
		}
		slog.Error("failed to fetch call", "id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update call")
	}
	callSid := record.CallSid

	if req.Status != "" || req.AssignedUnit != "" {
		state := record.State
		if req.Status != "" {
			// Operator input is validated strictly; only reads tolerate
			// unknown spellings.
			parsed, err := common.ParseCallState(req.Status)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			state = parsed
		}

		record, err = s.store.UpdateStatus(ctx, callSid, state, req.AssignedUnit)
		if err != nil {
			slog.Error("failed to update call status", "call_sid", callSid, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update call")
		}

		if s.hub != nil {
			s.hub.Publish(eventCallUpdate, callUpdatePayload{
				CallSid:      callSid,
				Status:       record.State,
				AssignedUnit: record.AssignedUnit,
				UpdatedAt:    time.Now().UTC(),
			})
		}
		if s.exporter != nil {
			s.exporter.Publish(callSid, eventCallUpdate, record)
		}
	}

	if req.Note != "" {
		if _, err := s.store.AppendNote(ctx, callSid, req.Note, req.CreatedBy); err != nil {
			slog.Error("failed to append call note", "call_sid", callSid, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update call")
		}
	}

	notes, err := s.store.ListNotes(ctx, callSid)
	if err != nil {
		slog.Error("failed to fetch call notes", "call_sid", callSid, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update call")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"call":  record,
		"notes": notes,
	})
}
