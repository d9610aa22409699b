package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

// Analytics aggregates the call history for the operator dashboard.
type Analytics struct {
	TotalCalls               int            `json:"totalCalls"`
	CallsByStatus            map[string]int `json:"callsByStatus"`
	CallsByKind              map[string]int `json:"callsByKind"`
	CallsBySeverity          map[string]int `json:"callsBySeverity"`
	AverageProcessingSeconds float64        `json:"averageProcessingSeconds"`
	CallsByHour              [24]int        `json:"callsByHour"`
	CallsByDayOfWeek         [7]int         `json:"callsByDayOfWeek"`
	GeneratedAt              time.Time      `json:"generatedAt"`
}

// StatsSnapshot is the lighter rolling-24h payload pushed over the live
// channel.
type StatsSnapshot struct {
	TotalCalls      int       `json:"totalCalls"`
	PendingCalls    int       `json:"pendingCalls"`
	InProgressCalls int       `json:"inProgressCalls"`
	CriticalCalls   int       `json:"criticalCalls"`
	EscalatedCalls  int       `json:"escalatedCalls"`
	Timestamp       time.Time `json:"timestamp"`
}

// Analytics computes the dashboard aggregates. Enum grouping keys are
// normalized through the canonical model so legacy rows land in the right
// bucket instead of fragmenting the counts.
func (s *Store) Analytics(ctx context.Context, from, to time.Time) (*Analytics, error) {
	query := `
		SELECT emergency_type, severity_level, status,
		       COALESCE(processing_time_ms, 0),
		       EXTRACT(HOUR FROM created_at)::int,
		       EXTRACT(DOW FROM created_at)::int
		FROM call_records`
	var args []any
	switch {
	case !from.IsZero() && !to.IsZero():
		query += ` WHERE created_at >= $1 AND created_at <= $2`
		args = append(args, from, to)
	case !from.IsZero():
		query += ` WHERE created_at >= $1`
		args = append(args, from)
	case !to.IsZero():
		query += ` WHERE created_at <= $1`
		args = append(args, to)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &Analytics{
		CallsByStatus:   make(map[string]int),
		CallsByKind:     make(map[string]int),
		CallsBySeverity: make(map[string]int),
		GeneratedAt:     time.Now().UTC(),
	}

	var processingTotal float64
	for rows.Next() {
		var (
			kind, severity, status string
			processingMs           float64
			hour, dow              int
		)
		if err := rows.Scan(&kind, &severity, &status, &processingMs, &hour, &dow); err != nil {
			return nil, err
		}

		out.TotalCalls++
		out.CallsByStatus[string(common.StateOrDefault(status))]++
		out.CallsByKind[string(common.KindOrDefault(kind))]++
		out.CallsBySeverity[string(common.SeverityOrDefault(severity))]++
		processingTotal += processingMs
		if hour >= 0 && hour < 24 {
			out.CallsByHour[hour]++
		}
		if dow >= 0 && dow < 7 {
			out.CallsByDayOfWeek[dow]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if out.TotalCalls > 0 {
		out.AverageProcessingSeconds = processingTotal / float64(out.TotalCalls) / 1000
	}
	return out, nil
}

// Stats computes the rolling-24h counters for stats_update events. Reads
// go through ListRecent so the snapshot sees the same enum healing as
// every other read path.
func (s *Store) Stats(ctx context.Context) (*StatsSnapshot, error) {
	recent, err := s.ListRecent(ctx, 24*time.Hour, 1000)
	if err != nil {
		return nil, err
	}

	out := &StatsSnapshot{Timestamp: time.Now().UTC()}
	for _, record := range recent {
		out.TotalCalls++
		switch record.State {
		case common.StatePending:
			out.PendingCalls++
		case common.StateInProgress:
			out.InProgressCalls++
		case common.StateEscalated:
			out.EscalatedCalls++
		}
		if record.Severity == common.SeverityLevel1 {
			out.CriticalCalls++
		}
	}
	return out, nil
}

func (s *Server) handleAnalytics(c echo.Context) error {
	ctx := c.Request().Context()

	var from, to time.Time
	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from time")
		}
		from = parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to time")
		}
		to = parsed
	}

	if cached := s.getCachedAnalytics(ctx, from, to); cached != nil {
		return c.JSON(http.StatusOK, cached)
	}

	analytics, err := s.store.Analytics(ctx, from, to)
	if err != nil {
		slog.Error("failed to compute analytics", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute analytics")
	}

	s.cacheAnalytics(ctx, from, to, analytics)
	return c.JSON(http.StatusOK, analytics)
}

// statsPayload feeds the hub's stats_update events; failures degrade to an
// empty snapshot so the live channel never breaks over a slow query.
func (s *Server) statsPayload(ctx context.Context) any {
	statsCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	stats, err := s.store.Stats(statsCtx)
	if err != nil {
		slog.Warn("failed to compute stats snapshot", "error", err)
		return &StatsSnapshot{Timestamp: time.Now().UTC()}
	}
	return stats
}
