package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

var (
	storeWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triage",
		Name:      "store_writes_total",
		Help:      "Asynchronous store writes by result",
	}, []string{"result"})
	storeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "triage",
		Name:      "store_queue_depth",
		Help:      "Pending jobs in the asynchronous write queue",
	})
)

const (
	storeQueueSize    = 256
	storeWriteRetries = 3
	storeRetryBase    = 500 * time.Millisecond
	storeWriteTimeout = 5 * time.Second
)

type storeJobKind int

const (
	jobUpsert storeJobKind = iota
	jobStatus
)

type storeJob struct {
	kind         storeJobKind
	record       *common.CallRecord
	callSid      string
	state        common.CallState
	assignedUnit string
}

// Store owns the call_records and call_notes tables. Writes from the call
// path go through a bounded queue so persistence never blocks a response;
// the operator API uses the synchronous methods directly.
type Store struct {
	db         *pgxpool.Pool
	thresholds common.SeverityThresholds
	queue      chan storeJob
}

func NewStore(db *pgxpool.Pool, thresholds common.SeverityThresholds) *Store {
	return &Store{
		db:         db,
		thresholds: thresholds,
		queue:      make(chan storeJob, storeQueueSize),
	}
}

// EnqueueUpsert queues an idempotent call upsert. The queue is bounded;
// overflow drops the write with a warning rather than stalling a call.
func (s *Store) EnqueueUpsert(record *common.CallRecord) {
	if s == nil || s.queue == nil {
		return
	}
	select {
	case s.queue <- storeJob{kind: jobUpsert, record: record}:
		storeQueueDepth.Set(float64(len(s.queue)))
	default:
		storeWritesTotal.WithLabelValues("dropped").Inc()
		slog.Warn("store queue full, dropping upsert", "call_sid", record.CallSid)
	}
}

func (s *Store) EnqueueStatus(callSid string, state common.CallState, assignedUnit string) {
	if s == nil || s.queue == nil {
		return
	}
	select {
	case s.queue <- storeJob{kind: jobStatus, callSid: callSid, state: state, assignedUnit: assignedUnit}:
		storeQueueDepth.Set(float64(len(s.queue)))
	default:
		storeWritesTotal.WithLabelValues("dropped").Inc()
		slog.Warn("store queue full, dropping status update", "call_sid", callSid)
	}
}

// StartWriter drains the queue until the context ends, retrying transient
// failures with exponential backoff before giving up on a job.
func (s *Store) StartWriter(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			storeQueueDepth.Set(float64(len(s.queue)))
			s.runJob(ctx, job)
		}
	}
}

func (s *Store) runJob(ctx context.Context, job storeJob) {
	var lastErr error
	for attempt := 0; attempt < storeWriteRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(storeRetryBase << (attempt - 1)):
			}
			storeWritesTotal.WithLabelValues("retried").Inc()
		}

		writeCtx, cancel := context.WithTimeout(ctx, storeWriteTimeout)
		switch job.kind {
		case jobUpsert:
			lastErr = s.UpsertCall(writeCtx, job.record)
		case jobStatus:
			_, lastErr = s.UpdateStatus(writeCtx, job.callSid, job.state, job.assignedUnit)
			if errors.Is(lastErr, pgx.ErrNoRows) {
				// The call never made it to the table; nothing to update.
				lastErr = nil
			}
		}
		cancel()

		if lastErr == nil {
			storeWritesTotal.WithLabelValues("ok").Inc()
			return
		}
	}
	storeWritesTotal.WithLabelValues("failed").Inc()
	slog.Error("store write failed after retries", "error", lastErr, "call_sid", job.callSid)
}

// UpsertCall writes a record keyed by call_sid. Repeated calls with the
// same sid update the row in place and bump updated_at; they never create
// duplicates or violate invariants.
func (s *Store) UpsertCall(ctx context.Context, record *common.CallRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.ClampInvariants(s.thresholds)
	if err := record.Validate(s.thresholds); err != nil {
		// Invariant failures here mean a programming error, not bad input.
		// Fail loudly but keep answering calls.
		return fmt.Errorf("refusing to persist invalid record: %w", err)
	}

	riskTags, err := json.Marshal(record.RiskTags)
	if err != nil {
		return err
	}
	immediateActions, err := json.Marshal(record.ImmediateActions)
	if err != nil {
		return err
	}
	precautions, err := json.Marshal(record.Precautions)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO call_records (
			call_sid, from_number, to_number, transcript,
			emergency_type, severity_level, severity_score,
			assigned_service, priority, confidence, risk_indicators,
			immediate_actions, safety_precautions,
			location, summary, spoken, status, assigned_unit,
			processing_time_ms, metadata, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now())
		ON CONFLICT (call_sid) DO UPDATE SET
			transcript = EXCLUDED.transcript,
			emergency_type = EXCLUDED.emergency_type,
			severity_level = EXCLUDED.severity_level,
			severity_score = EXCLUDED.severity_score,
			assigned_service = EXCLUDED.assigned_service,
			priority = EXCLUDED.priority,
			confidence = EXCLUDED.confidence,
			risk_indicators = EXCLUDED.risk_indicators,
			immediate_actions = EXCLUDED.immediate_actions,
			safety_precautions = EXCLUDED.safety_precautions,
			location = EXCLUDED.location,
			summary = EXCLUDED.summary,
			spoken = EXCLUDED.spoken,
			status = EXCLUDED.status,
			processing_time_ms = EXCLUDED.processing_time_ms,
			metadata = EXCLUDED.metadata,
			updated_at = now()`,
		record.CallSid, record.FromNumber, record.ToNumber, record.Transcript,
		string(record.Kind), string(record.Severity), record.SeverityScore,
		string(record.Service), record.Priority, record.Confidence, riskTags,
		immediateActions, precautions,
		nullable(record.Location), record.Summary, record.Spoken, string(record.State),
		nullable(record.AssignedUnit), record.ProcessingMs, metadata, record.CreatedAt,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const callColumns = `
	id, call_sid, from_number, to_number, transcript,
	emergency_type, severity_level, severity_score,
	assigned_service, priority, confidence, risk_indicators,
	immediate_actions, safety_precautions,
	COALESCE(location, ''), COALESCE(summary, ''), COALESCE(spoken, ''),
	status, COALESCE(assigned_unit, ''), COALESCE(processing_time_ms, 0),
	metadata, created_at, COALESCE(updated_at, created_at)`

// scanCall reads one row, healing legacy enum spellings and numeric drift
// from rows written by older revisions.
func (s *Store) scanCall(row pgx.Row) (*common.CallRecord, error) {
	var (
		record           common.CallRecord
		kind             string
		severity         string
		service          string
		status           string
		riskTags         []byte
		immediateActions []byte
		precautions      []byte
		metadata         []byte
	)
	err := row.Scan(
		&record.ID, &record.CallSid, &record.FromNumber, &record.ToNumber, &record.Transcript,
		&kind, &severity, &record.SeverityScore,
		&service, &record.Priority, &record.Confidence, &riskTags,
		&immediateActions, &precautions,
		&record.Location, &record.Summary, &record.Spoken,
		&status, &record.AssignedUnit, &record.ProcessingMs,
		&metadata, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Kind = common.KindOrDefault(kind)
	record.Severity = common.SeverityOrDefault(severity)
	record.Service = common.ServiceOrDefault(service)
	record.State = common.StateOrDefault(status)

	if len(riskTags) > 0 {
		if err := json.Unmarshal(riskTags, &record.RiskTags); err != nil {
			slog.Warn("discarding unreadable risk indicators", "call_sid", record.CallSid, "error", err)
		}
	}
	if len(immediateActions) > 0 {
		if err := json.Unmarshal(immediateActions, &record.ImmediateActions); err != nil {
			slog.Warn("discarding unreadable immediate actions", "call_sid", record.CallSid, "error", err)
		}
	}
	if len(precautions) > 0 {
		if err := json.Unmarshal(precautions, &record.Precautions); err != nil {
			slog.Warn("discarding unreadable precautions", "call_sid", record.CallSid, "error", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			slog.Warn("discarding unreadable call metadata", "call_sid", record.CallSid, "error", err)
		}
	}

	record.ClampInvariants(s.thresholds)
	return &record, nil
}

func (s *Store) GetByCallSid(ctx context.Context, callSid string) (*common.CallRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT `+callColumns+` FROM call_records WHERE call_sid = $1`, callSid)
	return s.scanCall(row)
}

func (s *Store) GetByID(ctx context.Context, id int64) (*common.CallRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT `+callColumns+` FROM call_records WHERE id = $1`, id)
	return s.scanCall(row)
}

// CallFilter narrows ListCalls. Enum fields accept any spelling the
// canonical model can normalize.
type CallFilter struct {
	Limit    int
	Offset   int
	Status   string
	Kind     string
	Severity string
	From     time.Time
	To       time.Time
}

func (s *Store) ListCalls(ctx context.Context, filter CallFilter) ([]*common.CallRecord, error) {
	query := `SELECT ` + callColumns + ` FROM call_records`
	var (
		clauses []string
		args    []any
	)

	addClause := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, clause+"$"+strconv.Itoa(len(args)))
	}

	if filter.Status != "" {
		addClause("status = ", string(common.StateOrDefault(filter.Status)))
	}
	if filter.Kind != "" {
		addClause("emergency_type = ", string(common.KindOrDefault(filter.Kind)))
	}
	if filter.Severity != "" {
		addClause("severity_level = ", string(common.SeverityOrDefault(filter.Severity)))
	}
	if !filter.From.IsZero() {
		addClause("created_at >= ", filter.From)
	}
	if !filter.To.IsZero() {
		addClause("created_at <= ", filter.To)
	}

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*common.CallRecord, 0, limit)
	for rows.Next() {
		record, err := s.scanCall(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListRecent returns calls created inside the window, newest first.
func (s *Store) ListRecent(ctx context.Context, window time.Duration, limit int) ([]*common.CallRecord, error) {
	return s.ListCalls(ctx, CallFilter{
		Limit: limit,
		From:  time.Now().UTC().Add(-window),
	})
}

// UpdateStatus moves a call's lifecycle state and optionally assigns a
// responder unit. Returns the updated record.
func (s *Store) UpdateStatus(ctx context.Context, callSid string, state common.CallState, assignedUnit string) (*common.CallRecord, error) {
	var query string
	var args []any
	if assignedUnit != "" {
		query = `UPDATE call_records SET status = $1, assigned_unit = $2, updated_at = now() WHERE call_sid = $3 RETURNING id`
		args = []any{string(state), assignedUnit, callSid}
	} else {
		query = `UPDATE call_records SET status = $1, updated_at = now() WHERE call_sid = $2 RETURNING id`
		args = []any{string(state), callSid}
	}

	var id int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// AppendNote attaches an operator note to a call.
func (s *Store) AppendNote(ctx context.Context, callSid, note, createdBy string) (*common.CallNote, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO call_notes (call_id, note, created_by)
		SELECT id, $2, $3 FROM call_records WHERE call_sid = $1
		RETURNING id, note, COALESCE(created_by, ''), created_at`,
		callSid, note, nullable(createdBy),
	)

	out := common.CallNote{CallSid: callSid}
	if err := row.Scan(&out.ID, &out.Note, &out.CreatedBy, &out.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no call with sid %s", callSid)
		}
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListNotes(ctx context.Context, callSid string) ([]common.CallNote, error) {
	rows, err := s.db.Query(ctx, `
		SELECT n.id, n.note, COALESCE(n.created_by, ''), n.created_at
		FROM call_notes n
		JOIN call_records r ON r.id = n.call_id
		WHERE r.call_sid = $1
		ORDER BY n.created_at`,
		callSid,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []common.CallNote
	for rows.Next() {
		note := common.CallNote{CallSid: callSid}
		if err := rows.Scan(&note.ID, &note.Note, &note.CreatedBy, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
