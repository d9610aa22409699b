package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

const (
	minTranscriptChars  = 5
	minTranscriptTokens = 2
	maxEmptyRetries     = 2
	maxReasks           = 2
)

const (
	repromptSpoken   = "I didn't catch that. Please describe your emergency clearly."
	completionSpoken = "Understood. Help is on the way. We will end the call now. Stay safe."
	giveUpSpoken     = "Emergency recorded. Assistance is being dispatched. Goodbye."
)

// TurnResult is what a webhook turn hands back to the voice surface.
type TurnResult struct {
	Outcome        *common.TriageOutcome
	Phase          common.CallState
	Spoken         string
	DangerQuestion string
	Reprompt       bool
	Hangup         bool
}

// conversation is the per-call state between webhook turns. It is owned by
// the session manager and mutated only under its own lock.
type conversation struct {
	mu sync.Mutex

	callSid    string
	fromNumber string
	toNumber   string

	kind     common.EmergencyKind
	severity common.Severity
	priority int
	service  common.Service
	phase    common.CallState

	dangerQuestion  string
	escalatedSpoken string
	outcome         *common.TriageOutcome

	emptyRetries int
	reasks       int

	// Duplicate webhook deliveries replay the previous result instead of
	// re-running the state machine.
	lastTranscript string
	lastResult     *TurnResult

	createdAt  time.Time
	lastTurnAt time.Time
}

// SessionManager drives the per-call conversation state machine. The first
// turn runs the triage pipeline; follow-up turns answer the danger question
// and may escalate. Persistence and broadcast happen after the
// state-machine section, never under a session lock.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*conversation

	orch     *Orchestrator
	store    *Store
	hub      *Hub
	exporter *EventExporter

	ttl        time.Duration
	thresholds common.SeverityThresholds
}

func NewSessionManager(orch *Orchestrator, store *Store, hub *Hub, exporter *EventExporter, ttl time.Duration, thresholds common.SeverityThresholds) *SessionManager {
	return &SessionManager{
		sessions:   make(map[string]*conversation),
		orch:       orch,
		store:      store,
		hub:        hub,
		exporter:   exporter,
		ttl:        ttl,
		thresholds: thresholds,
	}
}

func (m *SessionManager) session(callSid string) *conversation {
	m.mu.RLock()
	s, ok := m.sessions[callSid]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[callSid]; ok {
		return s
	}
	s = &conversation{
		callSid:   callSid,
		phase:     common.StatePending,
		createdAt: time.Now().UTC(),
	}
	m.sessions[callSid] = s
	return s
}

func (m *SessionManager) evict(callSid string) {
	m.mu.Lock()
	delete(m.sessions, callSid)
	m.mu.Unlock()
}

// tooShort applies the minimum utterance rule: fewer than 5 characters or
// 2 tokens is treated as silence.
func tooShort(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	return len(trimmed) < minTranscriptChars || len(strings.Fields(trimmed)) < minTranscriptTokens
}

// FirstTurn handles the initial utterance of a call.
func (m *SessionManager) FirstTurn(ctx context.Context, callSid, from, to, transcript string) *TurnResult {
	s := m.session(callSid)
	s.mu.Lock()
	s.fromNumber = from
	s.toNumber = to
	s.lastTurnAt = time.Now().UTC()

	if s.lastResult != nil && s.lastTranscript == transcript {
		result := s.lastResult
		s.mu.Unlock()
		return result
	}

	if tooShort(transcript) {
		s.emptyRetries++
		var result *TurnResult
		if s.emptyRetries > maxEmptyRetries {
			s.phase = common.StateCompleted
			result = &TurnResult{Phase: common.StateCompleted, Spoken: giveUpSpoken, Hangup: true}
		} else {
			result = &TurnResult{Phase: common.StatePending, Spoken: repromptSpoken, Reprompt: true}
		}
		s.lastTranscript = transcript
		s.lastResult = result
		terminal := s.phase.IsTerminal()
		s.mu.Unlock()
		if terminal {
			m.evict(callSid)
		}
		return result
	}
	s.mu.Unlock()

	// Triage runs outside the session lock; concurrent turns for the same
	// call serialize again below before touching state.
	outcome, plan := m.orch.Process(ctx, transcript)

	s.mu.Lock()
	s.kind = outcome.Kind
	s.severity = outcome.Severity
	s.priority = outcome.Priority
	s.service = outcome.Service
	s.phase = common.StateAwaitingFollowup
	s.dangerQuestion = plan.DangerQuestion
	s.escalatedSpoken = plan.EscalatedSpoken
	s.outcome = outcome

	result := &TurnResult{
		Outcome:        outcome,
		Phase:          common.StateAwaitingFollowup,
		Spoken:         outcome.Spoken,
		DangerQuestion: plan.DangerQuestion,
	}
	s.lastTranscript = transcript
	s.lastResult = result
	record := m.buildRecord(s, plan)
	s.mu.Unlock()

	m.persistAndBroadcast(record, eventNewCall)
	return result
}

type followupAnswer int

const (
	answerUnclear followupAnswer = iota
	answerYes
	answerNo
)

var (
	yesWords = map[string]bool{"yes": true, "yeah": true, "true": true, "correct": true, "affirmative": true}
	noWords  = map[string]bool{"no": true, "nope": true, "fine": true, "false": true, "negative": true}
)

// parseFollowup scans the reply for a yes- or no-equivalent token. A reply
// containing both ("no wait, yes") counts as the first match in order.
func parseFollowup(transcript string) followupAnswer {
	for _, raw := range strings.Fields(strings.ToLower(transcript)) {
		word := strings.Trim(raw, ".,!?;:'\"")
		if yesWords[word] {
			return answerYes
		}
		if noWords[word] {
			return answerNo
		}
	}
	return answerUnclear
}

// Followup handles a subsequent turn answering the danger question.
// Escalation is monotonic: once critical, later answers never lower it.
func (m *SessionManager) Followup(ctx context.Context, callSid, transcript string) *TurnResult {
	m.mu.RLock()
	s, ok := m.sessions[callSid]
	m.mu.RUnlock()
	if !ok {
		// Session already evicted or never triaged; close politely.
		return &TurnResult{Phase: common.StateCompleted, Spoken: completionSpoken, Hangup: true}
	}

	s.mu.Lock()
	s.lastTurnAt = time.Now().UTC()

	if s.lastResult != nil && s.lastTranscript == transcript {
		result := s.lastResult
		s.mu.Unlock()
		return result
	}

	var (
		result   *TurnResult
		record   *common.CallRecord
		event    string
	)

	switch parseFollowup(transcript) {
	case answerYes:
		s.severity = common.SeverityLevel1
		s.priority = 1
		s.phase = common.StateEscalated
		if s.outcome != nil {
			s.outcome.Severity = common.SeverityLevel1
			if s.outcome.SeverityScore < m.thresholds[0] {
				s.outcome.SeverityScore = m.thresholds[0]
			}
			s.outcome.Priority = 1
			s.outcome.Spoken = s.escalatedSpoken
		}
		result = &TurnResult{
			Outcome: s.outcome,
			Phase:   common.StateEscalated,
			Spoken:  s.escalatedSpoken,
			Hangup:  true,
		}
		record = m.buildRecord(s, responsePlan{})
		event = eventCallUpdate
		slog.Info("severity escalated to critical", "call_sid", callSid)

	case answerNo:
		s.phase = common.StateCompleted
		result = &TurnResult{
			Outcome: s.outcome,
			Phase:   common.StateCompleted,
			Spoken:  completionSpoken,
			Hangup:  true,
		}
		record = m.buildRecord(s, responsePlan{})
		event = eventCallUpdate

	default:
		s.reasks++
		if s.reasks > maxReasks {
			s.phase = common.StateCompleted
			result = &TurnResult{
				Outcome: s.outcome,
				Phase:   common.StateCompleted,
				Spoken:  giveUpSpoken,
				Hangup:  true,
			}
			record = m.buildRecord(s, responsePlan{})
			event = eventCallUpdate
		} else {
			result = &TurnResult{
				Outcome:        s.outcome,
				Phase:          common.StateAwaitingFollowup,
				Spoken:         s.dangerQuestion,
				DangerQuestion: s.dangerQuestion,
			}
		}
	}

	s.lastTranscript = transcript
	s.lastResult = result
	terminal := s.phase == common.StateCompleted
	s.mu.Unlock()

	if record != nil {
		m.persistAndBroadcast(record, event)
	}
	if terminal {
		m.evict(callSid)
	}
	return result
}

// HandleStatus maps provider call lifecycle notifications onto the session
// and the stored record. An escalated call that hangs up is complete.
func (m *SessionManager) HandleStatus(callSid, callStatus string) {
	var state common.CallState
	switch strings.ToLower(callStatus) {
	case "completed":
		state = common.StateCompleted
	case "busy", "no-answer", "canceled":
		state = common.StateCancelled
	case "failed":
		state = common.StateError
	case "in-progress", "ringing", "initiated", "answered":
		return
	default:
		slog.Warn("unknown provider call status", "call_sid", callSid, "status", callStatus)
		return
	}

	m.mu.RLock()
	s, ok := m.sessions[callSid]
	m.mu.RUnlock()
	if ok {
		s.mu.Lock()
		if !s.phase.IsTerminal() {
			// Escalated sessions keep their escalated severity; the state
			// just moves to a terminal phase.
			s.phase = state
		}
		s.mu.Unlock()
		m.evict(callSid)
	}

	m.store.EnqueueStatus(callSid, state, "")
	if m.hub != nil {
		m.hub.Publish(eventCallUpdate, callUpdatePayload{
			CallSid:   callSid,
			Status:    state,
			UpdatedAt: time.Now().UTC(),
		})
	}
}

// buildRecord snapshots the session into a persistable record. Callers must
// hold the session lock.
func (m *SessionManager) buildRecord(s *conversation, plan responsePlan) *common.CallRecord {
	record := &common.CallRecord{
		CallSid:    s.callSid,
		FromNumber: s.fromNumber,
		ToNumber:   s.toNumber,
		State:      s.phase,
	}
	if s.outcome != nil {
		record.TriageOutcome = *s.outcome
		record.RiskTags = append([]string(nil), s.outcome.RiskTags...)
		record.ImmediateActions = append([]string(nil), s.outcome.ImmediateActions...)
		record.Precautions = append([]string(nil), s.outcome.Precautions...)
	}

	metadata := map[string]any{
		"danger_question":  s.dangerQuestion,
		"escalated_spoken": s.escalatedSpoken,
		"lexicon_version":  lexiconVersion,
	}
	if len(plan.PostIncidentActions) > 0 {
		metadata["post_incident_actions"] = plan.PostIncidentActions
		metadata["post_incident_precautions"] = plan.PostIncidentPrecautions
	}
	record.Metadata = metadata
	return record
}

// persistAndBroadcast runs the side paths: idempotent upsert with retry in
// the store's write queue, hub fan-out, and the optional Kafka export. All
// of it is fire-and-forget relative to the caller-facing response.
func (m *SessionManager) persistAndBroadcast(record *common.CallRecord, event string) {
	m.store.EnqueueUpsert(record)

	if m.hub != nil {
		switch event {
		case eventNewCall:
			m.hub.Publish(eventNewCall, record)
		case eventCallUpdate:
			m.hub.Publish(eventCallUpdate, callUpdatePayload{
				CallSid:      record.CallSid,
				Status:       record.State,
				AssignedUnit: record.AssignedUnit,
				UpdatedAt:    time.Now().UTC(),
			})
		}
	}
	if m.exporter != nil {
		m.exporter.Publish(record.CallSid, event, record)
	}
}

// StartSweeper evicts sessions idle past the TTL until the context ends.
func (m *SessionManager) StartSweeper(ctx context.Context) {
	interval := m.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now().UTC())
		}
	}
}

func (m *SessionManager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for callSid, s := range m.sessions {
		s.mu.Lock()
		last := s.lastTurnAt
		if last.IsZero() {
			last = s.createdAt
		}
		expired := now.Sub(last) > m.ttl || s.phase.IsTerminal()
		s.mu.Unlock()
		if expired {
			delete(m.sessions, callSid)
			slog.Debug("evicted idle session", "call_sid", callSid)
		}
	}
}

// ActiveSessions reports the number of live conversations, for readiness
// introspection and tests.
func (m *SessionManager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
