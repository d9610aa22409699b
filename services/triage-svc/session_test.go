package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

func newTestManager() *SessionManager {
	orch := NewOrchestrator(backendRule, nil, common.DefaultSeverityThresholds, 0.7)
	return NewSessionManager(orch, nil, nil, nil, 10*time.Minute, common.DefaultSeverityThresholds)
}

const fireTranscript = "There's a massive fire in the apartment building! People are trapped."

func TestFirstTurnTriages(t *testing.T) {
	m := newTestManager()
	result := m.FirstTurn(context.Background(), "CA1", "+15550100", "+15550911", fireTranscript)

	if result.Phase != common.StateAwaitingFollowup {
		t.Errorf("Phase = %v; want AWAITING_FOLLOWUP", result.Phase)
	}
	if result.Outcome == nil || result.Outcome.Kind != common.KindFire {
		t.Fatalf("Outcome = %+v; want fire triage", result.Outcome)
	}
	if result.DangerQuestion == "" {
		t.Error("missing danger question")
	}
	if result.Reprompt || result.Hangup {
		t.Error("triaged first turn should gather a follow-up, not reprompt or hang up")
	}
	if m.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions = %d; want 1", m.ActiveSessions())
	}
}

func TestFirstTurnTooShort(t *testing.T) {
	m := newTestManager()

	for _, transcript := range []string{"", "   ", "hi", "fire"} {
		result := m.FirstTurn(context.Background(), "CA-short-"+transcript, "", "", transcript)
		if !result.Reprompt {
			t.Errorf("transcript %q should reprompt", transcript)
		}
		if result.Outcome != nil {
			t.Errorf("transcript %q should not be triaged", transcript)
		}
	}
}

func TestFirstTurnRepromptBounded(t *testing.T) {
	m := newTestManager()

	// Two reprompts are allowed; the third silence ends the call.
	for i := 0; i < 2; i++ {
		result := m.FirstTurn(context.Background(), "CA2", "", "", strings.Repeat("x", i+1))
		if !result.Reprompt || result.Hangup {
			t.Fatalf("attempt %d: want reprompt, got %+v", i, result)
		}
	}
	result := m.FirstTurn(context.Background(), "CA2", "", "", "eh")
	if !result.Hangup || result.Phase != common.StateCompleted {
		t.Errorf("third short turn should complete the call, got %+v", result)
	}
}

func TestFollowupYesEscalates(t *testing.T) {
	m := newTestManager()
	first := m.FirstTurn(context.Background(), "CA3", "", "", "My husband is having severe chest pain and collapsed.")
	spokenBefore := first.Outcome.Spoken

	result := m.Followup(context.Background(), "CA3", "yes")
	if result.Phase != common.StateEscalated {
		t.Errorf("Phase = %v; want ESCALATED", result.Phase)
	}
	if result.Outcome.Severity != common.SeverityLevel1 {
		t.Errorf("Severity = %v; want LEVEL_1", result.Outcome.Severity)
	}
	if result.Outcome.Priority != 1 {
		t.Errorf("Priority = %d; want 1", result.Outcome.Priority)
	}
	if !strings.Contains(result.Spoken, "Priority increased to critical") {
		t.Errorf("Spoken = %q; want escalation sentence", result.Spoken)
	}
	if result.Spoken == spokenBefore {
		t.Error("escalation must replace the original spoken response")
	}
	if err := result.Outcome.Validate(common.DefaultSeverityThresholds); err != nil {
		t.Errorf("escalated outcome fails validation: %v", err)
	}
}

func TestFollowupNoCompletes(t *testing.T) {
	m := newTestManager()
	first := m.FirstTurn(context.Background(), "CA4", "", "", fireTranscript)
	severityBefore := first.Outcome.Severity

	result := m.Followup(context.Background(), "CA4", "no, it's contained now")
	if result.Phase != common.StateCompleted {
		t.Errorf("Phase = %v; want COMPLETED", result.Phase)
	}
	if !result.Hangup {
		t.Error("completion should hang up")
	}
	if result.Outcome.Severity != severityBefore {
		t.Errorf("NO must not change severity: %v -> %v", severityBefore, result.Outcome.Severity)
	}
	if m.ActiveSessions() != 0 {
		t.Errorf("completed session should be evicted, have %d", m.ActiveSessions())
	}
}

// Escalation is monotonic: a NO after an escalation does not de-escalate.
func TestEscalationMonotonic(t *testing.T) {
	m := newTestManager()
	m.FirstTurn(context.Background(), "CA5", "", "", fireTranscript)

	m.Followup(context.Background(), "CA5", "yes")
	result := m.Followup(context.Background(), "CA5", "no")

	if result.Outcome.Severity != common.SeverityLevel1 {
		t.Errorf("Severity = %v; want LEVEL_1 retained", result.Outcome.Severity)
	}
	if result.Outcome.Priority != 1 {
		t.Errorf("Priority = %d; want 1 retained", result.Outcome.Priority)
	}
}

func TestFollowupUnclearReasksBounded(t *testing.T) {
	m := newTestManager()
	first := m.FirstTurn(context.Background(), "CA6", "", "", fireTranscript)

	for i, mumble := range []string{"ehh what", "purple monkey"} {
		result := m.Followup(context.Background(), "CA6", mumble)
		if result.Phase != common.StateAwaitingFollowup {
			t.Fatalf("reask %d: Phase = %v; want AWAITING_FOLLOWUP", i, result.Phase)
		}
		if result.Spoken != first.DangerQuestion {
			t.Errorf("reask %d: Spoken = %q; want the danger question", i, result.Spoken)
		}
	}

	result := m.Followup(context.Background(), "CA6", "banana hammock")
	if result.Phase != common.StateCompleted || !result.Hangup {
		t.Errorf("third unclear answer should complete, got %+v", result)
	}
}

func TestFollowupAnswerParsing(t *testing.T) {
	yes := []string{"yes", "Yeah!", "that is correct", "TRUE", "affirmative, people are trapped"}
	for _, input := range yes {
		if parseFollowup(input) != answerYes {
			t.Errorf("parseFollowup(%q) should be YES", input)
		}
	}

	no := []string{"no", "Nope.", "we're fine", "false", "negative"}
	for _, input := range no {
		if parseFollowup(input) != answerNo {
			t.Errorf("parseFollowup(%q) should be NO", input)
		}
	}

	unclear := []string{"", "maybe", "I don't know", "yesterday it was"}
	for _, input := range unclear {
		if parseFollowup(input) != answerUnclear {
			t.Errorf("parseFollowup(%q) should be UNCLEAR", input)
		}
	}
}

// Duplicate webhook deliveries replay the same result instead of advancing
// the state machine twice.
func TestDuplicateDeliveryIdempotent(t *testing.T) {
	m := newTestManager()
	first := m.FirstTurn(context.Background(), "CA7", "", "", fireTranscript)
	replay := m.FirstTurn(context.Background(), "CA7", "", "", fireTranscript)
	if first != replay {
		t.Error("duplicate first turn should replay the cached result")
	}

	followup := m.Followup(context.Background(), "CA7", "yes")
	replayFollowup := m.Followup(context.Background(), "CA7", "yes")
	if followup != replayFollowup {
		t.Error("duplicate follow-up should replay the cached result")
	}
	if replayFollowup.Outcome.Severity != common.SeverityLevel1 {
		t.Error("replayed escalation lost its severity")
	}
}

func TestFollowupWithoutSession(t *testing.T) {
	m := newTestManager()
	result := m.Followup(context.Background(), "CA-ghost", "yes")
	if result.Phase != common.StateCompleted || !result.Hangup {
		t.Errorf("unknown session should close politely, got %+v", result)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	m := newTestManager()
	m.FirstTurn(context.Background(), "CA8", "", "", fireTranscript)
	if m.ActiveSessions() != 1 {
		t.Fatalf("ActiveSessions = %d; want 1", m.ActiveSessions())
	}

	// Not yet past the TTL: stays.
	m.sweep(time.Now().UTC().Add(5 * time.Minute))
	if m.ActiveSessions() != 1 {
		t.Error("session evicted before TTL")
	}

	m.sweep(time.Now().UTC().Add(11 * time.Minute))
	if m.ActiveSessions() != 0 {
		t.Error("idle session not evicted after TTL")
	}
}

func TestHandleStatusCompletesSession(t *testing.T) {
	m := newTestManager()
	m.FirstTurn(context.Background(), "CA9", "", "", fireTranscript)

	m.HandleStatus("CA9", "completed")
	if m.ActiveSessions() != 0 {
		t.Errorf("hangup should evict the session, have %d", m.ActiveSessions())
	}

	// Unknown statuses are ignored.
	m.HandleStatus("CA9", "quantum")
}

func TestTooShort(t *testing.T) {
	shorts := []string{"", "hi", "fire", "    a     ", "ab"}
	for _, s := range shorts {
		if !tooShort(s) {
			t.Errorf("tooShort(%q) = false; want true", s)
		}
	}
	longEnough := []string{"house fire", "chest pain", "a b c d e"}
	for _, s := range longEnough {
		if tooShort(s) {
			t.Errorf("tooShort(%q) = true; want false", s)
		}
	}
}
