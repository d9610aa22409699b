package main

import (
	"reflect"
	"testing"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

func TestClassifyRuleKinds(t *testing.T) {
	cases := []struct {
		transcript string
		want       common.EmergencyKind
	}{
		{"There's a massive fire in the apartment building! People are trapped.", common.KindFire},
		{"My husband is having severe chest pain and collapsed.", common.KindMedical},
		{"Someone broke in and he has a gun", common.KindPolice},
		{"Multi-car crash on the highway, people trapped.", common.KindAccident},
		{"I can't take it anymore, I want to kill myself", common.KindMentalHealth},
		{"I would like to order a pizza", common.KindOther},
	}
	for _, tc := range cases {
		got := classifyRule(tc.transcript, common.DefaultSeverityThresholds)
		if got.Kind != tc.want {
			t.Errorf("classifyRule(%q).Kind = %v; want %v", tc.transcript, got.Kind, tc.want)
		}
	}
}

// The rule backend is a pure function: identical transcripts must yield
// identical outcomes, field for field.
func TestClassifyRuleDeterministic(t *testing.T) {
	const transcript = "fire and smoke everywhere, people trapped on Main Street"
	first := classifyRule(transcript, common.DefaultSeverityThresholds)
	for i := 0; i < 5; i++ {
		again := classifyRule(transcript, common.DefaultSeverityThresholds)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestClassifyRuleNoMatch(t *testing.T) {
	got := classifyRule("completely unrelated chatter about the weather", common.DefaultSeverityThresholds)
	if got.Kind != common.KindOther {
		t.Errorf("Kind = %v; want OTHER", got.Kind)
	}
	if got.Confidence != 0.3 {
		t.Errorf("Confidence = %v; want 0.3", got.Confidence)
	}
	if len(got.RiskTags) != 0 {
		t.Errorf("RiskTags = %v; want empty", got.RiskTags)
	}
	if got.SeverityScore != 0 || got.Severity != common.SeverityLevel4 {
		t.Errorf("severity = %v/%v; want LEVEL_4/0", got.Severity, got.SeverityScore)
	}
}

func TestClassifyRuleHighSeverityFloor(t *testing.T) {
	// "unconscious" carries the high-severity modifier, so the score is
	// forced to at least 80 and the level to critical.
	got := classifyRule("he is unconscious", common.DefaultSeverityThresholds)
	if got.SeverityScore < 80 {
		t.Errorf("SeverityScore = %v; want >= 80", got.SeverityScore)
	}
	if got.Severity != common.SeverityLevel1 {
		t.Errorf("Severity = %v; want LEVEL_1", got.Severity)
	}
}

func TestClassifyRuleConfidence(t *testing.T) {
	// A transcript matching only one kind gives full confidence.
	got := classifyRule("there is a fire", common.DefaultSeverityThresholds)
	if got.Confidence != 1.0 {
		t.Errorf("single-kind confidence = %v; want 1.0", got.Confidence)
	}

	// Mixed matches keep the winner's share, floored at 0.3.
	got = classifyRule("a fire broke out after the car crash and someone is bleeding", common.DefaultSeverityThresholds)
	if got.Confidence < 0.3 || got.Confidence > 1.0 {
		t.Errorf("mixed confidence = %v; want within [0.3, 1.0]", got.Confidence)
	}
}

func TestClassifyRuleOccurrenceCounting(t *testing.T) {
	once := classifyRule("fire", common.DefaultSeverityThresholds)
	twice := classifyRule("fire fire", common.DefaultSeverityThresholds)
	if twice.SeverityScore <= once.SeverityScore {
		t.Errorf("repeated phrase should raise the score: %v vs %v", twice.SeverityScore, once.SeverityScore)
	}
}

func TestClassifyRuleWholeWordMatching(t *testing.T) {
	// "gunning" must not match the "gun" entry.
	got := classifyRule("they were gunning the engine", common.DefaultSeverityThresholds)
	for _, tag := range got.RiskTags {
		if tag == "gun" {
			t.Errorf("partial word matched: tags %v", got.RiskTags)
		}
	}
}

func TestClassifyRuleRiskTagOrder(t *testing.T) {
	// Risk tags surface in lexicon order (flames, fire, smoke), not in the
	// order the phrases appear in the transcript.
	got := classifyRule("there is smoke and flames and a fire", common.DefaultSeverityThresholds)
	want := []string{"flames", "fire", "smoke"}
	if !reflect.DeepEqual(got.RiskTags, want) {
		t.Errorf("RiskTags = %v; want %v", got.RiskTags, want)
	}
}

func TestClassifyRuleTieBreak(t *testing.T) {
	// Equal category scores resolve by the fixed priority, fire first.
	kindScores := map[common.EmergencyKind]int{}
	for _, e := range lexicon {
		kindScores[e.Kind] += e.CategoryWeight
	}
	// Mix one medical entry and one fire entry.
	got := classifyRule("wound burning", common.DefaultSeverityThresholds)
	if got.Kind != common.KindFire && got.Kind != common.KindMedical {
		t.Fatalf("unexpected kind %v", got.Kind)
	}
	// "burning" (fire, weight 8) vs "wound" (medical, weight 5): fire wins
	// on score alone here; the assertion below pins the tie-break table.
	if kindTieBreak[common.KindFire] <= kindTieBreak[common.KindMedical] {
		t.Error("tie-break priority must rank Fire above Medical")
	}
	if kindTieBreak[common.KindMentalHealth] <= kindTieBreak[common.KindOther] {
		t.Error("tie-break priority must rank MentalHealth above Other")
	}
}
