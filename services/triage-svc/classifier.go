package main

import (
	"strings"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

// severityModifiers scale the summed severity weights per kind before
// clamping. Fires and medical calls skew upward; unclassified calls down.
var severityModifiers = map[common.EmergencyKind]float64{
	common.KindFire:         1.3,
	common.KindMedical:      1.2,
	common.KindPolice:       1.1,
	common.KindAccident:     1.1,
	common.KindMentalHealth: 1.0,
	common.KindOther:        0.8,
}

// kindTieBreak orders kinds for score ties; higher wins.
var kindTieBreak = map[common.EmergencyKind]int{
	common.KindFire:         6,
	common.KindMedical:      5,
	common.KindPolice:       4,
	common.KindAccident:     3,
	common.KindMentalHealth: 2,
	common.KindOther:        1,
}

const ruleConfidenceFloor = 0.3

// classifyRule is the deterministic backend: it scores the transcript
// against the lexicon and fills the classification half of an outcome
// (kind, severity, score, confidence, risk tags). Routing and response
// synthesis are the orchestrator's job. The function is pure: no clocks,
// no I/O, identical transcripts yield identical outcomes.
func classifyRule(transcript string, thresholds common.SeverityThresholds) *common.TriageOutcome {
	normalized := strings.ToLower(transcript)

	kindScores := make(map[common.EmergencyKind]int, len(severityModifiers))
	var (
		totalScore    int
		severitySum   int
		highSeverity  bool
		riskTags      []string
	)

	for i := range lexicon {
		entry := &lexicon[i]
		n := entry.occurrences(normalized)
		if n == 0 {
			continue
		}
		kindScores[entry.Kind] += entry.CategoryWeight * n
		totalScore += entry.CategoryWeight * n
		severitySum += entry.SeverityWeight * n
		if entry.HighSeverity {
			highSeverity = true
		}
		if entry.RiskTag != "" {
			riskTags = append(riskTags, entry.RiskTag)
		}
	}

	outcome := &common.TriageOutcome{
		Transcript: transcript,
		Kind:       common.KindOther,
		Confidence: ruleConfidenceFloor,
		RiskTags:   riskTags,
	}

	if totalScore == 0 {
		outcome.RiskTags = nil
		outcome.SeverityScore = 0
		outcome.Severity = thresholds.Level(0)
		return outcome
	}

	best := common.KindOther
	bestScore := 0
	for kind, score := range kindScores {
		if score > bestScore || (score == bestScore && kindTieBreak[kind] > kindTieBreak[best]) {
			best = kind
			bestScore = score
		}
	}
	outcome.Kind = best

	confidence := float64(bestScore) / float64(totalScore)
	if confidence > 1 {
		confidence = 1
	}
	if confidence < ruleConfidenceFloor {
		confidence = ruleConfidenceFloor
	}
	outcome.Confidence = confidence

	score := float64(severitySum) * severityModifiers[best]
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	if highSeverity && score < 80 {
		score = 80
	}
	outcome.SeverityScore = score
	outcome.Severity = thresholds.Level(score)

	return outcome
}
