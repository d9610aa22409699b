package main

import (
	"regexp"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

// lexiconVersion identifies the keyword table revision. Bump on any edit so
// stored outcomes can be traced back to the rules that produced them.
const lexiconVersion = 3

// lexiconEntry is one phrase rule. CategoryWeight feeds classification,
// SeverityWeight feeds the severity score, and HighSeverity forces the
// critical floor when matched. RiskTag is recorded on the outcome; an empty
// tag means the phrase influences scoring without surfacing to dispatchers.
type lexiconEntry struct {
	Phrase         string
	Kind           common.EmergencyKind
	CategoryWeight int
	SeverityWeight int
	RiskTag        string
	HighSeverity   bool

	re *regexp.Regexp
}

// The table is ordered: risk tags are reported in table order, which tests
// and the dispatcher summary rely on. Matching is whole-word and
// case-insensitive.
var lexicon = []lexiconEntry{
	// Fire
	{Phrase: "fire spreading", Kind: common.KindFire, CategoryWeight: 12, SeverityWeight: 80, RiskTag: "fire spreading", HighSeverity: true},
	{Phrase: "building on fire", Kind: common.KindFire, CategoryWeight: 12, SeverityWeight: 75, RiskTag: "building on fire", HighSeverity: true},
	{Phrase: "house fire", Kind: common.KindFire, CategoryWeight: 11, SeverityWeight: 60, RiskTag: "house fire", HighSeverity: true},
	{Phrase: "massive fire", Kind: common.KindFire, CategoryWeight: 12, SeverityWeight: 60, RiskTag: "massive fire", HighSeverity: true},
	{Phrase: "explosion", Kind: common.KindFire, CategoryWeight: 11, SeverityWeight: 70, RiskTag: "explosion", HighSeverity: true},
	{Phrase: "gas leak", Kind: common.KindFire, CategoryWeight: 10, SeverityWeight: 50, RiskTag: "gas leak"},
	{Phrase: "caught fire", Kind: common.KindFire, CategoryWeight: 10, SeverityWeight: 40, RiskTag: "caught fire"},
	{Phrase: "flames", Kind: common.KindFire, CategoryWeight: 9, SeverityWeight: 35, RiskTag: "flames"},
	{Phrase: "fire", Kind: common.KindFire, CategoryWeight: 10, SeverityWeight: 30, RiskTag: "fire"},
	{Phrase: "burning", Kind: common.KindFire, CategoryWeight: 8, SeverityWeight: 30, RiskTag: "burning"},
	{Phrase: "smoke", Kind: common.KindFire, CategoryWeight: 7, SeverityWeight: 30, RiskTag: "smoke"},

	// Medical
	{Phrase: "cardiac arrest", Kind: common.KindMedical, CategoryWeight: 12, SeverityWeight: 80, RiskTag: "cardiac arrest", HighSeverity: true},
	{Phrase: "not breathing", Kind: common.KindMedical, CategoryWeight: 12, SeverityWeight: 80, RiskTag: "not breathing", HighSeverity: true},
	{Phrase: "stopped breathing", Kind: common.KindMedical, CategoryWeight: 12, SeverityWeight: 80, RiskTag: "stopped breathing", HighSeverity: true},
	{Phrase: "can't breathe", Kind: common.KindMedical, CategoryWeight: 11, SeverityWeight: 75, RiskTag: "can't breathe", HighSeverity: true},
	{Phrase: "heart attack", Kind: common.KindMedical, CategoryWeight: 11, SeverityWeight: 65, RiskTag: "heart attack", HighSeverity: true},
	{Phrase: "unconscious", Kind: common.KindMedical, CategoryWeight: 10, SeverityWeight: 60, RiskTag: "unconscious", HighSeverity: true},
	{Phrase: "difficulty breathing", Kind: common.KindMedical, CategoryWeight: 10, SeverityWeight: 60, RiskTag: "difficulty breathing"},
	{Phrase: "stroke", Kind: common.KindMedical, CategoryWeight: 10, SeverityWeight: 60, RiskTag: "stroke"},
	{Phrase: "overdose", Kind: common.KindMedical, CategoryWeight: 10, SeverityWeight: 55, RiskTag: "overdose"},
	{Phrase: "bleeding heavily", Kind: common.KindMedical, CategoryWeight: 9, SeverityWeight: 50, RiskTag: "bleeding heavily", HighSeverity: true},
	{Phrase: "severe bleeding", Kind: common.KindMedical, CategoryWeight: 9, SeverityWeight: 50, RiskTag: "severe bleeding", HighSeverity: true},
	{Phrase: "collapsed", Kind: common.KindMedical, CategoryWeight: 8, SeverityWeight: 50, RiskTag: "collapsed"},
	{Phrase: "passed out", Kind: common.KindMedical, CategoryWeight: 8, SeverityWeight: 55, RiskTag: "passed out"},
	{Phrase: "chest pain", Kind: common.KindMedical, CategoryWeight: 10, SeverityWeight: 45, RiskTag: "chest pain"},
	{Phrase: "seizure", Kind: common.KindMedical, CategoryWeight: 9, SeverityWeight: 45, RiskTag: "seizure"},
	{Phrase: "allergic reaction", Kind: common.KindMedical, CategoryWeight: 9, SeverityWeight: 45, RiskTag: "allergic reaction"},
	{Phrase: "head injury", Kind: common.KindMedical, CategoryWeight: 8, SeverityWeight: 45, RiskTag: "head injury"},
	{Phrase: "broken bone", Kind: common.KindMedical, CategoryWeight: 7, SeverityWeight: 35, RiskTag: "broken bone"},
	{Phrase: "fracture", Kind: common.KindMedical, CategoryWeight: 7, SeverityWeight: 35, RiskTag: "fracture"},
	{Phrase: "burn", Kind: common.KindMedical, CategoryWeight: 6, SeverityWeight: 30, RiskTag: "burn"},
	{Phrase: "bleeding", Kind: common.KindMedical, CategoryWeight: 6, SeverityWeight: 25, RiskTag: "bleeding"},
	{Phrase: "wound", Kind: common.KindMedical, CategoryWeight: 5, SeverityWeight: 25, RiskTag: "wound"},
	{Phrase: "injured", Kind: common.KindMedical, CategoryWeight: 5, SeverityWeight: 25, RiskTag: "injured"},
	{Phrase: "pain", Kind: common.KindMedical, CategoryWeight: 4, SeverityWeight: 20},
	{Phrase: "hurt", Kind: common.KindMedical, CategoryWeight: 4, SeverityWeight: 20},

	// Police
	{Phrase: "active shooter", Kind: common.KindPolice, CategoryWeight: 12, SeverityWeight: 85, RiskTag: "active shooter", HighSeverity: true},
	{Phrase: "shooting", Kind: common.KindPolice, CategoryWeight: 11, SeverityWeight: 70, RiskTag: "shooting", HighSeverity: true},
	{Phrase: "gunshot", Kind: common.KindPolice, CategoryWeight: 11, SeverityWeight: 70, RiskTag: "gunshot", HighSeverity: true},
	{Phrase: "gun", Kind: common.KindPolice, CategoryWeight: 10, SeverityWeight: 55, RiskTag: "gun", HighSeverity: true},
	{Phrase: "kidnapping", Kind: common.KindPolice, CategoryWeight: 11, SeverityWeight: 60, RiskTag: "kidnapping", HighSeverity: true},
	{Phrase: "weapon", Kind: common.KindPolice, CategoryWeight: 9, SeverityWeight: 50, RiskTag: "weapon", HighSeverity: true},
	{Phrase: "shot", Kind: common.KindPolice, CategoryWeight: 9, SeverityWeight: 65, RiskTag: "shot"},
	{Phrase: "domestic violence", Kind: common.KindPolice, CategoryWeight: 10, SeverityWeight: 50, RiskTag: "domestic violence"},
	{Phrase: "assault", Kind: common.KindPolice, CategoryWeight: 9, SeverityWeight: 45, RiskTag: "assault"},
	{Phrase: "intruder", Kind: common.KindPolice, CategoryWeight: 9, SeverityWeight: 45, RiskTag: "intruder"},
	{Phrase: "robbery", Kind: common.KindPolice, CategoryWeight: 9, SeverityWeight: 45, RiskTag: "robbery"},
	{Phrase: "break in", Kind: common.KindPolice, CategoryWeight: 8, SeverityWeight: 40, RiskTag: "break in"},
	{Phrase: "burglar", Kind: common.KindPolice, CategoryWeight: 8, SeverityWeight: 40, RiskTag: "burglar"},
	{Phrase: "stolen", Kind: common.KindPolice, CategoryWeight: 6, SeverityWeight: 25, RiskTag: "stolen"},
	{Phrase: "theft", Kind: common.KindPolice, CategoryWeight: 6, SeverityWeight: 25, RiskTag: "theft"},
	{Phrase: "missing person", Kind: common.KindPolice, CategoryWeight: 8, SeverityWeight: 30, RiskTag: "missing person"},
	{Phrase: "suspicious", Kind: common.KindPolice, CategoryWeight: 5, SeverityWeight: 20},

	// Accident
	{Phrase: "multiple cars", Kind: common.KindAccident, CategoryWeight: 9, SeverityWeight: 55, RiskTag: "multiple cars", HighSeverity: true},
	{Phrase: "pileup", Kind: common.KindAccident, CategoryWeight: 9, SeverityWeight: 55, RiskTag: "pileup", HighSeverity: true},
	{Phrase: "trapped", Kind: common.KindAccident, CategoryWeight: 6, SeverityWeight: 55, RiskTag: "trapped", HighSeverity: true},
	{Phrase: "car crash", Kind: common.KindAccident, CategoryWeight: 9, SeverityWeight: 50, RiskTag: "car crash"},
	{Phrase: "hit and run", Kind: common.KindAccident, CategoryWeight: 9, SeverityWeight: 45, RiskTag: "hit and run"},
	{Phrase: "collision", Kind: common.KindAccident, CategoryWeight: 8, SeverityWeight: 45, RiskTag: "collision"},
	{Phrase: "crash", Kind: common.KindAccident, CategoryWeight: 8, SeverityWeight: 40, RiskTag: "crash"},
	{Phrase: "accident", Kind: common.KindAccident, CategoryWeight: 8, SeverityWeight: 40, RiskTag: "accident"},
	{Phrase: "building collapse", Kind: common.KindAccident, CategoryWeight: 9, SeverityWeight: 65, RiskTag: "building collapse", HighSeverity: true},
	{Phrase: "overturned", Kind: common.KindAccident, CategoryWeight: 7, SeverityWeight: 40, RiskTag: "overturned"},
	{Phrase: "highway", Kind: common.KindAccident, CategoryWeight: 5, SeverityWeight: 25},
	{Phrase: "fall from height", Kind: common.KindAccident, CategoryWeight: 7, SeverityWeight: 50, RiskTag: "fall from height"},
	{Phrase: "slipped", Kind: common.KindAccident, CategoryWeight: 4, SeverityWeight: 20},

	// Mental health
	{Phrase: "kill myself", Kind: common.KindMentalHealth, CategoryWeight: 12, SeverityWeight: 65, RiskTag: "kill myself", HighSeverity: true},
	{Phrase: "suicide", Kind: common.KindMentalHealth, CategoryWeight: 12, SeverityWeight: 60, RiskTag: "suicide", HighSeverity: true},
	{Phrase: "harm myself", Kind: common.KindMentalHealth, CategoryWeight: 11, SeverityWeight: 55, RiskTag: "harm myself", HighSeverity: true},
	{Phrase: "self harm", Kind: common.KindMentalHealth, CategoryWeight: 10, SeverityWeight: 50, RiskTag: "self harm"},
	{Phrase: "panic attack", Kind: common.KindMentalHealth, CategoryWeight: 9, SeverityWeight: 35, RiskTag: "panic attack"},
	{Phrase: "breakdown", Kind: common.KindMentalHealth, CategoryWeight: 7, SeverityWeight: 30, RiskTag: "breakdown"},
	{Phrase: "depressed", Kind: common.KindMentalHealth, CategoryWeight: 7, SeverityWeight: 30, RiskTag: "depressed"},
	{Phrase: "mental health", Kind: common.KindMentalHealth, CategoryWeight: 8, SeverityWeight: 25, RiskTag: "mental health"},
	{Phrase: "overwhelmed", Kind: common.KindMentalHealth, CategoryWeight: 5, SeverityWeight: 25},
	{Phrase: "crisis", Kind: common.KindMentalHealth, CategoryWeight: 6, SeverityWeight: 35, RiskTag: "crisis"},

	// Panic cues. They never decide the category on their own but raise the
	// severity of whatever was reported.
	{Phrase: "please help", Kind: common.KindOther, CategoryWeight: 2, SeverityWeight: 25},
	{Phrase: "someone help", Kind: common.KindOther, CategoryWeight: 2, SeverityWeight: 25},
	{Phrase: "emergency", Kind: common.KindOther, CategoryWeight: 2, SeverityWeight: 25},
	{Phrase: "urgent", Kind: common.KindOther, CategoryWeight: 2, SeverityWeight: 20},
	{Phrase: "immediately", Kind: common.KindOther, CategoryWeight: 1, SeverityWeight: 20},
	{Phrase: "help", Kind: common.KindOther, CategoryWeight: 1, SeverityWeight: 20},
}

func init() {
	for i := range lexicon {
		lexicon[i].re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(lexicon[i].Phrase) + `\b`)
	}
}

// occurrences counts whole-word matches of the entry's phrase.
func (e *lexiconEntry) occurrences(transcript string) int {
	return len(e.re.FindAllStringIndex(transcript, -1))
}
