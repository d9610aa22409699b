package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

var allKinds = []common.EmergencyKind{
	common.KindMedical, common.KindFire, common.KindPolice,
	common.KindAccident, common.KindMentalHealth, common.KindOther,
}

var allSeverities = []common.Severity{
	common.SeverityLevel1, common.SeverityLevel2,
	common.SeverityLevel3, common.SeverityLevel4,
}

func TestSynthesizeNonEmpty(t *testing.T) {
	for _, kind := range allKinds {
		for _, severity := range allSeverities {
			plan := synthesize(kind, severity)
			if strings.TrimSpace(plan.Spoken) == "" {
				t.Errorf("synthesize(%v, %v): empty spoken text", kind, severity)
			}
			if len(plan.ImmediateActions) == 0 {
				t.Errorf("synthesize(%v, %v): no immediate actions", kind, severity)
			}
			if len(plan.Precautions) == 0 {
				t.Errorf("synthesize(%v, %v): no precautions", kind, severity)
			}
			if strings.TrimSpace(plan.DangerQuestion) == "" {
				t.Errorf("synthesize(%v, %v): no danger question", kind, severity)
			}
			if strings.TrimSpace(plan.EscalatedSpoken) == "" {
				t.Errorf("synthesize(%v, %v): no escalation sentence", kind, severity)
			}
		}
	}
}

// Critical and high severity responses open with the urgency cue and name
// the dispatched service.
func TestSynthesizeUrgencyCue(t *testing.T) {
	serviceNames := map[common.EmergencyKind]string{
		common.KindMedical:      "Ambulance",
		common.KindFire:         "Fire Department",
		common.KindPolice:       "Police",
		common.KindAccident:     "Multiple Services",
		common.KindMentalHealth: "Crisis Response",
		common.KindOther:        "Police",
	}
	for _, kind := range allKinds {
		for _, severity := range []common.Severity{common.SeverityLevel1, common.SeverityLevel2} {
			plan := synthesize(kind, severity)
			if !strings.HasPrefix(plan.Spoken, "Help is coming") {
				t.Errorf("synthesize(%v, %v) spoken does not start with urgency cue: %q", kind, severity, plan.Spoken)
			}
			if !strings.Contains(plan.Spoken, serviceNames[kind]) {
				t.Errorf("synthesize(%v, %v) spoken does not name %q: %q", kind, severity, serviceNames[kind], plan.Spoken)
			}
		}
	}
}

func TestSynthesizeCalmerForLowSeverity(t *testing.T) {
	urgent := synthesize(common.KindFire, common.SeverityLevel1)
	calm := synthesize(common.KindFire, common.SeverityLevel4)
	if urgent.Spoken == calm.Spoken {
		t.Error("LEVEL_1 and LEVEL_4 should not share spoken text")
	}
	if strings.HasPrefix(calm.Spoken, "Help is coming") {
		t.Errorf("LEVEL_4 spoken should not carry the urgency cue: %q", calm.Spoken)
	}
}

// List order is contract: operators act on the steps in sequence.
func TestSynthesizeActionOrder(t *testing.T) {
	fire := synthesize(common.KindFire, common.SeverityLevel1)
	wantFire := []string{
		"Evacuate the area immediately",
		"Do not use elevators",
		"Close doors behind you",
		"Move to designated assembly point",
	}
	if !reflect.DeepEqual(fire.ImmediateActions, wantFire) {
		t.Errorf("fire immediate actions = %v; want %v", fire.ImmediateActions, wantFire)
	}

	medical := synthesize(common.KindMedical, common.SeverityLevel2)
	if medical.ImmediateActions[0] != "Check breathing and pulse" {
		t.Errorf("medical actions must lead with breathing check, got %q", medical.ImmediateActions[0])
	}
}

func TestSynthesizePure(t *testing.T) {
	a := synthesize(common.KindAccident, common.SeverityLevel2)
	b := synthesize(common.KindAccident, common.SeverityLevel2)
	if !reflect.DeepEqual(a, b) {
		t.Error("synthesize is not deterministic")
	}
}

func TestSynthesizeDangerQuestions(t *testing.T) {
	if q := synthesize(common.KindFire, common.SeverityLevel1).DangerQuestion; q != "Is the fire spreading or are people trapped?" {
		t.Errorf("fire danger question = %q", q)
	}
	if q := synthesize(common.KindMedical, common.SeverityLevel3).DangerQuestion; q != "Is the person unconscious or not breathing?" {
		t.Errorf("medical danger question = %q", q)
	}
}

func TestSynthesizeAccidentPostIncident(t *testing.T) {
	plan := synthesize(common.KindAccident, common.SeverityLevel3)
	if len(plan.PostIncidentActions) != 5 || len(plan.PostIncidentPrecautions) != 5 {
		t.Errorf("accident post-incident guidance = %d/%d entries; want 5/5",
			len(plan.PostIncidentActions), len(plan.PostIncidentPrecautions))
	}
	if len(plan.Precautions) != 8 {
		t.Errorf("accident precautions = %d entries; want the full ordered list of 8", len(plan.Precautions))
	}
	if last := plan.Precautions[len(plan.Precautions)-1]; last != "Follow emergency dispatcher instructions exactly" {
		t.Errorf("accident precautions must end with the dispatcher instruction, got %q", last)
	}
	other := synthesize(common.KindFire, common.SeverityLevel3)
	if len(other.PostIncidentActions) != 0 {
		t.Error("only accidents carry post-incident guidance")
	}
}

func TestSynthesizeUnknownKindFallsBack(t *testing.T) {
	plan := synthesize(common.EmergencyKind("BOGUS"), common.SeverityLevel3)
	if !reflect.DeepEqual(plan, synthesize(common.KindOther, common.SeverityLevel3)) {
		t.Error("unknown kinds should use the OTHER template")
	}
}
