package common

import (
	"strings"
	"testing"
	"time"
)

func TestParseEmergencyKind(t *testing.T) {
	cases := map[string]EmergencyKind{
		"MEDICAL":          KindMedical,
		"medical":          KindMedical,
		"Fire":             KindFire,
		"MENTAL_HEALTH":    KindMentalHealth,
		"mental health":    KindMentalHealth,
		"Mental  Health":   KindMentalHealth,
		"crime":            KindPolice,
		"NATURAL_DISASTER": KindOther,
	}
	for input, want := range cases {
		got, err := ParseEmergencyKind(input)
		if err != nil || got != want {
			t.Errorf("ParseEmergencyKind(%q) = %v, %v; want %v, nil", input, got, err, want)
		}
	}

	for _, bad := range []string{"", "garbage", "123"} {
		got, err := ParseEmergencyKind(bad)
		if err == nil {
			t.Errorf("ParseEmergencyKind(%q) should error", bad)
		}
		if got != KindOther {
			t.Errorf("ParseEmergencyKind(%q) = %v on error; want KindOther", bad, got)
		}
	}
}

func TestParseSeverityLegacyForms(t *testing.T) {
	cases := map[string]Severity{
		"LEVEL_1":  SeverityLevel1,
		"Level 1":  SeverityLevel1,
		"level_2":  SeverityLevel2,
		"LEVEL 3":  SeverityLevel3,
		"CRITICAL": SeverityLevel1,
		"high":     SeverityLevel2,
		"Moderate": SeverityLevel3,
		"LOW":      SeverityLevel4,
	}
	for input, want := range cases {
		got, err := ParseSeverity(input)
		if err != nil || got != want {
			t.Errorf("ParseSeverity(%q) = %v, %v; want %v, nil", input, got, err, want)
		}
	}
}

func TestParseServiceLegacyForms(t *testing.T) {
	cases := map[string]Service{
		"FIRE_DEPARTMENT":   ServiceFireDepartment,
		"Fire Department":   ServiceFireDepartment,
		"fire department":   ServiceFireDepartment,
		"MULTIPLE":          ServiceMultipleServices,
		"Multiple Services": ServiceMultipleServices,
		"Crisis Response":   ServiceCrisisResponse,
	}
	for input, want := range cases {
		got, err := ParseService(input)
		if err != nil || got != want {
			t.Errorf("ParseService(%q) = %v, %v; want %v, nil", input, got, err, want)
		}
	}
}

// Normalization must be idempotent: feeding a canonical value back through
// the parser yields the same value.
func TestNormalizationIdempotent(t *testing.T) {
	for _, k := range []EmergencyKind{KindMedical, KindFire, KindPolice, KindAccident, KindMentalHealth, KindOther} {
		got, err := ParseEmergencyKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseEmergencyKind(%q) not idempotent: got %v, %v", k, got, err)
		}
	}
	for _, s := range []Severity{SeverityLevel1, SeverityLevel2, SeverityLevel3, SeverityLevel4} {
		got, err := ParseSeverity(string(s))
		if err != nil || got != s {
			t.Errorf("ParseSeverity(%q) not idempotent: got %v, %v", s, got, err)
		}
	}
	for _, v := range []Service{ServiceAmbulance, ServiceFireDepartment, ServicePolice, ServiceCrisisResponse, ServiceMultipleServices} {
		got, err := ParseService(string(v))
		if err != nil || got != v {
			t.Errorf("ParseService(%q) not idempotent: got %v, %v", v, got, err)
		}
	}
	for state := range stateAliases {
		canonical, _ := ParseCallState(state)
		again, err := ParseCallState(string(canonical))
		if err != nil || again != canonical {
			t.Errorf("ParseCallState(%q) not idempotent: got %v, %v", canonical, again, err)
		}
	}
}

func TestOrDefaultCoercion(t *testing.T) {
	if got := KindOrDefault("no-such-kind"); got != KindOther {
		t.Errorf("KindOrDefault = %v; want KindOther", got)
	}
	if got := SeverityOrDefault(""); got != SeverityLevel3 {
		t.Errorf("SeverityOrDefault = %v; want SeverityLevel3", got)
	}
	if got := ServiceOrDefault("??"); got != ServicePolice {
		t.Errorf("ServiceOrDefault = %v; want ServicePolice", got)
	}
	if got := StateOrDefault("??"); got != StatePending {
		t.Errorf("StateOrDefault = %v; want StatePending", got)
	}
}

func TestSeverityThresholdBoundaries(t *testing.T) {
	th := DefaultSeverityThresholds
	cases := []struct {
		score float64
		want  Severity
	}{
		{100, SeverityLevel1},
		{80.0, SeverityLevel1},
		{79.9999, SeverityLevel2},
		{60, SeverityLevel2},
		{59.9999, SeverityLevel3},
		{40, SeverityLevel3},
		{39.9999, SeverityLevel4},
		{0, SeverityLevel4},
	}
	for _, tc := range cases {
		if got := th.Level(tc.score); got != tc.want {
			t.Errorf("Level(%v) = %v; want %v", tc.score, got, tc.want)
		}
	}
}

func TestParseSeverityThresholds(t *testing.T) {
	th, err := ParseSeverityThresholds("80,60,40,0")
	if err != nil || th != DefaultSeverityThresholds {
		t.Errorf("ParseSeverityThresholds = %v, %v", th, err)
	}

	th, err = ParseSeverityThresholds("90, 70, 50, 10")
	if err != nil || th != (SeverityThresholds{90, 70, 50, 10}) {
		t.Errorf("ParseSeverityThresholds with spaces = %v, %v", th, err)
	}

	for _, bad := range []string{"", "80,60,40", "80,60,40,x", "40,60,80,0"} {
		if _, err := ParseSeverityThresholds(bad); err == nil {
			t.Errorf("ParseSeverityThresholds(%q) should error", bad)
		}
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !SeverityLevel1.MoreUrgentThan(SeverityLevel2) {
		t.Error("LEVEL_1 should be more urgent than LEVEL_2")
	}
	if SeverityLevel3.MoreUrgentThan(SeverityLevel2) {
		t.Error("LEVEL_3 should not be more urgent than LEVEL_2")
	}
	if SeverityLevel1.MoreUrgentThan(SeverityLevel1) {
		t.Error("MoreUrgentThan should be strict")
	}
}

func TestCallStateTerminal(t *testing.T) {
	terminal := []CallState{StateCompleted, StateResolved, StateCancelled, StateError}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []CallState{StatePending, StateInProgress, StateAwaitingFollowup, StateEscalated, StateDispatched}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func validOutcome() TriageOutcome {
	return TriageOutcome{
		Transcript:    "there is a fire on Main Street",
		Kind:          KindFire,
		Severity:      SeverityLevel2,
		SeverityScore: 65,
		Service:       ServiceFireDepartment,
		Priority:      1,
		Confidence:    0.9,
		Summary:       "High-severity Fire",
		Spoken:        "Help is coming!",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestTriageOutcomeValidate(t *testing.T) {
	o := validOutcome()
	if err := o.Validate(DefaultSeverityThresholds); err != nil {
		t.Errorf("valid outcome rejected: %v", err)
	}

	bad := []func(*TriageOutcome){
		func(o *TriageOutcome) { o.Transcript = "  " },
		func(o *TriageOutcome) { o.Service = "" },
		func(o *TriageOutcome) { o.Priority = 0 },
		func(o *TriageOutcome) { o.Priority = 11 },
		func(o *TriageOutcome) { o.SeverityScore = 101 },
		func(o *TriageOutcome) { o.Confidence = 1.5 },
		func(o *TriageOutcome) { o.Severity = SeverityLevel4 }, // inconsistent with score 65
	}
	for i, mutate := range bad {
		o := validOutcome()
		mutate(&o)
		if err := o.Validate(DefaultSeverityThresholds); err == nil {
			t.Errorf("case %d: Validate() should reject %+v", i, o)
		}
	}
}

func TestClampInvariants(t *testing.T) {
	o := validOutcome()
	o.Priority = 14
	o.SeverityScore = 130
	o.Confidence = -0.2
	o.Severity = SeverityLevel4

	o.ClampInvariants(DefaultSeverityThresholds)

	if o.Priority != 10 {
		t.Errorf("priority = %d; want 10", o.Priority)
	}
	if o.SeverityScore != 100 {
		t.Errorf("severity score = %v; want 100", o.SeverityScore)
	}
	if o.Confidence != 0 {
		t.Errorf("confidence = %v; want 0", o.Confidence)
	}
	if o.Severity != SeverityLevel1 {
		t.Errorf("severity = %v; want LEVEL_1 after realign", o.Severity)
	}
	if err := o.Validate(DefaultSeverityThresholds); err != nil {
		t.Errorf("clamped outcome should validate: %v", err)
	}
}

func TestCallRecordValidate(t *testing.T) {
	r := CallRecord{
		CallSid:       "CA0123456789",
		TriageOutcome: validOutcome(),
		State:         StatePending,
	}
	if err := r.Validate(DefaultSeverityThresholds); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}

	r.CallSid = ""
	if err := r.Validate(DefaultSeverityThresholds); err == nil {
		t.Error("record without call_sid should be rejected")
	}
}

func TestDisplayForms(t *testing.T) {
	if got := KindMentalHealth.Display(); got != "Mental Health" {
		t.Errorf("Display = %q", got)
	}
	if got := SeverityLevel1.Display(); !strings.Contains(got, "Critical") {
		t.Errorf("Display = %q; want something with Critical", got)
	}
	if got := ServiceFireDepartment.Display(); got != "Fire Department" {
		t.Errorf("Display = %q", got)
	}
}
