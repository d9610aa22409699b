package main

import "github.com/haresh-sai06/rapid100/pkg/common"

// responsePlan carries everything the caller hears plus the follow-up
// protocol strings. Action and precaution ordering is part of the contract:
// operators read them in sequence ("Evacuate first, then do not use
// elevators"), so the lists are never reordered or deduplicated.
type responsePlan struct {
	Spoken           string
	ImmediateActions []string
	Precautions      []string
	DangerQuestion   string
	EscalatedSpoken  string

	// Accident calls additionally carry post-incident guidance surfaced
	// through call metadata for the operator UI.
	PostIncidentActions     []string
	PostIncidentPrecautions []string
}

type responseTemplate struct {
	urgentSpoken string // spoken for LEVEL_1 / LEVEL_2
	calmSpoken   string // spoken for LEVEL_3 / LEVEL_4

	immediateActions []string
	precautions      []string
	dangerQuestion   string

	postIncidentActions     []string
	postIncidentPrecautions []string
}

const escalatedSpoken = "Help is on the way! Priority increased to critical. Stay on the line and we will end the call when help arrives."

var responseTemplates = map[common.EmergencyKind]responseTemplate{
	common.KindFire: {
		urgentSpoken: "Help is coming! Fire Department is being dispatched now. Evacuate immediately and do not use elevators. Stay low to avoid smoke inhalation and feel doors before opening. Use stairs only and help others evacuate if safe to do so.",
		calmSpoken:   "The Fire Department has been notified and will respond shortly. Evacuate the area calmly, keep doors closed behind you and stay clear of any smoke.",
		immediateActions: []string{
			"Evacuate the area immediately",
			"Do not use elevators",
			"Close doors behind you",
			"Move to designated assembly point",
		},
		precautions: []string{
			"Stay low to avoid smoke inhalation",
			"Feel doors before opening them",
			"Use stairs only for evacuation",
			"Help others evacuate if safe to do so",
		},
		dangerQuestion: "Is the fire spreading or are people trapped?",
	},
	common.KindMedical: {
		urgentSpoken: "Help is coming! Ambulance is being dispatched now. Check if the person is breathing and stay on the line. Keep the person comfortable and apply direct pressure to any bleeding. Monitor consciousness and have medical history ready.",
		calmSpoken:   "An Ambulance has been notified and will respond shortly. Keep the person comfortable, monitor their condition and have any medical history ready.",
		immediateActions: []string{
			"Check breathing and pulse",
			"Keep person comfortable",
			"Clear airway if needed",
			"Apply direct pressure to bleeding",
		},
		precautions: []string{
			"Do not move person unless in danger",
			"Keep person warm",
			"Monitor consciousness",
			"Have medical history ready",
		},
		dangerQuestion: "Is the person unconscious or not breathing?",
	},
	common.KindPolice: {
		urgentSpoken: "Help is coming! Police are being dispatched now. Move to a safe location and lock doors immediately. Stay away from windows and silence your phone. Do not confront the suspect and follow dispatcher instructions.",
		calmSpoken:   "Police have been notified and will respond shortly. Move to a safe location, avoid confrontation and keep your phone nearby.",
		immediateActions: []string{
			"Move to safe location immediately",
			"Lock doors and windows",
			"Stay away from windows",
			"Silence your phone",
		},
		precautions: []string{
			"Do not confront suspect",
			"Have escape route planned",
			"Stay quiet and hidden",
			"Follow dispatcher instructions",
		},
		dangerQuestion: "Is the suspect still present or armed?",
	},
	common.KindAccident: {
		urgentSpoken: "Help is coming! Multiple Services are being dispatched now. Move to a safe location away from traffic and turn on hazard lights immediately. Check for injuries, do not move anyone seriously hurt, and stay clear of moving traffic.",
		calmSpoken:   "Emergency services have been notified and will respond shortly. Move away from traffic, turn on hazard lights and check for injuries.",
		immediateActions: []string{
			"Move to safe location away from traffic",
			"Turn on hazard lights immediately",
			"Check for injuries and provide first aid",
			"Call emergency services if serious injuries",
			"Take photos of scene if safe to do so",
		},
		precautions: []string{
			"Stay away from moving traffic and warn other drivers",
			"Set up warning triangles or flares behind your vehicle",
			"Do not move injured persons unless there is immediate danger",
			"Apply direct pressure to bleeding wounds",
			"Keep injured persons warm with blankets or clothing",
			"Exchange information with other drivers involved",
			"Document scene with photos when safe",
			"Follow emergency dispatcher instructions exactly",
		},
		dangerQuestion: "Are there serious injuries or people trapped?",
		postIncidentActions: []string{
			"Exchange insurance and contact information",
			"Document damage with photos and notes",
			"Seek medical attention even for minor injuries",
			"Report accident to authorities if not already done",
			"Preserve evidence and scene integrity",
		},
		postIncidentPrecautions: []string{
			"Monitor for delayed injury symptoms",
			"Keep copies of medical records and bills",
			"Follow up with insurance claims promptly",
			"Consider legal consultation if fault is disputed",
			"Take photos of all damage and injuries",
		},
	},
	common.KindMentalHealth: {
		urgentSpoken: "Help is coming! Crisis Response is being dispatched now. Stay on the line with us. Move to a safe, calm location and remove any potentially harmful items if safe to do so. Breathe slowly and steadily.",
		calmSpoken:   "A Crisis Response team has been notified and will respond shortly. Stay with us, move somewhere calm and breathe slowly.",
		immediateActions: []string{
			"Stay on the line",
			"Move to safe, calm location",
			"Remove any potentially harmful items if safe to do so",
			"Breathe slowly and steadily",
		},
		precautions: []string{
			"Keep company with trusted person if possible",
			"Remove access to harmful items",
			"Stay in a safe environment",
			"Follow crisis counselor guidance",
		},
		dangerQuestion: "Is there immediate risk of harm?",
	},
	common.KindOther: {
		urgentSpoken: "Help is coming! Police are being dispatched now. Stay calm and follow instructions. Keep your phone nearby and know your location.",
		calmSpoken:   "Emergency services have been notified. Stay calm, keep your phone nearby and be ready to describe your location.",
		immediateActions: []string{
			"Stay calm",
			"Follow dispatcher instructions",
			"Keep phone available",
			"Provide clear information",
		},
		precautions: []string{
			"Stay aware of surroundings",
			"Have emergency numbers ready",
			"Keep first aid kit accessible",
			"Know your location",
		},
		dangerQuestion: "Is the situation life-threatening?",
	},
}

// synthesize produces the spoken reply and guidance lists for a kind and
// severity. It is a pure function of its arguments: no caller identity, no
// clocks, no I/O.
func synthesize(kind common.EmergencyKind, severity common.Severity) responsePlan {
	tmpl, ok := responseTemplates[kind]
	if !ok {
		tmpl = responseTemplates[common.KindOther]
	}

	spoken := tmpl.calmSpoken
	if severity == common.SeverityLevel1 || severity == common.SeverityLevel2 {
		spoken = tmpl.urgentSpoken
	}

	return responsePlan{
		Spoken:                  spoken,
		ImmediateActions:        tmpl.immediateActions,
		Precautions:             tmpl.precautions,
		DangerQuestion:          tmpl.dangerQuestion,
		EscalatedSpoken:         escalatedSpoken,
		PostIncidentActions:     tmpl.postIncidentActions,
		PostIncidentPrecautions: tmpl.postIncidentPrecautions,
	}
}
