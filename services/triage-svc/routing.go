package main

import "github.com/haresh-sai06/rapid100/pkg/common"

// routeEntry pairs the primary responder service with the baseline dispatch
// priority before severity adjustments.
type routeEntry struct {
	Service      common.Service
	BasePriority int
}

var routingTable = map[common.EmergencyKind]routeEntry{
	common.KindMedical:      {common.ServiceAmbulance, 2},
	common.KindFire:         {common.ServiceFireDepartment, 2},
	common.KindPolice:       {common.ServicePolice, 3},
	common.KindAccident:     {common.ServiceMultipleServices, 3},
	common.KindMentalHealth: {common.ServiceCrisisResponse, 4},
	common.KindOther:        {common.ServicePolice, 5},
}

var severityBoost = map[common.Severity]int{
	common.SeverityLevel1: 2,
	common.SeverityLevel2: 1,
	common.SeverityLevel3: 0,
	common.SeverityLevel4: -1,
}

// route maps (kind, severity) onto the responder service and a 1..10
// priority where 1 is the most urgent. Serious accidents get an extra boost
// because they dispatch more than one service.
func route(kind common.EmergencyKind, severity common.Severity) (common.Service, int) {
	entry, ok := routingTable[kind]
	if !ok {
		entry = routingTable[common.KindOther]
	}

	priority := entry.BasePriority - severityBoost[severity]
	if kind == common.KindAccident && (severity == common.SeverityLevel1 || severity == common.SeverityLevel2) {
		priority--
	}

	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}
	return entry.Service, priority
}
