// Package cue holds the pure cue-domain rules: the status state machine,
// targeting resolution, and access-role derivation. Nothing here touches the
// store, so every function is usable from handler code and from tests alike.
package cue

import "errors"

type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusStandby  Status = "STANDBY"
	StatusGo       Status = "GO"
	StatusHold     Status = "HOLD"
	StatusDone     Status = "DONE"
	StatusCanceled Status = "CANCELED"
)

var ErrInvalidTransition = errors.New("invalid cue status transition")

// transitions is the authoritative lifecycle table. DONE and CANCELED are
// terminal; there are no self-transitions.
var transitions = map[Status][]Status{
	StatusDraft:    {StatusStandby, StatusCanceled},
	StatusStandby:  {StatusGo, StatusHold, StatusCanceled},
	StatusGo:       {StatusDone, StatusHold},
	StatusHold:     {StatusStandby, StatusGo, StatusCanceled},
	StatusDone:     {},
	StatusCanceled: {},
}

// CanTransition reports whether the edge from→to exists in the lifecycle
// table. Every write path must consult it before committing a status change.
// It knows nothing about priority; the CRITICAL-GO confirmation step lives
// at the call site.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(status Status) bool {
	return len(transitions[status]) == 0
}

func ValidStatus(status Status) bool {
	_, ok := transitions[status]
	return ok
}

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

func ValidPriority(priority Priority) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

type Type string

const (
	TypeLight  Type = "LIGHT"
	TypeSound  Type = "SOUND"
	TypeVideo  Type = "VIDEO"
	TypeStage  Type = "STAGE"
	TypeCustom Type = "CUSTOM"
)

func ValidType(cueType Type) bool {
	switch cueType {
	case TypeLight, TypeSound, TypeVideo, TypeStage, TypeCustom:
		return true
	default:
		return false
	}
}

// Rail is the UI grouping a status maps to.
type Rail string

const (
	RailStandby Rail = "standby"
	RailGo      Rail = "go"
	RailOther   Rail = "other"
)

func RailFor(status Status) Rail {
	switch status {
	case StatusStandby:
		return RailStandby
	case StatusGo:
		return RailGo
	default:
		return RailOther
	}
}
