package store

import (
	"encoding/json"
	"time"

	"cuemesh/api/internal/cue"
)

// Participant is a device-agnostic identity. One participant can be a member
// of many shows.
type Participant struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// Show is the root aggregate; members and cues are scoped by ShowID.
type Show struct {
	ID           string
	Name         string
	Venue        string
	Status       string
	JoinCodeHash string
	CreatedAt    time.Time
	CreatedBy    string
}

// Member is one (show, participant) record. Joins merge field-wise: a re-join
// updates only the fields the caller supplied so it cannot clobber concurrent
// writes such as a heartbeat.
type Member struct {
	ShowID          string
	ParticipantID   string
	DisplayName     string
	Department      cue.Department
	AccessRole      cue.AccessRole
	CustomDeptLabel *string
	DeviceID        string
	JoinedAt        time.Time
	UpdatedAt       time.Time
}

// Cue carries both the raw targets document as written and the normalized
// shape. Normalization happens exactly once, when the row is scanned; every
// consumer reads Targets and never re-interprets RawTargets.
type Cue struct {
	ID              string
	ShowID          string
	Type            cue.Type
	Title           string
	Details         string
	RawTargets      json.RawMessage
	Targets         cue.Targets
	Priority        cue.Priority
	Status          cue.Status
	RequiresConfirm bool
	CreatedAt       time.Time
	CreatedBy       string
	GoAt            *time.Time
}

// Ack records that a member has seen a cue. At most one row per
// (cue, member); re-acking moves the timestamp forward.
type Ack struct {
	CueID    string
	MemberID string
	AckAt    time.Time
}

// Confirm is the explicit confirmation for cues that require one. Same
// idempotency rule as Ack.
type Confirm struct {
	CueID     string
	MemberID  string
	ConfirmAt time.Time
}

// ShowEvent is an append-only trail entry. Refusals land here (one event per
// refusal, never collapsed), alongside cue creation and status records.
type ShowEvent struct {
	ID        int64
	ShowID    string
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
	CreatedBy string
}

const (
	EventCueCreated = "CUE_CREATED"
	EventCueStatus  = "CUE_STATUS"
	EventCueCant    = "CUE_CANT"
)
