package analysis

import (
	"time"

	"archaeologist/internal/types"
)

type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseCloning   Phase = "CLONING"
	PhaseAnalyzing Phase = "ANALYZING"
	PhaseComplete  Phase = "COMPLETE"
	PhaseError     Phase = "ERROR"
)

// InFlight reports whether a run is executing in this phase.
func (p Phase) InFlight() bool { return p == PhaseCloning || p == PhaseAnalyzing }

// Terminal reports whether a run has ended in this phase.
func (p Phase) Terminal() bool { return p == PhaseComplete || p == PhaseError }

// ErrorKind classifies the failure behind an ERROR snapshot.
type ErrorKind string

const (
	KindCollect       ErrorKind = "collect"
	KindConfiguration ErrorKind = "configuration"
	KindTransport     ErrorKind = "transport"
	KindMalformed     ErrorKind = "malformed_response"
	KindTimeout       ErrorKind = "timeout"
)

type SaveState string

const (
	SaveNone   SaveState = ""
	SaveSaving SaveState = "saving"
	SaveSaved  SaveState = "saved"
	SaveFailed SaveState = "failed"
)

// Persistence is the status of the plan hand-off of the current report. It
// never changes the report itself.
type Persistence struct {
	State  SaveState `json:"state,omitempty"`
	PlanID string    `json:"planId,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Snapshot is one immutable view of the lifecycle. Only the Machine creates
// snapshots. Report is set iff Phase is COMPLETE; Error is set iff Phase is
// ERROR.
type Snapshot struct {
	Seq         uint64                `json:"seq"`
	RunID       string                `json:"runId,omitempty"`
	SourceID    string                `json:"sourceId,omitempty"`
	Phase       Phase                 `json:"phase"`
	FileCount   int                   `json:"fileCount,omitempty"`
	Report      *types.AnalysisReport `json:"report"`
	Error       string                `json:"error,omitempty"`
	ErrorKind   ErrorKind             `json:"errorKind,omitempty"`
	Cached      bool                  `json:"cached,omitempty"`
	Persistence Persistence           `json:"persistence"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}
