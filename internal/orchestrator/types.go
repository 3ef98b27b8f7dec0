package orchestrator

import "time"

// Status values used across BootstrapResult and PhaseResult.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusInProgress = "in-progress"
	StatusSkipped    = "skipped"
	// StatusWarn marks a phase that completed with suppressed failures or
	// index conflicts.
	StatusWarn = "warn"
)

// Phase names, in execution order.
const (
	PhaseLock         = "lock"
	PhaseCollections  = "collections"
	PhaseIndexCleanup = "index-cleanup"
	PhaseIndexes      = "indexes"
	PhaseSeed         = "seed"
	PhaseVerify       = "verify"
	PhaseAnnounce     = "announce"
)

// Outcome values recorded on each Action.
const (
	OutcomeCreated  = "created"
	OutcomeExists   = "exists"
	OutcomeDropped  = "dropped"
	OutcomeAbsent   = "absent"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
	OutcomeInserted = "inserted"
	OutcomeSkipped  = "skipped"
)

// BootstrapResult is the aggregate result of a full bootstrap run. Phases are
// listed in the order they ran; a fatal failure ends the list.
type BootstrapResult struct {
	RunID      string        `json:"runId"`
	Status     string        `json:"status"` // "ok", "error", "in-progress"
	Database   string        `json:"database"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Phases     []PhaseResult `json:"phases"`
	Report     *Report       `json:"report,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Phase returns the named phase and whether it ran.
func (r *BootstrapResult) Phase(name string) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// PhaseResult represents the outcome of a single bootstrap phase.
type PhaseResult struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"` // "ok", "warn", "error", "skipped"
	Error   string   `json:"error,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Action is one operation attempted inside a phase, e.g. creating an index.
type Action struct {
	Target  string `json:"target"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Report is the observational summary produced by the verify phase.
type Report struct {
	DocumentCounts map[string]int64 `json:"documentCounts"`
	IndexCounts    map[string]int   `json:"indexCounts"`
}

// ProbeResult is returned by RunDeepHealth for each dependency.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// BootstrapEvent is announced to other services after a successful run.
type BootstrapEvent struct {
	RunID          string           `json:"runId"`
	Database       string           `json:"database"`
	Status         string           `json:"status"`
	CompletedAt    time.Time        `json:"completedAt"`
	DocumentCounts map[string]int64 `json:"documentCounts,omitempty"`
}
