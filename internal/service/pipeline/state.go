package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// Stage is a step of a conversation run.
type Stage int

const (
	// StageReceived - job and document are loaded.
	StageReceived Stage = iota
	// StageSegmented - turns are built from the document.
	StageSegmented
	// StageMerged - turns are time-ordered and fragments absorbed.
	StageMerged
	// StageEnriched - sentiment and entities are attached.
	StageEnriched
	// StageTrended - per-speaker trends are computed.
	StageTrended
	// StageAssembled - the record is built. Terminal.
	StageAssembled
	// StageFailed - a stage returned an error. Terminal.
	StageFailed
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "RECEIVED"
	case StageSegmented:
		return "SEGMENTED"
	case StageMerged:
		return "MERGED"
	case StageEnriched:
		return "ENRICHED"
	case StageTrended:
		return "TRENDED"
	case StageAssembled:
		return "ASSEMBLED"
	case StageFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for ASSEMBLED and FAILED.
func (s Stage) IsTerminal() bool {
	return s == StageAssembled || s == StageFailed
}

// ErrInvalidTransition is returned when a stage is entered out of order.
var ErrInvalidTransition = errors.New("pipeline: invalid stage transition")

// Lifecycle tracks the stage of one run.
// Thread-safe for concurrent access.
//
// Stage transitions:
//
//	RECEIVED → SEGMENTED → MERGED → ENRICHED → TRENDED → ASSEMBLED
//	    │           │         │         │          │
//	    └───────────┴─────────┴─────────┴──────────┴──→ FAILED
//
// Rules:
//   - Advance only moves to the next stage in order
//   - Fail moves any non-terminal run to FAILED and keeps the cause
//   - Terminal runs accept no further transitions
type Lifecycle struct {
	mu    sync.RWMutex
	runID string
	stage Stage
	err   error
}

// NewLifecycle creates a run lifecycle in RECEIVED state.
func NewLifecycle(runID string) *Lifecycle {
	return &Lifecycle{runID: runID, stage: StageReceived}
}

// RunID returns the run ID.
func (l *Lifecycle) RunID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.runID
}

// Stage returns the current stage.
func (l *Lifecycle) Stage() Stage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stage
}

// Err returns the failure cause, or nil.
func (l *Lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Advance moves the run to the given stage, which must directly follow the
// current one.
func (l *Lifecycle) Advance(to Stage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stage.IsTerminal() || to == StageFailed || to != l.stage+1 {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, l.stage, to)
	}
	l.stage = to
	return nil
}

// Fail moves the run to FAILED. Returns false if the run was already terminal.
func (l *Lifecycle) Fail(err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stage.IsTerminal() {
		return false
	}
	l.stage = StageFailed
	l.err = err
	return true
}
