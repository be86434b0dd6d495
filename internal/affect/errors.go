package affect

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the inference pipeline. Callers branch with errors.Is;
// the richer *Error types below carry context and unwrap to these.
var (
	// ErrInsufficientData means zero readings fell inside the requested
	// window. Recoverable: retry with a wider window or skip the run.
	ErrInsufficientData = errors.New("insufficient data in window")

	// ErrBaselinePersistence means the baseline store rejected a read or
	// write. The inference run fails atomically; no partial baseline state
	// is committed.
	ErrBaselinePersistence = errors.New("baseline persistence failed")

	// ErrTimeout means an upstream fetch or store exceeded its deadline.
	// Surfaced to the caller; nothing is retried internally.
	ErrTimeout = errors.New("operation timed out")
)

// InsufficientDataError reports an empty reading window.
type InsufficientDataError struct {
	ParticipantID string
	WindowStart   time.Time
	WindowEnd     time.Time
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("no readings for participant %s in window %s to %s",
		e.ParticipantID, e.WindowStart.Format(time.RFC3339), e.WindowEnd.Format(time.RFC3339))
}

// Unwrap lets errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// BaselinePersistenceError reports a failed baseline load or save.
type BaselinePersistenceError struct {
	ParticipantID string
	FeatureName   string
	Op            string // "get" or "put"
	Err           error
}

func (e *BaselinePersistenceError) Error() string {
	return fmt.Sprintf("baseline %s failed for %s/%s: %v", e.Op, e.ParticipantID, e.FeatureName, e.Err)
}

func (e *BaselinePersistenceError) Unwrap() error { return ErrBaselinePersistence }

// TimeoutError reports a deadline exceeded during a named pipeline stage.
type TimeoutError struct {
	Stage string
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Stage, e.Err)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
