package affect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-health/affect.report/internal/timeutil"
)

// ReadingSource fetches the bounded reading window an inference run
// consumes. Implementations must return readings ordered by timestamp.
// A nil metricTypes slice means all metrics.
type ReadingSource interface {
	ReadingsInWindow(ctx context.Context, participantID string, metricTypes []MetricType, start, end time.Time) ([]SensorReading, error)
}

// StateStore persists inference results. Saves append history; the latest
// state is never overwritten in place.
type StateStore interface {
	SaveAffectState(ctx context.Context, s *AffectState) error
	LatestAffectState(ctx context.Context, participantID string) (*AffectState, error)
	AffectHistory(ctx context.Context, participantID string, since, until time.Time, limit int) ([]AffectState, error)
}

// Pipeline wires the extractor, baseline tracker and scorer into the
// run-inference operation. It holds no mutable state of its own; all
// shared state lives behind the tracker's store.
type Pipeline struct {
	readings ReadingSource
	tracker  *Tracker
	states   StateStore
	params   ScorerParams
	clock    timeutil.Clock

	// onState, when set, observes every successfully saved state. Used to
	// fan results out to the live stream and cache without coupling the
	// pipeline to either.
	onState inferenceCallback
}

type inferenceCallback func(*AffectState)

// NewPipeline assembles a Pipeline. A nil clock uses the real one.
func NewPipeline(readings ReadingSource, tracker *Tracker, states StateStore, params ScorerParams, clock timeutil.Clock) *Pipeline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pipeline{
		readings: readings,
		tracker:  tracker,
		states:   states,
		params:   params,
		clock:    clock,
	}
}

// OnState registers a callback invoked after each state is saved. Must be
// set before the pipeline starts serving; not safe to change concurrently
// with RunInference.
func (p *Pipeline) OnState(fn func(*AffectState)) { p.onState = fn }

// RunInference executes one full inference pass for a participant: fetch
// the window ending now, extract features, fold each into its baseline,
// score, persist, notify.
//
// windowSeconds <= 0 selects the default window. Failure modes, all typed:
// *InsufficientDataError when the window is empty, *TimeoutError when the
// fetch or a store call exceeds ctx's deadline, *BaselinePersistenceError
// when the baseline store fails. On any failure no affect state is saved.
//
// Baseline updates are applied feature by feature, each atomic under its
// own key; a failure partway stops the run at that feature. Callers own
// at-most-once delivery: running inference twice over overlapping windows
// feeds overlapping readings into the baselines twice.
func (p *Pipeline) RunInference(ctx context.Context, participantID string, windowSeconds int) (*AffectState, error) {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	end := p.clock.Now().UTC()
	start := end.Add(-time.Duration(windowSeconds) * time.Second)

	readings, err := p.readings.ReadingsInWindow(ctx, participantID, nil, start, end)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &TimeoutError{Stage: "reading fetch", Err: err}
		}
		return nil, fmt.Errorf("fetch readings for %s: %w", participantID, err)
	}

	fv, err := ExtractFeatures(participantID, start, end, readings)
	if err != nil {
		return nil, err
	}

	// Stable iteration order keeps runs deterministic and test output
	// reproducible.
	deviations := make(map[string]float64, len(fv.Features))
	sampleCounts := make(map[string]int64, len(fv.Features))
	for _, feature := range KnownFeatures {
		value, ok := fv.Features[feature]
		if !ok {
			continue
		}
		score, err := p.tracker.UpdateAndScore(ctx, participantID, feature, value)
		if err != nil {
			return nil, err
		}
		deviations[feature] = score

		b, err := p.tracker.Snapshot(ctx, participantID, feature)
		if err != nil {
			return nil, err
		}
		if b != nil {
			sampleCounts[feature] = b.SampleCount
		}
	}

	state := Score(ScoreInput{Vector: fv, Deviations: deviations, SampleCounts: sampleCounts}, p.params)
	state.ID = uuid.New().String()
	state.Timestamp = end

	if err := p.states.SaveAffectState(ctx, &state); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &TimeoutError{Stage: "affect state save", Err: err}
		}
		return nil, fmt.Errorf("save affect state for %s: %w", participantID, err)
	}

	log.Printf("[Pipeline] inference for %s: arousal=%.2f valence=%.2f stress=%.2f confidence=%.2f emotion=%s features=%d",
		participantID, state.Arousal, state.Valence, state.Stress, state.Confidence, state.Emotion, len(fv.Features))

	if p.onState != nil {
		p.onState(&state)
	}
	return &state, nil
}

// Latest returns the most recent stored state for a participant, or
// (nil, nil) when none exists. Reads are unordered with respect to
// concurrent inference runs; eventual consistency is acceptable here.
func (p *Pipeline) Latest(ctx context.Context, participantID string) (*AffectState, error) {
	return p.states.LatestAffectState(ctx, participantID)
}

// History returns stored states for a participant in [since, until],
// newest first, capped at limit.
func (p *Pipeline) History(ctx context.Context, participantID string, since, until time.Time, limit int) ([]AffectState, error) {
	return p.states.AffectHistory(ctx, participantID, since, until, limit)
}
