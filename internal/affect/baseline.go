package affect

import (
	"context"
	"math"
	"sync"

	"github.com/halcyon-health/affect.report/internal/timeutil"
)

// BaselineStore is the persistence contract for baselines. Get returns
// (nil, nil) when no baseline exists yet for the key. Put must be atomic:
// either the whole record lands or nothing does.
type BaselineStore interface {
	GetBaseline(ctx context.Context, participantID, featureName string) (*Baseline, error)
	PutBaseline(ctx context.Context, b *Baseline) error
}

// TrackerParams tune the EWMA baseline update. Half-lives are measured in
// observations: after that many updates an old observation's weight has
// decayed to one half. Features adapt at different natural timescales, so
// each may override the default.
type TrackerParams struct {
	DefaultHalfLife   float64
	HalfLifeByFeature map[string]float64

	// Epsilon floors the variance in the deviation denominator so a flat
	// baseline cannot divide by zero.
	Epsilon float64

	// ClampMin and ClampMax bound deviation scores before they reach the
	// scorer, so one outlier reading cannot produce an unbounded affect
	// score.
	ClampMin float64
	ClampMax float64
}

// DefaultTrackerParams returns the stock tuning: half-life of 60
// observations (a few hours to days depending on cadence), variance floor
// 1e-6, deviations clamped to [-5, 5].
func DefaultTrackerParams() TrackerParams {
	return TrackerParams{
		DefaultHalfLife: 60,
		Epsilon:         1e-6,
		ClampMin:        -5,
		ClampMax:        5,
	}
}

// alphaFor converts the feature's half-life into the EWMA smoothing factor.
func (p TrackerParams) alphaFor(featureName string) float64 {
	hl := p.DefaultHalfLife
	if v, ok := p.HalfLifeByFeature[featureName]; ok && v > 0 {
		hl = v
	}
	if hl <= 0 {
		hl = 60
	}
	return 1 - math.Pow(0.5, 1/hl)
}

type baselineKey struct {
	participantID string
	featureName   string
}

// Tracker maintains per-participant, per-feature EWMA baselines and turns
// new observations into standardized deviation scores.
//
// Updates to the same (participant, feature) pair are serialized through a
// per-key lock so concurrent observations cannot lose updates; different
// keys proceed fully in parallel. The store is the only state: the tracker
// caches nothing, so a failed persist leaves the baseline untouched.
//
// EWMA is not idempotent per reading, so callers must deliver each reading
// into the update path at most once.
type Tracker struct {
	store  BaselineStore
	params TrackerParams
	clock  timeutil.Clock

	mu    sync.Mutex
	locks map[baselineKey]*sync.Mutex
}

// NewTracker builds a Tracker over the given store. A nil clock uses the
// real one.
func NewTracker(store BaselineStore, params TrackerParams, clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{
		store:  store,
		params: params,
		clock:  clock,
		locks:  make(map[baselineKey]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing one (participant, feature) pair,
// creating it on first use.
func (t *Tracker) keyLock(k baselineKey) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[k]
	if !ok {
		l = &sync.Mutex{}
		t.locks[k] = l
	}
	return l
}

// UpdateAndScore folds a new observation into the feature's baseline,
// persists the updated baseline, and returns the observation's deviation
// from the pre-existing norm as a clamped z-score-like quantity.
//
// The first observation for a key initializes the baseline (mean = value,
// variance = 0, sample count = 1) and scores 0: a single sample carries no
// deviation information.
//
// Persistence failures surface as *BaselinePersistenceError and leave the
// stored baseline unchanged. Context cancellation surfaces as *TimeoutError.
func (t *Tracker) UpdateAndScore(ctx context.Context, participantID, featureName string, value float64) (float64, error) {
	k := baselineKey{participantID: participantID, featureName: featureName}
	l := t.keyLock(k)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, &TimeoutError{Stage: "baseline update", Err: err}
	}

	prior, err := t.store.GetBaseline(ctx, participantID, featureName)
	if err != nil {
		if ctx.Err() != nil {
			return 0, &TimeoutError{Stage: "baseline get", Err: err}
		}
		return 0, &BaselinePersistenceError{ParticipantID: participantID, FeatureName: featureName, Op: "get", Err: err}
	}

	var next Baseline
	var score float64
	if prior == nil {
		next = Baseline{
			ParticipantID: participantID,
			FeatureName:   featureName,
			Mean:          value,
			Variance:      0,
			SampleCount:   1,
			LastUpdated:   t.clock.Now().UTC(),
		}
		score = 0
	} else {
		alpha := t.params.alphaFor(featureName)
		mean := alpha*value + (1-alpha)*prior.Mean
		diff := value - mean
		variance := alpha*diff*diff + (1-alpha)*prior.Variance
		next = Baseline{
			ParticipantID: participantID,
			FeatureName:   featureName,
			Mean:          mean,
			Variance:      variance,
			SampleCount:   prior.SampleCount + 1,
			LastUpdated:   t.clock.Now().UTC(),
		}
		score = diff / math.Sqrt(math.Max(variance, t.params.Epsilon))
		score = Clamp(score, t.params.ClampMin, t.params.ClampMax)
	}

	if err := t.store.PutBaseline(ctx, &next); err != nil {
		if ctx.Err() != nil {
			return 0, &TimeoutError{Stage: "baseline put", Err: err}
		}
		return 0, &BaselinePersistenceError{ParticipantID: participantID, FeatureName: featureName, Op: "put", Err: err}
	}

	return score, nil
}

// Snapshot returns the stored baseline for a key without updating it, or
// (nil, nil) when none exists.
func (t *Tracker) Snapshot(ctx context.Context, participantID, featureName string) (*Baseline, error) {
	b, err := t.store.GetBaseline(ctx, participantID, featureName)
	if err != nil {
		return nil, &BaselinePersistenceError{ParticipantID: participantID, FeatureName: featureName, Op: "get", Err: err}
	}
	return b, nil
}
