package affect

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/halcyon-health/affect.report/internal/timeutil"
)

// DefaultSweepWorkers bounds how many participants one sweep processes
// concurrently.
const DefaultSweepWorkers = 4

// SweeperConfig contains configuration for the inference sweeper.
type SweeperConfig struct {
	Pipeline *Pipeline
	// Interval is the sweep cadence. Keep it at or above the inference
	// window: a shorter cadence re-feeds overlapping readings into the
	// baselines, which are not idempotent per reading.
	Interval time.Duration
	// Timeout bounds each participant's inference run.
	Timeout time.Duration
	// Workers caps concurrent runs per sweep. Zero or negative uses
	// DefaultSweepWorkers.
	Workers int
	// Clock is optional; nil uses the real clock.
	Clock timeutil.Clock
}

// Sweeper runs periodic inference passes over participants flagged as
// having fresh readings. Ingest paths call MarkDirty; each sweep drains
// the dirty set and runs inference for every flagged participant, bounded
// by a worker cap so a large cohort cannot exhaust the process.
type Sweeper struct {
	pipeline *Pipeline
	interval time.Duration
	timeout  time.Duration
	workers  int
	clock    timeutil.Clock

	mu      sync.Mutex
	dirty   map[string]struct{}
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweeper creates a sweeper. It does not start sweeping until Run is
// called.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultSweepWorkers
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Sweeper{
		pipeline: cfg.Pipeline,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		workers:  workers,
		clock:    clock,
		dirty:    make(map[string]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// MarkDirty flags a participant for the next sweep. Safe for concurrent
// use; marking an already-dirty participant is a no-op.
func (s *Sweeper) MarkDirty(participantID string) {
	if participantID == "" {
		return
	}
	s.mu.Lock()
	s.dirty[participantID] = struct{}{}
	s.mu.Unlock()
}

// DirtyCount returns how many participants await the next sweep.
func (s *Sweeper) DirtyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty)
}

// Run starts the periodic sweep loop. It blocks until the context is
// cancelled or Stop is called. Returns nil on clean shutdown.
func (s *Sweeper) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	defer func() {
		close(s.doneCh)
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.interval <= 0 {
		log.Printf("[Sweeper] interval is zero or negative, not starting")
		return nil
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[Sweeper] started: interval=%v workers=%d", s.interval, s.workers)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Sweeper] stopping due to context cancellation")
			return nil
		case <-s.stopCh:
			log.Printf("[Sweeper] stopping due to Stop() call")
			return nil
		case <-ticker.C():
			s.SweepNow(ctx)
		}
	}
}

// Stop requests the sweeper to stop and waits for the loop to exit. Safe
// to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()

	<-s.doneCh
}

// IsRunning returns whether the sweep loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SweepNow drains the dirty set and runs one inference pass for each
// flagged participant, at most workers at a time. It blocks until the
// pass completes. Participants whose runs fail transiently (timeout,
// store unavailable) are re-flagged for the next sweep; empty windows are
// dropped, the readings that flagged them have aged out.
func (s *Sweeper) SweepNow(ctx context.Context) {
	s.mu.Lock()
	if len(s.dirty) == 0 {
		s.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	s.dirty = make(map[string]struct{})
	s.mu.Unlock()

	start := s.clock.Now()
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, id := range ids {
		select {
		case <-ctx.Done():
			// Re-flag everything not yet started so no participant is lost.
			s.MarkDirty(id)
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(participantID string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runOne(ctx, participantID)
		}(id)
	}
	wg.Wait()

	log.Printf("[Sweeper] swept %d participants in %v", len(ids), s.clock.Since(start))
}

func (s *Sweeper) runOne(ctx context.Context, participantID string) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err := s.pipeline.RunInference(ctx, participantID, 0)
	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientData):
		// The flagging readings no longer fall inside the window. Normal
		// after idle periods; nothing to retry.
		log.Printf("[Sweeper] %s: window empty, skipping", participantID)
	default:
		log.Printf("[Sweeper] inference for %s failed: %v", participantID, err)
		s.MarkDirty(participantID)
	}
}
