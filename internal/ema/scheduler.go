// Package ema schedules ecological momentary assessment prompts: short
// in-the-moment self-report requests used to calibrate inferred affect
// against what participants actually say they feel. The scheduler decides
// WHEN a prompt is due and records it; delivering the prompt to a device
// is someone else's job.
package ema

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/store"
	"github.com/halcyon-health/affect.report/internal/timeutil"
	"github.com/halcyon-health/affect.report/internal/units"
)

// PromptStore is the slice of the store the scheduler needs: the prompt
// log plus the participant roster with its timezones.
type PromptStore interface {
	RecordPrompt(ctx context.Context, promptID, participantID, reason string, at time.Time) error
	CountPromptsSince(ctx context.Context, participantID string, since time.Time) (int, error)
	LastPromptAt(ctx context.Context, participantID string) (time.Time, error)
	GetAllParticipants(ctx context.Context) ([]store.Participant, error)
	GetParticipant(ctx context.Context, participantID string) (*store.Participant, error)
}

// Prompt is one recorded prompt decision.
type Prompt struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Reason        string    `json:"reason"`
	At            time.Time `json:"at"`
}

// SchedulerConfig configures prompt cadence and guards.
type SchedulerConfig struct {
	Store PromptStore
	// Slots are daily prompt times as "HH:MM" in each participant's local
	// timezone.
	Slots []string
	// StressThreshold triggers an extra prompt when an inferred state's
	// stress reaches it.
	StressThreshold float64
	// MinGap is the minimum spacing between any two prompts to the same
	// participant, whatever their reasons.
	MinGap time.Duration
	// DailyCap bounds prompts per participant per local day.
	DailyCap int
	// CheckInterval is how often slot boundaries are checked. Zero uses a
	// minute.
	CheckInterval time.Duration
	// Clock is optional; nil uses the real clock.
	Clock timeutil.Clock
}

type slotTime struct {
	hour   int
	minute int
	label  string
}

// Scheduler fires prompts on fixed local-time slots and on stress spikes,
// subject to a minimum gap and a daily cap. All time arithmetic happens in
// the participant's own timezone so a 09:00 slot means their morning.
type Scheduler struct {
	store           PromptStore
	slots           []slotTime
	stressThreshold float64
	minGap          time.Duration
	dailyCap        int
	checkInterval   time.Duration
	clock           timeutil.Clock

	// onPrompt, when set, observes every recorded prompt. Set before Run.
	onPrompt func(Prompt)

	mu        sync.Mutex
	lastCheck map[string]time.Time
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewScheduler builds a scheduler. Slot strings must be pre-validated
// "HH:MM"; entries that fail to parse are skipped with a log line.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	checkInterval := cfg.CheckInterval
	if checkInterval <= 0 {
		checkInterval = time.Minute
	}

	var slots []slotTime
	for _, s := range cfg.Slots {
		parsed, err := time.Parse("15:04", s)
		if err != nil {
			log.Printf("[EMA] skipping malformed prompt slot %q: %v", s, err)
			continue
		}
		slots = append(slots, slotTime{hour: parsed.Hour(), minute: parsed.Minute(), label: s})
	}

	return &Scheduler{
		store:           cfg.Store,
		slots:           slots,
		stressThreshold: cfg.StressThreshold,
		minGap:          cfg.MinGap,
		dailyCap:        cfg.DailyCap,
		checkInterval:   checkInterval,
		clock:           clock,
		lastCheck:       make(map[string]time.Time),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// OnPrompt registers a hook called for each recorded prompt.
func (s *Scheduler) OnPrompt(fn func(Prompt)) { s.onPrompt = fn }

// Run starts the slot-checking loop. It blocks until the context is
// cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
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

	ticker := s.clock.NewTicker(s.checkInterval)
	defer ticker.Stop()

	log.Printf("[EMA] prompt scheduler started: %d slots, stress threshold %.2f, min gap %v, daily cap %d",
		len(s.slots), s.stressThreshold, s.minGap, s.dailyCap)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[EMA] scheduler stopping due to context cancellation")
			return nil
		case <-s.stopCh:
			log.Printf("[EMA] scheduler stopping due to Stop() call")
			return nil
		case <-ticker.C():
			s.CheckSlots(ctx)
		}
	}
}

// Stop requests the scheduler to stop and waits for the loop to exit.
func (s *Scheduler) Stop() {
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

// IsRunning returns whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CheckSlots examines every enrolled participant for slot boundaries
// crossed since the previous check. The first check of a participant only
// establishes the reference point: restarting the service does not replay
// the day's slots.
func (s *Scheduler) CheckSlots(ctx context.Context) {
	now := s.clock.Now()
	participants, err := s.store.GetAllParticipants(ctx)
	if err != nil {
		log.Printf("[EMA] failed to load roster: %v", err)
		return
	}

	for _, p := range participants {
		s.checkParticipantSlots(ctx, p, now)
	}
}

func (s *Scheduler) checkParticipantSlots(ctx context.Context, p store.Participant, now time.Time) {
	s.mu.Lock()
	last, seen := s.lastCheck[p.ParticipantID]
	s.lastCheck[p.ParticipantID] = now
	s.mu.Unlock()

	if !seen {
		return
	}

	loc := units.LocationFor(p.Timezone)
	localNow := now.In(loc)

	for _, slot := range s.slots {
		slotAt := time.Date(localNow.Year(), localNow.Month(), localNow.Day(),
			slot.hour, slot.minute, 0, 0, loc)
		if slotAt.After(last.In(loc)) && !slotAt.After(localNow) {
			s.maybePrompt(ctx, p.ParticipantID, loc, "slot "+slot.label, now)
		}
	}
}

// HandleState reacts to a freshly inferred state, prompting when stress
// crosses the threshold. Suitable as a pipeline OnState fan-out target.
func (s *Scheduler) HandleState(state *affect.AffectState) {
	if state == nil || state.Stress < s.stressThreshold {
		return
	}

	ctx := context.Background()
	p, err := s.store.GetParticipant(ctx, state.ParticipantID)
	if err != nil {
		log.Printf("[EMA] stress prompt for unknown participant %s: %v", state.ParticipantID, err)
		return
	}

	loc := units.LocationFor(p.Timezone)
	s.maybePrompt(ctx, state.ParticipantID, loc, fmt.Sprintf("stress %.2f", state.Stress), s.clock.Now())
}

// maybePrompt records a prompt unless the minimum gap or the daily cap
// forbids it. Returns whether a prompt was recorded.
func (s *Scheduler) maybePrompt(ctx context.Context, participantID string, loc *time.Location, reason string, now time.Time) bool {
	last, err := s.store.LastPromptAt(ctx, participantID)
	if err != nil {
		log.Printf("[EMA] failed to read prompt log for %s: %v", participantID, err)
		return false
	}
	if !last.IsZero() && now.Sub(last) < s.minGap {
		return false
	}

	if s.dailyCap > 0 {
		localNow := now.In(loc)
		midnight := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
		count, err := s.store.CountPromptsSince(ctx, participantID, midnight)
		if err != nil {
			log.Printf("[EMA] failed to count prompts for %s: %v", participantID, err)
			return false
		}
		if count >= s.dailyCap {
			return false
		}
	}

	prompt := Prompt{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		Reason:        reason,
		At:            now,
	}
	if err := s.store.RecordPrompt(ctx, prompt.ID, participantID, reason, now); err != nil {
		log.Printf("[EMA] failed to record prompt for %s: %v", participantID, err)
		return false
	}

	log.Printf("[EMA] prompting %s (%s)", participantID, reason)
	if s.onPrompt != nil {
		s.onPrompt(prompt)
	}
	return true
}
