// Package ingest funnels readings from every transport (HTTP, UDP
// datagrams, serial lines) through one path: validate, normalise units,
// persist, evaluate monitoring rules, and flag the participant for the
// next inference sweep.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/monitoring"
	"github.com/halcyon-health/affect.report/internal/rules"
	"github.com/halcyon-health/affect.report/internal/timeutil"
	"github.com/halcyon-health/affect.report/internal/units"
)

// ErrInvalid marks readings rejected by validation, as opposed to
// persistence failures. Callers branch on it with errors.Is.
var ErrInvalid = errors.New("invalid reading")

// ReadingStore is the slice of the store the processor writes through.
type ReadingStore interface {
	InsertReading(ctx context.Context, r *affect.SensorReading) error
	InsertReadings(ctx context.Context, readings []affect.SensorReading) error
	InsertAlerts(ctx context.Context, alerts []affect.Alert) error
}

// Stats counts processor activity since startup.
type Stats struct {
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
	Alerts   int64 `json:"alerts"`
}

// Processor is the shared ingest path. Construction wires the store and
// rule engine; the optional hooks fan accepted work out to the sweep
// scheduler and the live stream without the processor knowing either.
type Processor struct {
	store  ReadingStore
	engine *rules.Engine
	clock  timeutil.Clock

	// onDirty and onAlert must be set before readings start flowing;
	// they are not guarded for concurrent reassignment.
	onDirty func(participantID string)
	onAlert func(*affect.Alert)

	accepted   atomic.Int64
	rejected   atomic.Int64
	alertCount atomic.Int64
}

// NewProcessor builds a processor. A nil clock uses the real one; a nil
// engine disables rule evaluation.
func NewProcessor(store ReadingStore, engine *rules.Engine, clock timeutil.Clock) *Processor {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Processor{
		store:  store,
		engine: engine,
		clock:  clock,
	}
}

// OnDirty registers a hook called once per accepted reading whose metric
// contributes features, with the participant ID.
func (p *Processor) OnDirty(fn func(participantID string)) { p.onDirty = fn }

// OnAlert registers a hook called for each alert a reading raises, after
// the alert is persisted.
func (p *Processor) OnAlert(fn func(*affect.Alert)) { p.onAlert = fn }

// Stats returns a snapshot of processor counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Accepted: p.accepted.Load(),
		Rejected: p.rejected.Load(),
		Alerts:   p.alertCount.Load(),
	}
}

// prepare validates a reading and fills derived fields in place: ID when
// absent, timestamp when zero, and the value converted to the metric's
// canonical unit.
func (p *Processor) prepare(r *affect.SensorReading) error {
	if r.ParticipantID == "" {
		return fmt.Errorf("%w: missing participant_id", ErrInvalid)
	}
	if r.MetricType == "" {
		return fmt.Errorf("%w: missing metric_type", ErrInvalid)
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return fmt.Errorf("%w: value %v is not finite", ErrInvalid, r.Value)
	}
	if !units.IsValid(r.MetricType, r.Unit) {
		return fmt.Errorf("%w: unit %q is not valid for metric %s", ErrInvalid, r.Unit, r.MetricType)
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = p.clock.Now().UTC()
	}
	r.Value, r.Unit = units.Normalize(r.MetricType, r.Value, r.Unit)
	return nil
}

// Process ingests a single reading: validate, persist, rule-check, fan out.
// Validation failures are counted as rejected and returned to the caller;
// nothing is persisted for a rejected reading.
func (p *Processor) Process(ctx context.Context, r *affect.SensorReading) error {
	if err := p.prepare(r); err != nil {
		p.rejected.Add(1)
		return err
	}

	if err := p.store.InsertReading(ctx, r); err != nil {
		p.rejected.Add(1)
		return fmt.Errorf("failed to persist reading: %w", err)
	}
	p.accepted.Add(1)

	p.evaluateRules(ctx, []affect.SensorReading{*r})
	p.markDirty(*r)
	return nil
}

// ProcessBatch ingests a batch atomically: every reading must validate or
// the whole batch is rejected with an error naming the offending index.
// On success all readings are persisted in one transaction, then each is
// rule-checked.
func (p *Processor) ProcessBatch(ctx context.Context, readings []affect.SensorReading) error {
	if len(readings) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalid)
	}
	for i := range readings {
		if err := p.prepare(&readings[i]); err != nil {
			p.rejected.Add(int64(len(readings)))
			return fmt.Errorf("reading %d: %w", i, err)
		}
	}

	if err := p.store.InsertReadings(ctx, readings); err != nil {
		p.rejected.Add(int64(len(readings)))
		return fmt.Errorf("failed to persist batch: %w", err)
	}
	p.accepted.Add(int64(len(readings)))

	p.evaluateRules(ctx, readings)
	for _, r := range readings {
		p.markDirty(r)
	}
	return nil
}

// evaluateRules runs each reading through the engine and persists any
// alerts. Alert persistence failures are logged, never surfaced: the
// reading itself has already been accepted.
func (p *Processor) evaluateRules(ctx context.Context, readings []affect.SensorReading) {
	if p.engine == nil {
		return
	}

	var alerts []affect.Alert
	for _, r := range readings {
		alerts = append(alerts, p.engine.EvaluateReading(r)...)
	}
	if len(alerts) == 0 {
		return
	}

	if err := p.store.InsertAlerts(ctx, alerts); err != nil {
		monitoring.Logf("[Ingest] failed to persist %d alerts: %v", len(alerts), err)
		return
	}
	p.alertCount.Add(int64(len(alerts)))

	if p.onAlert != nil {
		for i := range alerts {
			p.onAlert(&alerts[i])
		}
	}
}

// markDirty flags the participant for the next sweep when the reading's
// metric can contribute features. Unknown metrics are stored and
// rule-checked but never trigger inference.
func (p *Processor) markDirty(r affect.SensorReading) {
	if p.onDirty == nil || !affect.IsKnownMetricType(r.MetricType) {
		return
	}
	p.onDirty(r.ParticipantID)
}
