package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/units"
)

// newTestStore opens a migrated store on a throwaway file. Each test gets
// its own database; WAL sidecar files land in the temp dir and go with it.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// makeReading builds a reading with a fresh ID for insert tests.
func makeReading(participantID string, metric affect.MetricType, value float64, at time.Time) affect.SensorReading {
	return affect.SensorReading{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		MetricType:    metric,
		Value:         value,
		Unit:          units.Canonical(metric),
		Timestamp:     at,
	}
}

// makeState builds an affect state with a fresh ID covering the window
// ending at `end`.
func makeState(participantID string, end time.Time, window time.Duration) affect.AffectState {
	return affect.AffectState{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Arousal:       0.2,
		Valence:       -0.1,
		Stress:        0.55,
		Emotion:       affect.EmotionCalm,
		Confidence:    0.8,
		Timestamp:     end,
		WindowStart:   end.Add(-window),
		WindowEnd:     end,
		ContributingFeatures: map[string]float64{
			"heart_rate_mean": 0.4,
		},
	}
}
