package affect

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/halcyon-health/affect.report/internal/config"
)

func TestTrackerParamsFromTuningDefaults(t *testing.T) {
	t.Parallel()

	got := TrackerParamsFromTuning(config.EmptyTuningConfig())

	assert.Equal(t, DefaultTrackerParams().DefaultHalfLife, got.DefaultHalfLife)
	assert.Equal(t, DefaultTrackerParams().Epsilon, got.Epsilon)
	assert.Equal(t, DefaultTrackerParams().ClampMin, got.ClampMin)
	assert.Equal(t, DefaultTrackerParams().ClampMax, got.ClampMax)
	assert.Nil(t, got.HalfLifeByFeature)
}

func TestTrackerParamsFromTuningOverrides(t *testing.T) {
	t.Parallel()

	cfg := config.EmptyTuningConfig()
	hl := 30.0
	clampMax := 4.0
	cfg.BaselineHalfLife = &hl
	cfg.DeviationClampMax = &clampMax
	cfg.HalfLifeByFeature = map[string]float64{FeatureSleepEfficiency: 240}

	got := TrackerParamsFromTuning(cfg)

	assert.Equal(t, 30.0, got.DefaultHalfLife)
	assert.Equal(t, 4.0, got.ClampMax)
	assert.Equal(t, 240.0, got.HalfLifeByFeature[FeatureSleepEfficiency])

	// The converter copies the map rather than aliasing the config.
	cfg.HalfLifeByFeature[FeatureSleepEfficiency] = 1
	assert.Equal(t, 240.0, got.HalfLifeByFeature[FeatureSleepEfficiency])
}

func TestScorerParamsFromTuningDefaults(t *testing.T) {
	t.Parallel()

	got := ScorerParamsFromTuning(config.EmptyTuningConfig())
	want := DefaultScorerParams()

	if diff := cmp.Diff(want.Weights, got.Weights); diff != "" {
		t.Errorf("weight table mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want.ZMax, got.ZMax)
	assert.Equal(t, want.MatureSamples, got.MatureSamples)
	assert.Equal(t, want.EmotionEnabled, got.EmotionEnabled)
	assert.Equal(t, want.EmotionMaxDistance, got.EmotionMaxDistance)
	if diff := cmp.Diff(want.EmotionCentroids, got.EmotionCentroids); diff != "" {
		t.Errorf("centroid mismatch (-want +got):\n%s", diff)
	}
}

func TestScorerParamsFromTuningCustomTables(t *testing.T) {
	t.Parallel()

	cfg := config.EmptyTuningConfig()
	cfg.DimensionWeights = map[string]map[string]float64{
		DimArousal: {FeatureHRMean: 1},
	}
	cfg.EmotionCentroids = map[string]config.CentroidPoint{
		"tense":   {Arousal: 0.5, Valence: -0.5},
		"at_ease": {Arousal: -0.5, Valence: 0.5},
	}

	got := ScorerParamsFromTuning(cfg)

	assert.Equal(t, WeightTable{DimArousal: {FeatureHRMean: 1.0}}, got.Weights)

	// Centroids come back sorted by label for deterministic tie-breaks.
	want := []EmotionCentroid{
		{Label: "at_ease", Arousal: -0.5, Valence: 0.5},
		{Label: "tense", Arousal: 0.5, Valence: -0.5},
	}
	if diff := cmp.Diff(want, got.EmotionCentroids); diff != "" {
		t.Errorf("centroid mismatch (-want +got):\n%s", diff)
	}
}

func TestScorerZMaxTracksClampBound(t *testing.T) {
	t.Parallel()

	cfg := config.EmptyTuningConfig()
	clampMax := 3.0
	cfg.DeviationClampMax = &clampMax

	got := ScorerParamsFromTuning(cfg)
	assert.Equal(t, 3.0, got.ZMax)
}
