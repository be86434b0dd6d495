package affect

import (
	"sort"

	"github.com/halcyon-health/affect.report/internal/config"
)

// TrackerParamsFromTuning builds TrackerParams from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func TrackerParamsFromTuning(cfg *config.TuningConfig) TrackerParams {
	p := TrackerParams{
		DefaultHalfLife: cfg.GetBaselineHalfLife(),
		Epsilon:         cfg.GetDeviationEpsilon(),
		ClampMin:        cfg.GetDeviationClampMin(),
		ClampMax:        cfg.GetDeviationClampMax(),
	}
	if len(cfg.HalfLifeByFeature) > 0 {
		p.HalfLifeByFeature = make(map[string]float64, len(cfg.HalfLifeByFeature))
		for f, hl := range cfg.HalfLifeByFeature {
			p.HalfLifeByFeature[f] = hl
		}
	}
	return p
}

// ScorerParamsFromTuning builds ScorerParams from a loaded TuningConfig.
// A nil dimension_weights or emotion_centroids table in the config means
// the built-in tables apply. ZMax is tied to the tracker clamp bound so a
// fully saturated deviation maps to a full-scale dimension.
func ScorerParamsFromTuning(cfg *config.TuningConfig) ScorerParams {
	p := ScorerParams{
		Weights:            weightTableFromTuning(cfg),
		ZMax:               cfg.GetDeviationClampMax(),
		MatureSamples:      cfg.GetMatureSampleCount(),
		CoverageExponent:   cfg.GetCoverageExponent(),
		MaturityExponent:   cfg.GetMaturityExponent(),
		EmotionEnabled:     cfg.GetEmotionEnabled(),
		EmotionMaxDistance: cfg.GetEmotionMaxDistance(),
		EmotionCentroids:   centroidsFromTuning(cfg),
	}
	return p
}

func weightTableFromTuning(cfg *config.TuningConfig) WeightTable {
	if len(cfg.DimensionWeights) == 0 {
		return DefaultWeightTable()
	}
	table := make(WeightTable, len(cfg.DimensionWeights))
	for dim, weights := range cfg.DimensionWeights {
		row := make(map[string]float64, len(weights))
		for f, w := range weights {
			row[f] = w
		}
		table[dim] = row
	}
	return table
}

// centroidsFromTuning converts the configured centroid map into the ordered
// slice the classifier uses. Map iteration order is not stable, so labels
// are sorted to keep nearest-distance ties deterministic across restarts.
func centroidsFromTuning(cfg *config.TuningConfig) []EmotionCentroid {
	if len(cfg.EmotionCentroids) == 0 {
		return DefaultEmotionCentroids()
	}
	labels := make([]string, 0, len(cfg.EmotionCentroids))
	for label := range cfg.EmotionCentroids {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	out := make([]EmotionCentroid, 0, len(labels))
	for _, label := range labels {
		pt := cfg.EmotionCentroids[label]
		out = append(out, EmotionCentroid{
			Label:   EmotionLabel(label),
			Arousal: pt.Arousal,
			Valence: pt.Valence,
		})
	}
	return out
}
