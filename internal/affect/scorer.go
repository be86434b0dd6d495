package affect

import "math"

// Dimension names used in weight tables and API payloads.
const (
	DimArousal = "arousal"
	DimValence = "valence"
	DimStress  = "stress"
)

// WeightTable maps each affect dimension to the features it draws from and
// their signed weights. The table is operator-visible configuration, never a
// hidden constant: it is loaded from the tuning file and served read-only
// over the API.
type WeightTable map[string]map[string]float64

// DefaultWeightTable mirrors the stock scoring model. Arousal rises with
// heart rate, its short-term trend, movement and breathing. Valence tracks
// vagal tone (RMSSD) and sleep, pulled down by elevated heart rate. Stress
// is dominated by suppressed HRV with sympathetic correlates on top.
func DefaultWeightTable() WeightTable {
	return WeightTable{
		DimArousal: {
			FeatureHRMean:        3.0,
			FeatureHRSlope:       1.0,
			FeatureActivityLevel: 1.5,
			FeatureBreathingRate: 1.0,
		},
		DimValence: {
			FeatureHRVRMSSD:        2.0,
			FeatureSleepEfficiency: 1.5,
			FeatureHRMean:          -1.0,
			FeatureSpO2Mean:        0.5,
		},
		DimStress: {
			FeatureHRVRMSSD:      -3.0,
			FeatureHRMean:        2.0,
			FeatureBreathingRate: 2.0,
			FeatureSkinTempMean:  1.0,
		},
	}
}

// ScorerParams configure the mapping from deviation scores to affect
// dimensions and the confidence model.
type ScorerParams struct {
	Weights WeightTable

	// ZMax is the deviation magnitude treated as full-scale; it should
	// match the tracker's clamp bound so a maximally deviant feature set
	// saturates the dimension exactly.
	ZMax float64

	// MatureSamples is the baseline sample count at which a feature's
	// history stops penalizing confidence.
	MatureSamples int64

	// CoverageExponent and MaturityExponent shape how hard missing
	// features and young baselines pull confidence down.
	CoverageExponent float64
	MaturityExponent float64

	// EmotionEnabled switches discrete labeling on. EmotionMaxDistance is
	// the furthest a (arousal, valence) point may sit from the nearest
	// taxonomy centroid and still take its label.
	EmotionEnabled     bool
	EmotionMaxDistance float64
	EmotionCentroids   []EmotionCentroid
}

// DefaultScorerParams returns the stock scoring configuration.
func DefaultScorerParams() ScorerParams {
	return ScorerParams{
		Weights:            DefaultWeightTable(),
		ZMax:               5,
		MatureSamples:      50,
		CoverageExponent:   1,
		MaturityExponent:   1,
		EmotionEnabled:     true,
		EmotionMaxDistance: 1.5,
		EmotionCentroids:   DefaultEmotionCentroids(),
	}
}

// ScoreInput carries one inference run's evidence into the scorer: the
// window summary, each present feature's clamped deviation from its
// personal baseline, and each contributing baseline's sample count.
type ScoreInput struct {
	Vector       *FeatureVector
	Deviations   map[string]float64
	SampleCounts map[string]int64
}

// Score combines per-feature deviations into the affect dimensions, the
// optional discrete emotion, and a confidence estimate.
//
// Each dimension is a weighted sum over the features present in the window,
// renormalized by the absolute weight mass of those same present features so
// the output scale does not depend on how many features happened to be
// available. Missing features simply drop out. All outputs are clamped
// in-bounds; saturation is normal operation, not an error.
func Score(in ScoreInput, params ScorerParams) AffectState {
	arousalRaw := weightedDimension(in.Deviations, params.Weights[DimArousal], params.ZMax)
	valenceRaw := weightedDimension(in.Deviations, params.Weights[DimValence], params.ZMax)
	stressRaw := weightedDimension(in.Deviations, params.Weights[DimStress], params.ZMax)

	state := AffectState{
		ParticipantID: in.Vector.ParticipantID,
		Arousal:       Clamp(arousalRaw, ArousalMin, ArousalMax),
		Valence:       Clamp(valenceRaw, ValenceMin, ValenceMax),
		// Stress is reported on [0, 1]; the signed score's zero point
		// (all features at personal norm) maps to 0.5.
		Stress:               Clamp((stressRaw+1)/2, StressMin, StressMax),
		Confidence:           confidence(in, params),
		WindowStart:          in.Vector.WindowStart,
		WindowEnd:            in.Vector.WindowEnd,
		ContributingFeatures: copyFloats(in.Deviations),
	}

	if params.EmotionEnabled {
		state.Emotion = NearestEmotion(state.Arousal, state.Valence, params.EmotionCentroids, params.EmotionMaxDistance)
	}
	return state
}

// weightedDimension computes one dimension's raw score on roughly [-1, 1].
// Only features present in deviations participate; the denominator is the
// absolute weight mass of those present features times the full-scale
// deviation, so coverage changes shift evidence, not scale. No weighted
// feature present means no evidence: the dimension reads 0.
func weightedDimension(deviations map[string]float64, weights map[string]float64, zMax float64) float64 {
	if zMax <= 0 {
		zMax = 5
	}
	var num, mass float64
	for feature, w := range weights {
		z, ok := deviations[feature]
		if !ok || w == 0 {
			continue
		}
		num += w * z
		mass += math.Abs(w)
	}
	if mass == 0 {
		return 0
	}
	return num / (mass * zMax)
}

// confidence is coverage^p times maturity^q. Coverage is the fraction of
// the model's feature universe observed in this window; maturity averages
// how established the contributing baselines are. Sparse windows and young
// baselines both lower confidence deterministically; nothing can raise it
// past 1.
func confidence(in ScoreInput, params ScorerParams) float64 {
	universe := params.Weights.featureUniverse()
	if len(universe) == 0 {
		return 0
	}
	present := 0
	for _, f := range universe {
		if in.Vector.Has(f) {
			present++
		}
	}
	coverage := float64(present) / float64(len(universe))

	maturity := 1.0
	if len(in.SampleCounts) > 0 {
		mature := params.MatureSamples
		if mature <= 0 {
			mature = 50
		}
		sum := 0.0
		n := 0
		for f, count := range in.SampleCounts {
			if !in.Vector.Has(f) {
				continue
			}
			sum += math.Min(1, float64(count)/float64(mature))
			n++
		}
		if n > 0 {
			maturity = sum / float64(n)
		} else {
			maturity = 0
		}
	} else {
		maturity = 0
	}

	p := params.CoverageExponent
	if p <= 0 {
		p = 1
	}
	q := params.MaturityExponent
	if q <= 0 {
		q = 1
	}
	return Clamp(math.Pow(coverage, p)*math.Pow(maturity, q), 0, 1)
}

// featureUniverse returns the sorted-by-first-use set of features any
// dimension draws on.
func (w WeightTable) featureUniverse() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range KnownFeatures {
		for _, dim := range []string{DimArousal, DimValence, DimStress} {
			if wt, ok := w[dim][f]; ok && wt != 0 && !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
