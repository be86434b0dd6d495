package affect

import "math"

// EmotionCentroid anchors one taxonomy label in the (arousal, valence)
// plane. Slice order is the tie-break priority: when two centroids are
// exactly equidistant the earlier one wins.
type EmotionCentroid struct {
	Label   EmotionLabel `json:"label"`
	Arousal float64      `json:"arousal"`
	Valence float64      `json:"valence"`
}

// DefaultEmotionCentroids places the four stock categories on the
// circumplex: calm and content sit low-arousal positive, excited
// high-arousal positive, stressed high-arousal negative.
func DefaultEmotionCentroids() []EmotionCentroid {
	return []EmotionCentroid{
		{Label: EmotionCalm, Arousal: -0.6, Valence: 0.4},
		{Label: EmotionContent, Arousal: -0.2, Valence: 0.7},
		{Label: EmotionExcited, Arousal: 0.6, Valence: 0.5},
		{Label: EmotionStressed, Arousal: 0.6, Valence: -0.6},
	}
}

// NearestEmotion maps an (arousal, valence) point to the closest centroid's
// label by Euclidean distance. Returns EmotionNone when no centroids are
// configured or the nearest one is farther than maxDistance (the point sits
// in no-man's-land and labeling it would overclaim).
func NearestEmotion(arousal, valence float64, centroids []EmotionCentroid, maxDistance float64) EmotionLabel {
	best := EmotionNone
	bestDist := math.Inf(1)
	for _, c := range centroids {
		da := arousal - c.Arousal
		dv := valence - c.Valence
		d := math.Sqrt(da*da + dv*dv)
		if d < bestDist {
			bestDist = d
			best = c.Label
		}
	}
	if maxDistance > 0 && bestDist > maxDistance {
		return EmotionNone
	}
	return best
}
