package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// affectDimensions are the dimension names accepted in dimension_weights.
var affectDimensions = map[string]bool{
	"arousal": true,
	"valence": true,
	"stress":  true,
}

// CentroidPoint is an emotion centroid position on the arousal/valence plane.
type CentroidPoint struct {
	Arousal float64 `json:"arousal"`
	Valence float64 `json:"valence"`
}

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config endpoint so the same JSON can be
// used for both startup configuration and operator inspection.
//
// Scalar fields are pointers so a partial JSON file only overrides what
// it names. Map and slice fields treat nil as "use the built-in table".
type TuningConfig struct {
	// Inference window and scheduling
	WindowSeconds    *int    `json:"window_seconds,omitempty"`
	SweepInterval    *string `json:"sweep_interval,omitempty"` // duration string like "300s"
	InferenceTimeout *string `json:"inference_timeout,omitempty"`

	// Baseline tracker params
	BaselineHalfLife  *float64           `json:"baseline_half_life,omitempty"` // observations, not time
	HalfLifeByFeature map[string]float64 `json:"half_life_by_feature,omitempty"`
	DeviationEpsilon  *float64           `json:"deviation_epsilon,omitempty"`
	DeviationClampMin *float64           `json:"deviation_clamp_min,omitempty"`
	DeviationClampMax *float64           `json:"deviation_clamp_max,omitempty"`

	// Affect scorer params
	DimensionWeights  map[string]map[string]float64 `json:"dimension_weights,omitempty"`
	MatureSampleCount *int64                        `json:"mature_sample_count,omitempty"`
	CoverageExponent  *float64                      `json:"coverage_exponent,omitempty"`
	MaturityExponent  *float64                      `json:"maturity_exponent,omitempty"`

	// Emotion classification params
	EmotionEnabled     *bool                    `json:"emotion_enabled,omitempty"`
	EmotionMaxDistance *float64                 `json:"emotion_max_distance,omitempty"`
	EmotionCentroids   map[string]CentroidPoint `json:"emotion_centroids,omitempty"`

	// EMA prompt scheduling params
	EMAPromptSlots     []string `json:"ema_prompt_slots,omitempty"` // "HH:MM" local times
	EMAStressThreshold *float64 `json:"ema_stress_threshold,omitempty"`
	EMAMinPromptGap    *string  `json:"ema_min_prompt_gap,omitempty"` // duration string like "2h"
	EMADailyPromptCap  *int     `json:"ema_daily_prompt_cap,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every scalar field
// populated with its default value. Weight and centroid maps stay nil,
// which means the built-in tables apply.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		WindowSeconds:      ptrInt(300),
		SweepInterval:      ptrString("300s"),
		InferenceTimeout:   ptrString("10s"),
		BaselineHalfLife:   ptrFloat64(60),
		DeviationEpsilon:   ptrFloat64(1e-6),
		DeviationClampMin:  ptrFloat64(-5),
		DeviationClampMax:  ptrFloat64(5),
		MatureSampleCount:  ptrInt64(50),
		CoverageExponent:   ptrFloat64(1.0),
		MaturityExponent:   ptrFloat64(1.0),
		EmotionEnabled:     ptrBool(true),
		EmotionMaxDistance: ptrFloat64(1.5),
		EMAPromptSlots:     []string{"09:00", "12:00", "15:00", "18:00", "21:00"},
		EMAStressThreshold: ptrFloat64(0.65),
		EMAMinPromptGap:    ptrString("2h"),
		EMADailyPromptCap:  ptrInt(8),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Refuse oversized files before reading them in.
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/affect/ and siblings
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.WindowSeconds != nil && *c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %d", *c.WindowSeconds)
	}

	// Validate SweepInterval can be parsed if set
	if c.SweepInterval != nil && *c.SweepInterval != "" {
		if _, err := time.ParseDuration(*c.SweepInterval); err != nil {
			return fmt.Errorf("invalid sweep_interval '%s': %w", *c.SweepInterval, err)
		}
	}

	// Validate InferenceTimeout can be parsed if set
	if c.InferenceTimeout != nil && *c.InferenceTimeout != "" {
		if _, err := time.ParseDuration(*c.InferenceTimeout); err != nil {
			return fmt.Errorf("invalid inference_timeout '%s': %w", *c.InferenceTimeout, err)
		}
	}

	if c.BaselineHalfLife != nil && *c.BaselineHalfLife <= 0 {
		return fmt.Errorf("baseline_half_life must be positive, got %f", *c.BaselineHalfLife)
	}
	for feature, hl := range c.HalfLifeByFeature {
		if hl <= 0 {
			return fmt.Errorf("half_life_by_feature[%s] must be positive, got %f", feature, hl)
		}
	}

	if c.DeviationEpsilon != nil && *c.DeviationEpsilon <= 0 {
		return fmt.Errorf("deviation_epsilon must be positive, got %g", *c.DeviationEpsilon)
	}
	if c.DeviationClampMin != nil && c.DeviationClampMax != nil {
		if *c.DeviationClampMin >= *c.DeviationClampMax {
			return fmt.Errorf("deviation_clamp_min %f must be below deviation_clamp_max %f",
				*c.DeviationClampMin, *c.DeviationClampMax)
		}
	}
	if c.DeviationClampMax != nil && *c.DeviationClampMax <= 0 {
		return fmt.Errorf("deviation_clamp_max must be positive, got %f", *c.DeviationClampMax)
	}

	for dim := range c.DimensionWeights {
		if !affectDimensions[dim] {
			return fmt.Errorf("dimension_weights has unknown dimension %q (want arousal, valence or stress)", dim)
		}
	}

	if c.MatureSampleCount != nil && *c.MatureSampleCount <= 0 {
		return fmt.Errorf("mature_sample_count must be positive, got %d", *c.MatureSampleCount)
	}
	if c.CoverageExponent != nil && *c.CoverageExponent < 0 {
		return fmt.Errorf("coverage_exponent must be non-negative, got %f", *c.CoverageExponent)
	}
	if c.MaturityExponent != nil && *c.MaturityExponent < 0 {
		return fmt.Errorf("maturity_exponent must be non-negative, got %f", *c.MaturityExponent)
	}

	if c.EmotionMaxDistance != nil && *c.EmotionMaxDistance < 0 {
		return fmt.Errorf("emotion_max_distance must be non-negative, got %f", *c.EmotionMaxDistance)
	}

	for _, slot := range c.EMAPromptSlots {
		if _, err := time.Parse("15:04", slot); err != nil {
			return fmt.Errorf("invalid ema_prompt_slots entry '%s': want HH:MM", slot)
		}
	}
	if c.EMAStressThreshold != nil {
		if *c.EMAStressThreshold < 0 || *c.EMAStressThreshold > 1 {
			return fmt.Errorf("ema_stress_threshold must be between 0 and 1, got %f", *c.EMAStressThreshold)
		}
	}
	if c.EMAMinPromptGap != nil && *c.EMAMinPromptGap != "" {
		if _, err := time.ParseDuration(*c.EMAMinPromptGap); err != nil {
			return fmt.Errorf("invalid ema_min_prompt_gap '%s': %w", *c.EMAMinPromptGap, err)
		}
	}
	if c.EMADailyPromptCap != nil && *c.EMADailyPromptCap < 0 {
		return fmt.Errorf("ema_daily_prompt_cap must be non-negative, got %d", *c.EMADailyPromptCap)
	}

	return nil
}

// GetWindowSeconds returns the window_seconds value or the default.
func (c *TuningConfig) GetWindowSeconds() int {
	if c.WindowSeconds == nil {
		return 300 // default
	}
	return *c.WindowSeconds
}

// GetWindow returns the inference window as a time.Duration.
func (c *TuningConfig) GetWindow() time.Duration {
	return time.Duration(c.GetWindowSeconds()) * time.Second
}

// GetSweepInterval parses and returns the SweepInterval as a time.Duration.
func (c *TuningConfig) GetSweepInterval() time.Duration {
	if c.SweepInterval == nil || *c.SweepInterval == "" {
		return 300 * time.Second // default
	}
	d, err := time.ParseDuration(*c.SweepInterval)
	if err != nil {
		return 300 * time.Second // default on parse error
	}
	return d
}

// GetInferenceTimeout parses and returns the InferenceTimeout as a time.Duration.
func (c *TuningConfig) GetInferenceTimeout() time.Duration {
	if c.InferenceTimeout == nil || *c.InferenceTimeout == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.InferenceTimeout)
	if err != nil {
		return 10 * time.Second // default on parse error
	}
	return d
}

// GetBaselineHalfLife returns the baseline_half_life value or the default.
func (c *TuningConfig) GetBaselineHalfLife() float64 {
	if c.BaselineHalfLife == nil {
		return 60 // default, in observations
	}
	return *c.BaselineHalfLife
}

// GetDeviationEpsilon returns the deviation_epsilon value or the default.
func (c *TuningConfig) GetDeviationEpsilon() float64 {
	if c.DeviationEpsilon == nil {
		return 1e-6
	}
	return *c.DeviationEpsilon
}

// GetDeviationClampMin returns the deviation_clamp_min value or the default.
func (c *TuningConfig) GetDeviationClampMin() float64 {
	if c.DeviationClampMin == nil {
		return -5.0
	}
	return *c.DeviationClampMin
}

// GetDeviationClampMax returns the deviation_clamp_max value or the default.
func (c *TuningConfig) GetDeviationClampMax() float64 {
	if c.DeviationClampMax == nil {
		return 5.0
	}
	return *c.DeviationClampMax
}

// GetMatureSampleCount returns the mature_sample_count value or the default.
func (c *TuningConfig) GetMatureSampleCount() int64 {
	if c.MatureSampleCount == nil {
		return 50
	}
	return *c.MatureSampleCount
}

// GetCoverageExponent returns the coverage_exponent value or the default.
func (c *TuningConfig) GetCoverageExponent() float64 {
	if c.CoverageExponent == nil {
		return 1.0
	}
	return *c.CoverageExponent
}

// GetMaturityExponent returns the maturity_exponent value or the default.
func (c *TuningConfig) GetMaturityExponent() float64 {
	if c.MaturityExponent == nil {
		return 1.0
	}
	return *c.MaturityExponent
}

// GetEmotionEnabled returns the emotion_enabled value or the default.
func (c *TuningConfig) GetEmotionEnabled() bool {
	if c.EmotionEnabled == nil {
		return true
	}
	return *c.EmotionEnabled
}

// GetEmotionMaxDistance returns the emotion_max_distance value or the default.
func (c *TuningConfig) GetEmotionMaxDistance() float64 {
	if c.EmotionMaxDistance == nil {
		return 1.5
	}
	return *c.EmotionMaxDistance
}

// GetEMAPromptSlots returns the ema_prompt_slots value or the default slots.
func (c *TuningConfig) GetEMAPromptSlots() []string {
	if c.EMAPromptSlots == nil {
		return []string{"09:00", "12:00", "15:00", "18:00", "21:00"}
	}
	return c.EMAPromptSlots
}

// GetEMAStressThreshold returns the ema_stress_threshold value or the default.
func (c *TuningConfig) GetEMAStressThreshold() float64 {
	if c.EMAStressThreshold == nil {
		return 0.65
	}
	return *c.EMAStressThreshold
}

// GetEMAMinPromptGap parses and returns the EMAMinPromptGap as a time.Duration.
func (c *TuningConfig) GetEMAMinPromptGap() time.Duration {
	if c.EMAMinPromptGap == nil || *c.EMAMinPromptGap == "" {
		return 2 * time.Hour // default
	}
	d, err := time.ParseDuration(*c.EMAMinPromptGap)
	if err != nil {
		return 2 * time.Hour // default on parse error
	}
	return d
}

// GetEMADailyPromptCap returns the ema_daily_prompt_cap value or the default.
func (c *TuningConfig) GetEMADailyPromptCap() int {
	if c.EMADailyPromptCap == nil {
		return 8
	}
	return *c.EMADailyPromptCap
}
