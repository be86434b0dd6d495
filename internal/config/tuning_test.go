package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.WindowSeconds == nil || *cfg.WindowSeconds != 300 {
		t.Errorf("Expected WindowSeconds 300, got %v", cfg.WindowSeconds)
	}
	if cfg.BaselineHalfLife == nil || *cfg.BaselineHalfLife != 60 {
		t.Errorf("Expected BaselineHalfLife 60, got %v", cfg.BaselineHalfLife)
	}
	if cfg.DeviationClampMax == nil || *cfg.DeviationClampMax != 5 {
		t.Errorf("Expected DeviationClampMax 5, got %v", cfg.DeviationClampMax)
	}
	if cfg.SweepInterval == nil || *cfg.SweepInterval != "300s" {
		t.Errorf("Expected SweepInterval '300s', got %v", cfg.SweepInterval)
	}
	if cfg.EMAStressThreshold == nil || *cfg.EMAStressThreshold != 0.65 {
		t.Errorf("Expected EMAStressThreshold 0.65, got %v", cfg.EMAStressThreshold)
	}

	// Weight and centroid tables stay nil so the built-in tables apply.
	if cfg.DimensionWeights != nil {
		t.Errorf("Expected nil DimensionWeights, got %v", cfg.DimensionWeights)
	}
	if cfg.EmotionCentroids != nil {
		t.Errorf("Expected nil EmotionCentroids, got %v", cfg.EmotionCentroids)
	}

	// Test getter methods
	if cfg.GetWindowSeconds() != 300 {
		t.Errorf("GetWindowSeconds() = %d, want 300", cfg.GetWindowSeconds())
	}
	if cfg.GetBaselineHalfLife() != 60 {
		t.Errorf("GetBaselineHalfLife() = %f, want 60", cfg.GetBaselineHalfLife())
	}
	if cfg.GetMatureSampleCount() != 50 {
		t.Errorf("GetMatureSampleCount() = %d, want 50", cfg.GetMatureSampleCount())
	}
	if cfg.GetEmotionEnabled() != true {
		t.Errorf("GetEmotionEnabled() = %v, want true", cfg.GetEmotionEnabled())
	}

	// The default config must pass its own validation.
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultTuningConfig().Validate() = %v, want nil", err)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	// Create temporary directory
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	// Write test config with flat schema
	testJSON := `{
  "window_seconds": 600,
  "baseline_half_life": 30,
  "deviation_clamp_min": -4,
  "deviation_clamp_max": 4,
  "sweep_interval": "120s",
  "emotion_enabled": false,
  "ema_stress_threshold": 0.8
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Load the config
	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify values
	if cfg.WindowSeconds == nil || *cfg.WindowSeconds != 600 {
		t.Errorf("Expected WindowSeconds 600, got %v", cfg.WindowSeconds)
	}
	if cfg.BaselineHalfLife == nil || *cfg.BaselineHalfLife != 30 {
		t.Errorf("Expected BaselineHalfLife 30, got %v", cfg.BaselineHalfLife)
	}
	if cfg.DeviationClampMin == nil || *cfg.DeviationClampMin != -4 {
		t.Errorf("Expected DeviationClampMin -4, got %v", cfg.DeviationClampMin)
	}
	if cfg.DeviationClampMax == nil || *cfg.DeviationClampMax != 4 {
		t.Errorf("Expected DeviationClampMax 4, got %v", cfg.DeviationClampMax)
	}
	if cfg.SweepInterval == nil || *cfg.SweepInterval != "120s" {
		t.Errorf("Expected SweepInterval '120s', got %v", cfg.SweepInterval)
	}
	if cfg.EmotionEnabled == nil || *cfg.EmotionEnabled != false {
		t.Errorf("Expected EmotionEnabled false, got %v", cfg.EmotionEnabled)
	}
	if cfg.EMAStressThreshold == nil || *cfg.EMAStressThreshold != 0.8 {
		t.Errorf("Expected EMAStressThreshold 0.8, got %v", cfg.EMAStressThreshold)
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	// Write invalid JSON
	invalidJSON := `{
  "window_seconds": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultTuningConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name: "zero window",
			cfg: &TuningConfig{
				WindowSeconds: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "non-positive half life",
			cfg: &TuningConfig{
				BaselineHalfLife: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "non-positive per-feature half life",
			cfg: &TuningConfig{
				HalfLifeByFeature: map[string]float64{"hr_mean": -2},
			},
			wantErr: true,
		},
		{
			name: "clamp min above max",
			cfg: &TuningConfig{
				DeviationClampMin: ptrFloat64(3),
				DeviationClampMax: ptrFloat64(2),
			},
			wantErr: true,
		},
		{
			name: "negative clamp max",
			cfg: &TuningConfig{
				DeviationClampMax: ptrFloat64(-1),
			},
			wantErr: true,
		},
		{
			name: "unknown weight dimension",
			cfg: &TuningConfig{
				DimensionWeights: map[string]map[string]float64{
					"dominance": {"hr_mean": 1},
				},
			},
			wantErr: true,
		},
		{
			name: "known weight dimensions",
			cfg: &TuningConfig{
				DimensionWeights: map[string]map[string]float64{
					"arousal": {"hr_mean": 2},
					"stress":  {"hrv_rmssd": -3},
				},
			},
			wantErr: false,
		},
		{
			name: "invalid sweep interval",
			cfg: &TuningConfig{
				SweepInterval: ptrString("invalid"),
			},
			wantErr: true,
		},
		{
			name: "invalid inference timeout",
			cfg: &TuningConfig{
				InferenceTimeout: ptrString("fast"),
			},
			wantErr: true,
		},
		{
			name: "stress threshold above one",
			cfg: &TuningConfig{
				EMAStressThreshold: ptrFloat64(1.2),
			},
			wantErr: true,
		},
		{
			name: "bad prompt slot",
			cfg: &TuningConfig{
				EMAPromptSlots: []string{"09:00", "25:99"},
			},
			wantErr: true,
		},
		{
			name: "negative daily cap",
			cfg: &TuningConfig{
				EMADailyPromptCap: ptrInt(-1),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetSweepInterval(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{
			name: "5 minutes",
			cfg: &TuningConfig{
				SweepInterval: ptrString("300s"),
			},
			want: 300 * time.Second,
		},
		{
			name: "1 minute",
			cfg: &TuningConfig{
				SweepInterval: ptrString("1m"),
			},
			want: 1 * time.Minute,
		},
		{
			name: "nil pointer returns default",
			cfg:  &TuningConfig{},
			want: 300 * time.Second,
		},
		{
			name: "empty string returns default",
			cfg: &TuningConfig{
				SweepInterval: ptrString(""),
			},
			want: 300 * time.Second,
		},
		{
			name: "invalid duration returns default",
			cfg: &TuningConfig{
				SweepInterval: ptrString("invalid"),
			},
			want: 300 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetSweepInterval()
			if got != tt.want {
				t.Errorf("GetSweepInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEMAMinPromptGap(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{
			name: "90 minutes",
			cfg: &TuningConfig{
				EMAMinPromptGap: ptrString("90m"),
			},
			want: 90 * time.Minute,
		},
		{
			name: "nil pointer returns default",
			cfg:  &TuningConfig{},
			want: 2 * time.Hour,
		},
		{
			name: "invalid duration returns default",
			cfg: &TuningConfig{
				EMAMinPromptGap: ptrString("soon"),
			},
			want: 2 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetEMAMinPromptGap()
			if got != tt.want {
				t.Errorf("GetEMAMinPromptGap() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetWindowSeconds() != 300 {
		t.Errorf("Expected 300, got %d", cfg.GetWindowSeconds())
	}
	if cfg.GetBaselineHalfLife() != 60 {
		t.Errorf("Expected 60, got %f", cfg.GetBaselineHalfLife())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetBaselineHalfLife() != 30 {
		t.Errorf("Expected 30, got %f", cfg.GetBaselineHalfLife())
	}
	if cfg.GetWindowSeconds() != 600 {
		t.Errorf("Expected 600, got %d", cfg.GetWindowSeconds())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override the half life; everything else should keep defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "baseline_half_life": 120
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	// Overridden value
	if cfg.GetBaselineHalfLife() != 120 {
		t.Errorf("Expected overridden BaselineHalfLife 120, got %f", cfg.GetBaselineHalfLife())
	}
	// Default values should be preserved
	if cfg.GetWindowSeconds() != 300 {
		t.Errorf("Expected default WindowSeconds 300, got %d", cfg.GetWindowSeconds())
	}
	if cfg.GetSweepInterval() != 300*time.Second {
		t.Errorf("Expected default SweepInterval 300s, got %v", cfg.GetSweepInterval())
	}
	if cfg.GetEMADailyPromptCap() != 8 {
		t.Errorf("Expected default EMADailyPromptCap 8, got %d", cfg.GetEMADailyPromptCap())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	// Create a file larger than 1MB
	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestAllTuningParams(t *testing.T) {
	// Test that all tunable parameters can be set via JSON
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "all_params.json")

	allParamsJSON := `{
  "window_seconds": 600,
  "sweep_interval": "60s",
  "inference_timeout": "5s",
  "baseline_half_life": 90,
  "half_life_by_feature": {"hr_mean": 30, "sleep_efficiency": 240},
  "deviation_epsilon": 0.000001,
  "deviation_clamp_min": -4,
  "deviation_clamp_max": 4,
  "dimension_weights": {
    "arousal": {"hr_mean": 2.5, "activity_level": 1.0},
    "valence": {"hrv_rmssd": 2.0},
    "stress": {"hrv_rmssd": -2.0, "hr_mean": 1.5}
  },
  "mature_sample_count": 100,
  "coverage_exponent": 0.5,
  "maturity_exponent": 2.0,
  "emotion_enabled": true,
  "emotion_max_distance": 1.0,
  "emotion_centroids": {
    "calm": {"arousal": -0.6, "valence": 0.4},
    "stressed": {"arousal": 0.6, "valence": -0.6}
  },
  "ema_prompt_slots": ["08:30", "20:30"],
  "ema_stress_threshold": 0.7,
  "ema_min_prompt_gap": "3h",
  "ema_daily_prompt_cap": 4
}`
	if err := os.WriteFile(configPath, []byte(allParamsJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify all fields are loaded correctly
	if cfg.WindowSeconds == nil || *cfg.WindowSeconds != 600 {
		t.Errorf("WindowSeconds = %v, want 600", cfg.WindowSeconds)
	}
	if cfg.SweepInterval == nil || *cfg.SweepInterval != "60s" {
		t.Errorf("SweepInterval = %v, want '60s'", cfg.SweepInterval)
	}
	if cfg.InferenceTimeout == nil || *cfg.InferenceTimeout != "5s" {
		t.Errorf("InferenceTimeout = %v, want '5s'", cfg.InferenceTimeout)
	}
	if cfg.BaselineHalfLife == nil || *cfg.BaselineHalfLife != 90 {
		t.Errorf("BaselineHalfLife = %v, want 90", cfg.BaselineHalfLife)
	}
	if got := cfg.HalfLifeByFeature["hr_mean"]; got != 30 {
		t.Errorf("HalfLifeByFeature[hr_mean] = %v, want 30", got)
	}
	if got := cfg.HalfLifeByFeature["sleep_efficiency"]; got != 240 {
		t.Errorf("HalfLifeByFeature[sleep_efficiency] = %v, want 240", got)
	}
	if cfg.DeviationEpsilon == nil || *cfg.DeviationEpsilon != 0.000001 {
		t.Errorf("DeviationEpsilon = %v, want 1e-6", cfg.DeviationEpsilon)
	}
	if cfg.DeviationClampMin == nil || *cfg.DeviationClampMin != -4 {
		t.Errorf("DeviationClampMin = %v, want -4", cfg.DeviationClampMin)
	}
	if cfg.DeviationClampMax == nil || *cfg.DeviationClampMax != 4 {
		t.Errorf("DeviationClampMax = %v, want 4", cfg.DeviationClampMax)
	}
	if got := cfg.DimensionWeights["arousal"]["hr_mean"]; got != 2.5 {
		t.Errorf("DimensionWeights[arousal][hr_mean] = %v, want 2.5", got)
	}
	if got := cfg.DimensionWeights["stress"]["hrv_rmssd"]; got != -2.0 {
		t.Errorf("DimensionWeights[stress][hrv_rmssd] = %v, want -2.0", got)
	}
	if cfg.MatureSampleCount == nil || *cfg.MatureSampleCount != 100 {
		t.Errorf("MatureSampleCount = %v, want 100", cfg.MatureSampleCount)
	}
	if cfg.CoverageExponent == nil || *cfg.CoverageExponent != 0.5 {
		t.Errorf("CoverageExponent = %v, want 0.5", cfg.CoverageExponent)
	}
	if cfg.MaturityExponent == nil || *cfg.MaturityExponent != 2.0 {
		t.Errorf("MaturityExponent = %v, want 2.0", cfg.MaturityExponent)
	}
	if cfg.EmotionEnabled == nil || *cfg.EmotionEnabled != true {
		t.Errorf("EmotionEnabled = %v, want true", cfg.EmotionEnabled)
	}
	if cfg.EmotionMaxDistance == nil || *cfg.EmotionMaxDistance != 1.0 {
		t.Errorf("EmotionMaxDistance = %v, want 1.0", cfg.EmotionMaxDistance)
	}
	if got := cfg.EmotionCentroids["calm"]; got.Arousal != -0.6 || got.Valence != 0.4 {
		t.Errorf("EmotionCentroids[calm] = %v, want {-0.6 0.4}", got)
	}
	if got := len(cfg.EMAPromptSlots); got != 2 {
		t.Errorf("len(EMAPromptSlots) = %d, want 2", got)
	}
	if cfg.EMAStressThreshold == nil || *cfg.EMAStressThreshold != 0.7 {
		t.Errorf("EMAStressThreshold = %v, want 0.7", cfg.EMAStressThreshold)
	}
	if cfg.EMAMinPromptGap == nil || *cfg.EMAMinPromptGap != "3h" {
		t.Errorf("EMAMinPromptGap = %v, want '3h'", cfg.EMAMinPromptGap)
	}
	if cfg.EMADailyPromptCap == nil || *cfg.EMADailyPromptCap != 4 {
		t.Errorf("EMADailyPromptCap = %v, want 4", cfg.EMADailyPromptCap)
	}
}

func TestGetterDefaults(t *testing.T) {
	// Test that getter methods return expected defaults when pointers are nil
	cfg := &TuningConfig{} // empty config

	if cfg.GetWindowSeconds() != 300 {
		t.Errorf("GetWindowSeconds() = %d, want 300", cfg.GetWindowSeconds())
	}
	if cfg.GetWindow() != 5*time.Minute {
		t.Errorf("GetWindow() = %v, want 5m", cfg.GetWindow())
	}
	if cfg.GetSweepInterval() != 300*time.Second {
		t.Errorf("GetSweepInterval() = %v, want 300s", cfg.GetSweepInterval())
	}
	if cfg.GetInferenceTimeout() != 10*time.Second {
		t.Errorf("GetInferenceTimeout() = %v, want 10s", cfg.GetInferenceTimeout())
	}
	if cfg.GetBaselineHalfLife() != 60 {
		t.Errorf("GetBaselineHalfLife() = %f, want 60", cfg.GetBaselineHalfLife())
	}
	if cfg.GetDeviationEpsilon() != 1e-6 {
		t.Errorf("GetDeviationEpsilon() = %g, want 1e-6", cfg.GetDeviationEpsilon())
	}
	if cfg.GetDeviationClampMin() != -5.0 {
		t.Errorf("GetDeviationClampMin() = %f, want -5", cfg.GetDeviationClampMin())
	}
	if cfg.GetDeviationClampMax() != 5.0 {
		t.Errorf("GetDeviationClampMax() = %f, want 5", cfg.GetDeviationClampMax())
	}
	if cfg.GetMatureSampleCount() != 50 {
		t.Errorf("GetMatureSampleCount() = %d, want 50", cfg.GetMatureSampleCount())
	}
	if cfg.GetCoverageExponent() != 1.0 {
		t.Errorf("GetCoverageExponent() = %f, want 1.0", cfg.GetCoverageExponent())
	}
	if cfg.GetMaturityExponent() != 1.0 {
		t.Errorf("GetMaturityExponent() = %f, want 1.0", cfg.GetMaturityExponent())
	}
	if cfg.GetEmotionEnabled() != true {
		t.Errorf("GetEmotionEnabled() = %v, want true", cfg.GetEmotionEnabled())
	}
	if cfg.GetEmotionMaxDistance() != 1.5 {
		t.Errorf("GetEmotionMaxDistance() = %f, want 1.5", cfg.GetEmotionMaxDistance())
	}
	if got := len(cfg.GetEMAPromptSlots()); got != 5 {
		t.Errorf("len(GetEMAPromptSlots()) = %d, want 5", got)
	}
	if cfg.GetEMAStressThreshold() != 0.65 {
		t.Errorf("GetEMAStressThreshold() = %f, want 0.65", cfg.GetEMAStressThreshold())
	}
	if cfg.GetEMAMinPromptGap() != 2*time.Hour {
		t.Errorf("GetEMAMinPromptGap() = %v, want 2h", cfg.GetEMAMinPromptGap())
	}
	if cfg.GetEMADailyPromptCap() != 8 {
		t.Errorf("GetEMADailyPromptCap() = %d, want 8", cfg.GetEMADailyPromptCap())
	}
}
