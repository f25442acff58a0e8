package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Tuning holds the calibration constants of the resonance formula.
type Tuning struct {
	SimilarityScale float64 `json:"similarity_scale"` // Multiplier applied to similarity before exponentiation (default: 100)
	VoiceExponent   float64 `json:"voice_exponent"`   // Exponent damping the author voice factor (default: 0.1)
	NoveltyCeiling  float64 `json:"novelty_ceiling"`  // Upper bound for the novelty radicand (default: 1.0001)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string `json:"version"` // Config version for future compatibility
	Tuning  Tuning `json:"tuning"`  // Tuning constants
}

// DefaultTuning returns the historical calibration of the resonance formula.
//
//   - SimilarityScale 100 lifts raw cosine similarity into a range where the
//     revision-count exponent meaningfully separates candidates.
//   - VoiceExponent 0.1 gives accumulated voice a gentle, sublinear influence
//     so high-reputation authors cannot drown out similarity.
//   - NoveltyCeiling 1.0001 sits above the 1.000001 similarity the store
//     reports for exact matches, keeping the novelty radicand positive.
func DefaultTuning() *Tuning {
	return &Tuning{
		SimilarityScale: 100,
		VoiceExponent:   0.1,
		NoveltyCeiling:  1.0001,
	}
}

// LoadCalibration loads tuning constants from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default tuning with an
// error. Partial configurations are merged with defaults for graceful
// degradation.
func LoadCalibration(filePath string) (*Tuning, error) {
	if filePath == "" {
		return DefaultTuning(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultTuning(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultTuning(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultTuning()
	merged := MergeCalibration(defaults, &config.Tuning)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override tuning with base tuning. Only non-zero
// values from the override are applied, which allows partial overrides in the
// calibration file.
func MergeCalibration(base *Tuning, override *Tuning) *Tuning {
	if base == nil {
		return DefaultTuning()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base
	if override.SimilarityScale != 0 {
		result.SimilarityScale = override.SimilarityScale
	}
	if override.VoiceExponent != 0 {
		result.VoiceExponent = override.VoiceExponent
	}
	if override.NoveltyCeiling != 0 {
		result.NoveltyCeiling = override.NoveltyCeiling
	}
	return &result
}

// logCalibrationOverrides logs which constants were overridden from defaults.
func logCalibrationOverrides(defaults *Tuning, loaded *Tuning) {
	var overrides []string

	if loaded.SimilarityScale != defaults.SimilarityScale {
		overrides = append(overrides, fmt.Sprintf("similarity_scale: %.2f -> %.2f",
			defaults.SimilarityScale, loaded.SimilarityScale))
	}
	if loaded.VoiceExponent != defaults.VoiceExponent {
		overrides = append(overrides, fmt.Sprintf("voice_exponent: %.2f -> %.2f",
			defaults.VoiceExponent, loaded.VoiceExponent))
	}
	if loaded.NoveltyCeiling != defaults.NoveltyCeiling {
		overrides = append(overrides, fmt.Sprintf("novelty_ceiling: %.4f -> %.4f",
			defaults.NoveltyCeiling, loaded.NoveltyCeiling))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
