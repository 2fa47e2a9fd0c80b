package mastery

import (
	"math"

	"github.com/example/langsched/internal/shared"
)

// Thresholds holds the calibrated constants of the stage machine.
// Downstream stage thresholds are calibrated against the exact EMA formulas,
// so the EMA constants live here too.
type Thresholds struct {
	AutomaticAccuracy  float64 `yaml:"automatic_accuracy"`
	AutomaticStability float64 `yaml:"automatic_stability"` // days, strict
	AutomaticMaxGap    float64 `yaml:"automatic_max_gap"`   // assisted - free, strict

	ControlledAccuracy  float64 `yaml:"controlled_accuracy"`
	ControlledStability float64 `yaml:"controlled_stability"` // days, strict

	RecallCueFreeAccuracy     float64 `yaml:"recall_cue_free_accuracy"`
	RecallCueAssistedAccuracy float64 `yaml:"recall_cue_assisted_accuracy"`

	RecognitionCueAssistedAccuracy float64 `yaml:"recognition_cue_assisted_accuracy"`

	// Correct cue-free answers slower than this are rated Good instead of Easy
	SlowResponseMs int64 `yaml:"slow_response_ms"`
	// Cue-free EMA weight is 1/(CueFreeDecay*n+1) after the n-th exposure
	CueFreeDecay float64 `yaml:"cue_free_decay"`
	// Fixed weight of the newest cue-assisted answer
	CueAssistedRate float64 `yaml:"cue_assisted_rate"`
}

// DefaultThresholds returns the calibrated default thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		AutomaticAccuracy:              0.9,
		AutomaticStability:             30,
		AutomaticMaxGap:                0.1,
		ControlledAccuracy:             0.75,
		ControlledStability:            7,
		RecallCueFreeAccuracy:          0.6,
		RecallCueAssistedAccuracy:      0.8,
		RecognitionCueAssistedAccuracy: 0.5,
		SlowResponseMs:                 5000,
		CueFreeDecay:                   0.3,
		CueAssistedRate:                0.2,
	}
}

// Validate checks that probabilities are in [0, 1] and the rest is non-negative.
func (t Thresholds) Validate() error {
	probs := []struct {
		name  string
		value float64
	}{
		{"automatic_accuracy", t.AutomaticAccuracy},
		{"automatic_max_gap", t.AutomaticMaxGap},
		{"controlled_accuracy", t.ControlledAccuracy},
		{"recall_cue_free_accuracy", t.RecallCueFreeAccuracy},
		{"recall_cue_assisted_accuracy", t.RecallCueAssistedAccuracy},
		{"recognition_cue_assisted_accuracy", t.RecognitionCueAssistedAccuracy},
		{"cue_assisted_rate", t.CueAssistedRate},
	}
	for _, p := range probs {
		if math.IsNaN(p.value) || p.value < 0 || p.value > 1 {
			return shared.Invalid("mastery", "Validate", "%s = %f, want [0, 1]", p.name, p.value)
		}
	}
	if math.IsNaN(t.AutomaticStability) || t.AutomaticStability < 0 ||
		math.IsNaN(t.ControlledStability) || t.ControlledStability < 0 {
		return shared.Invalid("mastery", "Validate", "stability thresholds must be non-negative")
	}
	if math.IsNaN(t.CueFreeDecay) || t.CueFreeDecay < 0 {
		return shared.Invalid("mastery", "Validate", "cue_free_decay = %f must be non-negative", t.CueFreeDecay)
	}
	if t.SlowResponseMs < 0 {
		return shared.Invalid("mastery", "Validate", "slow_response_ms = %d must be non-negative", t.SlowResponseMs)
	}
	return nil
}
