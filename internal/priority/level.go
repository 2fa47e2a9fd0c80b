package priority

import (
	"fmt"

	"github.com/example/langsched/pkg/models"
)

// Level is a coarse learner proficiency band used to pick weight presets.
type Level string

const (
	Beginner     Level = "beginner"
	Intermediate Level = "intermediate"
	Advanced     Level = "advanced"
)

// Weight presets shift value from raw frequency toward contextual nuance as
// ability rises. Each preset sums to 1.
var presets = map[Level]models.PriorityWeights{
	Beginner:     {F: 0.5, R: 0.3, E: 0.2},
	Intermediate: {F: 0.4, R: 0.3, E: 0.3},
	Advanced:     {F: 0.3, R: 0.3, E: 0.4},
}

// InferLevel maps theta onto a level: <-1 beginner, [-1, 1) intermediate, >=1 advanced.
func InferLevel(theta float64) Level {
	switch {
	case theta < -1:
		return Beginner
	case theta < 1:
		return Intermediate
	default:
		return Advanced
	}
}

// PresetWeights returns the calibrated weights of a level.
func PresetWeights(level Level) (models.PriorityWeights, error) {
	w, ok := presets[level]
	if !ok {
		return models.PriorityWeights{}, fmt.Errorf("unknown level %q", level)
	}
	return w, nil
}

// WeightsForTheta returns the preset weights of InferLevel(theta).
func WeightsForTheta(theta float64) models.PriorityWeights {
	return presets[InferLevel(theta)]
}

// ParseLevel parses a level name.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if _, ok := presets[l]; !ok {
		return "", fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// representative ability of each band, used when a learner picks a level by name
var levelTheta = map[Level]float64{
	Beginner:     -2,
	Intermediate: 0,
	Advanced:     2,
}

// ThetaForLevel returns a theta that InferLevel maps back onto level.
func ThetaForLevel(level Level) (float64, error) {
	theta, ok := levelTheta[level]
	if !ok {
		return 0, fmt.Errorf("unknown level %q", level)
	}
	return theta, nil
}
