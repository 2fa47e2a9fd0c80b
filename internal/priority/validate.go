package priority

import (
	"math"

	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/pkg/models"
)

const (
	// MinTheta and MaxTheta bound the logit scale of ability and difficulty.
	MinTheta = -3.0
	MaxTheta = 3.0
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func unit(v float64) bool {
	return finite(v) && v >= 0 && v <= 1
}

// ValidateSignal rejects objects whose signals are non-finite or out of range.
// Callers must reject such objects before scheduling.
func ValidateSignal(obj models.LanguageObject) error {
	if obj.ID == "" {
		return shared.BadData("priority", "ValidateSignal", "object without id")
	}
	checks := []struct {
		name  string
		value float64
	}{
		{"frequency", obj.Frequency},
		{"relational_density", obj.RelationalDensity},
		{"contextual_contribution", obj.ContextualContribution},
	}
	for _, c := range checks {
		if !unit(c.value) {
			return shared.BadData("priority", "ValidateSignal", "object %s: %s = %v, want [0, 1]", obj.ID, c.name, c.value)
		}
	}
	if !finite(obj.IRTDifficulty) || obj.IRTDifficulty < MinTheta || obj.IRTDifficulty > MaxTheta {
		return shared.BadData("priority", "ValidateSignal", "object %s: irt_difficulty = %v, want [-3, 3]", obj.ID, obj.IRTDifficulty)
	}
	return nil
}

// ValidateWeights rejects negative or non-finite weights.
func ValidateWeights(w models.PriorityWeights) error {
	checks := []struct {
		name  string
		value float64
	}{
		{"f", w.F},
		{"r", w.R},
		{"e", w.E},
	}
	for _, c := range checks {
		if !finite(c.value) || c.value < 0 {
			return shared.Invalid("priority", "ValidateWeights", "weight %s = %v must be finite and non-negative", c.name, c.value)
		}
	}
	return nil
}

// ValidateUser checks theta and the priority weights of a user state.
func ValidateUser(user models.UserState) error {
	if !finite(user.Theta) || user.Theta < MinTheta || user.Theta > MaxTheta {
		return shared.BadData("priority", "ValidateUser", "theta = %v, want [-3, 3]", user.Theta)
	}
	return ValidateWeights(user.Weights)
}
