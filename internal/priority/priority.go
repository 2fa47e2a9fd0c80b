// Package priority converts the value signals, difficulty and transfer of a
// language object into a single learnability-adjusted priority score.
package priority

import (
	"math"

	"github.com/example/langsched/pkg/models"
)

const (
	// MinCost floors the cost so priority = FRE / cost never blows up.
	MinCost = 0.1
	// DefaultTransferGain is the flat gain granted when the learner's L1 is known.
	DefaultTransferGain = 0.1
)

// TransferEstimator estimates how much the learner's first language eases an object.
// A richer L1-L2 transfer matrix can be plugged in here.
type TransferEstimator interface {
	TransferGain(l1 string, obj models.LanguageObject) float64
}

// FlatTransfer grants Gain whenever the L1 is known and nothing otherwise.
type FlatTransfer struct {
	Gain float64
}

// TransferGain implements TransferEstimator.
func (t FlatTransfer) TransferGain(l1 string, _ models.LanguageObject) float64 {
	if l1 == "" {
		return 0
	}
	return t.Gain
}

// Factors are the components of an object's learning cost.
type Factors struct {
	BaseDifficulty float64 `json:"base_difficulty"` // IRT difficulty rescaled to [0, 1]
	TransferGain   float64 `json:"transfer_gain"`
	ExposureNeed   float64 `json:"exposure_need"` // how far above the learner's ability, [0, 1]
}

// Breakdown is a scored object with every intermediate value.
type Breakdown struct {
	FRE      float64 `json:"fre"`
	Factors  Factors `json:"factors"`
	Cost     float64 `json:"cost"`
	Priority float64 `json:"priority"`
}

// Model scores objects for one transfer estimator.
// It holds no mutable state and is safe for concurrent use.
type Model struct {
	Transfer TransferEstimator
}

// NewModel creates a model with the flat L1 transfer placeholder.
func NewModel() *Model {
	return &Model{Transfer: FlatTransfer{Gain: DefaultTransferGain}}
}

// FRE combines frequency, relational density and contextual contribution.
func FRE(obj models.LanguageObject, w models.PriorityWeights) float64 {
	return w.F*obj.Frequency + w.R*obj.RelationalDensity + w.E*obj.ContextualContribution
}

// CostFactors computes the cost components of obj for the given learner.
func (m *Model) CostFactors(obj models.LanguageObject, user models.UserState) Factors {
	gain := 0.0
	if m.Transfer != nil {
		gain = m.Transfer.TransferGain(user.L1Language, obj)
	}
	if !finite(gain) {
		gain = 0
	}
	return Factors{
		BaseDifficulty: (obj.IRTDifficulty + 3) / 6,
		TransferGain:   gain,
		ExposureNeed:   math.Min(math.Max((obj.IRTDifficulty-user.Theta)/3, 0), 1),
	}
}

// Cost is baseDifficulty - transferGain + exposureNeed, floored at MinCost.
func Cost(f Factors) float64 {
	return math.Max(MinCost, f.BaseDifficulty-f.TransferGain+f.ExposureNeed)
}

// Priority returns FRE / cost; higher means more valuable and cheaper to learn now.
// Inputs are assumed validated.
func (m *Model) Priority(obj models.LanguageObject, user models.UserState) float64 {
	return FRE(obj, user.Weights) / Cost(m.CostFactors(obj, user))
}

// Score validates obj and user, then returns the full breakdown.
func (m *Model) Score(obj models.LanguageObject, user models.UserState) (Breakdown, error) {
	if err := ValidateSignal(obj); err != nil {
		return Breakdown{}, err
	}
	if err := ValidateUser(user); err != nil {
		return Breakdown{}, err
	}

	fre := FRE(obj, user.Weights)
	factors := m.CostFactors(obj, user)
	cost := Cost(factors)
	return Breakdown{
		FRE:      fre,
		Factors:  factors,
		Cost:     cost,
		Priority: fre / cost,
	}, nil
}
