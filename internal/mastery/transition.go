package mastery

import "github.com/example/langsched/pkg/models"

// Transition is the stage change caused by one ingested response.
type Transition struct {
	From models.Stage `json:"from"`
	To   models.Stage `json:"to"`
}

// Compare returns the transition between two snapshots of the same state.
func Compare(before, after models.MasteryState) Transition {
	return Transition{From: before.Stage, To: after.Stage}
}

// Changed reports whether the stage moved.
func (t Transition) Changed() bool { return t.From != t.To }

// Advanced reports whether the stage moved up.
func (t Transition) Advanced() bool { return t.To > t.From }

// Regressed reports whether the stage moved down.
func (t Transition) Regressed() bool { return t.To < t.From }
