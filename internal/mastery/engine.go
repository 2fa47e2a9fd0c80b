// Package mastery turns a learner's noisy response history into a discrete
// proficiency stage and a recommended amount of scaffolding.
//
// The stage is re-derived from the current aggregates after every update
// rather than advanced along an edge table, so it can move backward when
// accuracy degrades.
package mastery

import (
	"math"
	"time"

	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/internal/spaced_repetition"
	"github.com/example/langsched/pkg/models"
)

// MaxCueLevel is the richest scaffolding level a task can offer.
const MaxCueLevel = 3

// Engine applies responses to mastery states.
// It holds configuration only and is safe for concurrent use.
type Engine struct {
	fsrs       *spaced_repetition.FSRS
	thresholds Thresholds
}

// NewEngine creates an engine from a memory model and stage thresholds.
func NewEngine(fsrs *spaced_repetition.FSRS, thresholds Thresholds) *Engine {
	return &Engine{
		fsrs:       fsrs,
		thresholds: thresholds,
	}
}

// NewState returns the state of a (user, object) pair before the first exposure.
func NewState(userID int64, objectID string) models.MasteryState {
	return models.MasteryState{
		UserID:   userID,
		ObjectID: objectID,
		Stage:    models.StageUnknown,
	}
}

// FSRS returns the memory model the engine schedules with.
func (e *Engine) FSRS() *spaced_repetition.FSRS {
	return e.fsrs
}

// Thresholds returns the stage thresholds of the engine.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// RatingFor maps a response onto an FSRS rating:
// incorrect -> Again, correct with cues -> Hard, slow cue-free -> Good, else Easy.
func (e *Engine) RatingFor(resp models.Response) spaced_repetition.Rating {
	switch {
	case !resp.Correct:
		return spaced_repetition.Again
	case resp.CueLevel > 0:
		return spaced_repetition.Hard
	case resp.ResponseTimeMs > e.thresholds.SlowResponseMs:
		return spaced_repetition.Good
	default:
		return spaced_repetition.Easy
	}
}

// ValidateResponse rejects cue levels outside 0..MaxCueLevel and negative times.
func ValidateResponse(resp models.Response) error {
	if resp.CueLevel < 0 || resp.CueLevel > MaxCueLevel {
		return shared.Invalid("mastery", "IngestResponse", "cue level %d out of range [0, %d]", resp.CueLevel, MaxCueLevel)
	}
	if resp.ResponseTimeMs < 0 {
		return shared.Invalid("mastery", "IngestResponse", "negative response time %d", resp.ResponseTimeMs)
	}
	return nil
}

// IngestResponse applies one response and returns the updated state.
// The input state is not mutated.
func (e *Engine) IngestResponse(state models.MasteryState, resp models.Response, now time.Time) (models.MasteryState, error) {
	if err := ValidateResponse(resp); err != nil {
		return models.MasteryState{}, err
	}

	card, err := e.fsrs.Schedule(state.Card, e.RatingFor(resp), now)
	if err != nil {
		return models.MasteryState{}, err
	}

	next := state
	next.Card = card
	next.ExposureCount = state.ExposureCount + 1
	next.UpdatedAt = now

	correct := 0.0
	if resp.Correct {
		correct = 1.0
	}

	if resp.CueLevel == 0 {
		// Weight shrinks as data accumulates: recent-biased but convergent
		w := 1 / (e.thresholds.CueFreeDecay*float64(next.ExposureCount) + 1)
		next.CueFreeAccuracy = clamp01((1-w)*state.CueFreeAccuracy + w*correct)
	} else {
		rate := e.thresholds.CueAssistedRate
		next.CueAssistedAccuracy = clamp01((1-rate)*state.CueAssistedAccuracy + rate*correct)
	}

	next.Stage = e.DeriveStage(next)
	return next, nil
}

// DeriveStage recomputes the stage from the state's aggregates.
// A state without exposures is always StageUnknown.
func (e *Engine) DeriveStage(state models.MasteryState) models.Stage {
	if state.ExposureCount == 0 {
		return models.StageUnknown
	}

	t := e.thresholds
	free := state.CueFreeAccuracy
	assisted := state.CueAssistedAccuracy
	stability := state.Card.Stability

	switch {
	case free >= t.AutomaticAccuracy && stability > t.AutomaticStability && assisted-free < t.AutomaticMaxGap:
		return models.StageAutomatic
	case free >= t.ControlledAccuracy && stability > t.ControlledStability:
		return models.StageControlled
	case free >= t.RecallCueFreeAccuracy || assisted >= t.RecallCueAssistedAccuracy:
		return models.StageRecall
	case assisted >= t.RecognitionCueAssistedAccuracy:
		return models.StageRecognition
	default:
		return models.StageUnknown
	}
}

// ScaffoldingGap is how much the learner leans on cues: max(0, assisted - free).
func ScaffoldingGap(state models.MasteryState) float64 {
	return math.Max(0, state.CueAssistedAccuracy-state.CueFreeAccuracy)
}

// RecommendedCueLevel returns the scaffolding level (0-3) to offer next.
// Richer cues are re-offered until the gap between assisted and cue-free
// accuracy closes.
func RecommendedCueLevel(state models.MasteryState) int {
	gap := ScaffoldingGap(state)
	switch {
	case gap < 0.1 && state.ExposureCount > 3:
		return 0
	case gap < 0.2 && state.ExposureCount > 2:
		return 1
	case gap < 0.3:
		return 2
	default:
		return 3
	}
}

// IsMastered reports whether the object is reliably recalled without cues.
func IsMastered(state models.MasteryState) bool {
	return state.Stage >= models.StageControlled
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}
