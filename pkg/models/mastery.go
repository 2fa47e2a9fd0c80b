package models

import (
	"fmt"
	"time"
)

// Stage is the discrete proficiency level of a learner on one object.
type Stage int

const (
	StageUnknown     Stage = iota // 0: no usable evidence yet
	StageRecognition              // 1: recognises with cues
	StageRecall                   // 2: recalls with or without cues
	StageControlled               // 3: reliable cue-free recall
	StageAutomatic                // 4: fast, stable, cue-independent
)

var stageNames = [...]string{
	StageUnknown:     "Unknown",
	StageRecognition: "Recognition",
	StageRecall:      "Recall",
	StageControlled:  "Controlled",
	StageAutomatic:   "Automatic",
}

// String returns the stage name.
func (s Stage) String() string {
	if s >= StageUnknown && s <= StageAutomatic {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// MasteryState tracks a user's proficiency with a specific language object.
// It owns the FSRS card of the same (user, object) pair.
type MasteryState struct {
	UserID              int64     `json:"user_id" db:"user_id"`
	ObjectID            string    `json:"object_id" db:"object_id"`
	Stage               Stage     `json:"stage" db:"stage"`
	Card                Card      `json:"card" db:"-"`
	CueFreeAccuracy     float64   `json:"cue_free_accuracy" db:"cue_free_accuracy"`         // EMA, 0-1
	CueAssistedAccuracy float64   `json:"cue_assisted_accuracy" db:"cue_assisted_accuracy"` // EMA, 0-1
	ExposureCount       int       `json:"exposure_count" db:"exposure_count"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// Response is a single learner answer to a practice task.
type Response struct {
	Correct        bool  `json:"correct"`
	CueLevel       int   `json:"cue_level"`        // 0 = no scaffolding
	ResponseTimeMs int64 `json:"response_time_ms"` // time to answer in milliseconds
}
