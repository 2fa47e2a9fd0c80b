package models

import "time"

// ReviewLog records one ingested response and its effect on the mastery stage.
type ReviewLog struct {
	ID             string    `json:"id" db:"id"` // uuid
	UserID         int64     `json:"user_id" db:"user_id"`
	ObjectID       string    `json:"object_id" db:"object_id"`
	Rating         int       `json:"rating" db:"rating"` // FSRS rating 1-4
	Correct        bool      `json:"correct" db:"correct"`
	CueLevel       int       `json:"cue_level" db:"cue_level"`
	ResponseTimeMs int64     `json:"response_time_ms" db:"response_time_ms"`
	StageBefore    Stage     `json:"stage_before" db:"stage_before"`
	StageAfter     Stage     `json:"stage_after" db:"stage_after"`
	ReviewedAt     time.Time `json:"reviewed_at" db:"reviewed_at"`
}
