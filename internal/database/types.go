package database

import (
	"database/sql"
	"time"

	"github.com/example/langsched/pkg/models"
)

// userRow is the flat users table layout
type userRow struct {
	ID                  int64     `db:"id"`
	Username            string    `db:"username"`
	FirstName           string    `db:"first_name"`
	Theta               float64   `db:"theta"`
	WeightF             float64   `db:"weight_f"`
	WeightR             float64   `db:"weight_r"`
	WeightE             float64   `db:"weight_e"`
	L1Language          string    `db:"l1_language"`
	SessionSize         int       `db:"session_size"`
	NotificationEnabled bool      `db:"notification_enabled"`
	NotificationHour    int       `db:"notification_hour"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func newUserRow(u *models.User) userRow {
	return userRow{
		ID:                  u.ID,
		Username:            u.Username,
		FirstName:           u.FirstName,
		Theta:               u.State.Theta,
		WeightF:             u.State.Weights.F,
		WeightR:             u.State.Weights.R,
		WeightE:             u.State.Weights.E,
		L1Language:          u.State.L1Language,
		SessionSize:         u.SessionSize,
		NotificationEnabled: u.NotificationEnabled,
		NotificationHour:    u.NotificationHour,
		CreatedAt:           u.CreatedAt.UTC(),
		UpdatedAt:           u.UpdatedAt.UTC(),
	}
}

func (r userRow) toModel() models.User {
	return models.User{
		ID:        r.ID,
		Username:  r.Username,
		FirstName: r.FirstName,
		State: models.UserState{
			Theta:      r.Theta,
			Weights:    models.PriorityWeights{F: r.WeightF, R: r.WeightR, E: r.WeightE},
			L1Language: r.L1Language,
		},
		SessionSize:         r.SessionSize,
		NotificationEnabled: r.NotificationEnabled,
		NotificationHour:    r.NotificationHour,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
}

// masteryRow is the mastery_states layout with the card flattened
type masteryRow struct {
	UserID              int64        `db:"user_id"`
	ObjectID            string       `db:"object_id"`
	Stage               int          `db:"stage"`
	CardDifficulty      float64      `db:"card_difficulty"`
	CardStability       float64      `db:"card_stability"`
	CardLastReview      sql.NullTime `db:"card_last_review"`
	CardReps            int          `db:"card_reps"`
	CardLapses          int          `db:"card_lapses"`
	CardState           int          `db:"card_state"`
	CueFreeAccuracy     float64      `db:"cue_free_accuracy"`
	CueAssistedAccuracy float64      `db:"cue_assisted_accuracy"`
	ExposureCount       int          `db:"exposure_count"`
	UpdatedAt           time.Time    `db:"updated_at"`
}

func newMasteryRow(s models.MasteryState) masteryRow {
	row := masteryRow{
		UserID:              s.UserID,
		ObjectID:            s.ObjectID,
		Stage:               int(s.Stage),
		CardDifficulty:      s.Card.Difficulty,
		CardStability:       s.Card.Stability,
		CardReps:            s.Card.Reps,
		CardLapses:          s.Card.Lapses,
		CardState:           int(s.Card.State),
		CueFreeAccuracy:     s.CueFreeAccuracy,
		CueAssistedAccuracy: s.CueAssistedAccuracy,
		ExposureCount:       s.ExposureCount,
		UpdatedAt:           s.UpdatedAt.UTC(),
	}
	if s.Card.LastReview != nil {
		row.CardLastReview = sql.NullTime{Time: s.Card.LastReview.UTC(), Valid: true}
	}
	return row
}

func (r masteryRow) toModel() models.MasteryState {
	card := models.Card{
		Difficulty: r.CardDifficulty,
		Stability:  r.CardStability,
		Reps:       r.CardReps,
		Lapses:     r.CardLapses,
		State:      models.CardState(r.CardState),
	}
	if r.CardLastReview.Valid {
		t := r.CardLastReview.Time.UTC()
		card.LastReview = &t
	}
	return models.MasteryState{
		UserID:              r.UserID,
		ObjectID:            r.ObjectID,
		Stage:               models.Stage(r.Stage),
		Card:                card,
		CueFreeAccuracy:     r.CueFreeAccuracy,
		CueAssistedAccuracy: r.CueAssistedAccuracy,
		ExposureCount:       r.ExposureCount,
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
}
