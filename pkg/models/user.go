package models

import "time"

// PriorityWeights weighs the three value signals of an object.
// They need not sum to 1, but 1.0 is the calibrated default.
type PriorityWeights struct {
	F float64 `json:"f" yaml:"f"` // frequency
	R float64 `json:"r" yaml:"r"` // relational density
	E float64 `json:"e" yaml:"e"` // contextual contribution
}

// UserState is the learner-level input of the priority model.
type UserState struct {
	Theta      float64         `json:"theta"` // global ability estimate, -3..3
	Weights    PriorityWeights `json:"weights"`
	L1Language string          `json:"l1_language"` // empty when unknown
}

// User represents a Telegram user learning with the bot
type User struct {
	ID                  int64     `json:"id"` // Telegram User ID
	Username            string    `json:"username"`
	FirstName           string    `json:"first_name"`
	State               UserState `json:"state"`
	SessionSize         int       `json:"session_size"`
	NotificationEnabled bool      `json:"notification_enabled"`
	NotificationHour    int       `json:"notification_hour"` // Hour of day for notifications (0-23)
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
