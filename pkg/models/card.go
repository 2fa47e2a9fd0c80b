package models

import (
	"encoding"
	"fmt"
	"time"
)

// CardState is the FSRS lifecycle state of a card.
type CardState int

const (
	StateNew        CardState = iota // Never reviewed.
	StateLearning                    // First exposure failed.
	StateReview                      // In the long-term review cycle.
	StateRelearning                  // Forgotten after being in review.
)

var (
	cardStateNames = [...]string{
		StateNew:        "New",
		StateLearning:   "Learning",
		StateReview:     "Review",
		StateRelearning: "Relearning",
	}
	cardStateByName = map[string]CardState{
		"New":        StateNew,
		"Learning":   StateLearning,
		"Review":     StateReview,
		"Relearning": StateRelearning,
	}
)

var (
	_ fmt.Stringer             = CardState(0)
	_ encoding.TextMarshaler   = CardState(0)
	_ encoding.TextUnmarshaler = (*CardState)(nil)
)

// IsValid reports whether s is one of the four known states.
func (s CardState) IsValid() bool {
	return s >= StateNew && s <= StateRelearning
}

// String returns the state name, or "CardState(n)" for unknown values.
func (s CardState) String() string {
	if s.IsValid() {
		return cardStateNames[s]
	}
	return fmt.Sprintf("CardState(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s CardState) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid card state: %d", int(s))
	}
	return []byte(cardStateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CardState) UnmarshalText(text []byte) error {
	v, ok := cardStateByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid card state: %q", text)
	}
	*s = v
	return nil
}

// Card is the memory-decay state of one (user, object) pair.
// The zero value is a new card that has never been reviewed.
type Card struct {
	Difficulty float64    `json:"difficulty"`  // 1-10
	Stability  float64    `json:"stability"`   // days until retention drops to 90%
	LastReview *time.Time `json:"last_review"` // nil before the first review
	Reps       int        `json:"reps"`
	Lapses     int        `json:"lapses"`
	State      CardState  `json:"state"`
}

// IsNew reports whether the card has no review history.
func (c Card) IsNew() bool {
	return c.State == StateNew || c.LastReview == nil
}

// Clone returns a copy that shares no pointers with c.
func (c Card) Clone() Card {
	out := c
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return out
}
