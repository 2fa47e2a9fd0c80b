package queue

import (
	"math"
	"time"
)

const (
	// NewItemUrgency boosts items without a due date: above "not due", below overdue.
	NewItemUrgency = 1.5
	// MaxUrgency caps the overdue ramp.
	MaxUrgency = 3.0
	// urgencyPerDay is the slope of the overdue ramp.
	urgencyPerDay = 0.5
)

// Urgency converts a due date into a multiplier boost.
// nil -> 1.5, not yet due -> 0, otherwise min(3, 1 + 0.5*daysOverdue).
func Urgency(nextReview *time.Time, now time.Time) float64 {
	if nextReview == nil {
		return NewItemUrgency
	}
	daysOverdue := now.Sub(*nextReview).Hours() / 24.0
	if daysOverdue < 0 {
		return 0
	}
	return math.Min(MaxUrgency, 1+urgencyPerDay*daysOverdue)
}

// FinalScore merges priority and urgency: priority * (1 + urgency).
func FinalScore(priority, urgency float64) float64 {
	return priority * (1 + urgency)
}
