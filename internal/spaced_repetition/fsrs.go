package spaced_repetition

import (
	"fmt"
	"math"
	"time"

	"github.com/example/langsched/pkg/models"
)

const (
	// DefaultRequestRetention is the recall probability targeted by NextInterval.
	DefaultRequestRetention = 0.9
	// DefaultMaximumInterval caps review intervals, in days.
	DefaultMaximumInterval = 36500

	// MinStability keeps retrievability away from a division blow-up.
	MinStability = 0.1
	// MinDifficulty and MaxDifficulty bound card difficulty.
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
)

// FSRS implements the Free Spaced Repetition Scheduler memory model.
// It only holds configuration: every method is a pure function of its
// arguments, so one value can be shared by schedulers of different users.
type FSRS struct {
	// Model parameters w[0..16]
	Weights Weights
	// Recall probability the next review is planned for
	RequestRetention float64
	// Longest interval in days; also the stability ceiling
	MaximumInterval int
}

// NewFSRS creates a new FSRS model with default settings
func NewFSRS() *FSRS {
	return &FSRS{
		Weights:          DefaultWeights,
		RequestRetention: DefaultRequestRetention,
		MaximumInterval:  DefaultMaximumInterval,
	}
}

// Validate checks weights, retention and maximum interval.
func (f *FSRS) Validate() error {
	if err := ValidateWeights(f.Weights); err != nil {
		return err
	}
	if math.IsNaN(f.RequestRetention) || f.RequestRetention <= 0 || f.RequestRetention >= 1 {
		return fmt.Errorf("%w: request retention %f out of range (0, 1)", ErrInvalidConfig, f.RequestRetention)
	}
	if f.MaximumInterval < 1 {
		return fmt.Errorf("%w: maximum interval %d must be positive", ErrInvalidConfig, f.MaximumInterval)
	}
	return nil
}

// Retrievability returns the estimated recall probability R = e^(-t/S) at now.
// A card that was never reviewed has no basis for an estimate and returns 0.
func (f *FSRS) Retrievability(card models.Card, now time.Time) float64 {
	if card.LastReview == nil {
		return 0
	}
	elapsed := elapsedDays(*card.LastReview, now)
	return math.Exp(-elapsed / floorStability(card.Stability))
}

// Schedule applies one exposure with the given rating and returns the updated card.
// The input card is not mutated. An invalid rating is an error, never clamped.
func (f *FSRS) Schedule(card models.Card, rating Rating, now time.Time) (models.Card, error) {
	if !rating.IsValid() {
		return models.Card{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}

	c := card.Clone()
	w := f.Weights
	g := float64(rating)

	if card.IsNew() {
		// First exposure: stability and difficulty come straight from the weights
		c.Stability = f.clampStability(w[rating-1])
		c.Difficulty = f.clampDifficulty(w[4] - (g-3)*w[5])
		if rating == Again {
			c.State = models.StateLearning
		} else {
			c.State = models.StateReview
		}
	} else {
		r := f.Retrievability(card, now)
		s := floorStability(card.Stability)
		c.Difficulty = f.clampDifficulty(f.clampDifficulty(card.Difficulty) - w[6]*(g-3))

		if rating == Again {
			c.Stability = f.forgetStability(c.Difficulty, s)
			c.Lapses++
			c.State = models.StateRelearning
		} else {
			c.Stability = f.recallStability(c.Difficulty, s, r, rating)
			c.State = models.StateReview
		}
	}

	reviewed := now
	c.LastReview = &reviewed
	c.Reps++

	return c, nil
}

// NextInterval returns the number of days until recall drops to RequestRetention.
// I(S) = round(S * ln(rr) / ln(0.9)), clamped to [1, MaximumInterval].
func (f *FSRS) NextInterval(stability float64) int {
	ivl := floorStability(stability) * math.Log(f.RequestRetention) / math.Log(0.9)
	if ivl >= float64(f.MaximumInterval) {
		return f.MaximumInterval
	}
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	return days
}

// NextReviewDate returns when the card should be reviewed next.
// A card that was never reviewed is due immediately.
func (f *FSRS) NextReviewDate(card models.Card, now time.Time) time.Time {
	if card.LastReview == nil {
		return now
	}
	return card.LastReview.AddDate(0, 0, f.NextInterval(card.Stability))
}

// Preview returns the card that each rating would produce at now.
func (f *FSRS) Preview(card models.Card, now time.Time) map[Rating]models.Card {
	result := make(map[Rating]models.Card, len(Ratings))
	for _, r := range Ratings {
		c, _ := f.Schedule(card, r, now)
		result[r] = c
	}
	return result
}

// Review is one historical exposure used by Replay.
type Review struct {
	Rating Rating    `json:"rating"`
	At     time.Time `json:"at"`
}

// Replay rebuilds a card by applying reviews in order.
func (f *FSRS) Replay(card models.Card, reviews []Review) (models.Card, error) {
	c := card.Clone()
	for i, rv := range reviews {
		next, err := f.Schedule(c, rv.Rating, rv.At)
		if err != nil {
			return models.Card{}, fmt.Errorf("review %d: %w", i, err)
		}
		c = next
	}
	return c, nil
}

// recallStability computes stability after a successful recall (Hard/Good/Easy).
// S' = S * (1 + e^w8 * (11-D) * S^(-w9) * (e^((1-R)*w10) - 1) * hardPenalty * easyBonus)
func (f *FSRS) recallStability(d, s, r float64, rating Rating) float64 {
	w := f.Weights
	hardPenalty := 1.0
	if rating == Hard {
		hardPenalty = w[15]
	}
	easyBonus := 1.0
	if rating == Easy {
		easyBonus = w[16]
	}
	next := s * (1 + math.Exp(w[8])*
		(11-d)*
		math.Pow(s, -w[9])*
		(math.Exp((1-r)*w[10])-1)*
		hardPenalty*easyBonus)
	return f.clampStability(next)
}

// forgetStability computes stability after a lapse (Again).
// S' = max(0.1, w11 * D^(-w12) * ((S+1)^w13 - 1))
func (f *FSRS) forgetStability(d, s float64) float64 {
	w := f.Weights
	next := w[11] * math.Pow(d, -w[12]) * (math.Pow(s+1, w[13]) - 1)
	return f.clampStability(next)
}

// clampStability keeps stability finite within [MinStability, MaximumInterval].
func (f *FSRS) clampStability(s float64) float64 {
	if math.IsNaN(s) || s < MinStability {
		return MinStability
	}
	if s > float64(f.MaximumInterval) {
		return float64(f.MaximumInterval)
	}
	return s
}

// clampDifficulty keeps difficulty within [1, 10]. A NaN difficulty falls
// back to the initial difficulty of a Good first review.
func (f *FSRS) clampDifficulty(d float64) float64 {
	if math.IsNaN(d) {
		d = f.Weights[4]
	}
	return math.Min(math.Max(d, MinDifficulty), MaxDifficulty)
}

// floorStability guards the S^(-w9) and t/S terms against zero stability.
func floorStability(s float64) float64 {
	if math.IsNaN(s) || s < MinStability {
		return MinStability
	}
	return s
}

func elapsedDays(from, to time.Time) float64 {
	d := to.Sub(from).Hours() / 24.0
	if d < 0 {
		return 0
	}
	return d
}
