package spaced_repetition

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

const epsilon = 1e-9

func reviewedCard(stability, difficulty float64, at time.Time) models.Card {
	return models.Card{
		Stability:  stability,
		Difficulty: difficulty,
		LastReview: &at,
		Reps:       1,
		State:      models.StateReview,
	}
}

func TestNewFSRS_Defaults(t *testing.T) {
	f := NewFSRS()
	assert.Equal(t, DefaultWeights, f.Weights)
	assert.Equal(t, 0.9, f.RequestRetention)
	assert.Equal(t, 36500, f.MaximumInterval)
	assert.NoError(t, f.Validate())
}

func TestFSRS_ValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *FSRS)
	}{
		{"retention zero", func(f *FSRS) { f.RequestRetention = 0 }},
		{"retention one", func(f *FSRS) { f.RequestRetention = 1 }},
		{"retention NaN", func(f *FSRS) { f.RequestRetention = math.NaN() }},
		{"max interval zero", func(f *FSRS) { f.MaximumInterval = 0 }},
		{"weight below bound", func(f *FSRS) { f.Weights[4] = 0.5 }},
		{"weight NaN", func(f *FSRS) { f.Weights[9] = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFSRS()
			tt.mutate(f)
			err := f.Validate()
			require.Error(t, err)
			assert.True(t, shared.IsInvalidArgument(err))
		})
	}
}

// --- Retrievability ---

func TestRetrievability_NeverReviewed(t *testing.T) {
	f := NewFSRS()
	assert.Equal(t, 0.0, f.Retrievability(models.Card{}, t0))
}

func TestRetrievability_AtReviewTime(t *testing.T) {
	f := NewFSRS()
	card := reviewedCard(5, 5, t0)
	assert.InDelta(t, 1.0, f.Retrievability(card, t0), epsilon)
}

func TestRetrievability_Formula(t *testing.T) {
	f := NewFSRS()
	card := reviewedCard(5, 5, t0)
	got := f.Retrievability(card, t0.Add(3*24*time.Hour))
	assert.InDelta(t, math.Exp(-3.0/5.0), got, epsilon)
}

func TestRetrievability_MonotonicDecay(t *testing.T) {
	f := NewFSRS()
	for _, s := range []float64{0.1, 1, 2.4, 30, 365} {
		card := reviewedCard(s, 5, t0)
		prev := f.Retrievability(card, t0)
		for h := 1; h <= 24*10; h += 7 {
			r := f.Retrievability(card, t0.Add(time.Duration(h)*time.Hour))
			assert.Greater(t, r, 0.0, "S=%v h=%d", s, h)
			assert.LessOrEqual(t, r, 1.0)
			assert.Less(t, r, prev, "R must strictly decrease, S=%v h=%d", s, h)
			prev = r
		}
	}
}

func TestRetrievability_ZeroStabilityUsesFloor(t *testing.T) {
	f := NewFSRS()
	card := reviewedCard(0, 5, t0)
	got := f.Retrievability(card, t0.Add(24*time.Hour))
	assert.InDelta(t, math.Exp(-1/MinStability), got, epsilon)
	assert.False(t, math.IsNaN(got))
}

func TestRetrievability_ClockSkew(t *testing.T) {
	f := NewFSRS()
	card := reviewedCard(5, 5, t0)
	assert.InDelta(t, 1.0, f.Retrievability(card, t0.Add(-time.Hour)), epsilon)
}

// --- Schedule ---

func TestSchedule_InvalidRating(t *testing.T) {
	f := NewFSRS()
	for _, r := range []Rating{0, 5, -1} {
		_, err := f.Schedule(models.Card{}, r, t0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidRating))
		assert.True(t, shared.IsInvalidArgument(err))
	}
}

func TestSchedule_FirstExposure(t *testing.T) {
	f := NewFSRS()
	w := DefaultWeights
	tests := []struct {
		rating    Rating
		wantState models.CardState
	}{
		{Again, models.StateLearning},
		{Hard, models.StateReview},
		{Good, models.StateReview},
		{Easy, models.StateReview},
	}
	for _, tt := range tests {
		t.Run(tt.rating.String(), func(t *testing.T) {
			c, err := f.Schedule(models.Card{}, tt.rating, t0)
			require.NoError(t, err)

			wantD := math.Min(math.Max(w[4]-(float64(tt.rating)-3)*w[5], 1), 10)
			assert.InDelta(t, w[tt.rating-1], c.Stability, epsilon)
			assert.InDelta(t, wantD, c.Difficulty, epsilon)
			assert.Equal(t, tt.wantState, c.State)
			assert.Equal(t, 1, c.Reps)
			assert.Equal(t, 0, c.Lapses)
			require.NotNil(t, c.LastReview)
			assert.True(t, c.LastReview.Equal(t0))
		})
	}
}

func TestSchedule_GoodThenAgain(t *testing.T) {
	f := NewFSRS()

	first, err := f.Schedule(models.Card{}, Good, t0)
	require.NoError(t, err)
	assert.InDelta(t, DefaultWeights[2], first.Stability, epsilon)
	assert.InDelta(t, DefaultWeights[4], first.Difficulty, epsilon)
	assert.Equal(t, models.StateReview, first.State)

	second, err := f.Schedule(first, Again, t0.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, models.StateRelearning, second.State)
	assert.Equal(t, 1, second.Lapses)
	assert.Equal(t, 2, second.Reps)
	assert.Less(t, second.Stability, first.Stability)

	w := DefaultWeights
	wantD := w[4] + 2*w[6]
	wantS := w[11] * math.Pow(wantD, -w[12]) * (math.Pow(first.Stability+1, w[13]) - 1)
	assert.InDelta(t, wantD, second.Difficulty, epsilon)
	assert.InDelta(t, wantS, second.Stability, epsilon)
}

func TestSchedule_RecallFormula(t *testing.T) {
	f := NewFSRS()
	w := DefaultWeights
	card := reviewedCard(4, 5, t0)
	now := t0.AddDate(0, 0, 6)
	r := f.Retrievability(card, now)

	tests := []struct {
		rating Rating
		factor float64
	}{
		{Hard, w[15]},
		{Good, 1},
		{Easy, w[16]},
	}
	for _, tt := range tests {
		t.Run(tt.rating.String(), func(t *testing.T) {
			c, err := f.Schedule(card, tt.rating, now)
			require.NoError(t, err)

			d := math.Min(math.Max(5-w[6]*(float64(tt.rating)-3), 1), 10)
			want := 4 * (1 + math.Exp(w[8])*(11-d)*math.Pow(4, -w[9])*(math.Exp((1-r)*w[10])-1)*tt.factor)
			assert.InDelta(t, d, c.Difficulty, epsilon)
			assert.InDelta(t, want, c.Stability, 1e-6)
			assert.Equal(t, models.StateReview, c.State)
		})
	}
}

func TestSchedule_EasyGrowsMoreThanHard(t *testing.T) {
	f := NewFSRS()
	card := reviewedCard(4, 5, t0)
	now := t0.AddDate(0, 0, 5)
	p := f.Preview(card, now)

	assert.Less(t, p[Hard].Stability, p[Good].Stability)
	assert.Less(t, p[Good].Stability, p[Easy].Stability)
	assert.Equal(t, models.StateRelearning, p[Again].State)
}

func TestSchedule_DoesNotMutateInput(t *testing.T) {
	f := NewFSRS()
	card := reviewedCard(4, 5, t0)
	before := *card.LastReview

	_, err := f.Schedule(card, Good, t0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 4.0, card.Stability)
	assert.Equal(t, 1, card.Reps)
	assert.True(t, card.LastReview.Equal(before))
}

func TestSchedule_BoundsForEveryRating(t *testing.T) {
	f := NewFSRS()
	starts := []models.Card{
		{},
		reviewedCard(0, 0, t0),
		reviewedCard(0.1, 10, t0),
		reviewedCard(36500, 1, t0),
		reviewedCard(math.NaN(), math.NaN(), t0),
		reviewedCard(2, 5, t0),
	}
	offsets := []time.Duration{0, time.Hour, 24 * time.Hour, 400 * 24 * time.Hour}

	for _, start := range starts {
		for _, off := range offsets {
			for _, r := range Ratings {
				c, err := f.Schedule(start, r, t0.Add(off))
				require.NoError(t, err)
				assert.False(t, math.IsNaN(c.Stability) || math.IsInf(c.Stability, 0))
				assert.GreaterOrEqual(t, c.Stability, MinStability)
				assert.GreaterOrEqual(t, c.Difficulty, MinDifficulty)
				assert.LessOrEqual(t, c.Difficulty, MaxDifficulty)
			}
		}
	}
}

func TestSchedule_LongChainStaysFinite(t *testing.T) {
	f := NewFSRS()
	card := models.Card{}
	now := t0
	for i := 0; i < 200; i++ {
		var err error
		card, err = f.Schedule(card, Easy, now)
		require.NoError(t, err)
		now = f.NextReviewDate(card, now)
	}
	assert.LessOrEqual(t, card.Stability, float64(f.MaximumInterval))
	assert.Equal(t, 200, card.Reps)
}

func TestSchedule_RoundTripDeterminism(t *testing.T) {
	f := NewFSRS()
	card, err := f.Schedule(models.Card{}, Good, t0)
	require.NoError(t, err)
	card, err = f.Schedule(card, Hard, t0.AddDate(0, 0, 3))
	require.NoError(t, err)

	data, err := json.Marshal(card)
	require.NoError(t, err)
	var decoded models.Card
	require.NoError(t, json.Unmarshal(data, &decoded))

	now := t0.AddDate(0, 0, 9)
	a, err := f.Schedule(card, Good, now)
	require.NoError(t, err)
	b, err := f.Schedule(decoded, Good, now)
	require.NoError(t, err)

	assert.Equal(t, math.Float64bits(a.Stability), math.Float64bits(b.Stability))
	assert.Equal(t, math.Float64bits(a.Difficulty), math.Float64bits(b.Difficulty))
	assert.Equal(t, a.State, b.State)
}

// --- NextInterval / NextReviewDate ---

func TestNextInterval(t *testing.T) {
	f := NewFSRS()
	assert.Equal(t, 5, f.NextInterval(5))
	assert.Equal(t, 1, f.NextInterval(0))
	assert.Equal(t, 1, f.NextInterval(0.4))
	assert.Equal(t, f.MaximumInterval, f.NextInterval(1e9))
	assert.Equal(t, f.MaximumInterval, f.NextInterval(math.Inf(1)))
}

func TestNextInterval_LowerRetentionLongerInterval(t *testing.T) {
	f90 := NewFSRS()
	f80 := NewFSRS()
	f80.RequestRetention = 0.8

	want := int(math.Round(10 * math.Log(0.8) / math.Log(0.9)))
	assert.Equal(t, want, f80.NextInterval(10))
	assert.Greater(t, f80.NextInterval(10), f90.NextInterval(10))
}

func TestNextInterval_MaximumClamp(t *testing.T) {
	f := NewFSRS()
	f.MaximumInterval = 365
	assert.Equal(t, 365, f.NextInterval(100000))
}

func TestNextReviewDate(t *testing.T) {
	f := NewFSRS()
	assert.True(t, f.NextReviewDate(models.Card{}, t0).Equal(t0))

	card := reviewedCard(7.2, 5, t0)
	assert.True(t, f.NextReviewDate(card, t0.AddDate(0, 0, 2)).Equal(t0.AddDate(0, 0, 7)))
}

// --- Replay ---

func TestReplay_MatchesSequentialSchedule(t *testing.T) {
	f := NewFSRS()
	reviews := []Review{
		{Rating: Good, At: t0},
		{Rating: Again, At: t0.AddDate(0, 0, 10)},
		{Rating: Good, At: t0.AddDate(0, 0, 11)},
	}
	got, err := f.Replay(models.Card{}, reviews)
	require.NoError(t, err)

	want := models.Card{}
	for _, rv := range reviews {
		want, err = f.Schedule(want, rv.Rating, rv.At)
		require.NoError(t, err)
	}
	assert.Equal(t, want.Stability, got.Stability)
	assert.Equal(t, want.Difficulty, got.Difficulty)
	assert.Equal(t, 3, got.Reps)
	assert.Equal(t, 1, got.Lapses)
}

func TestReplay_InvalidRating(t *testing.T) {
	f := NewFSRS()
	_, err := f.Replay(models.Card{}, []Review{{Rating: Good, At: t0}, {Rating: 9, At: t0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRating))
	assert.Contains(t, err.Error(), "review 1")
}
