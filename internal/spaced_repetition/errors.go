package spaced_repetition

import "github.com/example/langsched/internal/shared"

// Sentinel errors for the memory model.
// All of them are caller misuse: errors.Is(err, shared.ErrInvalidArgument) holds.
var (
	ErrInvalidRating  = shared.NewError("fsrs", "Schedule", shared.ErrInvalidArgument, "invalid rating")
	ErrInvalidWeights = shared.NewError("fsrs", "Validate", shared.ErrInvalidArgument, "weights out of bounds")
	ErrInvalidConfig  = shared.NewError("fsrs", "Validate", shared.ErrInvalidArgument, "invalid scheduler configuration")
)
