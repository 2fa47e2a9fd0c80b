// Package learning runs the adaptive loop for stored learners: it loads the
// curriculum and mastery states, ranks them, cuts sessions and feeds answers
// back into the mastery engine.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/langsched/internal/mastery"
	"github.com/example/langsched/internal/priority"
	"github.com/example/langsched/internal/queue"
	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/internal/spaced_repetition"
	"github.com/example/langsched/pkg/models"
)

// Defaults for newly registered learners
const (
	DefaultSessionSize      = 10
	DefaultNotificationHour = 9
)

// UserStore loads and updates learners
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	UpdateState(ctx context.Context, id int64, state models.UserState) error
}

// ObjectStore reads the curriculum
type ObjectStore interface {
	GetByID(ctx context.Context, id string) (*models.LanguageObject, error)
	GetAll(ctx context.Context) ([]models.LanguageObject, error)
}

// MasteryStore persists mastery states
type MasteryStore interface {
	Get(ctx context.Context, userID int64, objectID string) (models.MasteryState, error)
	GetByUser(ctx context.Context, userID int64) (map[string]models.MasteryState, error)
	Save(ctx context.Context, state models.MasteryState) error
	// SaveReview writes the state and its review log atomically
	SaveReview(ctx context.Context, state models.MasteryState, entry *models.ReviewLog) error
}

// ReviewLogStore reads review history
type ReviewLogStore interface {
	History(ctx context.Context, userID int64) ([]models.ReviewLog, error)
}

// Options tune session cutting
type Options struct {
	NewItemRatio float64
	SessionSize  int // used when a learner has none configured
}

// Outcome is the result of one recorded response
type Outcome struct {
	State      models.MasteryState
	Transition mastery.Transition
	Rating     int
	CueLevel   int // recommended scaffolding for the next exposure
	NextReview time.Time
}

// Stats summarizes a learner's progress
type Stats struct {
	Queue    queue.Summary
	Stages   map[models.Stage]int
	Mastered int
}

// Service orchestrates repositories and the scheduling core.
// Updates of one learner are serialized; different learners proceed in parallel.
type Service struct {
	users   UserStore
	objects ObjectStore
	states  MasteryStore
	logs    ReviewLogStore
	engine  *mastery.Engine
	builder *queue.Builder
	opts    Options

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewService creates a learning service
func NewService(users UserStore, objects ObjectStore, states MasteryStore, logs ReviewLogStore,
	engine *mastery.Engine, builder *queue.Builder, opts Options) *Service {
	if opts.SessionSize <= 0 {
		opts.SessionSize = DefaultSessionSize
	}
	return &Service{
		users:   users,
		objects: objects,
		states:  states,
		logs:    logs,
		engine:  engine,
		builder: builder,
		opts:    opts,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// lockUser blocks until the learner's lock is held and returns its release
func (s *Service) lockUser(userID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// RegisterUser returns the stored learner or creates one with intermediate defaults
func (s *Service) RegisterUser(ctx context.Context, id int64, username, firstName string) (*models.User, error) {
	defer s.lockUser(id)()

	user, err := s.users.GetByID(ctx, id)
	if err == nil {
		return user, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	user = &models.User{
		ID:        id,
		Username:  username,
		FirstName: firstName,
		State: models.UserState{
			Theta:   0,
			Weights: priority.WeightsForTheta(0),
		},
		SessionSize:         s.opts.SessionSize,
		NotificationEnabled: true,
		NotificationHour:    DefaultNotificationHour,
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("Registered user %d (%s)", id, username)
	return user, nil
}

// BuildQueue ranks the whole curriculum for a learner
func (s *Service) BuildQueue(ctx context.Context, userID int64, now time.Time) ([]queue.Item, error) {
	defer s.lockUser(userID)()
	_, items, err := s.buildQueue(ctx, userID, now)
	return items, err
}

func (s *Service) buildQueue(ctx context.Context, userID int64, now time.Time) (*models.User, []queue.Item, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	objects, err := s.objects.GetAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	states, err := s.states.GetByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.builder.Build(objects, user.State, states, now)
	if err != nil {
		return nil, nil, err
	}
	return user, items, nil
}

// NextSession cuts a session from a freshly built queue
func (s *Service) NextSession(ctx context.Context, userID int64, now time.Time) ([]queue.Item, error) {
	defer s.lockUser(userID)()

	user, items, err := s.buildQueue(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	size := user.SessionSize
	if size <= 0 {
		size = s.opts.SessionSize
	}
	return queue.SessionItems(items, size, s.opts.NewItemRatio)
}

// RecordResponse ingests one answer, stores the new state and logs the review
func (s *Service) RecordResponse(ctx context.Context, userID int64, objectID string, resp models.Response, now time.Time) (Outcome, error) {
	if err := mastery.ValidateResponse(resp); err != nil {
		return Outcome{}, err
	}

	defer s.lockUser(userID)()

	if _, err := s.objects.GetByID(ctx, objectID); err != nil {
		return Outcome{}, err
	}

	before, err := s.states.Get(ctx, userID, objectID)
	if errors.Is(err, shared.ErrNotFound) {
		before = mastery.NewState(userID, objectID)
	} else if err != nil {
		return Outcome{}, err
	}

	after, err := s.engine.IngestResponse(before, resp, now)
	if err != nil {
		return Outcome{}, err
	}
	rating := s.engine.RatingFor(resp)
	transition := mastery.Compare(before, after)
	entry := &models.ReviewLog{
		UserID:         userID,
		ObjectID:       objectID,
		Rating:         int(rating),
		Correct:        resp.Correct,
		CueLevel:       resp.CueLevel,
		ResponseTimeMs: resp.ResponseTimeMs,
		StageBefore:    transition.From,
		StageAfter:     transition.To,
		ReviewedAt:     now,
	}
	if err := s.states.SaveReview(ctx, after, entry); err != nil {
		return Outcome{}, err
	}

	if transition.Changed() {
		log.Printf("User %d object %s: stage %s -> %s", userID, objectID, transition.From, transition.To)
	}

	return Outcome{
		State:      after,
		Transition: transition,
		Rating:     int(rating),
		CueLevel:   mastery.RecommendedCueLevel(after),
		NextReview: s.engine.FSRS().NextReviewDate(after.Card, now),
	}, nil
}

// DueCount returns how many known objects are due for review
func (s *Service) DueCount(ctx context.Context, userID int64, now time.Time) (int, error) {
	items, err := s.BuildQueue(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	return queue.Summarize(items).Due, nil
}

// Stats returns the queue summary and the stage distribution of a learner
func (s *Service) Stats(ctx context.Context, userID int64, now time.Time) (Stats, error) {
	defer s.lockUser(userID)()

	_, items, err := s.buildQueue(ctx, userID, now)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Queue:  queue.Summarize(items),
		Stages: make(map[models.Stage]int),
	}
	for _, it := range items {
		if it.Mastery == nil {
			continue
		}
		stats.Stages[it.Mastery.Stage]++
		if mastery.IsMastered(*it.Mastery) {
			stats.Mastered++
		}
	}
	return stats, nil
}

// SetLevel stores a new ability estimate and resets the weights to its preset
func (s *Service) SetLevel(ctx context.Context, userID int64, theta float64) (models.UserState, error) {
	defer s.lockUser(userID)()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.UserState{}, err
	}
	state := user.State
	state.Theta = theta
	state.Weights = priority.WeightsForTheta(theta)
	if err := priority.ValidateUser(state); err != nil {
		return models.UserState{}, err
	}
	if err := s.users.UpdateState(ctx, userID, state); err != nil {
		return models.UserState{}, err
	}
	log.Printf("User %d level set to %s (theta %.2f)", userID, priority.InferLevel(theta), theta)
	return state, nil
}

// Forecast returns the next review date of item for each possible rating
func (s *Service) Forecast(item queue.Item, now time.Time) map[spaced_repetition.Rating]time.Time {
	card := models.Card{}
	if item.Mastery != nil {
		card = item.Mastery.Card
	}
	fsrs := s.engine.FSRS()
	out := make(map[spaced_repetition.Rating]time.Time, len(spaced_repetition.Ratings))
	for rating, c := range fsrs.Preview(card, now) {
		out[rating] = fsrs.NextReviewDate(c, now)
	}
	return out
}

// RebuildCards replays a learner's review history through the current FSRS
// weights and re-derives the stages. Accuracies are kept. It returns the
// number of states that changed.
func (s *Service) RebuildCards(ctx context.Context, userID int64) (int, error) {
	defer s.lockUser(userID)()

	states, err := s.states.GetByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	history, err := s.logs.History(ctx, userID)
	if err != nil {
		return 0, err
	}

	reviews := make(map[string][]spaced_repetition.Review)
	for _, l := range history {
		reviews[l.ObjectID] = append(reviews[l.ObjectID], spaced_repetition.Review{
			Rating: spaced_repetition.Rating(l.Rating),
			At:     l.ReviewedAt,
		})
	}

	changed := 0
	for objectID, state := range states {
		rs, ok := reviews[objectID]
		if !ok {
			continue
		}
		card, err := s.engine.FSRS().Replay(models.Card{}, rs)
		if err != nil {
			return changed, fmt.Errorf("failed to replay %s: %w", objectID, err)
		}
		next := state
		next.Card = card
		next.Stage = s.engine.DeriveStage(next)
		if sameCard(state.Card, next.Card) && state.Stage == next.Stage {
			continue
		}
		if err := s.states.Save(ctx, next); err != nil {
			return changed, err
		}
		changed++
	}
	if changed > 0 {
		log.Printf("User %d: rebuilt %d cards from %d reviews", userID, changed, len(history))
	}
	return changed, nil
}

func sameCard(a, b models.Card) bool {
	if (a.LastReview == nil) != (b.LastReview == nil) {
		return false
	}
	if a.LastReview != nil && !a.LastReview.Equal(*b.LastReview) {
		return false
	}
	return a.Difficulty == b.Difficulty && a.Stability == b.Stability &&
		a.Reps == b.Reps && a.Lapses == b.Lapses && a.State == b.State
}
