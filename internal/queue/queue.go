// Package queue ranks language objects for a learner and cuts bounded
// sessions out of the ranking.
//
// Queues are rebuilt from scratch on every request; no index is kept between
// calls. The input set is a learner's active curriculum, so a full pass is cheap.
package queue

import (
	"math"
	"sort"
	"time"

	"github.com/example/langsched/internal/priority"
	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/internal/spaced_repetition"
	"github.com/example/langsched/pkg/models"
)

// DefaultNewItemRatio is the share of a session reserved for new objects.
const DefaultNewItemRatio = 0.3

// Item is one ranked entry of a queue. It is never persisted.
type Item struct {
	Object     models.LanguageObject `json:"object"`
	Priority   float64               `json:"priority"`
	Urgency    float64               `json:"urgency"`
	FinalScore float64               `json:"final_score"`
	Mastery    *models.MasteryState  `json:"mastery,omitempty"`
	NextReview *time.Time            `json:"next_review,omitempty"`
}

// HasMastery reports whether the learner has a mastery state for the object.
func (it Item) HasMastery() bool {
	return it.Mastery != nil
}

// IsNew reports whether the object has not been learned yet (no state or stage 0).
func (it Item) IsNew() bool {
	return it.Mastery == nil || it.Mastery.Stage == models.StageUnknown
}

// IsDue reports whether a known object is scheduled for review now.
func (it Item) IsDue() bool {
	return it.Urgency > 0 && it.Mastery != nil
}

// Builder ranks objects. It holds configuration only and is safe for concurrent use.
type Builder struct {
	fsrs     *spaced_repetition.FSRS
	priority *priority.Model
}

// NewBuilder creates a queue builder.
func NewBuilder(fsrs *spaced_repetition.FSRS, model *priority.Model) *Builder {
	return &Builder{
		fsrs:     fsrs,
		priority: model,
	}
}

// Build scores every object and returns the items sorted by FinalScore,
// highest first. Ties keep the order of objects.
// Objects with invalid signals fail the whole build with a DataError.
func (b *Builder) Build(objects []models.LanguageObject, user models.UserState, mastery map[string]models.MasteryState, now time.Time) ([]Item, error) {
	if err := priority.ValidateUser(user); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(objects))
	for _, obj := range objects {
		if err := priority.ValidateSignal(obj); err != nil {
			return nil, err
		}

		item := Item{
			Object:   obj,
			Priority: b.priority.Priority(obj, user),
		}

		if st, ok := mastery[obj.ID]; ok {
			st := st
			item.Mastery = &st
			// A state whose card was never reviewed has no due date yet
			if st.Card.LastReview != nil {
				next := b.fsrs.NextReviewDate(st.Card, now)
				item.NextReview = &next
			}
		}

		item.Urgency = Urgency(item.NextReview, now)
		item.FinalScore = FinalScore(item.Priority, item.Urgency)
		items = append(items, item)
	}

	sortByScore(items)
	return items, nil
}

// SessionItems cuts a bounded session out of a ranked queue.
// floor(sessionSize*newItemRatio) slots go to new items and the remaining
// slots to due items; unused slots are not backfilled. The result is sorted
// by FinalScore with ties kept in queue order.
func SessionItems(queue []Item, sessionSize int, newItemRatio float64) ([]Item, error) {
	if sessionSize < 0 {
		return nil, shared.Invalid("queue", "SessionItems", "negative session size %d", sessionSize)
	}
	if math.IsNaN(newItemRatio) || newItemRatio < 0 || newItemRatio > 1 {
		return nil, shared.Invalid("queue", "SessionItems", "new item ratio %v out of range [0, 1]", newItemRatio)
	}
	if sessionSize == 0 || len(queue) == 0 {
		return []Item{}, nil
	}

	newQuota := int(float64(sessionSize) * newItemRatio)
	dueQuota := sessionSize - newQuota

	picked := make([]bool, len(queue))
	for i, it := range queue {
		if newQuota == 0 {
			break
		}
		if it.IsNew() {
			picked[i] = true
			newQuota--
		}
	}
	for i, it := range queue {
		if dueQuota == 0 {
			break
		}
		if it.IsDue() && !picked[i] {
			picked[i] = true
			dueQuota--
		}
	}

	// Collect in queue order so equal scores keep their queue position
	session := make([]Item, 0, sessionSize)
	for i, it := range queue {
		if picked[i] {
			session = append(session, it)
		}
	}

	sortByScore(session)
	if len(session) > sessionSize {
		session = session[:sessionSize]
	}
	return session, nil
}

// Summary counts the kinds of items in a queue.
type Summary struct {
	Total int `json:"total"`
	Due   int `json:"due"`
	New   int `json:"new"`
}

// Summarize counts due and new items of a queue.
func Summarize(queue []Item) Summary {
	s := Summary{Total: len(queue)}
	for _, it := range queue {
		if it.IsDue() {
			s.Due++
		}
		if it.IsNew() {
			s.New++
		}
	}
	return s
}

func sortByScore(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].FinalScore > items[j].FinalScore
	})
}
