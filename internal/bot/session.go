package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/langsched/internal/mastery"
	"github.com/example/langsched/internal/queue"
	"github.com/example/langsched/pkg/models"
)

// Callback data prefixes of the practice card
const (
	actionAnswer = "ans"
	actionHint   = "hint"

	verdictCorrect   = "c"
	verdictIncorrect = "x"
)

// learningSession is a user's ongoing practice run
type learningSession struct {
	Items      []queue.Item
	CurrentIdx int
	CueLevel   int       // scaffolding revealed for the current item
	AskedAt    time.Time // when the current item was shown
	Correct    int
	Touched    time.Time
}

func newLearningSession(items []queue.Item, now time.Time) *learningSession {
	return &learningSession{
		Items:   items,
		AskedAt: now,
		Touched: now,
	}
}

// Current returns the item being asked, or false when the session is over
func (s *learningSession) Current() (queue.Item, bool) {
	if s.CurrentIdx >= len(s.Items) {
		return queue.Item{}, false
	}
	return s.Items[s.CurrentIdx], true
}

// RevealHint raises the cue level of the current item and returns it
func (s *learningSession) RevealHint(now time.Time) int {
	item, ok := s.Current()
	if !ok {
		return 0
	}
	level := 1
	if item.Mastery != nil {
		if rec := mastery.RecommendedCueLevel(*item.Mastery); rec > level {
			level = rec
		}
	}
	if s.CueLevel >= level {
		level = s.CueLevel + 1
	}
	if level > mastery.MaxCueLevel {
		level = mastery.MaxCueLevel
	}
	s.CueLevel = level
	s.Touched = now
	return level
}

// Answer builds the response for the current item and advances the session
func (s *learningSession) Answer(correct bool, now time.Time, maxAnswer time.Duration) models.Response {
	elapsed := now.Sub(s.AskedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if maxAnswer > 0 && elapsed > maxAnswer {
		elapsed = maxAnswer
	}
	resp := models.Response{
		Correct:        correct,
		CueLevel:       s.CueLevel,
		ResponseTimeMs: elapsed.Milliseconds(),
	}
	if correct {
		s.Correct++
	}
	s.CurrentIdx++
	s.CueLevel = 0
	s.AskedAt = now
	s.Touched = now
	return resp
}

// Expired reports whether the session was idle for longer than ttl
func (s *learningSession) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.Touched) > ttl
}

// answerData encodes an answer button
func answerData(objectID, verdict string) string {
	return actionAnswer + ":" + objectID + ":" + verdict
}

// hintData encodes a hint button
func hintData(objectID string) string {
	return actionHint + ":" + objectID
}

// parseCallback splits callback data into action, object ID and verdict.
// Object IDs may contain colons, the verdict never does.
func parseCallback(data string) (action, objectID, verdict string, err error) {
	action, rest, ok := strings.Cut(data, ":")
	if !ok || rest == "" {
		return "", "", "", fmt.Errorf("malformed callback %q", data)
	}
	switch action {
	case actionHint:
		return action, rest, "", nil
	case actionAnswer:
		i := strings.LastIndex(rest, ":")
		if i <= 0 {
			return "", "", "", fmt.Errorf("malformed answer %q", data)
		}
		objectID, verdict = rest[:i], rest[i+1:]
		if verdict != verdictCorrect && verdict != verdictIncorrect {
			return "", "", "", fmt.Errorf("unknown verdict %q", verdict)
		}
		return action, objectID, verdict, nil
	default:
		return action, rest, "", nil
	}
}

// formatHint reveals more of the translation as the cue level grows:
// 1 first letter, 2 first half, 3 everything
func formatHint(translation string, level int) string {
	if translation == "" || level <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(translation)
	var shown int
	switch {
	case level >= mastery.MaxCueLevel:
		return translation
	case level == 2:
		shown = (n + 1) / 2
	default:
		shown = 1
	}
	runes := []rune(translation)
	return string(runes[:shown]) + strings.Repeat("•", n-shown)
}

// wordForm returns the Russian plural of "слово" for count
func wordForm(count int) string {
	n := count % 100
	if n >= 11 && n <= 14 {
		return "слов"
	}
	switch n % 10 {
	case 1:
		return "слово"
	case 2, 3, 4:
		return "слова"
	default:
		return "слов"
	}
}

var stageLabels = map[models.Stage]string{
	models.StageUnknown:     "🆕 Новое",
	models.StageRecognition: "👀 Узнаю",
	models.StageRecall:      "💭 Вспоминаю",
	models.StageControlled:  "✍️ Владею",
	models.StageAutomatic:   "⚡ Автоматизм",
}

func stageLabel(s models.Stage) string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return s.String()
}
