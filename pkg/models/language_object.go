package models

import "time"

// ObjectKind is the linguistic category of a language object.
type ObjectKind string

const (
	KindWord     ObjectKind = "word"
	KindMorpheme ObjectKind = "morpheme"
	KindGrammar  ObjectKind = "grammar"
)

// LanguageObject is a learnable item together with the scalar signals that
// feature extractors produce for it. Signals are read-only for the scheduler.
type LanguageObject struct {
	ID                     string     `json:"id" db:"id"`
	Kind                   ObjectKind `json:"kind" db:"kind"`
	Content                string     `json:"content" db:"content"`                                 // surface form shown to the learner
	Translation            string     `json:"translation" db:"translation"`                         // optional gloss
	Frequency              float64    `json:"frequency" db:"frequency"`                             // 0-1
	RelationalDensity      float64    `json:"relational_density" db:"relational_density"`           // 0-1
	ContextualContribution float64    `json:"contextual_contribution" db:"contextual_contribution"` // 0-1
	IRTDifficulty          float64    `json:"irt_difficulty" db:"irt_difficulty"`                   // logit scale, -3..3
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
}
