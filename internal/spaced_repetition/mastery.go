package spaced_repetition

import (
	"fmt"
	"strings"

	"github.com/example/wordwindow/pkg/models"
)

// Direction selects which side of a word the learner is asked to produce
type Direction string

const (
	// ForeignToEnglish shows the foreign word and expects the English one
	ForeignToEnglish Direction = "foreign_to_english"
	// EnglishToForeign shows the English word and expects the foreign one
	EnglishToForeign Direction = "english_to_foreign"
)

// ParseDirection converts a configuration value into a Direction
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case ForeignToEnglish, "":
		return ForeignToEnglish, nil
	case EnglishToForeign:
		return EnglishToForeign, nil
	}
	return "", fmt.Errorf("unknown study direction %q", s)
}

// Policy decides answer correctness and promotion to "known"
type Policy struct {
	// Минимальное число правильных ответов
	KnownThreshold int
	// Минимальный перевес правильных ответов над неправильными
	KnownDelta int
	Direction  Direction
}

// NewPolicy создает политику с настройками по умолчанию
func NewPolicy() *Policy {
	return &Policy{
		KnownThreshold: 5,
		KnownDelta:     3,
		Direction:      ForeignToEnglish,
	}
}

// Prompt returns the side of the word shown to the learner
func (p *Policy) Prompt(w *models.Word) string {
	if p.Direction == EnglishToForeign {
		return w.English
	}
	return w.Foreign
}

// Expected returns the side of the word the learner must answer with
func (p *Policy) Expected(w *models.Word) string {
	if p.Direction == EnglishToForeign {
		return w.Foreign
	}
	return w.English
}

// Matches compares an answer without touching the counters
func (p *Policy) Matches(w *models.Word, answer string) bool {
	return strings.EqualFold(answer, p.Expected(w))
}

// CheckDefinition grades an answer and records it on the word
func (p *Policy) CheckDefinition(w *models.Word, answer string) bool {
	correct := p.Matches(w, answer)
	w.CountSeen++
	if correct {
		w.CountCorrect++
	} else {
		w.CountIncorrect++
	}
	return correct
}

// CheckIfKnown promotes the word when both thresholds are met.
// It never clears an existing known flag.
func (p *Policy) CheckIfKnown(w *models.Word) bool {
	if w.CountCorrect >= p.KnownThreshold && w.CountCorrect-w.CountIncorrect >= p.KnownDelta {
		w.IsKnown = true
		return true
	}
	return false
}

// SetKnown marks the word known regardless of its counters
func SetKnown(w *models.Word) {
	w.IsKnown = true
}
