// Package quiz turns window samples into flashcard and multiple choice
// questions.
package quiz

import (
	"math/rand"
	"strings"
	"time"

	"github.com/example/wordwindow/internal/spaced_repetition"
	"github.com/example/wordwindow/pkg/models"
)

// QuestionType represents different kinds of questions
type QuestionType string

const (
	// MultipleChoice asks the learner to pick one of several answers
	MultipleChoice QuestionType = "multiple_choice"
	// TextInput asks the learner to type the answer
	TextInput QuestionType = "text_input"
)

// Question is a single prompt for one word
type Question struct {
	Word         models.Word  `json:"word"`
	Prompt       string       `json:"prompt"`
	Options      []string     `json:"options,omitempty"`
	CorrectIndex int          `json:"correct_index"`
	QuestionType QuestionType `json:"question_type"`
}

// Option returns the answer text behind an option index
func (q Question) Option(index int) (string, bool) {
	if index < 0 || index >= len(q.Options) {
		return "", false
	}
	return q.Options[index], true
}

// Builder creates questions for a given study direction
type Builder struct {
	policy      *spaced_repetition.Policy
	optionCount int
	rnd         *rand.Rand
}

// NewBuilder creates a builder; rnd may be nil
func NewBuilder(policy *spaced_repetition.Policy, optionCount int, rnd *rand.Rand) *Builder {
	if optionCount < 2 {
		optionCount = 2
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{policy: policy, optionCount: optionCount, rnd: rnd}
}

// TextInput builds a typed-answer question
func (b *Builder) TextInput(word models.Word) Question {
	return Question{
		Word:         word,
		Prompt:       b.policy.Prompt(&word),
		CorrectIndex: -1,
		QuestionType: TextInput,
	}
}

// MultipleChoice builds a question for word with wrong options taken from
// the other candidates. Options that would read the same as the correct
// answer are left out.
func (b *Builder) MultipleChoice(word models.Word, candidates []models.Word) Question {
	correct := b.policy.Expected(&word)
	options := []string{correct}
	used := map[string]bool{strings.ToLower(correct): true}

	others := make([]models.Word, 0, len(candidates))
	for _, c := range candidates {
		if c.Foreign != word.Foreign {
			others = append(others, c)
		}
	}
	b.rnd.Shuffle(len(others), func(i, j int) {
		others[i], others[j] = others[j], others[i]
	})
	for i := 0; i < len(others) && len(options) < b.optionCount; i++ {
		opt := b.policy.Expected(&others[i])
		if opt == "" || used[strings.ToLower(opt)] {
			continue
		}
		used[strings.ToLower(opt)] = true
		options = append(options, opt)
	}

	// Перемешиваем варианты, отслеживая правильный
	correctIndex := 0
	b.rnd.Shuffle(len(options), func(i, j int) {
		if i == correctIndex {
			correctIndex = j
		} else if j == correctIndex {
			correctIndex = i
		}
		options[i], options[j] = options[j], options[i]
	})

	return Question{
		Word:         word,
		Prompt:       b.policy.Prompt(&word),
		Options:      options,
		CorrectIndex: correctIndex,
		QuestionType: MultipleChoice,
	}
}

// FromSample builds a multiple choice question on the first sampled word.
// It returns false for an empty sample.
func (b *Builder) FromSample(sample []models.Word) (Question, bool) {
	if len(sample) == 0 {
		return Question{}, false
	}
	return b.MultipleChoice(sample[0], sample[1:]), true
}
