package bot

import (
	"fmt"
	"strings"

	"github.com/example/wordwindow/internal/quiz"
	"github.com/example/wordwindow/internal/window"
	"github.com/example/wordwindow/pkg/models"
)

// MainMenuButtons returns the buttons for the main menu
func MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "✍️ Study", CallbackData: callbackStudy},
			{Text: "🔢 Choice", CallbackData: callbackChoice},
		},
		{
			{Text: "📊 Statistics", CallbackData: callbackStats},
			{Text: "🪟 Window", CallbackData: callbackWindow},
		},
		{
			{Text: "✅ Known words", CallbackData: callbackKnown},
		},
	}
}

// questionButtons returns one button per option plus a shortcut for words
// the learner already knows
func questionButtons(q quiz.Question) [][]MenuButton {
	var rows [][]MenuButton
	for i, opt := range q.Options {
		rows = append(rows, []MenuButton{{Text: opt, CallbackData: fmt.Sprintf("%s%d", answerPrefix, i)}})
	}
	return append(rows, []MenuButton{{Text: "I know this word", CallbackData: callbackIKnowIt}})
}

func formatQuestion(q quiz.Question) string {
	if q.QuestionType == quiz.MultipleChoice {
		return fmt.Sprintf("🔤 %s\n\nChoose the translation:", q.Prompt)
	}
	return fmt.Sprintf("🔤 %s\n\nType the translation:", q.Prompt)
}

func formatOutcome(correct, becameKnown bool, expected string) string {
	switch {
	case becameKnown:
		return "✅ Correct! 🎉 You know this word now."
	case correct:
		return "✅ Correct!"
	default:
		return "❌ Wrong. The answer is: " + expected
	}
}

func formatKnown(words []models.Word) string {
	if len(words) == 0 {
		return "You don't know any words yet. Use /study to start!"
	}
	var text strings.Builder
	text.WriteString(fmt.Sprintf("✅ Known words (%d)\n\n", len(words)))
	for _, w := range words {
		text.WriteString(fmt.Sprintf("%s - %s\n", w.Foreign, w.English))
	}
	return text.String()
}

func formatStats(language string, s models.Statistics) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("📊 Your statistics (%s)\n\n", language))
	text.WriteString(fmt.Sprintf("Words: %d\n", s.Total))
	text.WriteString(fmt.Sprintf("Known: %d (%.1f%%)\n", s.Known, s.CompletionPercent))
	text.WriteString(fmt.Sprintf("In progress: %d\n", s.InProgress))
	text.WriteString(fmt.Sprintf("Not started: %d\n", s.NotStarted))
	text.WriteString(fmt.Sprintf("Accuracy: %.1f%%\n", s.AccuracyPercent))
	if s.MostIncorrect != nil {
		text.WriteString(fmt.Sprintf("\nHardest word: %s - %s (%d mistakes)\n",
			s.MostIncorrect.Foreign, s.MostIncorrect.English, s.MostIncorrect.CountIncorrect))
	}
	return text.String()
}

func formatWindow(snap window.Snapshot) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("🪟 Studying %d of %d words\n", len(snap.Current), snap.PoolSize))
	for _, w := range snap.Current {
		text.WriteString(fmt.Sprintf("• %s (%d/%d)\n", w.Foreign, w.CountCorrect, w.CountSeen))
	}
	if len(snap.SRSQueue) > 0 {
		text.WriteString("\n🔁 Coming back soon\n")
		for _, w := range snap.SRSQueue {
			text.WriteString(fmt.Sprintf("• %s\n", w.Foreign))
		}
	}
	return text.String()
}
