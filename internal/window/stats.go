package window

import (
	"math"

	"github.com/example/wordwindow/pkg/models"
)

// ComputeStats summarizes a pool. Ties for the most missed and most seen
// word go to the earliest word in scan order.
func ComputeStats(pool *models.Pool) models.Statistics {
	var stats models.Statistics
	var seen, correct int

	for _, word := range pool.Words() {
		stats.Total++
		switch {
		case word.IsKnown:
			stats.Known++
		case word.CountSeen > 0:
			stats.InProgress++
		default:
			stats.NotStarted++
		}
		seen += word.CountSeen
		correct += word.CountCorrect

		if word.CountIncorrect > 0 && (stats.MostIncorrect == nil || word.CountIncorrect > stats.MostIncorrect.CountIncorrect) {
			w := word
			stats.MostIncorrect = &w
		}
		if word.CountSeen > 0 && (stats.MostSeen == nil || word.CountSeen > stats.MostSeen.CountSeen) {
			w := word
			stats.MostSeen = &w
		}
	}

	if stats.Total > 0 {
		stats.CompletionPercent = round2(float64(stats.Known) / float64(stats.Total) * 100)
	}
	if seen > 0 {
		stats.AccuracyPercent = round2(float64(correct) / float64(seen) * 100)
	}
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
