// Package metrics holds the Prometheus collectors for study sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnswersTotal counts graded answers by mode and result
	AnswersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordwindow_answers_total",
		Help: "Graded answers by mode (study, review) and result (correct, incorrect)",
	}, []string{"mode", "result"})

	// WordsKnownTotal counts promotions to known by reason
	WordsKnownTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordwindow_words_known_total",
		Help: "Words promoted to known by reason (answer, manual)",
	}, []string{"reason"})

	// SavesTotal counts pool saves by result
	SavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordwindow_saves_total",
		Help: "Pool saves by result (ok, error)",
	}, []string{"result"})

	// SaveDuration tracks how long a save takes
	SaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wordwindow_save_duration_seconds",
		Help:    "Pool save duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	// ActiveSessions is the number of sessions held in memory
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wordwindow_active_sessions",
		Help: "Study sessions currently held in memory",
	})
)

// Result maps a boolean outcome to a label value
func Result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
