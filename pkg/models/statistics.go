package models

// Statistics summarizes progress over a pool
type Statistics struct {
	Total             int     `json:"total"`
	Known             int     `json:"known"`
	InProgress        int     `json:"in_progress"`
	NotStarted        int     `json:"not_started"`
	CompletionPercent float64 `json:"completion_percent"`
	AccuracyPercent   float64 `json:"accuracy_percent"`
	MostIncorrect     *Word   `json:"most_incorrect,omitempty"` // nil if nothing was missed
	MostSeen          *Word   `json:"most_seen,omitempty"`
}
