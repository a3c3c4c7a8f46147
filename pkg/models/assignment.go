package models

import "time"

// AssignmentWord is one entry of a shared, instructor-defined word list
type AssignmentWord struct {
	AssignmentID string `json:"assignment_id" db:"assignment_id"`
	Foreign      string `json:"foreign" db:"foreign_word"`
	English      string `json:"english" db:"english_word"`
	WordOrder    int    `json:"word_order" db:"word_order"`
}

// AssignmentProgress is a student's progress on one assignment word.
// Rows are keyed by (AssignmentID, StudentEmail, WordForeign).
type AssignmentProgress struct {
	AssignmentID   string    `json:"assignment_id" db:"assignment_id"`
	StudentEmail   string    `json:"student_email" db:"student_email"`
	WordForeign    string    `json:"word_foreign" db:"word_foreign"`
	WordEnglish    string    `json:"word_english" db:"word_english"`
	CountSeen      int       `json:"count_seen" db:"count_seen"`
	CountCorrect   int       `json:"count_correct" db:"count_correct"`
	CountIncorrect int       `json:"count_incorrect" db:"count_incorrect"`
	IsKnown        bool      `json:"is_known" db:"is_known"`
	LastUpdated    time.Time `json:"last_updated" db:"last_updated"`
}

// ProgressFromWord builds an overlay row from a word's counters
func ProgressFromWord(assignmentID, student string, w Word, now time.Time) AssignmentProgress {
	return AssignmentProgress{
		AssignmentID:   assignmentID,
		StudentEmail:   student,
		WordForeign:    w.Foreign,
		WordEnglish:    w.English,
		CountSeen:      w.CountSeen,
		CountCorrect:   w.CountCorrect,
		CountIncorrect: w.CountIncorrect,
		IsKnown:        w.IsKnown,
		LastUpdated:    now,
	}
}
