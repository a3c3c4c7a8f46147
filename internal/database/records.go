package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/pkg/models"
)

// Counters and flags are read as text so one bad value skips its row
// instead of failing the whole scan. SQLite keeps whatever was written
// regardless of the column type.
const (
	wordColumns = `foreign_word, english_word,
		COALESCE(CAST(count_seen AS TEXT), '') AS count_seen,
		COALESCE(CAST(count_correct AS TEXT), '') AS count_correct,
		COALESCE(CAST(count_incorrect AS TEXT), '') AS count_incorrect,
		COALESCE(CAST(is_known AS TEXT), '') AS is_known`
	progressColumns = `assignment_id, student_email, word_foreign, word_english,
		COALESCE(CAST(count_seen AS TEXT), '') AS count_seen,
		COALESCE(CAST(count_correct AS TEXT), '') AS count_correct,
		COALESCE(CAST(count_incorrect AS TEXT), '') AS count_incorrect,
		COALESCE(CAST(is_known AS TEXT), '') AS is_known,
		COALESCE(CAST(last_updated AS TEXT), '') AS last_updated`
	assignmentWordColumns = `assignment_id, foreign_word, english_word,
		COALESCE(CAST(word_order AS TEXT), '') AS word_order`
)

// timeLayouts are the text forms of last_updated written by the drivers
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00", // go-sqlite3
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999", // postgres timestamp
}

type wordRow struct {
	Foreign        string `db:"foreign_word"`
	English        string `db:"english_word"`
	CountSeen      string `db:"count_seen"`
	CountCorrect   string `db:"count_correct"`
	CountIncorrect string `db:"count_incorrect"`
	IsKnown        string `db:"is_known"`
}

func (r wordRow) word() (models.Word, error) {
	w := models.Word{Foreign: strings.TrimSpace(r.Foreign), English: strings.TrimSpace(r.English)}
	var err error
	if w.CountSeen, err = storage.ParseCount(r.CountSeen); err != nil {
		return w, err
	}
	if w.CountCorrect, err = storage.ParseCount(r.CountCorrect); err != nil {
		return w, err
	}
	if w.CountIncorrect, err = storage.ParseCount(r.CountIncorrect); err != nil {
		return w, err
	}
	if w.IsKnown, err = storage.ParseKnown(r.IsKnown); err != nil {
		return w, err
	}
	return w, storage.ValidateWord(w)
}

type progressRow struct {
	wordRow
	AssignmentID string `db:"assignment_id"`
	StudentEmail string `db:"student_email"`
	WordForeign  string `db:"word_foreign"`
	WordEnglish  string `db:"word_english"`
	LastUpdated  string `db:"last_updated"`
}

func (r progressRow) progress() (models.AssignmentProgress, error) {
	wr := r.wordRow
	wr.Foreign, wr.English = r.WordForeign, r.WordEnglish
	w, err := wr.word()
	if err != nil {
		return models.AssignmentProgress{}, err
	}
	return models.ProgressFromWord(r.AssignmentID, r.StudentEmail, w, parseTime(r.LastUpdated)), nil
}

type assignmentWordRow struct {
	AssignmentID string `db:"assignment_id"`
	Foreign      string `db:"foreign_word"`
	English      string `db:"english_word"`
	WordOrder    string `db:"word_order"`
}

func (r assignmentWordRow) word() (models.AssignmentWord, error) {
	order, err := storage.ParseCount(r.WordOrder)
	if err != nil {
		return models.AssignmentWord{}, err
	}
	foreign := strings.TrimSpace(r.Foreign)
	if foreign == "" {
		return models.AssignmentWord{}, fmt.Errorf("%w: empty foreign word", storage.ErrMalformedRecord)
	}
	return models.AssignmentWord{
		AssignmentID: r.AssignmentID,
		Foreign:      foreign,
		English:      strings.TrimSpace(r.English),
		WordOrder:    order,
	}, nil
}

// parseTime returns the zero time for values it cannot read; the
// timestamp alone never makes a record unusable.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
