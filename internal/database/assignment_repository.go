package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/pkg/models"
)

// AssignmentRepository handles assignment word lists and student progress
type AssignmentRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewAssignmentRepository creates a new repository instance
func NewAssignmentRepository(db *sqlx.DB, logger *slog.Logger) *AssignmentRepository {
	return &AssignmentRepository{db: db, logger: logger}
}

// LoadAssignmentWords returns the word list ordered by word_order
func (r *AssignmentRepository) LoadAssignmentWords(ctx context.Context, assignmentID string) ([]models.AssignmentWord, error) {
	var rows []assignmentWordRow
	query := r.db.Rebind(`
		SELECT ` + assignmentWordColumns + `
		FROM assignment_words
		WHERE assignment_id = ?
		ORDER BY word_order
	`)
	if err := r.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, fmt.Errorf("failed to get assignment words: %w", err)
	}

	words := make([]models.AssignmentWord, 0, len(rows))
	for _, row := range rows {
		w, err := row.word()
		if err != nil {
			r.logger.Warn("skipping assignment record", "assignment", assignmentID, "error", err)
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("assignment %s: %w", assignmentID, storage.ErrNotFound)
	}
	sort.SliceStable(words, func(i, j int) bool { return words[i].WordOrder < words[j].WordOrder })
	return words, nil
}

// SaveAssignmentWords replaces the word list of one assignment
func (r *AssignmentRepository) SaveAssignmentWords(ctx context.Context, assignmentID string, words []models.AssignmentWord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM assignment_words WHERE assignment_id = ?`), assignmentID); err != nil {
		return fmt.Errorf("failed to clear assignment %s: %w", assignmentID, err)
	}
	insert := tx.Rebind(`
		INSERT INTO assignment_words (assignment_id, foreign_word, english_word, word_order)
		VALUES (?, ?, ?, ?)
	`)
	for _, w := range words {
		if _, err := tx.ExecContext(ctx, insert, assignmentID, w.Foreign, w.English, w.WordOrder); err != nil {
			return fmt.Errorf("failed to save assignment word %q: %w", w.Foreign, err)
		}
	}
	return tx.Commit()
}

// LoadProgress returns one student's overlay rows
func (r *AssignmentRepository) LoadProgress(ctx context.Context, key storage.AssignmentKey) ([]models.AssignmentProgress, error) {
	var rows []progressRow
	query := r.db.Rebind(`
		SELECT ` + progressColumns + `
		FROM assignment_progress
		WHERE assignment_id = ? AND student_email = ?
	`)
	if err := r.db.SelectContext(ctx, &rows, query, key.AssignmentID, key.Student); err != nil {
		return nil, fmt.Errorf("failed to get assignment progress: %w", err)
	}

	out := make([]models.AssignmentProgress, 0, len(rows))
	for _, row := range rows {
		p, err := row.progress()
		if err != nil {
			r.logger.Warn("skipping progress record",
				"assignment", key.AssignmentID, "student", key.Student, "word", row.WordForeign, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// UpsertProgress inserts or overwrites overlay rows
func (r *AssignmentRepository) UpsertProgress(ctx context.Context, key storage.AssignmentKey, rows []models.AssignmentProgress) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ON CONFLICT понимают и SQLite, и PostgreSQL
	upsert := tx.Rebind(`
		INSERT INTO assignment_progress (
			assignment_id, student_email, word_foreign, word_english,
			count_seen, count_correct, count_incorrect, is_known, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (assignment_id, student_email, word_foreign) DO UPDATE SET
			word_english = excluded.word_english,
			count_seen = excluded.count_seen,
			count_correct = excluded.count_correct,
			count_incorrect = excluded.count_incorrect,
			is_known = excluded.is_known,
			last_updated = excluded.last_updated
	`)
	for _, p := range rows {
		_, err := tx.ExecContext(ctx, upsert,
			key.AssignmentID, key.Student, p.WordForeign, p.WordEnglish,
			p.CountSeen, p.CountCorrect, p.CountIncorrect, p.IsKnown, p.LastUpdated.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert progress for %q: %w", p.WordForeign, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}
