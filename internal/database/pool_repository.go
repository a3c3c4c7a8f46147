package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/pkg/models"
)

// PoolRepository handles personal word pools
type PoolRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPoolRepository creates a new repository instance
func NewPoolRepository(db *sqlx.DB, logger *slog.Logger) *PoolRepository {
	return &PoolRepository{db: db, logger: logger}
}

// LoadPool returns a user's words in scan order
func (r *PoolRepository) LoadPool(ctx context.Context, key storage.PoolKey) (*models.Pool, error) {
	var rows []wordRow
	query := r.db.Rebind(`
		SELECT ` + wordColumns + `
		FROM user_words
		WHERE user_name = ? AND language = ?
		ORDER BY position
	`)
	if err := r.db.SelectContext(ctx, &rows, query, key.User, key.Language); err != nil {
		return nil, fmt.Errorf("failed to get pool %s: %w", key, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("pool %s: %w", key, storage.ErrNotFound)
	}

	pool := models.NewPool()
	for i, row := range rows {
		w, err := row.word()
		if err != nil {
			r.logger.Warn("skipping pool record", "pool", key.String(), "position", i, "error", err)
			continue
		}
		pool.Put(w)
	}
	return pool, nil
}

// SavePool replaces a user's words in one transaction
func (r *PoolRepository) SavePool(ctx context.Context, key storage.PoolKey, pool *models.Pool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM user_words WHERE user_name = ? AND language = ?`), key.User, key.Language); err != nil {
		return fmt.Errorf("failed to clear pool %s: %w", key, err)
	}

	insert := tx.Rebind(`
		INSERT INTO user_words (user_name, language, position, foreign_word, english_word, count_seen, count_correct, count_incorrect, is_known)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for i, w := range pool.Words() {
		_, err := tx.ExecContext(ctx, insert,
			key.User, key.Language, i,
			w.Foreign, w.English,
			w.CountSeen, w.CountCorrect, w.CountIncorrect, w.IsKnown,
		)
		if err != nil {
			return fmt.Errorf("failed to save word %q: %w", w.Foreign, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pool %s: %w", key, err)
	}
	return nil
}
