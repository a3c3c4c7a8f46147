package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/wordwindow/pkg/models"
)

// Source loads a pool for a session and writes it back
type Source interface {
	Load(ctx context.Context) (*models.Pool, error)
	Save(ctx context.Context, pool *models.Pool) error
	Assignment() bool
}

// PersonalSource is a learner's own pool for one language
type PersonalSource struct {
	Store PoolStore
	Key   PoolKey
	// SeedFromTemplate copies the template pool for the language when the
	// learner has no pool yet.
	SeedFromTemplate bool
	Logger           *slog.Logger
}

// Load returns the learner's pool, seeding it from the template if allowed
func (s *PersonalSource) Load(ctx context.Context) (*models.Pool, error) {
	pool, err := s.Store.LoadPool(ctx, s.Key)
	if err == nil && (pool.Len() > 0 || !s.SeedFromTemplate) {
		return pool, nil
	}
	if err != nil && (!errors.Is(err, ErrNotFound) || !s.SeedFromTemplate) {
		return nil, fmt.Errorf("failed to load pool %s: %w", s.Key, err)
	}

	template := PoolKey{User: TemplateUser, Language: s.Key.Language}
	pool, err = s.Store.LoadPool(ctx, template)
	if errors.Is(err, ErrNotFound) {
		return models.NewPool(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", template, err)
	}
	if err := s.Store.SavePool(ctx, s.Key, pool); err != nil {
		return nil, fmt.Errorf("failed to seed pool %s: %w", s.Key, err)
	}
	if s.Logger != nil {
		s.Logger.Info("seeded pool from template", "pool", s.Key.String(), "words", pool.Len())
	}
	return pool, nil
}

// Save rewrites the learner's pool
func (s *PersonalSource) Save(ctx context.Context, pool *models.Pool) error {
	return s.Store.SavePool(ctx, s.Key, pool)
}

// Assignment is false for personal pools
func (s *PersonalSource) Assignment() bool { return false }

// AssignmentSource is a shared word list seen through one student's progress
type AssignmentSource struct {
	Assignments AssignmentStore
	Pools       PoolStore
	Key         AssignmentKey
	// Language selects the personal pool progress is merged into
	Language string
	Now      func() time.Time
	Logger   *slog.Logger
}

// Load joins the word list with the student's progress overlay
func (s *AssignmentSource) Load(ctx context.Context) (*models.Pool, error) {
	words, err := s.Assignments.LoadAssignmentWords(ctx, s.Key.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment %s: %w", s.Key.AssignmentID, err)
	}
	progress, err := s.Assignments.LoadProgress(ctx, s.Key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load progress for %s: %w", s.Key.Student, err)
	}

	overlay := make(map[string]models.AssignmentProgress, len(progress))
	for _, row := range progress {
		overlay[row.WordForeign] = row
	}

	pool := models.NewPool()
	for _, aw := range words {
		w := models.Word{Foreign: aw.Foreign, English: aw.English}
		if row, ok := overlay[aw.Foreign]; ok {
			w.CountSeen = row.CountSeen
			w.CountCorrect = row.CountCorrect
			w.CountIncorrect = row.CountIncorrect
			w.IsKnown = row.IsKnown
		}
		pool.Put(w)
	}
	return pool, nil
}

// Save upserts the overlay and merges the progress into the personal pool
func (s *AssignmentSource) Save(ctx context.Context, pool *models.Pool) error {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}

	rows := make([]models.AssignmentProgress, 0, pool.Len())
	for _, w := range pool.Words() {
		rows = append(rows, models.ProgressFromWord(s.Key.AssignmentID, s.Key.Student, w, now))
	}
	if err := s.Assignments.UpsertProgress(ctx, s.Key, rows); err != nil {
		return fmt.Errorf("failed to save progress for %s: %w", s.Key.Student, err)
	}

	key := PoolKey{User: s.Key.Student, Language: s.Language}
	personal, err := s.Pools.LoadPool(ctx, key)
	if errors.Is(err, ErrNotFound) {
		personal = models.NewPool()
	} else if err != nil {
		return fmt.Errorf("failed to load personal pool %s: %w", key, err)
	}

	MergeInto(personal, pool)
	if err := s.Pools.SavePool(ctx, key, personal); err != nil {
		return fmt.Errorf("failed to merge into personal pool %s: %w", key, err)
	}
	return nil
}

// Assignment is true for assignment pools
func (s *AssignmentSource) Assignment() bool { return true }

// MergeInto folds src into dst: counters take the element-wise maximum and
// known flags are OR-ed. Words missing from dst are appended.
func MergeInto(dst, src *models.Pool) {
	for _, w := range src.Words() {
		existing, ok := dst.Get(w.Foreign)
		if !ok {
			dst.Put(w)
			continue
		}
		existing.CountSeen = max(existing.CountSeen, w.CountSeen)
		existing.CountCorrect = max(existing.CountCorrect, w.CountCorrect)
		existing.CountIncorrect = max(existing.CountIncorrect, w.CountIncorrect)
		existing.IsKnown = existing.IsKnown || w.IsKnown
		if existing.English == "" {
			existing.English = w.English
		}
	}
}
