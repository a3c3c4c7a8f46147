package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/wordwindow/internal/metrics"
	"github.com/example/wordwindow/internal/spaced_repetition"
	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/internal/window"
	"github.com/example/wordwindow/pkg/models"
)

// Session is one learner's study state. All methods are safe for
// concurrent use; mutations run one at a time and are saved before
// they return.
type Session struct {
	ID           string
	User         string
	Language     string
	AssignmentID string
	Settings     Settings

	mu       sync.Mutex
	window   *window.Window
	source   storage.Source
	logger   *slog.Logger
	now      func() time.Time
	lastUsed time.Time
	closed   bool
}

func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}
	s.lastUsed = s.now()
	return nil
}

// RandomWords samples words to present
func (s *Session) RandomWords(count int) ([]models.Word, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.window.RandomWords(count), nil
}

// Check grades an answer and saves the pool
func (s *Session) Check(ctx context.Context, foreign, answer string) (window.Outcome, error) {
	if err := s.lock(); err != nil {
		return window.Outcome{}, err
	}
	defer s.mu.Unlock()

	out, err := s.window.CheckWordDefinition(foreign, answer)
	if err != nil {
		return out, err
	}
	metrics.AnswersTotal.WithLabelValues("study", metrics.Result(out.Correct, "correct", "incorrect")).Inc()
	if out.BecameKnown {
		metrics.WordsKnownTotal.WithLabelValues("answer").Inc()
		s.logger.Info("word became known", "session", s.ID, "word", foreign)
	}
	return out, s.persist(ctx)
}

// MarkKnown forces a word to known and saves the pool
func (s *Session) MarkKnown(ctx context.Context, foreign string) (models.Word, error) {
	if err := s.lock(); err != nil {
		return models.Word{}, err
	}
	defer s.mu.Unlock()

	word, err := s.window.MarkWordAsKnown(foreign)
	if err != nil {
		return word, err
	}
	metrics.WordsKnownTotal.WithLabelValues("manual").Inc()
	return word, s.persist(ctx)
}

// Review grades an answer on a known word without moving it
func (s *Session) Review(ctx context.Context, foreign, answer string) (window.Outcome, error) {
	if err := s.lock(); err != nil {
		return window.Outcome{}, err
	}
	defer s.mu.Unlock()

	out, err := s.window.Review(foreign, answer)
	if err != nil {
		return out, err
	}
	metrics.AnswersTotal.WithLabelValues("review", metrics.Result(out.Correct, "correct", "incorrect")).Inc()
	return out, s.persist(ctx)
}

// Snapshot returns the current window and retry queue
func (s *Session) Snapshot() (window.Snapshot, error) {
	if err := s.lock(); err != nil {
		return window.Snapshot{}, err
	}
	defer s.mu.Unlock()
	return s.window.Snapshot(), nil
}

// KnownWords lists the known words of the pool
func (s *Session) KnownWords() ([]models.Word, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.window.KnownWords(), nil
}

// Stats summarizes the pool
func (s *Session) Stats() (models.Statistics, error) {
	if err := s.lock(); err != nil {
		return models.Statistics{}, err
	}
	defer s.mu.Unlock()
	return s.window.Stats(), nil
}

// Policy returns the grading policy of the session
func (s *Session) Policy() *spaced_repetition.Policy {
	return s.window.Policy()
}

// Persist saves the pool
func (s *Session) Persist(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.persist(ctx)
}

// persist must be called with s.mu held. A failed save leaves the window
// as it is; the next successful save writes the full pool.
func (s *Session) persist(ctx context.Context) error {
	start := time.Now()
	err := s.source.Save(ctx, s.window.Pool())
	metrics.SaveDuration.Observe(time.Since(start).Seconds())
	metrics.SavesTotal.WithLabelValues(metrics.Result(err == nil, "ok", "error")).Inc()
	if err != nil {
		s.logger.Error("failed to save session", "session", s.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// absorb merges progress saved elsewhere into the window's pool. Words that
// become known here leave the window the way a manual mark would.
func (s *Session) absorb(pool *models.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	dst := s.window.Pool()
	var learned []string
	for _, w := range pool.Words() {
		if existing, ok := dst.Get(w.Foreign); ok && w.IsKnown && !existing.IsKnown {
			learned = append(learned, w.Foreign)
		}
	}
	storage.MergeInto(dst, pool)
	for _, key := range learned {
		if _, err := s.window.MarkWordAsKnown(key); err != nil {
			s.logger.Warn("failed to retire merged word", "word", key, "error", err)
		}
	}
	s.logger.Debug("merged outside progress", "words", pool.Len(), "learned", len(learned))
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed.Before(cutoff)
}

// close saves and retires the session
func (s *Session) close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.persist(ctx)
}
