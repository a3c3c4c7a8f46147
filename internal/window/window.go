// Package window implements the walking window: a bounded set of words under
// active study, a FIFO retry queue for words answered correctly but not yet
// known, and a scan cursor into the pool used to admit replacements.
//
// A Window is not safe for concurrent use. The session layer serializes
// calls for a given window.
package window

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/example/wordwindow/internal/spaced_repetition"
	"github.com/example/wordwindow/pkg/models"
)

var (
	// ErrWordNotFound is returned when a referenced word is not in the pool
	ErrWordNotFound = errors.New("word not found")
	// ErrInvalidConfig is returned by New for unusable limits
	ErrInvalidConfig = errors.New("invalid window config")
)

// Config holds the limits and mode of a window
type Config struct {
	Size        int
	SRSCapacity int
	// Assignment switches admission and sampling to the randomized
	// behavior used for shared assignment word lists.
	Assignment bool
	// Rand drives assignment-mode randomness. Seeded from the clock if nil.
	Rand   *rand.Rand
	Logger *slog.Logger
}

// State is the position of a word relative to one window
type State string

const (
	StateActive   State = "active"
	StateRetry    State = "retry"
	StateKnown    State = "known"
	StatePoolOnly State = "pool_only"
)

// Outcome is the result of grading one answer
type Outcome struct {
	Correct bool `json:"correct"`
	// BecameKnown is set when this answer promoted the word
	BecameKnown bool        `json:"became_known"`
	State       State       `json:"state"`
	Word        models.Word `json:"word"`
}

// Snapshot is a read-only view of the window
type Snapshot struct {
	Current     []models.Word `json:"current_words"`
	SRSQueue    []models.Word `json:"srs_queue"`
	Front       int           `json:"front"`
	Size        int           `json:"window_size"`
	SRSCapacity int           `json:"srs_capacity"`
	PoolSize    int           `json:"pool_size"`
	Assignment  bool          `json:"assignment"`
}

// Window is the walking window over a pool. It holds keys into the pool
// arena; every mutation goes through the pool entry.
type Window struct {
	pool       *models.Pool
	policy     *spaced_repetition.Policy
	size       int
	capacity   int
	assignment bool
	rng        *rand.Rand
	logger     *slog.Logger

	current []string
	queue   []string
	// front is the pool position of the last word claimed by the window
	front int
}

// New builds a window over the pool and fills it
func New(pool *models.Pool, policy *spaced_repetition.Policy, cfg Config) (*Window, error) {
	if pool == nil || policy == nil {
		return nil, fmt.Errorf("%w: pool and policy are required", ErrInvalidConfig)
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfig, cfg.Size)
	}
	if cfg.SRSCapacity <= 0 {
		return nil, fmt.Errorf("%w: srs capacity must be positive, got %d", ErrInvalidConfig, cfg.SRSCapacity)
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	w := &Window{
		pool:       pool,
		policy:     policy,
		size:       cfg.Size,
		capacity:   cfg.SRSCapacity,
		assignment: cfg.Assignment,
		rng:        cfg.Rand,
		logger:     cfg.Logger,
		current:    make([]string, 0, cfg.Size),
		queue:      make([]string, 0, cfg.SRSCapacity),
	}
	w.fill()
	return w, nil
}

func (w *Window) fill() {
	w.front = w.size - 1
	for i := 0; i < w.pool.Len() && len(w.current) < w.size; i++ {
		key := w.pool.KeyAt(i)
		word, _ := w.pool.Get(key)
		if word.IsKnown {
			w.front++
			continue
		}
		w.current = append(w.current, key)
	}

	if !w.assignment || len(w.current) >= w.size {
		return
	}
	// Все слова выучены: добираем окно из перемешанного пула
	keys := w.pool.Keys()
	w.rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for _, key := range keys {
		if len(w.current) >= w.size {
			break
		}
		if !slices.Contains(w.current, key) {
			w.current = append(w.current, key)
		}
	}
}

// CheckWordDefinition grades an answer for a word and moves it through the
// window. Incorrect answers never move a word.
func (w *Window) CheckWordDefinition(foreign, answer string) (Outcome, error) {
	word, ok := w.pool.Get(foreign)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrWordNotFound, foreign)
	}

	wasKnown := word.IsKnown
	correct := w.policy.CheckDefinition(word, answer)
	out := Outcome{Correct: correct}

	if correct {
		known := wasKnown || w.policy.CheckIfKnown(word)
		out.BecameKnown = known && !wasKnown
		switch {
		case known:
			w.retire(foreign)
		case slices.Contains(w.current, foreign):
			w.moveToQueue(foreign)
		}
	}

	out.State = w.state(foreign)
	out.Word = *word
	w.logger.Debug("answer checked",
		"word", foreign,
		"correct", correct,
		"became_known", out.BecameKnown,
		"state", out.State)
	return out, nil
}

// MarkWordAsKnown forces a word to known and retires it from the window
func (w *Window) MarkWordAsKnown(foreign string) (models.Word, error) {
	word, ok := w.pool.Get(foreign)
	if !ok {
		return models.Word{}, fmt.Errorf("%w: %q", ErrWordNotFound, foreign)
	}
	spaced_repetition.SetKnown(word)
	w.retire(foreign)
	w.logger.Debug("word marked known", "word", foreign)
	return *word, nil
}

// Review grades an answer in review mode: counters change, the window and
// the known flag do not.
func (w *Window) Review(foreign, answer string) (Outcome, error) {
	word, ok := w.pool.Get(foreign)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrWordNotFound, foreign)
	}
	correct := w.policy.CheckDefinition(word, answer)
	return Outcome{Correct: correct, State: w.state(foreign), Word: *word}, nil
}

// retire removes a known word from the window and the retry queue,
// advances the cursor and tries to admit a replacement.
func (w *Window) retire(foreign string) {
	removed := false
	if i := slices.Index(w.current, foreign); i >= 0 {
		w.current = slices.Delete(w.current, i, i+1)
		removed = true
	}
	if i := slices.Index(w.queue, foreign); i >= 0 {
		w.queue = slices.Delete(w.queue, i, i+1)
		removed = true
	}
	if removed {
		w.front++
	}
	w.admit()
}

// moveToQueue sends an active word to the retry queue. A full queue
// returns its oldest word to the window first.
func (w *Window) moveToQueue(foreign string) {
	if i := slices.Index(w.current, foreign); i >= 0 {
		w.current = slices.Delete(w.current, i, i+1)
	}
	if len(w.queue) >= w.capacity {
		oldest := w.queue[0]
		w.queue = slices.Delete(w.queue, 0, 1)
		w.current = append(w.current, oldest)
	}
	w.queue = append(w.queue, foreign)
}

// admit adds at most one word to the window
func (w *Window) admit() {
	if len(w.current) >= w.size {
		return
	}
	if w.assignment {
		w.admitRandom()
		return
	}

	// Ограниченный просмотр: не больше size позиций от курсора
	start := max(w.front, 0)
	end := min(w.front+w.size, w.pool.Len())
	for i := start; i < end; i++ {
		key := w.pool.KeyAt(i)
		word, _ := w.pool.Get(key)
		if word.IsKnown || w.scheduled(key) {
			continue
		}
		w.current = append(w.current, key)
		return
	}
}

func (w *Window) admitRandom() {
	var unknown, rest []string
	for i := 0; i < w.pool.Len(); i++ {
		key := w.pool.KeyAt(i)
		if w.scheduled(key) {
			continue
		}
		if word, _ := w.pool.Get(key); word.IsKnown {
			rest = append(rest, key)
		} else {
			unknown = append(unknown, key)
		}
	}

	candidates := unknown
	if len(candidates) == 0 {
		candidates = rest
	}
	if len(candidates) == 0 {
		return
	}
	w.current = append(w.current, candidates[w.rng.Intn(len(candidates))])
}

func (w *Window) scheduled(key string) bool {
	return slices.Contains(w.current, key) || slices.Contains(w.queue, key)
}

// RandomWords samples up to count distinct words from the window.
// Assignment windows widen the sample to the whole pool when the window
// alone is too small.
func (w *Window) RandomWords(count int) []models.Word {
	if count <= 0 || len(w.current) == 0 {
		return []models.Word{}
	}

	keys := slices.Clone(w.current)
	w.rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	if count <= len(keys) {
		return w.words(keys[:count])
	}
	if !w.assignment {
		return w.words(keys)
	}

	extra := make([]string, 0, w.pool.Len())
	for i := 0; i < w.pool.Len(); i++ {
		if key := w.pool.KeyAt(i); !slices.Contains(w.current, key) {
			extra = append(extra, key)
		}
	}
	w.rng.Shuffle(len(extra), func(i, j int) { extra[i], extra[j] = extra[j], extra[i] })
	need := min(count-len(keys), len(extra))
	keys = append(keys, extra[:need]...)
	w.rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	return w.words(keys)
}

// State reports where a word sits relative to the window
func (w *Window) State(foreign string) (State, error) {
	if !w.pool.Has(foreign) {
		return "", fmt.Errorf("%w: %q", ErrWordNotFound, foreign)
	}
	return w.state(foreign), nil
}

func (w *Window) state(foreign string) State {
	switch {
	case slices.Contains(w.current, foreign):
		return StateActive
	case slices.Contains(w.queue, foreign):
		return StateRetry
	}
	if word, ok := w.pool.Get(foreign); ok && word.IsKnown {
		return StateKnown
	}
	return StatePoolOnly
}

// Snapshot returns copies of the current words and the retry queue
func (w *Window) Snapshot() Snapshot {
	return Snapshot{
		Current:     w.words(w.current),
		SRSQueue:    w.words(w.queue),
		Front:       w.front,
		Size:        w.size,
		SRSCapacity: w.capacity,
		PoolSize:    w.pool.Len(),
		Assignment:  w.assignment,
	}
}

// KnownWords lists every known word of the pool in scan order
func (w *Window) KnownWords() []models.Word {
	known := make([]models.Word, 0)
	for _, word := range w.pool.Words() {
		if word.IsKnown {
			known = append(known, word)
		}
	}
	return known
}

// Stats summarizes the pool behind the window
func (w *Window) Stats() models.Statistics {
	return ComputeStats(w.pool)
}

// Pool exposes the arena for persistence
func (w *Window) Pool() *models.Pool {
	return w.pool
}

// Policy returns the mastery policy the window grades with
func (w *Window) Policy() *spaced_repetition.Policy {
	return w.policy
}

// Assignment reports whether the window runs in assignment mode
func (w *Window) Assignment() bool {
	return w.assignment
}

func (w *Window) words(keys []string) []models.Word {
	out := make([]models.Word, 0, len(keys))
	for _, key := range keys {
		if word, ok := w.pool.Get(key); ok {
			out = append(out, *word)
		}
	}
	return out
}
