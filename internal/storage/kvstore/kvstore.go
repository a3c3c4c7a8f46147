// Package kvstore keeps pools and assignment progress in an embedded
// BadgerDB. Each pool, word list and student overlay is one JSON value.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/pkg/models"
)

// Config holds configuration for the Badger instance
type Config struct {
	// Path is the database directory, ignored when InMemory is set
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
	// GCDiscardRatio is passed to value log GC
	GCDiscardRatio float64
}

// DefaultConfig returns durable settings for a directory
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for tests
func InMemoryConfig() Config {
	return Config{InMemory: true, GCDiscardRatio: 0.5}
}

// badgerLogger adapts slog.Logger to Badger's logger interface
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a Badger-backed storage.Backend
type Store struct {
	db           *badger.DB
	logger       *slog.Logger
	discardRatio float64
}

// Open opens or creates the database
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(&badgerLogger{logger: logger.With("component", "badger")})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	ratio := cfg.GCDiscardRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	return &Store{db: db, logger: logger.With("component", "kvstore"), discardRatio: ratio}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Maintain runs one round of value log garbage collection
func (s *Store) Maintain(_ context.Context) error {
	err := s.db.RunValueLogGC(s.discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

func poolKey(key storage.PoolKey) []byte {
	return []byte("pool/" + url.PathEscape(key.User) + "/" + url.PathEscape(key.Language))
}

func assignmentKey(id string) []byte {
	return []byte("assignment/" + url.PathEscape(id))
}

func progressKey(key storage.AssignmentKey) []byte {
	return []byte("progress/" + url.PathEscape(key.AssignmentID) + "/" + url.PathEscape(key.Student))
}

// knownFlag accepts JSON booleans, 0/1 numbers and the string forms
// understood by storage.ParseKnown.
type knownFlag bool

func (k *knownFlag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*k = knownFlag(b)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := storage.ParseKnown(n.String())
		*k = knownFlag(v)
		return err
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: known flag %s", storage.ErrMalformedRecord, data)
	}
	v, err := storage.ParseKnown(s)
	*k = knownFlag(v)
	return err
}

type wordRecord struct {
	Foreign        string    `json:"foreign"`
	English        string    `json:"english"`
	CountSeen      int       `json:"seen"`
	CountCorrect   int       `json:"correct"`
	CountIncorrect int       `json:"wrong"`
	Known          knownFlag `json:"known"`
}

type progressRecord struct {
	WordForeign    string    `json:"word_foreign"`
	WordEnglish    string    `json:"word_english"`
	CountSeen      int       `json:"count_seen"`
	CountCorrect   int       `json:"count_correct"`
	CountIncorrect int       `json:"count_incorrect"`
	Known          knownFlag `json:"is_known"`
	LastUpdated    time.Time `json:"last_updated"`
}

func (s *Store) get(txn *badger.Txn, key []byte) ([]json.RawMessage, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return raw, nil
}

func (s *Store) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// LoadPool reads a personal pool, skipping records that cannot be decoded
func (s *Store) LoadPool(_ context.Context, key storage.PoolKey) (*models.Pool, error) {
	var raw []json.RawMessage
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		raw, err = s.get(txn, poolKey(key))
		return err
	})
	if err != nil {
		return nil, err
	}

	pool := models.NewPool()
	for i, msg := range raw {
		var rec wordRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			s.logger.Warn("skipping pool record", "pool", key.String(), "index", i, "error", err)
			continue
		}
		w := models.Word{
			Foreign:        rec.Foreign,
			English:        rec.English,
			CountSeen:      rec.CountSeen,
			CountCorrect:   rec.CountCorrect,
			CountIncorrect: rec.CountIncorrect,
			IsKnown:        bool(rec.Known),
		}
		if err := storage.ValidateWord(w); err != nil {
			s.logger.Warn("skipping pool record", "pool", key.String(), "index", i, "error", err)
			continue
		}
		pool.Put(w)
	}
	return pool, nil
}

// SavePool replaces a personal pool
func (s *Store) SavePool(_ context.Context, key storage.PoolKey, pool *models.Pool) error {
	records := make([]wordRecord, 0, pool.Len())
	for _, w := range pool.Words() {
		records = append(records, wordRecord{
			Foreign:        w.Foreign,
			English:        w.English,
			CountSeen:      w.CountSeen,
			CountCorrect:   w.CountCorrect,
			CountIncorrect: w.CountIncorrect,
			Known:          knownFlag(w.IsKnown),
		})
	}
	if err := s.put(poolKey(key), records); err != nil {
		return fmt.Errorf("failed to save pool %s: %w", key, err)
	}
	return nil
}

// LoadAssignmentWords returns an assignment word list ordered by WordOrder
func (s *Store) LoadAssignmentWords(_ context.Context, assignmentID string) ([]models.AssignmentWord, error) {
	var raw []json.RawMessage
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		raw, err = s.get(txn, assignmentKey(assignmentID))
		return err
	})
	if err != nil {
		return nil, err
	}

	words := make([]models.AssignmentWord, 0, len(raw))
	for i, msg := range raw {
		var w models.AssignmentWord
		if err := json.Unmarshal(msg, &w); err != nil || w.Foreign == "" {
			s.logger.Warn("skipping assignment record", "assignment", assignmentID, "index", i)
			continue
		}
		w.AssignmentID = assignmentID
		words = append(words, w)
	}
	sort.SliceStable(words, func(i, j int) bool { return words[i].WordOrder < words[j].WordOrder })
	return words, nil
}

// SaveAssignmentWords replaces an assignment word list
func (s *Store) SaveAssignmentWords(_ context.Context, assignmentID string, words []models.AssignmentWord) error {
	if err := s.put(assignmentKey(assignmentID), words); err != nil {
		return fmt.Errorf("failed to save assignment %s: %w", assignmentID, err)
	}
	return nil
}

// LoadProgress returns one student's overlay for an assignment
func (s *Store) LoadProgress(_ context.Context, key storage.AssignmentKey) ([]models.AssignmentProgress, error) {
	var raw []json.RawMessage
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		raw, err = s.get(txn, progressKey(key))
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decodeProgress(key, raw), nil
}

func (s *Store) decodeProgress(key storage.AssignmentKey, raw []json.RawMessage) []models.AssignmentProgress {
	out := make([]models.AssignmentProgress, 0, len(raw))
	for i, msg := range raw {
		var rec progressRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			s.logger.Warn("skipping progress record", "assignment", key.AssignmentID, "index", i, "error", err)
			continue
		}
		if rec.WordForeign == "" || rec.CountSeen < 0 || rec.CountCorrect < 0 || rec.CountIncorrect < 0 {
			s.logger.Warn("skipping progress record", "assignment", key.AssignmentID, "index", i)
			continue
		}
		out = append(out, models.AssignmentProgress{
			AssignmentID:   key.AssignmentID,
			StudentEmail:   key.Student,
			WordForeign:    rec.WordForeign,
			WordEnglish:    rec.WordEnglish,
			CountSeen:      rec.CountSeen,
			CountCorrect:   rec.CountCorrect,
			CountIncorrect: rec.CountIncorrect,
			IsKnown:        bool(rec.Known),
			LastUpdated:    rec.LastUpdated,
		})
	}
	return out
}

// UpsertProgress merges rows into a student's overlay in one transaction
func (s *Store) UpsertProgress(_ context.Context, key storage.AssignmentKey, rows []models.AssignmentProgress) error {
	k := progressKey(key)
	err := s.db.Update(func(txn *badger.Txn) error {
		raw, err := s.get(txn, k)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		existing := s.decodeProgress(key, raw)

		index := make(map[string]int, len(existing))
		for i, r := range existing {
			index[r.WordForeign] = i
		}
		for _, r := range rows {
			if i, ok := index[r.WordForeign]; ok {
				existing[i] = r
				continue
			}
			index[r.WordForeign] = len(existing)
			existing = append(existing, r)
		}

		records := make([]progressRecord, 0, len(existing))
		for _, r := range existing {
			records = append(records, progressRecord{
				WordForeign:    r.WordForeign,
				WordEnglish:    r.WordEnglish,
				CountSeen:      r.CountSeen,
				CountCorrect:   r.CountCorrect,
				CountIncorrect: r.CountIncorrect,
				Known:          knownFlag(r.IsKnown),
				LastUpdated:    r.LastUpdated,
			})
		}
		data, err := json.Marshal(records)
		if err != nil {
			return err
		}
		return txn.Set(k, data)
	})
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}
