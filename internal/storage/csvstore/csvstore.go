// Package csvstore keeps pools and assignment progress in CSV files:
//
//	<dir>/UserWords/<user>_<language>.csv
//	<dir>/ClassroomAssignmentWords.csv
//	<dir>/ClassroomAssignmentProgress.csv
//
// Every save rewrites the whole file through a temp file and a rename.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/pkg/models"
)

const (
	userWordsDir    = "UserWords"
	assignmentsFile = "ClassroomAssignmentWords.csv"
	progressFile    = "ClassroomAssignmentProgress.csv"
)

var (
	poolHeader       = []string{"Foreign", "English", "seen", "correct", "wrong", "known"}
	assignmentHeader = []string{"assignment_id", "foreign", "english", "word_order"}
	progressHeader   = []string{
		"assignment_id", "student_email", "word_foreign", "word_english",
		"count_seen", "count_correct", "count_incorrect", "is_known", "last_updated",
	}
)

// Store is a CSV-backed storage.Backend
type Store struct {
	dir    string
	logger *slog.Logger
	// mu serializes read-modify-write cycles on the shared files
	mu sync.Mutex
}

// New creates a store rooted at dir
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, userWordsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With("component", "csvstore")}, nil
}

// Close is a no-op; files are closed after every operation
func (s *Store) Close() error { return nil }

func (s *Store) poolPath(key storage.PoolKey) string {
	return filepath.Join(s.dir, userWordsDir, key.String()+".csv")
}

// LoadPool reads a personal pool, skipping rows that cannot be parsed
func (s *Store) LoadPool(_ context.Context, key storage.PoolKey) (*models.Pool, error) {
	path := s.poolPath(key)
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}

	pool := models.NewPool()
	for i, row := range t.rows {
		w, err := parsePoolRow(t, row)
		if err != nil {
			s.logger.Warn("skipping pool record", "file", path, "row", i+2, "error", err)
			continue
		}
		pool.Put(w)
	}
	return pool, nil
}

func parsePoolRow(t *table, row []string) (models.Word, error) {
	var w models.Word
	var err error
	w.Foreign = strings.TrimSpace(t.get(row, "foreign"))
	w.English = strings.TrimSpace(t.get(row, "english"))
	if w.CountSeen, err = storage.ParseCount(t.get(row, "seen")); err != nil {
		return w, err
	}
	if w.CountCorrect, err = storage.ParseCount(t.get(row, "correct")); err != nil {
		return w, err
	}
	if w.CountIncorrect, err = storage.ParseCount(t.get(row, "wrong")); err != nil {
		return w, err
	}
	if w.IsKnown, err = storage.ParseKnown(t.get(row, "known")); err != nil {
		return w, err
	}
	return w, storage.ValidateWord(w)
}

// SavePool rewrites a personal pool file
func (s *Store) SavePool(_ context.Context, key storage.PoolKey, pool *models.Pool) error {
	rows := make([][]string, 0, pool.Len())
	for _, w := range pool.Words() {
		rows = append(rows, []string{
			w.Foreign,
			w.English,
			strconv.Itoa(w.CountSeen),
			strconv.Itoa(w.CountCorrect),
			strconv.Itoa(w.CountIncorrect),
			storage.FormatKnown(w.IsKnown),
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.poolPath(key), poolHeader, rows); err != nil {
		return fmt.Errorf("failed to save pool %s: %w", key, err)
	}
	return nil
}

// LoadAssignmentWords returns the word list of one assignment in order
func (s *Store) LoadAssignmentWords(_ context.Context, assignmentID string) ([]models.AssignmentWord, error) {
	path := filepath.Join(s.dir, assignmentsFile)
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}

	var words []models.AssignmentWord
	for i, row := range t.rows {
		if t.get(row, "assignment_id") != assignmentID {
			continue
		}
		order, err := strconv.Atoi(strings.TrimSpace(t.get(row, "word_order")))
		foreign := strings.TrimSpace(t.get(row, "foreign"))
		if err != nil || foreign == "" {
			s.logger.Warn("skipping assignment record", "file", path, "row", i+2)
			continue
		}
		words = append(words, models.AssignmentWord{
			AssignmentID: assignmentID,
			Foreign:      foreign,
			English:      strings.TrimSpace(t.get(row, "english")),
			WordOrder:    order,
		})
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("assignment %s: %w", assignmentID, storage.ErrNotFound)
	}
	sort.SliceStable(words, func(i, j int) bool { return words[i].WordOrder < words[j].WordOrder })
	return words, nil
}

// SaveAssignmentWords replaces the word list of one assignment
func (s *Store) SaveAssignmentWords(_ context.Context, assignmentID string, words []models.AssignmentWord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, assignmentsFile)
	t, err := readTable(path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	var rows [][]string
	if t != nil {
		for _, row := range t.rows {
			if t.get(row, "assignment_id") != assignmentID {
				rows = append(rows, t.project(row, assignmentHeader))
			}
		}
	}
	for _, w := range words {
		rows = append(rows, []string{assignmentID, w.Foreign, w.English, strconv.Itoa(w.WordOrder)})
	}
	return writeAtomic(path, assignmentHeader, rows)
}

// LoadProgress returns one student's overlay rows for an assignment
func (s *Store) LoadProgress(_ context.Context, key storage.AssignmentKey) ([]models.AssignmentProgress, error) {
	path := filepath.Join(s.dir, progressFile)
	t, err := readTable(path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []models.AssignmentProgress
	for i, row := range t.rows {
		if t.get(row, "assignment_id") != key.AssignmentID || t.get(row, "student_email") != key.Student {
			continue
		}
		p, err := parseProgressRow(t, row)
		if err != nil {
			s.logger.Warn("skipping progress record", "file", path, "row", i+2, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func parseProgressRow(t *table, row []string) (models.AssignmentProgress, error) {
	p := models.AssignmentProgress{
		AssignmentID: t.get(row, "assignment_id"),
		StudentEmail: t.get(row, "student_email"),
		WordForeign:  strings.TrimSpace(t.get(row, "word_foreign")),
		WordEnglish:  strings.TrimSpace(t.get(row, "word_english")),
	}
	var err error
	if p.CountSeen, err = storage.ParseCount(t.get(row, "count_seen")); err != nil {
		return p, err
	}
	if p.CountCorrect, err = storage.ParseCount(t.get(row, "count_correct")); err != nil {
		return p, err
	}
	if p.CountIncorrect, err = storage.ParseCount(t.get(row, "count_incorrect")); err != nil {
		return p, err
	}
	if p.IsKnown, err = storage.ParseKnown(t.get(row, "is_known")); err != nil {
		return p, err
	}
	if ts := t.get(row, "last_updated"); ts != "" {
		// Нераспознанное время не делает запись битой
		p.LastUpdated, _ = time.Parse(time.RFC3339, ts)
	}
	if p.WordForeign == "" {
		return p, fmt.Errorf("%w: empty word", storage.ErrMalformedRecord)
	}
	return p, nil
}

// UpsertProgress replaces or appends overlay rows for one student
func (s *Store) UpsertProgress(_ context.Context, key storage.AssignmentKey, rows []models.AssignmentProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, progressFile)
	t, err := readTable(path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	incoming := make(map[string]models.AssignmentProgress, len(rows))
	for _, r := range rows {
		incoming[r.WordForeign] = r
	}
	written := make(map[string]bool, len(rows))

	var out [][]string
	if t != nil {
		for _, row := range t.rows {
			mine := t.get(row, "assignment_id") == key.AssignmentID && t.get(row, "student_email") == key.Student
			word := strings.TrimSpace(t.get(row, "word_foreign"))
			if r, ok := incoming[word]; mine && ok {
				if !written[word] {
					out = append(out, formatProgress(r))
					written[word] = true
				}
				continue
			}
			out = append(out, t.project(row, progressHeader))
		}
	}
	for _, r := range rows {
		if !written[r.WordForeign] {
			out = append(out, formatProgress(r))
			written[r.WordForeign] = true
		}
	}

	if err := writeAtomic(path, progressHeader, out); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func formatProgress(r models.AssignmentProgress) []string {
	return []string{
		r.AssignmentID,
		r.StudentEmail,
		r.WordForeign,
		r.WordEnglish,
		strconv.Itoa(r.CountSeen),
		strconv.Itoa(r.CountCorrect),
		strconv.Itoa(r.CountIncorrect),
		storage.FormatKnown(r.IsKnown),
		r.LastUpdated.UTC().Format(time.RFC3339),
	}
}

// table is a CSV file addressed by lower-cased header names
type table struct {
	columns map[string]int
	rows    [][]string
}

func (t *table) get(row []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// project reorders a row to the given header
func (t *table) project(row []string, header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = t.get(row, strings.ToLower(h))
	}
	return out
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // строки могут быть неполными
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return &table{columns: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	t := &table{columns: make(map[string]int, len(header))}
	for i, h := range header {
		t.columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}
