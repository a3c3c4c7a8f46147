// Package storage defines how word pools are loaded and saved, independent
// of the backend that holds them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/wordwindow/pkg/models"
)

var (
	// ErrNotFound is returned when no record set exists for a key
	ErrNotFound = errors.New("not found")
	// ErrMalformedRecord marks a stored record that cannot be parsed
	ErrMalformedRecord = errors.New("malformed record")
)

// TemplateUser owns the starter pools copied to new learners
const TemplateUser = "Template"

// PoolKey identifies a personal pool
type PoolKey struct {
	User     string
	Language string
}

// String joins the escaped parts with "_". It names pool files, so
// distinct keys never share a name and no part can leave the directory.
func (k PoolKey) String() string {
	return EscapeKeyPart(k.User) + "_" + EscapeKeyPart(k.Language)
}

var keyEscaper = strings.NewReplacer(
	"%", "%25",
	"_", "%5F",
	":", "%3A",
	"/", "%2F",
	`\`, "%5C",
)

// EscapeKeyPart percent-encodes the separators used in composite keys.
// Plain names pass through unchanged.
func EscapeKeyPart(s string) string {
	return keyEscaper.Replace(s)
}

// AssignmentKey identifies one student's progress on an assignment
type AssignmentKey struct {
	AssignmentID string
	Student      string
}

// PoolStore loads and saves whole personal pools
type PoolStore interface {
	// LoadPool returns ErrNotFound when the user has no pool for the language
	LoadPool(ctx context.Context, key PoolKey) (*models.Pool, error)
	// SavePool replaces the stored pool with the given one
	SavePool(ctx context.Context, key PoolKey, pool *models.Pool) error
}

// AssignmentStore holds shared word lists and per-student progress
type AssignmentStore interface {
	// LoadAssignmentWords returns the list ordered by WordOrder
	LoadAssignmentWords(ctx context.Context, assignmentID string) ([]models.AssignmentWord, error)
	SaveAssignmentWords(ctx context.Context, assignmentID string, words []models.AssignmentWord) error
	LoadProgress(ctx context.Context, key AssignmentKey) ([]models.AssignmentProgress, error)
	// UpsertProgress writes rows keyed by (assignment, student, word); last write wins
	UpsertProgress(ctx context.Context, key AssignmentKey, rows []models.AssignmentProgress) error
}

// Backend is a complete storage implementation
type Backend interface {
	PoolStore
	AssignmentStore
	Close() error
}

// ParseKnown normalizes the stored forms of the known flag
func ParseKnown(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true, nil
	case "0", "false", "":
		return false, nil
	}
	return false, fmt.Errorf("%w: known flag %q", ErrMalformedRecord, s)
}

// FormatKnown is the inverse of ParseKnown for tabular records
func FormatKnown(known bool) string {
	if known {
		return "1"
	}
	return "0"
}

// ParseCount parses a counter. A missing value counts as zero.
func ParseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: counter %q", ErrMalformedRecord, s)
	}
	return n, nil
}

// ValidateWord rejects words that cannot live in a pool
func ValidateWord(w models.Word) error {
	if strings.TrimSpace(w.Foreign) == "" {
		return fmt.Errorf("%w: empty foreign word", ErrMalformedRecord)
	}
	if w.CountSeen < 0 || w.CountCorrect < 0 || w.CountIncorrect < 0 {
		return fmt.Errorf("%w: negative counter for %q", ErrMalformedRecord, w.Foreign)
	}
	return nil
}
