package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath      string // Path to the Excel or CSV file
	ForeignColumn string // Column with the foreign word
	EnglishColumn string // Column with the English word
	SheetName     string // Name of the sheet to import
	StartRow      int    // The row to start importing from (1-based index)
	StripParens   bool   // Drop trailing notes like "(went, gone)"
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		ForeignColumn: "A",
		EnglishColumn: "B",
		SheetName:     "Sheet1",
		StartRow:      2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// Pair is one word pair read from a file
type Pair struct {
	Foreign string
	English string
	Row     int
}

// ReadPairs reads word pairs from an Excel or CSV file. Bad rows are
// reported in the result and do not stop the import.
func ReadPairs(config ImportConfig) ([]Pair, *ImportResult, error) {
	var rows [][]string
	var err error
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	pairs := make([]Pair, 0, len(rows))
	foreignIdx := columnToIndex(config.ForeignColumn)
	englishIdx := columnToIndex(config.EnglishColumn)

	for i, row := range rows {
		rowNum := i + 1
		// Skip header rows
		if rowNum < config.StartRow {
			continue
		}
		if isBlank(row) {
			continue
		}
		result.TotalProcessed++

		var foreign, english string
		if foreignIdx < len(row) {
			foreign = row[foreignIdx]
		}
		if englishIdx < len(row) {
			english = row[englishIdx]
		}
		foreign = cleanWord(foreign, config.StripParens)
		english = cleanWord(english, config.StripParens)

		if foreign == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: foreign word cannot be empty", rowNum))
			continue
		}
		if english == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: English word cannot be empty", rowNum))
			continue
		}
		pairs = append(pairs, Pair{Foreign: foreign, English: english, Row: rowNum})
	}
	return pairs, result, nil
}

// ImportWords adds pairs from a file to a personal pool. Existing words keep
// their counters; only the English side is refreshed.
func ImportWords(ctx context.Context, store storage.PoolStore, key storage.PoolKey, config ImportConfig) (*ImportResult, error) {
	pairs, result, err := ReadPairs(config)
	if err != nil {
		return nil, err
	}

	pool, err := store.LoadPool(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		pool = models.NewPool()
	} else if err != nil {
		return nil, fmt.Errorf("failed to load pool: %w", err)
	}

	for _, p := range pairs {
		existing, ok := pool.Get(p.Foreign)
		switch {
		case !ok:
			pool.Put(models.Word{Foreign: p.Foreign, English: p.English})
			result.Created++
		case existing.English != p.English:
			existing.English = p.English
			result.Updated++
		default:
			result.Skipped++
		}
	}

	if err := store.SavePool(ctx, key, pool); err != nil {
		return nil, fmt.Errorf("failed to save pool: %w", err)
	}
	return result, nil
}

// ImportAssignment stores the pairs of a file as a new assignment word list
// and returns its generated id.
func ImportAssignment(ctx context.Context, store storage.AssignmentStore, config ImportConfig) (string, *ImportResult, error) {
	pairs, result, err := ReadPairs(config)
	if err != nil {
		return "", nil, err
	}
	if len(pairs) == 0 {
		return "", result, errors.New("no words to import")
	}

	id := uuid.New().String()
	seen := make(map[string]bool, len(pairs))
	words := make([]models.AssignmentWord, 0, len(pairs))
	for _, p := range pairs {
		if seen[p.Foreign] {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: duplicate word %q", p.Row, p.Foreign))
			continue
		}
		seen[p.Foreign] = true
		words = append(words, models.AssignmentWord{
			AssignmentID: id,
			Foreign:      p.Foreign,
			English:      p.English,
			WordOrder:    len(words) + 1,
		})
		result.Created++
	}

	if err := store.SaveAssignmentWords(ctx, id, words); err != nil {
		return "", nil, fmt.Errorf("failed to save assignment: %w", err)
	}
	return id, result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cleanWord trims a cell and optionally drops a parenthesized note
func cleanWord(word string, stripParens bool) string {
	if stripParens {
		// Удаляем информацию в скобках "(went, gone)" из слова
		if i := strings.Index(word, "("); i > 0 {
			word = word[:i]
		}
	}
	return strings.TrimSpace(word)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
