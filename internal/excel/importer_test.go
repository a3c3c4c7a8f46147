package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/internal/storage/csvstore"
	"github.com/example/wordwindow/pkg/models"
)

func writeXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "words.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 1, columnToIndex("b"))
	assert.Equal(t, 26, columnToIndex("AA"))
}

func TestReadPairsFromExcel(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.FilePath = writeXLSX(t, [][]string{
		{"Foreign", "English"},
		{"gato", "cat"},
		{"", "orphan"},
		{"perro", ""},
		{"ir (fui)", "to go"},
	})
	cfg.StripParens = true

	pairs, result, err := ReadPairs(cfg)
	require.NoError(t, err)

	assert.Equal(t, []Pair{
		{Foreign: "gato", English: "cat", Row: 2},
		{Foreign: "ir", English: "to go", Row: 5},
	}, pairs)
	assert.Equal(t, 4, result.TotalProcessed)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 2)
}

func TestReadPairsFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.csv")
	require.NoError(t, os.WriteFile(path, []byte("english,foreign\ncat,gato\n,\ndog,perro\n"), 0o644))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.ForeignColumn = "B"
	cfg.EnglishColumn = "A"

	pairs, result, err := ReadPairs(cfg)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{"gato", "cat", 2}, {"perro", "dog", 4}}, pairs)
	assert.Empty(t, result.Errors)
}

func TestReadPairsMissingFile(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "nope.xlsx")
	_, _, err := ReadPairs(cfg)
	assert.Error(t, err)
}

func TestImportWordsMergesIntoPool(t *testing.T) {
	ctx := context.Background()
	store, err := csvstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	key := storage.PoolKey{User: "ana", Language: "Spanish"}
	require.NoError(t, store.SavePool(ctx, key, models.PoolOf(
		models.Word{Foreign: "gato", English: "kitty", CountSeen: 4, CountCorrect: 4},
		models.Word{Foreign: "sol", English: "sun"},
	)))

	cfg := DefaultImportConfig()
	cfg.FilePath = writeXLSX(t, [][]string{
		{"Foreign", "English"},
		{"gato", "cat"},
		{"sol", "sun"},
		{"luna", "moon"},
	})

	result, err := ImportWords(ctx, store, key, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)

	pool, err := store.LoadPool(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []models.Word{
		{Foreign: "gato", English: "cat", CountSeen: 4, CountCorrect: 4},
		{Foreign: "sol", English: "sun"},
		{Foreign: "luna", English: "moon"},
	}, pool.Words())
}

func TestImportAssignment(t *testing.T) {
	ctx := context.Background()
	store, err := csvstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	cfg := DefaultImportConfig()
	cfg.FilePath = writeXLSX(t, [][]string{
		{"Foreign", "English"},
		{"uno", "one"},
		{"dos", "two"},
		{"uno", "one again"},
	})

	id, result, err := ImportAssignment(ctx, store, cfg)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)

	words, err := store.LoadAssignmentWords(ctx, id)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "uno", words[0].Foreign)
	assert.Equal(t, 1, words[0].WordOrder)
	assert.Equal(t, 2, words[1].WordOrder)
}

func TestImportAssignmentEmpty(t *testing.T) {
	store, err := csvstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	cfg := DefaultImportConfig()
	cfg.FilePath = writeXLSX(t, [][]string{{"Foreign", "English"}})

	_, _, err = ImportAssignment(context.Background(), store, cfg)
	assert.Error(t, err)
}
