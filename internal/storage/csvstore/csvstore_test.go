package csvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/pkg/models"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, nil)
	require.NoError(t, err)
	return s, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPoolRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	key := storage.PoolKey{User: "ana", Language: "Spanish"}
	pool := models.PoolOf(
		models.Word{Foreign: "gato", English: "cat", CountSeen: 3, CountCorrect: 2, CountIncorrect: 1},
		models.Word{Foreign: "perro", English: "dog", CountSeen: 7, CountCorrect: 7, IsKnown: true},
		models.Word{Foreign: "casa, grande", English: "big \"house\""},
	)

	require.NoError(t, s.SavePool(ctx, key, pool))
	loaded, err := s.LoadPool(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, pool.Words(), loaded.Words())

	require.NoError(t, s.SavePool(ctx, key, loaded))
	again, err := s.LoadPool(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, pool.Words(), again.Words())
}

func TestPoolsWithUnderscoresStaySeparate(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()
	first := storage.PoolKey{User: "a_b", Language: "c"}
	second := storage.PoolKey{User: "a", Language: "b_c"}

	require.NoError(t, s.SavePool(ctx, first, models.PoolOf(models.Word{Foreign: "uno", English: "one"})))
	require.NoError(t, s.SavePool(ctx, second, models.PoolOf(models.Word{Foreign: "dos", English: "two"})))

	got, err := s.LoadPool(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []string{"uno"}, got.Keys())
	got, err = s.LoadPool(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"dos"}, got.Keys())

	entries, err := os.ReadDir(filepath.Join(dir, "UserWords"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPoolKeyCannotLeaveDirectory(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()
	key := storage.PoolKey{User: "../../escape", Language: "Spanish"}

	require.NoError(t, s.SavePool(ctx, key, models.PoolOf(models.Word{Foreign: "uno", English: "one"})))
	entries, err := os.ReadDir(filepath.Join(dir, "UserWords"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "..%2F..%2Fescape_Spanish.csv", entries[0].Name())
}

func TestLoadPoolSkipsMalformedRows(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, filepath.Join(dir, "UserWords", "ana_Spanish.csv"),
		"Foreign,English,seen,correct,wrong,known\n"+
			"gato,cat,2,1,1,0\n"+
			"perro,dog,abc,0,0,0\n"+
			"casa,house,1,1,0,TRUE\n")

	pool, err := s.LoadPool(context.Background(), storage.PoolKey{User: "ana", Language: "Spanish"})
	require.NoError(t, err)

	assert.Equal(t, []string{"gato", "casa"}, pool.Keys())
	casa, _ := pool.Get("casa")
	assert.True(t, casa.IsKnown)
}

func TestLoadPoolKnownForms(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, filepath.Join(dir, "UserWords", "ana_French.csv"),
		"Foreign,English,seen,correct,wrong,known\n"+
			"a,1,0,0,0,1\n"+
			"b,2,0,0,0,true\n"+
			"c,3,0,0,0,False\n"+
			"d,4,0,0,0,\n"+
			"e,5,0,0,0,yes\n"+
			",6,0,0,0,0\n"+
			"f,7,-1,0,0,0\n")

	pool, err := s.LoadPool(context.Background(), storage.PoolKey{User: "ana", Language: "French"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, pool.Keys())
	known := map[string]bool{}
	for _, w := range pool.Words() {
		known[w.Foreign] = w.IsKnown
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": false, "d": false}, known)
}

func TestLoadPoolMissingColumnsDefaultToZero(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, filepath.Join(dir, "UserWords", "ana_Japanese.csv"),
		"Foreign,English\n"+
			"neko,cat\n"+
			"inu\n")

	pool, err := s.LoadPool(context.Background(), storage.PoolKey{User: "ana", Language: "Japanese"})
	require.NoError(t, err)
	assert.Equal(t, []models.Word{
		{Foreign: "neko", English: "cat"},
		{Foreign: "inu"},
	}, pool.Words())
}

func TestLoadPoolNotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.LoadPool(context.Background(), storage.PoolKey{User: "nobody", Language: "Spanish"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s, dir := newStore(t)
	key := storage.PoolKey{User: "ana", Language: "Spanish"}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SavePool(context.Background(), key, models.PoolOf(models.Word{Foreign: "x", CountSeen: i, CountCorrect: i})))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "UserWords"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ana_Spanish.csv", entries[0].Name())
}

func TestAssignmentWords(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAssignmentWords(ctx, "a1", []models.AssignmentWord{
		{Foreign: "tres", English: "three", WordOrder: 3},
		{Foreign: "uno", English: "one", WordOrder: 1},
		{Foreign: "dos", English: "two", WordOrder: 2},
	}))
	require.NoError(t, s.SaveAssignmentWords(ctx, "a2", []models.AssignmentWord{
		{Foreign: "rojo", English: "red", WordOrder: 1},
	}))

	words, err := s.LoadAssignmentWords(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, words, 3)
	assert.Equal(t, "uno", words[0].Foreign)
	assert.Equal(t, "tres", words[2].Foreign)
	assert.Equal(t, "a1", words[0].AssignmentID)

	// replacing a1 keeps a2 intact
	require.NoError(t, s.SaveAssignmentWords(ctx, "a1", []models.AssignmentWord{{Foreign: "cero", WordOrder: 1}}))
	words, err = s.LoadAssignmentWords(ctx, "a2")
	require.NoError(t, err)
	assert.Len(t, words, 1)

	_, err = s.LoadAssignmentWords(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpsertProgressLastWriteWins(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	ana := storage.AssignmentKey{AssignmentID: "a1", Student: "ana@example.com"}
	ben := storage.AssignmentKey{AssignmentID: "a1", Student: "ben@example.com"}
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertProgress(ctx, ana, []models.AssignmentProgress{
		{AssignmentID: "a1", StudentEmail: ana.Student, WordForeign: "uno", CountSeen: 1, CountCorrect: 1, LastUpdated: t0},
		{AssignmentID: "a1", StudentEmail: ana.Student, WordForeign: "dos", CountSeen: 1, CountIncorrect: 1, LastUpdated: t0},
	}))
	require.NoError(t, s.UpsertProgress(ctx, ben, []models.AssignmentProgress{
		{AssignmentID: "a1", StudentEmail: ben.Student, WordForeign: "uno", CountSeen: 9, CountCorrect: 9, IsKnown: true, LastUpdated: t0},
	}))
	require.NoError(t, s.UpsertProgress(ctx, ana, []models.AssignmentProgress{
		{AssignmentID: "a1", StudentEmail: ana.Student, WordForeign: "uno", CountSeen: 2, CountCorrect: 2, LastUpdated: t0.Add(time.Hour)},
		{AssignmentID: "a1", StudentEmail: ana.Student, WordForeign: "tres", CountSeen: 1, CountCorrect: 1, LastUpdated: t0.Add(time.Hour)},
	}))

	rows, err := s.LoadProgress(ctx, ana)
	require.NoError(t, err)
	byWord := map[string]models.AssignmentProgress{}
	for _, r := range rows {
		byWord[r.WordForeign] = r
	}
	require.Len(t, byWord, 3)
	assert.Equal(t, 2, byWord["uno"].CountSeen)
	assert.Equal(t, t0.Add(time.Hour), byWord["uno"].LastUpdated)
	assert.Equal(t, 1, byWord["dos"].CountIncorrect)
	assert.Equal(t, 1, byWord["tres"].CountCorrect)

	benRows, err := s.LoadProgress(ctx, ben)
	require.NoError(t, err)
	require.Len(t, benRows, 1)
	assert.True(t, benRows[0].IsKnown)
}

func TestLoadProgressWithoutFile(t *testing.T) {
	s, _ := newStore(t)
	rows, err := s.LoadProgress(context.Background(), storage.AssignmentKey{AssignmentID: "a", Student: "s"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
