package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestPoolRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := storage.PoolKey{User: "ana/b", Language: "Arabic"}
	pool := models.PoolOf(
		models.Word{Foreign: "kitab", English: "book", CountSeen: 3, CountCorrect: 3},
		models.Word{Foreign: "qalam", English: "pen", CountSeen: 6, CountCorrect: 5, CountIncorrect: 1, IsKnown: true},
	)

	require.NoError(t, s.SavePool(ctx, key, pool))
	loaded, err := s.LoadPool(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, pool.Words(), loaded.Words())

	_, err = s.LoadPool(ctx, storage.PoolKey{User: "ana", Language: "Arabic"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoadPoolToleratesLooseRecords(t *testing.T) {
	s := openTestStore(t)
	key := storage.PoolKey{User: "ana", Language: "Spanish"}
	raw := `[
		{"foreign": "a", "english": "1", "seen": 1, "correct": 1, "known": true},
		{"foreign": "b", "english": "2", "known": "TRUE"},
		{"foreign": "c", "english": "3", "known": 0},
		{"foreign": "d", "english": "4", "seen": "abc"},
		{"foreign": "e", "english": "5", "known": "maybe"},
		{"foreign": "",  "english": "6"},
		{"foreign": "f", "english": "7", "correct": -2}
	]`
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(poolKey(key), []byte(raw))
	}))

	pool, err := s.LoadPool(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []models.Word{
		{Foreign: "a", English: "1", CountSeen: 1, CountCorrect: 1, IsKnown: true},
		{Foreign: "b", English: "2", IsKnown: true},
		{Foreign: "c", English: "3"},
	}, pool.Words())
}

func TestAssignmentWordsAndProgress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAssignmentWords(ctx, "a1", []models.AssignmentWord{
		{Foreign: "dos", English: "two", WordOrder: 2},
		{Foreign: "uno", English: "one", WordOrder: 1},
	}))
	words, err := s.LoadAssignmentWords(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "uno", words[0].Foreign)
	assert.Equal(t, "a1", words[1].AssignmentID)

	_, err = s.LoadAssignmentWords(ctx, "a2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	key := storage.AssignmentKey{AssignmentID: "a1", Student: "ana@example.com"}
	rows, err := s.LoadProgress(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, rows)

	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.UpsertProgress(ctx, key, []models.AssignmentProgress{
		{WordForeign: "uno", CountSeen: 1, CountCorrect: 1, LastUpdated: t0},
		{WordForeign: "dos", CountSeen: 1, CountIncorrect: 1, LastUpdated: t0},
	}))
	require.NoError(t, s.UpsertProgress(ctx, key, []models.AssignmentProgress{
		{WordForeign: "dos", CountSeen: 2, CountCorrect: 1, CountIncorrect: 1, IsKnown: true, LastUpdated: t0.Add(time.Minute)},
	}))

	rows, err = s.LoadProgress(ctx, key)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "uno", rows[0].WordForeign)
	assert.Equal(t, 1, rows[0].CountSeen)
	assert.Equal(t, "dos", rows[1].WordForeign)
	assert.True(t, rows[1].IsKnown)
	assert.Equal(t, "ana@example.com", rows[1].StudentEmail)
	assert.True(t, rows[1].LastUpdated.Equal(t0.Add(time.Minute)))
}

func TestAssignmentSourceOverBadger(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAssignmentWords(ctx, "a1", []models.AssignmentWord{
		{Foreign: "uno", English: "one", WordOrder: 1},
	}))

	src := &storage.AssignmentSource{
		Assignments: s,
		Pools:       s,
		Key:         storage.AssignmentKey{AssignmentID: "a1", Student: "ana"},
		Language:    "Spanish",
	}
	pool, err := src.Load(ctx)
	require.NoError(t, err)
	uno, _ := pool.Get("uno")
	uno.CountSeen, uno.CountCorrect = 1, 1
	require.NoError(t, src.Save(ctx, pool))

	personal, err := s.LoadPool(ctx, storage.PoolKey{User: "ana", Language: "Spanish"})
	require.NoError(t, err)
	assert.Equal(t, []models.Word{{Foreign: "uno", English: "one", CountSeen: 1, CountCorrect: 1}}, personal.Words())
}

func TestMaintainInMemory(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Maintain(context.Background()))
}
