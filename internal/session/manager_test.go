package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/internal/storage/csvstore"
	"github.com/example/wordwindow/internal/window"
	"github.com/example/wordwindow/pkg/models"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyBackend fails pool saves while broken is set
type flakyBackend struct {
	storage.Backend
	mu     sync.Mutex
	broken bool
	saves  int
}

func (f *flakyBackend) SavePool(ctx context.Context, key storage.PoolKey, pool *models.Pool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return errors.New("disk full")
	}
	f.saves++
	return f.Backend.SavePool(ctx, key, pool)
}

func smallSettings() Settings {
	return Settings{WindowSize: 3, SRSCapacity: 2, KnownThreshold: 2, KnownDelta: 1, Direction: "foreign_to_english"}
}

func newManager(t *testing.T, b storage.Backend) (*Manager, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}
	m := NewManager(b, Options{
		Defaults:         smallSettings(),
		SeedFromTemplate: true,
		Now:              c.Now,
		NewRand:          func() *rand.Rand { return rand.New(rand.NewSource(3)) },
	})
	return m, c
}

func newBackend(t *testing.T) storage.Backend {
	t.Helper()
	s, err := csvstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func seedTemplate(t *testing.T, b storage.Backend, keys ...string) {
	t.Helper()
	pool := models.NewPool()
	for _, k := range keys {
		pool.Put(models.Word{Foreign: k, English: "en-" + k})
	}
	require.NoError(t, b.SavePool(context.Background(), storage.PoolKey{User: storage.TemplateUser, Language: "Spanish"}, pool))
}

func foreignKeys(words []models.Word) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, w.Foreign)
	}
	return out
}

func TestStartPersonalSeedsAndPersists(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	seedTemplate(t, b, "a", "b", "c", "d")
	m, _ := newManager(t, b)

	s, err := m.StartPersonal(ctx, "ana", "Spanish", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "ana_Spanish", s.ID)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, foreignKeys(snap.Current))

	out, err := s.Check(ctx, "a", "EN-A")
	require.NoError(t, err)
	assert.True(t, out.Correct)
	assert.Equal(t, window.StateRetry, out.State)

	out, err = s.Check(ctx, "a", "en-a")
	require.NoError(t, err)
	assert.True(t, out.BecameKnown)

	stored, err := b.LoadPool(ctx, storage.PoolKey{User: "ana", Language: "Spanish"})
	require.NoError(t, err)
	a, _ := stored.Get("a")
	assert.Equal(t, models.Word{Foreign: "a", English: "en-a", CountSeen: 2, CountCorrect: 2, IsKnown: true}, *a)

	// a new session resumes from the saved pool
	s2, err := m.StartPersonal(ctx, "ana", "Spanish", Overrides{})
	require.NoError(t, err)
	snap, err = s2.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, foreignKeys(snap.Current))

	_, err = s.RandomWords(1)
	assert.ErrorIs(t, err, ErrSessionNotFound, "replaced session is closed")
	got, err := m.Get("ana_Spanish")
	require.NoError(t, err)
	assert.Same(t, s2, got)
}

func TestSessionIDsDoNotCollide(t *testing.T) {
	assert.NotEqual(t, PersonalID("a_b", "c"), PersonalID("a", "b_c"))
	assert.NotEqual(t, AssignmentID("a:b", "c"), AssignmentID("a", "b:c"))
	assert.Equal(t, "ana_Spanish", PersonalID("ana", "Spanish"))
	assert.Equal(t, "assignment:a1:ana@example.com", AssignmentID("a1", "ana@example.com"))
}

func TestUnderscoreUsersGetSeparateSessions(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	require.NoError(t, b.SavePool(ctx, storage.PoolKey{User: "a_b", Language: "c"}, models.PoolOf(models.Word{Foreign: "uno", English: "one"})))
	require.NoError(t, b.SavePool(ctx, storage.PoolKey{User: "a", Language: "b_c"}, models.PoolOf(models.Word{Foreign: "dos", English: "two"})))
	m, _ := newManager(t, b)

	one, err := m.StartPersonal(ctx, "a_b", "c", Overrides{})
	require.NoError(t, err)
	two, err := m.StartPersonal(ctx, "a", "b_c", Overrides{})
	require.NoError(t, err)
	assert.NotEqual(t, one.ID, two.ID)
	assert.Equal(t, 2, m.Len())

	snap, err := one.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"uno"}, foreignKeys(snap.Current))
	_, err = one.RandomWords(1)
	assert.NoError(t, err, "starting the second session must not replace the first")
}

func TestStartValidatesInput(t *testing.T) {
	m, _ := newManager(t, newBackend(t))
	ctx := context.Background()

	_, err := m.StartPersonal(ctx, "", "Spanish", Overrides{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	tooBig := 99
	_, err = m.StartPersonal(ctx, "ana", "Spanish", Overrides{WindowSize: &tooBig})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	dir := "upside_down"
	_, err = m.StartPersonal(ctx, "ana", "Spanish", Overrides{Direction: &dir})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	_, err = m.StartAssignment(ctx, "a1", "", "Spanish", Overrides{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = m.StartAssignment(ctx, "missing", "ana", "Spanish", Overrides{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOverridesApply(t *testing.T) {
	b := newBackend(t)
	seedTemplate(t, b, "a", "b", "c", "d", "e")
	m, _ := newManager(t, b)

	size := 5
	dir := "english_to_foreign"
	s, err := m.StartPersonal(context.Background(), "ana", "Spanish", Overrides{WindowSize: &size, Direction: &dir})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Settings.WindowSize)

	out, err := s.Check(context.Background(), "b", "B")
	require.NoError(t, err)
	assert.True(t, out.Correct)
}

func TestUnknownWordIsNotSaved(t *testing.T) {
	b := &flakyBackend{Backend: newBackend(t)}
	seedTemplate(t, b.Backend, "a", "b")
	m, _ := newManager(t, b)
	s, err := m.StartPersonal(context.Background(), "ana", "Spanish", Overrides{})
	require.NoError(t, err)
	saves := b.saves

	_, err = s.Check(context.Background(), "zzz", "x")
	assert.ErrorIs(t, err, window.ErrWordNotFound)
	_, err = s.MarkKnown(context.Background(), "zzz")
	assert.ErrorIs(t, err, window.ErrWordNotFound)
	assert.Equal(t, saves, b.saves)
}

func TestSaveFailureKeepsSessionUsable(t *testing.T) {
	ctx := context.Background()
	b := &flakyBackend{Backend: newBackend(t)}
	seedTemplate(t, b.Backend, "a", "b", "c", "d")
	m, _ := newManager(t, b)
	s, err := m.StartPersonal(ctx, "ana", "Spanish", Overrides{})
	require.NoError(t, err)

	b.broken = true
	out, err := s.Check(ctx, "a", "en-a")
	assert.ErrorIs(t, err, ErrPersist)
	assert.True(t, out.Correct)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, foreignKeys(snap.Current))
	assert.Equal(t, []string{"a"}, foreignKeys(snap.SRSQueue))

	b.broken = false
	_, err = s.MarkKnown(ctx, "b")
	require.NoError(t, err)

	stored, err := b.LoadPool(ctx, storage.PoolKey{User: "ana", Language: "Spanish"})
	require.NoError(t, err)
	a, _ := stored.Get("a")
	assert.Equal(t, 1, a.CountCorrect, "the next save carries the earlier change")
}

func TestReviewAndKnownWords(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	seedTemplate(t, b, "a", "b")
	m, _ := newManager(t, b)
	s, err := m.StartPersonal(ctx, "ana", "Spanish", Overrides{})
	require.NoError(t, err)

	_, err = s.MarkKnown(ctx, "a")
	require.NoError(t, err)
	known, err := s.KnownWords()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, foreignKeys(known))

	out, err := s.Review(ctx, "a", "wrong")
	require.NoError(t, err)
	assert.False(t, out.Correct)
	assert.True(t, out.Word.IsKnown)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Known)
	require.NotNil(t, stats.MostIncorrect)
	assert.Equal(t, "a", stats.MostIncorrect.Foreign)
}

func TestAssignmentSession(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	require.NoError(t, b.SaveAssignmentWords(ctx, "a1", []models.AssignmentWord{
		{Foreign: "uno", English: "one", WordOrder: 1},
		{Foreign: "dos", English: "two", WordOrder: 2},
		{Foreign: "tres", English: "three", WordOrder: 3},
	}))
	m, _ := newManager(t, b)

	s, err := m.StartAssignment(ctx, "a1", "ana@example.com", "Spanish", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "assignment:a1:ana@example.com", s.ID)

	for _, w := range []string{"uno", "dos", "tres"} {
		_, err := s.MarkKnown(ctx, w)
		require.NoError(t, err)
	}
	words, err := s.RandomWords(5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"uno", "dos", "tres"}, foreignKeys(words))

	personal, err := b.LoadPool(ctx, storage.PoolKey{User: "ana@example.com", Language: "Spanish"})
	require.NoError(t, err)
	assert.Equal(t, 3, personal.Len())
	for _, w := range personal.Words() {
		assert.True(t, w.IsKnown)
	}
}

func TestAssignmentProgressReachesLivePersonalSession(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	seedTemplate(t, b, "a", "b", "c", "d")
	require.NoError(t, b.SaveAssignmentWords(ctx, "a1", []models.AssignmentWord{
		{Foreign: "a", English: "en-a", WordOrder: 1},
		{Foreign: "z", English: "en-z", WordOrder: 2},
	}))
	m, _ := newManager(t, b)

	personal, err := m.StartPersonal(ctx, "ana", "Spanish", Overrides{})
	require.NoError(t, err)
	assigned, err := m.StartAssignment(ctx, "a1", "ana", "Spanish", Overrides{})
	require.NoError(t, err)

	_, err = assigned.MarkKnown(ctx, "a")
	require.NoError(t, err)

	snap, err := personal.Snapshot()
	require.NoError(t, err)
	assert.NotContains(t, foreignKeys(snap.Current), "a", "a word learned in the assignment leaves the personal window")

	// the personal session saves next and must keep the merged progress
	_, err = personal.Check(ctx, "b", "wrong")
	require.NoError(t, err)

	stored, err := b.LoadPool(ctx, storage.PoolKey{User: "ana", Language: "Spanish"})
	require.NoError(t, err)
	a, ok := stored.Get("a")
	require.True(t, ok)
	assert.True(t, a.IsKnown)
	assert.True(t, stored.Has("z"))
	bw, _ := stored.Get("b")
	assert.Equal(t, 1, bw.CountIncorrect)
}

func TestAssignmentSaveSkipsClosedPersonalSession(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	seedTemplate(t, b, "a", "b")
	require.NoError(t, b.SaveAssignmentWords(ctx, "a1", []models.AssignmentWord{{Foreign: "a", English: "en-a", WordOrder: 1}}))
	m, _ := newManager(t, b)

	personal, err := m.StartPersonal(ctx, "ana", "Spanish", Overrides{})
	require.NoError(t, err)
	_, err = m.SweepIdle(ctx, -time.Minute)
	require.NoError(t, err)

	assigned, err := m.StartAssignment(ctx, "a1", "ana", "Spanish", Overrides{})
	require.NoError(t, err)
	_, err = assigned.MarkKnown(ctx, "a")
	require.NoError(t, err)

	_, err = personal.Stats()
	assert.ErrorIs(t, err, ErrSessionNotFound)
	stored, err := b.LoadPool(ctx, storage.PoolKey{User: "ana", Language: "Spanish"})
	require.NoError(t, err)
	a, _ := stored.Get("a")
	assert.True(t, a.IsKnown)
}

func TestAssignmentProgressReport(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	require.NoError(t, b.SaveAssignmentWords(ctx, "a1", []models.AssignmentWord{
		{Foreign: "uno", English: "one", WordOrder: 1},
		{Foreign: "dos", English: "two", WordOrder: 2},
	}))
	m, _ := newManager(t, b)

	report, err := m.AssignmentProgress(ctx, "a1", "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{"uno", "dos"}, foreignKeys(report.Words))
	assert.Zero(t, report.Stats.Known)

	s, err := m.StartAssignment(ctx, "a1", "ana", "Spanish", Overrides{})
	require.NoError(t, err)
	_, err = s.MarkKnown(ctx, "dos")
	require.NoError(t, err)
	_, err = s.Check(ctx, "uno", "wrong")
	require.NoError(t, err)

	report, err = m.AssignmentProgress(ctx, "a1", "ana")
	require.NoError(t, err)
	assert.Equal(t, "a1", report.AssignmentID)
	assert.Equal(t, "ana", report.Student)
	assert.Equal(t, 1, report.Stats.Known)
	require.NotNil(t, report.Stats.MostIncorrect)
	assert.Equal(t, "uno", report.Stats.MostIncorrect.Foreign)

	other, err := m.AssignmentProgress(ctx, "a1", "ben")
	require.NoError(t, err)
	assert.Zero(t, other.Stats.Known, "progress is per student")

	_, err = m.AssignmentProgress(ctx, "missing", "ana")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = m.AssignmentProgress(ctx, "a1", " ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSweepIdle(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	seedTemplate(t, b, "a", "b")
	m, c := newManager(t, b)

	idle, err := m.StartPersonal(ctx, "ana", "Spanish", Overrides{})
	require.NoError(t, err)
	c.Advance(20 * time.Minute)
	busy, err := m.StartPersonal(ctx, "ben", "Spanish", Overrides{})
	require.NoError(t, err)

	n, err := m.SweepIdle(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, m.Len())

	_, err = m.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = idle.Stats()
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = busy.Stats()
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx))
	assert.Zero(t, m.Len())
}

func TestConcurrentChecksAreSerialized(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	seedTemplate(t, b, "a", "b", "c")
	m, _ := newManager(t, b)
	s, err := m.StartPersonal(ctx, "ana", "Spanish", Overrides{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Check(ctx, "b", "wrong")
		}()
	}
	wg.Wait()

	stats, err := s.Stats()
	require.NoError(t, err)
	require.NotNil(t, stats.MostIncorrect)
	assert.Equal(t, 20, stats.MostIncorrect.CountIncorrect)
}
