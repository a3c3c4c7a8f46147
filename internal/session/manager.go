// Package session owns live study sessions. It builds a window per learner
// from storage, serializes access to it and saves after every change.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/example/wordwindow/internal/metrics"
	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/internal/window"
	"github.com/example/wordwindow/pkg/models"
)

var (
	// ErrSessionNotFound is returned for unknown or evicted sessions
	ErrSessionNotFound = errors.New("session not found")
	// ErrPersist wraps storage failures after a state change
	ErrPersist = errors.New("failed to persist session")
	// ErrInvalidSettings is returned for out-of-range study settings
	ErrInvalidSettings = errors.New("invalid study settings")
	// ErrInvalidRequest is returned when identifying fields are missing
	ErrInvalidRequest = errors.New("invalid session request")
)

// Options configures a Manager
type Options struct {
	Defaults Settings
	// SeedFromTemplate copies the template pool to learners without one
	SeedFromTemplate bool
	Logger           *slog.Logger
	Now              func() time.Time
	// NewRand supplies the random source of each new window
	NewRand func() *rand.Rand
}

// Manager keeps sessions by id
type Manager struct {
	backend storage.Backend
	opts    Options
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager over a storage backend
func NewManager(backend storage.Backend, opts Options) *Manager {
	if opts.Defaults == (Settings{}) {
		opts.Defaults = DefaultSettings()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRand == nil {
		opts.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) }
	}
	return &Manager{
		backend:  backend,
		opts:     opts,
		logger:   opts.Logger.With("component", "session"),
		sessions: make(map[string]*Session),
	}
}

// Defaults returns the settings new sessions start from
func (m *Manager) Defaults() Settings {
	return m.opts.Defaults
}

// PersonalID is the session id of a learner's personal pool
func PersonalID(user, language string) string {
	return storage.PoolKey{User: user, Language: language}.String()
}

// AssignmentID is the session id of a student working on an assignment
func AssignmentID(assignmentID, student string) string {
	return "assignment:" + storage.EscapeKeyPart(assignmentID) + ":" + storage.EscapeKeyPart(student)
}

// StartPersonal loads a learner's pool and opens a session on it.
// An existing session with the same id is replaced.
func (m *Manager) StartPersonal(ctx context.Context, user, language string, o Overrides) (*Session, error) {
	user, language = strings.TrimSpace(user), strings.TrimSpace(language)
	if user == "" || language == "" {
		return nil, fmt.Errorf("%w: user and language are required", ErrInvalidRequest)
	}
	src := &storage.PersonalSource{
		Store:            m.backend,
		Key:              storage.PoolKey{User: user, Language: language},
		SeedFromTemplate: m.opts.SeedFromTemplate,
		Logger:           m.logger,
	}
	s := &Session{ID: PersonalID(user, language), User: user, Language: language}
	return m.start(ctx, s, src, o)
}

// StartAssignment opens a session on an assignment word list for a student
func (m *Manager) StartAssignment(ctx context.Context, assignmentID, student, language string, o Overrides) (*Session, error) {
	assignmentID, student = strings.TrimSpace(assignmentID), strings.TrimSpace(student)
	if assignmentID == "" || student == "" || strings.TrimSpace(language) == "" {
		return nil, fmt.Errorf("%w: assignment, student and language are required", ErrInvalidRequest)
	}
	src := &mergingSource{
		AssignmentSource: &storage.AssignmentSource{
			Assignments: m.backend,
			Pools:       m.backend,
			Key:         storage.AssignmentKey{AssignmentID: assignmentID, Student: student},
			Language:    strings.TrimSpace(language),
			Now:         m.opts.Now,
			Logger:      m.logger,
		},
		manager: m,
	}
	s := &Session{
		ID:           AssignmentID(assignmentID, student),
		User:         student,
		Language:     src.Language,
		AssignmentID: assignmentID,
	}
	return m.start(ctx, s, src, o)
}

// ProgressReport is one student's standing on an assignment
type ProgressReport struct {
	AssignmentID string            `json:"assignment_id"`
	Student      string            `json:"student"`
	Words        []models.Word     `json:"words"`
	Stats        models.Statistics `json:"stats"`
}

// AssignmentProgress reads a student's saved progress on an assignment
// without opening a session. Words the student never touched report zero
// counters.
func (m *Manager) AssignmentProgress(ctx context.Context, assignmentID, student string) (ProgressReport, error) {
	assignmentID, student = strings.TrimSpace(assignmentID), strings.TrimSpace(student)
	if assignmentID == "" || student == "" {
		return ProgressReport{}, fmt.Errorf("%w: assignment and student are required", ErrInvalidRequest)
	}
	src := &storage.AssignmentSource{
		Assignments: m.backend,
		Pools:       m.backend,
		Key:         storage.AssignmentKey{AssignmentID: assignmentID, Student: student},
		Logger:      m.logger,
	}
	pool, err := src.Load(ctx)
	if err != nil {
		return ProgressReport{}, err
	}
	return ProgressReport{
		AssignmentID: assignmentID,
		Student:      student,
		Words:        pool.Words(),
		Stats:        window.ComputeStats(pool),
	}, nil
}

func (m *Manager) start(ctx context.Context, s *Session, src storage.Source, o Overrides) (*Session, error) {
	settings := m.opts.Defaults.With(o)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	// Старая сессия дожидается завершения текущей операции
	m.mu.Lock()
	old := m.sessions[s.ID]
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		defer old.mu.Unlock()
	}

	pool, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	logger := m.logger.With("session", s.ID)
	w, err := window.New(pool, settings.Policy(), settings.WindowConfig(src.Assignment(), m.opts.NewRand(), logger))
	if err != nil {
		return nil, err
	}

	s.Settings = settings
	s.window = w
	s.source = src
	s.logger = logger
	s.now = m.opts.Now
	s.lastUsed = m.opts.Now()

	m.mu.Lock()
	if old != nil {
		old.closed = true
	}
	m.sessions[s.ID] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	logger.Info("session started", "pool_size", pool.Len(), "assignment", src.Assignment())
	return s, nil
}

// mergingSource saves an assignment pool and folds the same progress into
// the student's live personal session, so that session's next save does
// not overwrite what the assignment merged into the personal pool.
type mergingSource struct {
	*storage.AssignmentSource
	manager *Manager
}

func (src *mergingSource) Save(ctx context.Context, pool *models.Pool) error {
	if err := src.AssignmentSource.Save(ctx, pool); err != nil {
		return err
	}
	if personal := src.manager.lookup(PersonalID(src.Key.Student, src.Language)); personal != nil {
		personal.absorb(pool)
	}
	return nil
}

func (m *Manager) lookup(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Get returns a live session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SweepIdle saves and evicts sessions unused for maxIdle
func (m *Manager) SweepIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := m.opts.Now().Add(-maxIdle)

	m.mu.Lock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.Unlock()

	var idle []*Session
	for _, s := range candidates {
		if !s.idleSince(cutoff) {
			continue
		}
		m.mu.Lock()
		if m.sessions[s.ID] == s {
			delete(m.sessions, s.ID)
			idle = append(idle, s)
		}
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
		m.mu.Unlock()
	}

	var errs []error
	for _, s := range idle {
		if err := s.close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(idle) > 0 {
		m.logger.Info("evicted idle sessions", "count", len(idle))
	}
	return len(idle), errors.Join(errs...)
}

// Close saves and drops every session
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	m.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := s.close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
