package database

import (
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Store is the SQL storage backend
type Store struct {
	*PoolRepository
	*AssignmentRepository
	db *sqlx.DB
}

// NewStore wires the repositories over an open connection
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "database")
	return &Store{
		PoolRepository:       NewPoolRepository(db, logger),
		AssignmentRepository: NewAssignmentRepository(db, logger),
		db:                   db,
	}
}

// Open connects and returns a ready store
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(db, logger), nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
