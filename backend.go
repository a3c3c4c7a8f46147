package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/example/wordwindow/internal/config"
	"github.com/example/wordwindow/internal/database"
	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/internal/storage/csvstore"
	"github.com/example/wordwindow/internal/storage/kvstore"
)

// openBackend opens the storage selected by the configuration
func openBackend(c config.StorageConfig, logger *slog.Logger) (storage.Backend, error) {
	switch c.Backend {
	case "csv":
		return csvstore.New(c.DataDir, logger)
	case "sqlite":
		return database.Open(database.Config{Driver: "sqlite3", DataDir: c.DataDir}, logger)
	case "postgres":
		return database.Open(database.Config{Driver: "postgres", DSN: c.DatabaseURL}, logger)
	case "badger":
		kv := kvstore.DefaultConfig(filepath.Join(c.DataDir, "badger"))
		kv.Logger = logger
		return kvstore.Open(kv)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Backend)
	}
}
