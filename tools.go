package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/wordwindow/internal/excel"
	"github.com/example/wordwindow/internal/session"
	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/internal/window"
	"github.com/example/wordwindow/pkg/models"
)

func runImport(cmd *cobra.Command, args []string) error {
	backend, err := openBackend(cfg.Storage, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	ic := importSettings
	ic.FilePath = args[0]
	key := storage.PoolKey{User: userName, Language: language}
	result, err := excel.ImportWords(cmd.Context(), backend, key, ic)
	if err != nil {
		return err
	}
	printImportResult(cmd, result)
	fmt.Fprintf(cmd.OutOrStdout(), "pool: %s\n", key)
	return nil
}

func runImportAssignment(cmd *cobra.Command, args []string) error {
	backend, err := openBackend(cfg.Storage, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	ic := importSettings
	ic.FilePath = args[0]
	id, result, err := excel.ImportAssignment(cmd.Context(), backend, ic)
	if err != nil {
		return err
	}
	printImportResult(cmd, result)
	fmt.Fprintf(cmd.OutOrStdout(), "assignment: %s\n", id)
	return nil
}

// windowReport is the output of the window command
type windowReport struct {
	Session string            `json:"session_id"`
	Window  window.Snapshot   `json:"window"`
	Stats   models.Statistics `json:"stats"`
}

func runWindow(cmd *cobra.Command, _ []string) error {
	backend, err := openBackend(cfg.Storage, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	manager := session.NewManager(backend, session.Options{
		Defaults:         cfg.Study.Settings(),
		SeedFromTemplate: cfg.Storage.SeedFromTemplate,
		Logger:           appLogger,
	})
	var s *session.Session
	if assignmentID != "" {
		s, err = manager.StartAssignment(cmd.Context(), assignmentID, userName, language, session.Overrides{})
	} else {
		s, err = manager.StartPersonal(cmd.Context(), userName, language, session.Overrides{})
	}
	if err != nil {
		return err
	}

	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	stats, err := s.Stats()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(windowReport{Session: s.ID, Window: snap, Stats: stats})
}

func printImportResult(cmd *cobra.Command, r *excel.ImportResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "processed: %d, created: %d, updated: %d, skipped: %d\n",
		r.TotalProcessed, r.Created, r.Updated, r.Skipped)
	for _, e := range r.Errors {
		fmt.Fprintln(out, "  "+e)
	}
}
