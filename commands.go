package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/wordwindow/internal/config"
	"github.com/example/wordwindow/internal/excel"
	"github.com/example/wordwindow/internal/logger"
)

// --- Global Command Variables ---
var (
	configPath string
	cfg        *config.Config
	appLogger  *slog.Logger

	userName       string
	language       string
	assignmentID   string
	importSettings = excel.DefaultImportConfig()

	rootCmd = &cobra.Command{
		Use:           "wordwindow",
		Short:         "Vocabulary study server with a walking window of words",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			appLogger = logger.Setup(cfg.Server.LogLevel)
			if language == "" {
				language = cfg.Study.Language
			}
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, if enabled, the Telegram bot",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in serve.go
	}

	importCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Add words from an xlsx or csv file to a learner's pool",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport, // Defined in tools.go
	}

	importAssignmentCmd = &cobra.Command{
		Use:   "import-assignment [file]",
		Short: "Create an assignment from an xlsx or csv file and print its id",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportAssignment, // Defined in tools.go
	}

	windowCmd = &cobra.Command{
		Use:   "window",
		Short: "Print the study window and statistics of a learner as JSON",
		Args:  cobra.NoArgs,
		RunE:  runWindow, // Defined in tools.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	for _, cmd := range []*cobra.Command{importCmd, windowCmd} {
		cmd.Flags().StringVar(&userName, "user", "", "pool owner")
		cmd.Flags().StringVar(&language, "language", "", "study language (default from config)")
		_ = cmd.MarkFlagRequired("user")
	}
	windowCmd.Flags().StringVar(&assignmentID, "assignment", "", "show an assignment session instead of the personal pool")
	importAssignmentCmd.Flags().StringVar(&language, "language", "", "study language (default from config)")

	for _, cmd := range []*cobra.Command{importCmd, importAssignmentCmd} {
		cmd.Flags().StringVar(&importSettings.ForeignColumn, "foreign-column", importSettings.ForeignColumn, "column with the foreign word")
		cmd.Flags().StringVar(&importSettings.EnglishColumn, "english-column", importSettings.EnglishColumn, "column with the English word")
		cmd.Flags().StringVar(&importSettings.SheetName, "sheet", importSettings.SheetName, "sheet name for xlsx files")
		cmd.Flags().IntVar(&importSettings.StartRow, "start-row", importSettings.StartRow, "first data row, 1-based")
		cmd.Flags().BoolVar(&importSettings.StripParens, "strip-parens", false, "drop notes in parentheses")
	}

	rootCmd.AddCommand(serveCmd, importCmd, importAssignmentCmd, windowCmd)
}
