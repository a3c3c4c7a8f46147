package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/wordwindow/internal/api"
	"github.com/example/wordwindow/internal/bot"
	"github.com/example/wordwindow/internal/config"
	"github.com/example/wordwindow/internal/scheduler"
	"github.com/example/wordwindow/internal/session"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(cfg.Storage, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			appLogger.Error("failed to close storage", "error", err)
		}
	}()

	manager := session.NewManager(backend, session.Options{
		Defaults:         cfg.Study.Settings(),
		SeedFromTemplate: cfg.Storage.SeedFromTemplate,
		Logger:           appLogger,
	})
	if err := manager.Defaults().Validate(); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Close(closeCtx); err != nil {
			appLogger.Error("failed to save sessions on shutdown", "error", err)
		}
	}()

	// The bot connects before anything listens, so a bad token stops
	// startup cleanly.
	var chat botRunner
	if cfg.Telegram.Enabled {
		chat, err = newBotRunner(cfg, manager)
		if err != nil {
			return err
		}
	}

	var maintainer scheduler.Maintainer
	if m, ok := backend.(scheduler.Maintainer); ok {
		maintainer = m
	}
	sched := scheduler.New(manager, maintainer, scheduler.Config{
		SweepInterval: cfg.Sessions.SweepInterval,
		IdleTimeout:   cfg.Sessions.IdleTimeout,
	}, appLogger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(api.NewStudyHandler(manager, appLogger), appLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		appLogger.Info("http server listening", "addr", srv.Addr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if chat != nil {
		go func() {
			if err := chat.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("telegram bot: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		appLogger.Info("shutting down")
	case runErr = <-errCh:
		appLogger.Error("stopping after failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("failed to stop http server", "error", err)
	}
	return runErr
}

// botRunner is the chat front end started next to the HTTP server
type botRunner interface {
	Start(ctx context.Context) error
}

var newBotRunner = func(c *config.Config, manager *session.Manager) (botRunner, error) {
	return bot.New(c.Telegram.Token, manager, botConfig(c), appLogger)
}

func botConfig(c *config.Config) *bot.BotConfig {
	bc := bot.DefaultConfig()
	bc.ChoiceOptions = c.Telegram.ChoiceOptions
	bc.DefaultLanguage = c.Study.Language
	return bc
}
