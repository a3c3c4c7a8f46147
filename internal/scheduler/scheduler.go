package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Sweeper saves and evicts idle study sessions
type Sweeper interface {
	SweepIdle(ctx context.Context, maxIdle time.Duration) (int, error)
}

// Maintainer is implemented by storage backends that need periodic upkeep
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// Config defines how often the jobs run
type Config struct {
	SweepInterval time.Duration
	IdleTimeout   time.Duration
	// MaintainInterval is how often the storage upkeep runs
	MaintainInterval time.Duration
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler  *gocron.Scheduler
	sweeper    Sweeper
	maintainer Maintainer
	cfg        Config
	logger     *slog.Logger
}

// New creates a new scheduler instance. maintainer may be nil.
func New(sweeper Sweeper, maintainer Maintainer, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaintainInterval <= 0 {
		cfg.MaintainInterval = 5 * time.Minute
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		sweeper:    sweeper,
		maintainer: maintainer,
		cfg:        cfg,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.cfg.SweepInterval).WaitForSchedule().Do(s.sweepIdle); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	if s.maintainer != nil {
		if _, err := s.scheduler.Every(s.cfg.MaintainInterval).WaitForSchedule().Do(s.maintain); err != nil {
			return fmt.Errorf("failed to schedule storage upkeep: %w", err)
		}
	}

	// Запускаем планировщик без блокировки
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunNow runs every job once in the calling goroutine
func (s *Scheduler) RunNow() {
	s.sweepIdle()
	if s.maintainer != nil {
		s.maintain()
	}
}

func (s *Scheduler) sweepIdle() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.sweeper.SweepIdle(ctx, s.cfg.IdleTimeout)
	if err != nil {
		s.logger.Error("failed to save evicted sessions", "error", err)
	}
	if n > 0 {
		s.logger.Debug("idle sessions evicted", "count", n)
	}
}

func (s *Scheduler) maintain() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.maintainer.Maintain(ctx); err != nil {
		s.logger.Warn("storage upkeep failed", "error", err)
	}
}
