package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskdeck/backend/domain"
	"github.com/taskdeck/backend/repository"
)

// Config controls sweep cadence. Cadence is free to vary; the sweep itself is
// idempotent and only ever touches rows already past the retention window.
type Config struct {
	Interval time.Duration
}

// Sweeper permanently removes tasks whose soft-delete timestamp is older than
// the retention window.
type Sweeper struct {
	tasks  repository.TaskRepository
	logger *zap.Logger
	cron   *cron.Cron
	cfg    Config
	now    func() time.Time
}

func New(tasks repository.TaskRepository, cfg Config, logger *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	// The schedule below has whole-second resolution.
	if cfg.Interval < time.Second {
		cfg.Interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		tasks:  tasks,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
		now:    time.Now,
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("retention sweep failed", zap.Error(err))
		}
	}); err != nil {
		logger.Error("retention sweep not scheduled",
			zap.String("schedule", schedule),
			zap.Error(err))
	}

	return s
}

// SetClock overrides the time source. Test hook.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Start launches the cron scheduler.
func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("retention sweeper started")
}

// Stop gracefully stops the scheduler.
func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("retention sweeper stopped")
}

// Sweep purges all tasks eligible for permanent removal and reports how many
// rows went away. Safe to call at any time, including concurrently with
// request traffic.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-domain.RetentionWindow)
	purged, err := s.tasks.PurgeExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Info("retention sweep purged tasks", zap.Int64("count", purged))
	}
	return purged, nil
}
