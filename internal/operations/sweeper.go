package operations

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"budgetpulse/internal/infrastructure"
)

// Sweeper purges terminal jobs, and their workspaces, once they are older
// than the retention period
type Sweeper struct {
	store      JobStore
	workspaces *Workspaces
	retention  time.Duration
	interval   time.Duration
	metrics    *infrastructure.BusinessMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewSweeper creates a retention sweeper from the job configuration
func NewSweeper(cfg *Config, store JobStore, workspaces *Workspaces, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Sweeper {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:      store,
		workspaces: workspaces,
		retention:  cfg.Retention,
		interval:   interval,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "sweeper")),
		now:        time.Now,
	}
}

// Sweep removes every job that completed more than the retention period ago
// and returns how many were removed. A zero retention keeps everything.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	jobs, err := s.store.ListJobs(JobFilter{CompletedBefore: s.now().Add(-s.retention)})
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !job.Status.IsTerminal() {
			continue
		}
		if err := s.workspaces.Remove(job.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.store.DeleteJob(job.ID); err != nil && !errors.Is(err, ErrJobNotFound) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		infrastructure.RecordJobsPurged(ctx, s.metrics, removed)
		s.logger.InfoContext(ctx, "purged expired jobs", slog.Int("count", removed))
	}
	return removed, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	if s.retention <= 0 {
		s.logger.Info("job retention disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("job sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
