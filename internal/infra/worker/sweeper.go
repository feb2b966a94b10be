package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	pkgconfig "food-diary/pkg/config"
)

// WindowSweeper drops closed fixed-window entries. Implemented by
// *ratelimit.FixedWindowLimiter.
type WindowSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// BucketCleaner drops idle token buckets. Implemented by *ratelimit.BurstGuard.
type BucketCleaner interface {
	Cleanup() int
}

// Sweeper periodically removes expired rate limit state.
type Sweeper struct {
	cfg      SweeperConfig
	limiters []WindowSweeper
	buckets  []BucketCleaner
	logger   *slog.Logger
	metrics  *SweeperMetrics
	cron     *cron.Cron
}

// NewSweeper builds a sweeper over limiters. Buckets are optional.
func NewSweeper(cfg SweeperConfig, logger *slog.Logger, metrics *SweeperMetrics, limiters []WindowSweeper, buckets ...BucketCleaner) (*Sweeper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sweeper config: %w", err)
	}
	if len(limiters) == 0 && len(buckets) == 0 {
		return nil, errors.New("sweeper: nothing to sweep")
	}
	loc, _ := time.LoadLocation(cfg.Timezone)

	s := &Sweeper{
		cfg:      cfg,
		limiters: limiters,
		buckets:  buckets,
		logger:   logger,
		metrics:  metrics,
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithParser(pkgconfig.ScheduleParser()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := s.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		_ = s.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return s, nil
}

// RunOnce sweeps every limiter and bucket set once. A failing limiter does
// not stop the others; the errors are joined.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := time.Now()

	var errs []error
	windows := 0
	for _, l := range s.limiters {
		n, err := l.Sweep(ctx)
		windows += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	buckets := 0
	for _, b := range s.buckets {
		buckets += b.Cleanup()
	}

	elapsed := time.Since(start)
	err := errors.Join(errs...)

	if s.metrics != nil {
		s.metrics.RecordDuration(elapsed.Seconds())
		s.metrics.RecordRemoved("window", windows)
		s.metrics.RecordRemoved("burst", buckets)
		if err != nil {
			s.metrics.RecordRun("failure")
		} else {
			s.metrics.RecordRun("success")
			s.metrics.RecordLastSuccess()
		}
	}

	if err != nil {
		s.logger.Error("rate limit sweep failed",
			slog.Int("windows_removed", windows),
			slog.Any("error", err))
		return err
	}
	s.logger.Debug("rate limit sweep completed",
		slog.Int("windows_removed", windows),
		slog.Int("buckets_removed", buckets),
		slog.Duration("duration", elapsed))
	return nil
}

// Start begins scheduling and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("rate limit sweeper started",
		slog.String("schedule", s.cfg.Schedule),
		slog.String("timezone", s.cfg.Timezone))
	s.cron.Start()

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("rate limit sweeper stopped")
	return nil
}
