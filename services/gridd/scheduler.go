package gridd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gridchain/native/grid"
)

// Scheduler runs the dividend distribution on a fixed interval.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	cap      grid.Capability
	logger   *slog.Logger
}

func NewScheduler(svc *Service, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if svc == nil {
		return nil, fmt.Errorf("gridd: scheduler requires a service")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("gridd: scheduler interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		svc:      svc,
		interval: interval,
		cap:      grid.NewCapability("scheduler", grid.RoleOperator),
		logger:   logger,
	}, nil
}

// Run blocks until ctx is cancelled, distributing once per interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("distribution scheduler started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("scheduled distribution failed", slog.String("error", err.Error()))
		}
	}
}

// Tick distributes the pool when it holds funds and the economy is running.
// It returns nil, nil when there was nothing to do.
func (s *Scheduler) Tick(ctx context.Context) (*grid.Distribution, error) {
	if s.svc.Paused() {
		s.logger.Debug("distribution skipped: economy paused")
		return nil, nil
	}
	pool, err := s.svc.Pool()
	if err != nil {
		return nil, err
	}
	if pool.Balance == nil || pool.Balance.Sign() == 0 {
		return nil, nil
	}
	dist, err := s.svc.Distribute(ctx, s.cap)
	if errors.Is(err, grid.ErrEmptyPool) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.refreshLevelGauges()
	s.logger.Info("distribution completed",
		slog.String("drained", dist.Drained.String()),
		slog.String("paid", dist.Paid.String()),
		slog.Uint64("recipients", dist.Recipients))
	return dist, nil
}

func (s *Scheduler) refreshLevelGauges() {
	for level := grid.LevelA1; level <= grid.LevelE1; level++ {
		members, err := s.svc.LevelMembers(level)
		if err != nil {
			return
		}
		s.svc.metrics.SetLevelMembers(level.String(), len(members))
	}
}
