// Package scheduler runs the periodic tenant health sweep on a cron
// schedule.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"
	appmetering "github.com/schoolsaas/backend/internal/application/metering"
	"go.uber.org/zap"
)

// ErrSweepInProgress is returned when a sweep is requested while another is
// still running.
var ErrSweepInProgress = errors.New("health sweep already in progress")

// SweepRunner runs one health sweep over all tenants. Implemented by
// metering.HealthMonitorService.
type SweepRunner interface {
	CheckAllTenants(ctx context.Context) (*appmetering.SweepReport, error)
}

// SweepTrigger fires the tenant health sweep on a cron schedule. Overlapping
// runs are skipped: if a sweep is still in flight when the next tick fires,
// the tick is dropped rather than queued.
type SweepTrigger struct {
	schedule string
	runner   SweepRunner
	logger   *zap.Logger

	cron *cron.Cron

	mu        sync.Mutex
	isRunning bool
	sweeping  bool
}

// NewSweepTrigger creates a new sweep trigger
func NewSweepTrigger(schedule string, runner SweepRunner, logger *zap.Logger) *SweepTrigger {
	return &SweepTrigger{
		schedule: schedule,
		runner:   runner,
		logger:   logger,
	}
}

// Start registers the cron entry and begins firing sweeps
func (t *SweepTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isRunning {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(t.schedule, func() {
		if _, err := t.TriggerNow(ctx); err != nil {
			if errors.Is(err, ErrSweepInProgress) {
				t.logger.Warn("Skipping scheduled sweep, previous run still in flight")
				return
			}
			t.logger.Error("Scheduled health sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	t.cron = c
	t.isRunning = true

	t.logger.Info("Health sweep trigger started", zap.String("schedule", t.schedule))
	return nil
}

// Stop halts the cron schedule and waits for a running sweep to finish
func (t *SweepTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	c := t.cron
	t.cron = nil
	t.mu.Unlock()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		t.logger.Info("Health sweep trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerNow runs one sweep immediately. Returns ErrSweepInProgress if a
// sweep is already running.
func (t *SweepTrigger) TriggerNow(ctx context.Context) (*appmetering.SweepReport, error) {
	t.mu.Lock()
	if t.sweeping {
		t.mu.Unlock()
		return nil, ErrSweepInProgress
	}
	t.sweeping = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.sweeping = false
		t.mu.Unlock()
	}()

	report, err := t.runner.CheckAllTenants(ctx)
	if err != nil {
		return nil, err
	}

	t.logger.Info("Health sweep finished",
		zap.Int("processed", report.Processed),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}
