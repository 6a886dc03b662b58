// Package scheduler fires the monthly metric batch from a cron entry.
//
// The batch itself decides whether the day is the first of the month; the
// cron entry only provides the daily tick (default "1 0 * * *" in the
// configured timezone). Overlapping runs are skipped.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slatrack/backend/internal/config"
	"github.com/slatrack/backend/internal/model"
)

// BatchRunner runs the prior-month metric generation.
type BatchRunner interface {
	RunScheduledBatch(ctx context.Context, force bool) (model.BatchSummary, error)
}

type Service struct {
	cron   *cron.Cron
	runner BatchRunner
	spec   string

	startOnce sync.Once
	stopOnce  sync.Once

	// mu guards runCtx and runCancel; Start swaps them while Stop and
	// cron jobs may read them.
	mu        sync.Mutex
	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg config.SchedulerConfig, runner BatchRunner) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
	}
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, fmt.Errorf("invalid scheduler cron %q: %w", cfg.Cron, err)
	}

	logger := cronLogger{}
	s := &Service{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		runner: runner,
		spec:   cfg.Cron,
	}
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(cfg.Cron, s.runOnce); err != nil {
		return nil, fmt.Errorf("register batch job: %w", err)
	}
	return s, nil
}

// Start begins firing the batch entry. Cancelling parent stops in-flight runs.
func (s *Service) Start(parent context.Context) {
	if s == nil {
		return
	}
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.runCancel()
		s.runCtx, s.runCancel = context.WithCancel(parent)
		s.mu.Unlock()
		s.cron.Start()
		slog.Info("[Scheduler] started", "cron", s.spec, "next", s.Next())
	})
}

// Stop stops the cron and waits for a running batch until ctx expires, at
// which point the batch is cancelled.
func (s *Service) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		done := s.cron.Stop()
		select {
		case <-done.Done():
		case <-ctx.Done():
			slog.Warn("[Scheduler] stop deadline reached, cancelling running batch")
		}
		s.mu.Lock()
		s.runCancel()
		s.mu.Unlock()
		slog.Info("[Scheduler] stopped")
	})
}

// Next returns the next activation time, or the zero time before Start.
func (s *Service) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Service) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCtx
}

func (s *Service) runOnce() {
	start := time.Now()
	summary, err := s.runner.RunScheduledBatch(s.runContext(), false)
	if err != nil {
		slog.Error("[Scheduler] batch failed", "error", err, "elapsed", time.Since(start))
		return
	}
	if !summary.Ran {
		return
	}
	slog.Info("[Scheduler] batch finished",
		"period", fmt.Sprintf("%d-%02d", summary.Year, summary.Month),
		"generated", summary.Generated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"elapsed", time.Since(start),
	)
}

// cronLogger routes robfig/cron logs to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("[Scheduler] cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("[Scheduler] cron: "+msg, append(keysAndValues, "error", err)...)
}
