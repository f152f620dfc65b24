/**
 * @description
 * Cron scheduler for the late fee accrual job. The schedule is a real timer,
 * not an opportunistic hook on request handling; the manual "run now" action
 * and this scheduler call the same entry point.
 */

package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the recurring billing jobs.
type Scheduler struct {
	cron     *cron.Cron
	service  *Service
	logger   *slog.Logger
	schedule string
}

// NewScheduler creates a scheduler that runs late fee accrual on the given
// cron expression.
func NewScheduler(service *Service, logger *slog.Logger, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		service:  service,
		logger:   logger,
		schedule: schedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.runLateFeeAccrual); err != nil {
		s.logger.Error("failed to schedule late fee accrual job", "error", err, "schedule", s.schedule)
	} else {
		s.logger.Info("scheduled late fee accrual job", "schedule", s.schedule)
	}

	s.cron.Start()
}

func (s *Scheduler) runLateFeeAccrual() {
	s.logger.Info("starting late fee accrual job")
	ctx := context.Background()

	result := s.service.RunLateFeeAccrual(ctx, AccrualRunOptions{Manual: false})

	if len(result.Errors) > 0 {
		s.logger.Error("late fee accrual job finished with errors",
			"processed", result.Processed,
			"errors", len(result.Errors),
			"execution_time_ms", result.ExecutionTimeMS,
		)
		return
	}
	s.logger.Info("late fee accrual job finished",
		"processed", result.Processed,
		"execution_time_ms", result.ExecutionTimeMS,
	)
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
