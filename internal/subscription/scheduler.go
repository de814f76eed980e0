package subscription

import (
	"context"
	"fmt"
	"time"

	"fitness-bot/internal/metrics"
	"fitness-bot/pkg/logger"

	"github.com/robfig/cron/v3"
)

const (
	JobReminders    = "reminders"
	JobDeactivation = "deactivation"
	JobAutoCharge   = "auto_charge"
)

type Schedules struct {
	Reminders    string
	Deactivation string
	AutoCharge   string
}

type Scheduler struct {
	cron    *cron.Cron
	manager *Manager
	metrics metrics.Recorder
	log     *logger.Logger
	timeout time.Duration
}

func NewScheduler(manager *Manager, rec metrics.Recorder, log *logger.Logger, schedules Schedules) (*Scheduler, error) {
	l := cronLogger{log.Named("cron")}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		manager: manager,
		metrics: rec,
		log:     log.Named("scheduler"),
		timeout: 10 * time.Minute,
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{JobReminders, schedules.Reminders, manager.SendReminders},
		{JobDeactivation, schedules.Deactivation, manager.DeactivateExpired},
		{JobAutoCharge, schedules.AutoCharge, manager.AutoCharge},
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, s.wrap(job.name, job.run)); err != nil {
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", job.spec, job.name, err)
		}
	}

	return s, nil
}

func (s *Scheduler) wrap(name string, run func(context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		n, err := run(ctx)
		if err != nil {
			s.metrics.RecordSchedulerRun(name, metrics.ResultError)
			s.log.Errorw("Scheduled job failed", "job", name, "error", err)
			return
		}
		s.metrics.RecordSchedulerRun(name, metrics.ResultOK)
		s.log.Debugw("Scheduled job finished", "job", name, "processed", n)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infow("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
