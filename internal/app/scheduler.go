/**
 * @description
 * Cron scheduler for the session revalidation job.
 */
package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const revalidateTimeout = 30 * time.Second

// Revalidator re-checks a live session.
type Revalidator interface {
	Revalidate(ctx context.Context) error
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	sessions Revalidator
	schedule string
	logger   zerolog.Logger
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// NewScheduler creates a new scheduler instance. An empty schedule disables the job.
func NewScheduler(sessions Revalidator, schedule string, logger zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger: logger})))

	return &Scheduler{
		cron:     c,
		sessions: sessions,
		schedule: schedule,
		logger:   logger,
	}
}

// RevalidateSession is the job body.
func (s *Scheduler) RevalidateSession() {
	ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
	defer cancel()

	if err := s.sessions.Revalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("session revalidation failed")
		return
	}
	s.logger.Debug().Msg("session revalidated")
}

// Start registers the job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.logger.Info().Msg("session revalidation disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.RevalidateSession); err != nil {
		s.logger.Error().Err(err).Str("schedule", s.schedule).Msg("failed to schedule session revalidation job")
		return err
	}
	s.logger.Info().Str("schedule", s.schedule).Msg("scheduled session revalidation job")

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
