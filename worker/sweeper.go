package worker

import (
	"context"
	"fmt"
	"time"

	"roombot/models"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// SweepRunner expires time-bounded entities
type SweepRunner interface {
	PeriodicSweep(ctx context.Context, now time.Time) (*models.SweepOutcome, error)
}

// Sweeper runs the periodic sweep on a gocron scheduler.
// Runs never overlap; a run that is still busy causes the next tick to be skipped.
type Sweeper struct {
	runner    SweepRunner
	interval  time.Duration
	now       func() time.Time
	scheduler gocron.Scheduler
}

// NewSweeper creates a sweeper; call Start to schedule it
func NewSweeper(runner SweepRunner, interval time.Duration) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Sweeper{
		runner:    runner,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
		scheduler: scheduler,
	}, nil
}

// Start schedules the sweep, running it once immediately
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.RunOnce(ctx) }),
		gocron.WithName("periodic-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.scheduler.Start()
	log.WithField("interval", s.interval).Info("Periodic sweep worker started")
	return nil
}

// RunOnce performs a single sweep and logs the outcome
func (s *Sweeper) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	outcome, err := s.runner.PeriodicSweep(ctx, s.now())
	if err != nil {
		log.WithError(err).Error("Periodic sweep failed")
		return
	}

	if outcome != nil && outcome.WagersExpired+outcome.ChallengesExpired+outcome.BlacklistsCleared > 0 {
		log.WithFields(log.Fields{
			"wagersExpired":     outcome.WagersExpired,
			"challengesExpired": outcome.ChallengesExpired,
			"blacklistsCleared": outcome.BlacklistsCleared,
		}).Debug("Periodic sweep finished")
	}
}

// Shutdown stops the scheduler and waits for a running sweep
func (s *Sweeper) Shutdown() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	log.Info("Periodic sweep worker stopped")
	return nil
}
