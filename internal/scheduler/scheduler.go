package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/tahcohcat/ascended-progress/internal/logger"
)

// Refresher reloads a cached catalog.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	catalog   Refresher
	interval  time.Duration
	log       *logger.Log
}

// New creates a scheduler that refreshes catalog every interval.
func New(catalog Refresher, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		catalog:   catalog,
		interval:  interval,
		log:       logger.New().With("service", "scheduler"),
	}
}

// Start schedules the jobs and runs them in the background. A non-positive
// interval disables the catalog refresh.
func (s *Scheduler) Start() error {
	if s.interval > 0 {
		if _, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.refreshCatalog); err != nil {
			return err
		}
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) refreshCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.catalog.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("badge catalog refresh failed")
		return
	}
	s.log.Debug("badge catalog refreshed")
}
