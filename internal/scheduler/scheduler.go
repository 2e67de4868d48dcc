package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/i474232898/humidity-comfort/internal/logger"
	"github.com/i474232898/humidity-comfort/internal/store"
)

// Scheduler periodically refreshes the time options of live sessions and
// evicts idle ones.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  *store.MemoryStore
	interval  time.Duration
}

// New creates a new Scheduler.
func New(sessions *store.MemoryStore, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		sessions:  sessions,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval < time.Second {
		interval = time.Minute
	}

	if _, err := s.scheduler.Every(interval).Do(s.RunOnce); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce evicts idle sessions and re-resolves time options of the rest.
// Noon passing or a new local day changes which options are available.
func (s *Scheduler) RunOnce() {
	evicted := s.sessions.Evict()

	fellBack := 0
	sessions := s.sessions.Sessions()
	for _, sess := range sessions {
		if sess.Controller.RefreshTimeOptions() {
			fellBack++
		}
	}

	logger.WithFields(logrus.Fields{
		"evicted":  evicted,
		"sessions": len(sessions),
		"fellBack": fellBack,
	}).Debug("scheduler: refreshed comparison sessions")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
