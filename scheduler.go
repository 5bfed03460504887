package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic cleanup of finished games
type Scheduler struct {
	cron      *cron.Cron
	store     Store
	moderator *Moderator
	clock     Clock
	retention time.Duration
}

func newScheduler(store Store, m *Moderator, clock Clock, retention time.Duration) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		store:     store,
		moderator: m,
		clock:     clock,
		retention: retention,
	}
}

// Start schedules the prune job. An empty schedule disables it.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		log.Printf("Scheduler: pruning of finished games disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.pruneNow(context.Background()); err != nil {
			logError("scheduler: prune finished games", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	log.Printf("Scheduler: pruning finished games %s (retention %s)", schedule, s.retention)
	return nil
}

// Stop waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("Scheduler: stopped")
}

// pruneNow deletes finished games older than the retention window. The game
// currently being moderated is never removed.
func (s *Scheduler) pruneNow(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	n, err := s.store.PruneFinished(ctx, cutoff, s.moderator.GameID())
	if err != nil {
		return n, err
	}
	if n > 0 {
		log.Printf("Scheduler: pruned %d finished games saved before %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}
