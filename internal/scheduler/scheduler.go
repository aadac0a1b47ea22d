// Package scheduler runs the weekly goal rollover: at the start of each ISO
// week, every identity that held a goal last week gets this week's goal with
// the same target. Creation happens here, never in the reward path.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/sproutlearn/backend/internal/gamification"
)

// GoalRoller is the store surface the scheduler needs.
type GoalRoller interface {
	RollForwardWeeklyGoals(ctx context.Context, prevWeekStart, weekStart string) (int, error)
}

// Scheduler owns the gocron instance and the rollover job.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     GoalRoller
}

// New creates a scheduler over the given store.
func New(store GoalRoller) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		store:     store,
	}
}

// Start registers the Monday-midnight rollover and runs one immediate
// catch-up pass so a restart during the week still seeds current goals.
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Week().Monday().At("00:00").Do(s.rollover)
	s.scheduler.StartAsync()

	go s.rollover()
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) rollover() {
	now := time.Now().UTC()
	week := gamification.WeekKey(now)
	prev := gamification.WeekKey(now.AddDate(0, 0, -7))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.RollForwardWeeklyGoals(ctx, prev, week)
	if err != nil {
		log.Printf("Weekly goal rollover failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Weekly goal rollover: created %d goals for week %s", n, week)
	}
}
