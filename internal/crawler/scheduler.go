package crawler

import (
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs recurring background jobs such as cache refreshes.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleJob schedules job with a cron expression.
func (s *Scheduler) ScheduleJob(tag string, cronExpr string, job func() error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(job)
	return err
}

// ScheduleInterval schedules a job to run at regular intervals
func (s *Scheduler) ScheduleInterval(tag string, duration time.Duration, job func() error) error {
	_, err := s.scheduler.Every(duration).Tag(tag).Do(job)
	return err
}

// RemoveJob removes a scheduled job by tag
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// Jobs returns all scheduled jobs
func (s *Scheduler) Jobs() []*gocron.Job {
	return s.scheduler.Jobs()
}
