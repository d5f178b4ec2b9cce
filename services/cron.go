package services

import (
	"context"
	"time"

	"sop-assistant/internal/crawler"
	"sop-assistant/internal/logger"
)

const cacheRefreshTag = "sop-cache-refresh"

// Refresher reloads a cache from its source of truth.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CronService keeps the current-version cache warm.
type CronService struct {
	scheduler *crawler.Scheduler
	refresher Refresher
	interval  time.Duration
}

func NewCronService(refresher Refresher, interval time.Duration) *CronService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CronService{
		scheduler: crawler.NewScheduler(),
		refresher: refresher,
		interval:  interval,
	}
}

func (c *CronService) Start() error {
	err := c.scheduler.ScheduleInterval(cacheRefreshTag, c.interval, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.refresher.Refresh(ctx); err != nil {
			logger.Warn("Cache refresh failed", "error", err)
			return err
		}
		logger.Debug("Current-version cache refreshed")
		return nil
	})
	if err != nil {
		return err
	}
	c.scheduler.Start()
	logger.Info("Cache refresh scheduled", "interval", c.interval.String())
	return nil
}

func (c *CronService) Stop() {
	c.scheduler.Stop()
	logger.Info("Cache refresh stopped")
}
