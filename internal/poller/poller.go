// Package poller periodically fetches and stores weather for the configured cities.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/katiamach/live-weather-tracker/internal/logger"
	"github.com/katiamach/live-weather-tracker/internal/model"
)

// Job runs one fetch-insert-broadcast cycle.
type Job interface {
	FetchAndStore(ctx context.Context) ([]*model.Reading, error)
}

// Poller runs Job at a fixed interval, starting immediately.
type Poller struct {
	scheduler *gocron.Scheduler
	job       Job
	interval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Poller.
func New(job Job, interval time.Duration) *Poller {
	ctx, cancel := context.WithCancel(context.Background())

	return &Poller{
		scheduler: gocron.NewScheduler(time.UTC),
		job:       job,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the job and starts the scheduler in the background.
// Runs never overlap: a slow cycle delays the next one.
func (p *Poller) Start() error {
	_, err := p.scheduler.Every(p.interval).SingletonMode().Do(func() {
		p.RunOnce(p.ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule poller: %w", err)
	}

	p.scheduler.StartAsync()
	logger.WithFields(logger.Fields{"interval": p.interval.String()}).Info("poller started")

	return nil
}

// RunOnce runs a single cycle and logs its outcome.
func (p *Poller) RunOnce(ctx context.Context) int {
	start := time.Now()

	readings, err := p.job.FetchAndStore(ctx)
	if err != nil {
		logger.Error(fmt.Errorf("poll cycle failed: %w", err))
	}

	logger.WithFields(logger.Fields{
		"stored":   len(readings),
		"duration": time.Since(start).String(),
	}).Info("poll cycle completed")

	return len(readings)
}

// Stop cancels the running cycle and stops the scheduler.
func (p *Poller) Stop() {
	p.cancel()
	p.scheduler.Stop()
	logger.Info("poller stopped")
}
