// Package jobs runs the scheduled batch work: the weekly summary digest
// for every active user.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/summary"
	"github.com/voicetutor/backend/pkg/logger"
)

type WeeklySummaryJob struct {
	scheduler    gocron.Scheduler
	orchestrator *summary.Orchestrator
}

// NewWeeklySummaryJob schedules the digest batch once a week at the
// given weekday and hour, in UTC.
func NewWeeklySummaryJob(orchestrator *summary.Orchestrator, weekday time.Weekday, hour int) (*WeeklySummaryJob, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	job := &WeeklySummaryJob{
		scheduler:    scheduler,
		orchestrator: orchestrator,
	}

	_, err = scheduler.NewJob(
		gocron.WeeklyJob(
			1,
			gocron.NewWeekdays(weekday),
			gocron.NewAtTimes(gocron.NewAtTime(uint(hour), 0, 0)),
		),
		gocron.NewTask(job.run),
		gocron.WithName("weekly-summary"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register weekly summary job: %w", err)
	}

	return job, nil
}

func (j *WeeklySummaryJob) Start() {
	j.scheduler.Start()
	logger.Info("Weekly summary job scheduled")
}

func (j *WeeklySummaryJob) Stop() error {
	return j.scheduler.Shutdown()
}

func (j *WeeklySummaryJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	logger.Info("Weekly summary batch starting")

	if err := j.orchestrator.GenerateForActiveUsers(ctx, time.Now()); err != nil {
		logger.Error("Weekly summary batch failed", zap.Error(err))
		return
	}

	logger.Info("Weekly summary batch complete")
}
