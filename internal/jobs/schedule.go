package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"error-english/manager-go/internal/utils"
)

// Job is anything the scheduler can run.
type Job interface {
	Run(ctx context.Context, jctx JobContext, opts JobOptions) error
}

// ScheduledJob runs Steps in order on Spec. A failing step ends that run.
type ScheduledJob struct {
	Name  string
	Spec  string
	Steps []Job
}

// ScheduleJob runs the daily publish (after topping up the queue) and the
// weekly Threads token refresh until ctx is cancelled. A run is skipped while
// the previous run of the same job is still going, and runs of different jobs
// wait for each other.
type ScheduleJob struct {
	Jobs []ScheduledJob
}

func NewScheduleJob(dailySpec, refreshSpec string) ScheduleJob {
	return ScheduleJob{Jobs: []ScheduledJob{
		{Name: "daily-publish", Spec: dailySpec, Steps: []Job{NewReplenishJob(), NewDailyPublishJob()}},
		{Name: "refresh-threads-token", Spec: refreshSpec, Steps: []Job{NewRefreshThreadsTokenJob()}},
	}}
}

func (j ScheduleJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	c, err := j.cron(ctx, jctx, opts)
	if err != nil {
		return err
	}
	c.Start()
	utils.Info("scheduler started", "jobs", len(c.Entries()))

	<-ctx.Done()
	utils.Info("scheduler stopping")
	<-c.Stop().Done()
	return nil
}

func (j ScheduleJob) cron(ctx context.Context, jctx JobContext, opts JobOptions) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(utils.L())),
		cron.SkipIfStillRunning(cron.PrintfLogger(utils.L())),
	))
	var running sync.Mutex
	for _, sj := range j.Jobs {
		if sj.Spec == "" {
			utils.Info("schedule disabled", "job", sj.Name)
			continue
		}
		sj := sj
		run := func() {
			running.Lock()
			defer running.Unlock()
			runScheduled(ctx, jctx, opts, sj)
		}
		if _, err := c.AddFunc(sj.Spec, run); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", sj.Name, sj.Spec, err)
		}
		utils.Info("scheduled", "job", sj.Name, "spec", sj.Spec)
	}
	return c, nil
}

func runScheduled(ctx context.Context, jctx JobContext, opts JobOptions, sj ScheduledJob) {
	log := utils.With("job", sj.Name)
	log.Info("scheduled run started")
	for _, step := range sj.Steps {
		if err := step.Run(ctx, jctx, opts); err != nil {
			log.Error("scheduled run failed", "err", err)
			return
		}
	}
	log.Info("scheduled run finished")
}
