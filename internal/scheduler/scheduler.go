// Package scheduler runs the periodic fridge tasks on their configured
// cadences.
package scheduler

import (
	"context"
	"sort"
	"time"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Task names, also accepted by the task command
const (
	TaskStockScan      = "stock-scan"
	TaskExpiryScan     = "expiry-scan"
	TaskWeeklyDelivery = "weekly-delivery"
)

// TaskFunc is one unit of periodic work
type TaskFunc func(ctx context.Context) error

// Tasks are the periodic tasks the scheduler owns
type Tasks struct {
	StockScan      TaskFunc
	ExpiryScan     TaskFunc
	WeeklyDelivery TaskFunc
}

// Scheduler wraps a gocron scheduler. Every job runs in singleton mode, so a
// slow run delays the next tick instead of overlapping it.
type Scheduler struct {
	ctx       context.Context
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	tasks     map[string]TaskFunc
	tracer    tracing.Tracer
	metrics   *metrics.Metrics
}

// New creates a scheduler. ctx is handed to every task run.
func New(ctx context.Context, cfg config.SchedulerConfig, tasks Tasks, tracer tracing.Tracer, m *metrics.Metrics) (*Scheduler, error) {
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}

	gs, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}

	s := &Scheduler{
		ctx:       ctx,
		scheduler: gs,
		jobs:      make(map[string]gocron.Job),
		tasks:     make(map[string]TaskFunc),
		tracer:    tracer,
		metrics:   m,
	}

	defs := []struct {
		name string
		def  gocron.JobDefinition
		fn   TaskFunc
	}{
		{TaskStockScan, gocron.DurationJob(cfg.StockScanInterval), tasks.StockScan},
		{TaskExpiryScan, gocron.DurationJob(cfg.ExpiryScanInterval), tasks.ExpiryScan},
		{TaskWeeklyDelivery, gocron.CronJob(cfg.DeliveryCron, false), tasks.WeeklyDelivery},
	}

	for _, d := range defs {
		if d.fn == nil {
			continue
		}
		name := d.name
		s.tasks[name] = d.fn

		job, err := gs.NewJob(
			d.def,
			gocron.NewTask(func() { _ = s.Run(s.ctx, name) }),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = gs.Shutdown()
			return nil, errors.Wrapf(err, "failed to schedule %s", name)
		}
		s.jobs[name] = job
	}

	return s, nil
}

// Start starts running jobs on their cadences
func (s *Scheduler) Start() {
	for _, name := range s.Names() {
		next, err := s.jobs[name].NextRun()
		if err == nil {
			log.Info().Str("task", name).Time("next_run", next).Msg("Task scheduled")
		}
	}
	s.scheduler.Start()
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

// Names returns the scheduled task names
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow queues an immediate run of a scheduled task
func (s *Scheduler) RunNow(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return errors.Errorf("unknown task %q", name)
	}
	return job.RunNow()
}

// Run executes a task synchronously. Errors are logged and returned; they
// never stop the scheduler.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	fn, ok := s.tasks[name]
	if !ok {
		return errors.Errorf("unknown task %q", name)
	}

	txn := s.tracer.StartTransaction("task/" + name)
	defer s.tracer.EndTransaction(txn)

	start := time.Now()
	log.Info().Str("task", name).Msg("Task started")

	seg := s.tracer.StartSegment(name, txn)
	err := fn(ctx)
	seg.End()
	s.metrics.RecordOutcome(metrics.TaskDuration+"."+name, err)
	s.metrics.Since(metrics.TaskDuration+"."+name, start)

	if err != nil {
		s.tracer.RecordError(txn, err)
		log.Error().Err(err).Str("task", name).Dur("elapsed", time.Since(start)).Msg("Task failed")
		return err
	}

	log.Info().Str("task", name).Dur("elapsed", time.Since(start)).Msg("Task finished")
	return nil
}
