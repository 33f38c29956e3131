// Package scheduler runs the periodic maintenance tasks: the score backfill
// and the reconciliation of accepted matches that missed their conversation.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is one unit of periodic work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler wraps robfig/cron and runs every task on each tick.
type Scheduler struct {
	cron  *cron.Cron
	spec  string // cron spec, e.g. "@every 6h"
	tasks []Task
	log   *zap.Logger
	first sync.WaitGroup // the cycle run on start
}

// New creates a Scheduler that fires on spec. Overlapping cycles are
// skipped.
func New(spec string, log *zap.Logger, tasks ...Task) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scheduler")
	cl := cronLogger{log.Sugar()}
	return &Scheduler{
		cron:  cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		spec:  spec,
		tasks: tasks,
		log:   log,
	}
}

// Start registers the cycle and starts the scheduler. It also runs one cycle
// immediately so a fresh deployment does not wait for the first tick. That
// cycle goes through the same job chain, so a tick that lands while it is
// still running is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	job := s.cron.Entry(id).WrappedJob

	s.cron.Start()
	s.log.Info("cron started", zap.String("spec", s.spec), zap.Int("tasks", len(s.tasks)))

	s.first.Add(1)
	go func() {
		defer s.first.Done()
		job.Run()
	}()
	return nil
}

// Stop stops the scheduler and waits for running cycles to finish, the one
// started by Start included.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.first.Wait()
	s.log.Info("cron stopped")
}

// RunOnce runs every task in order. A failing task is logged and does not
// stop the cycle. It returns the number of failed tasks.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	failed := 0
	for _, t := range s.tasks {
		if ctx.Err() != nil {
			return failed
		}
		start := time.Now()
		if err := t.Run(ctx); err != nil {
			failed++
			s.log.Warn("task failed", zap.String("task", t.Name), zap.Error(err))
			continue
		}
		s.log.Debug("task complete", zap.String("task", t.Name), zap.Duration("took", time.Since(start)))
	}
	return failed
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
