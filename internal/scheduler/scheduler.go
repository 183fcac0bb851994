// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dumpvault/internal/lifecycle"
	"github.com/tomtom215/dumpvault/internal/logging"
)

var (
	// ErrUnknownJob is returned for a job name that was never added.
	ErrUnknownJob = errors.New("unknown job")

	// ErrDuplicateJob is returned when a job name is added twice.
	ErrDuplicateJob = errors.New("job already exists")

	// ErrInFlight is returned when a firing is dropped because the previous
	// run has not finished.
	ErrInFlight = errors.New("job already in flight")

	// ErrJobStopped is returned when firing a job after its stop task ran.
	ErrJobStopped = errors.New("job stopped")
)

// Scheduler runs jobs on cron schedules.
type Scheduler struct {
	cron     *cron.Cron
	registry *lifecycle.Registry
	logger   zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// Option configures a Scheduler.
type Option func(*schedulerOptions)

type schedulerOptions struct {
	logger   zerolog.Logger
	location *time.Location
}

// WithLogger sets the logger. Job loggers derive from it.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(logger zerolog.Logger) Option {
	return func(o *schedulerOptions) { o.logger = logger }
}

// WithLocation sets the time zone schedules are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(o *schedulerOptions) { o.location = loc }
}

// New creates a Scheduler that registers job stop tasks with registry.
func New(registry *lifecycle.Registry, opts ...Option) *Scheduler {
	o := schedulerOptions{
		logger:   logging.WithComponent("scheduler"),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(&o)
	}

	clog := cronLogger{logger: o.logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(o.location),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog)),
		),
		registry: registry,
		logger:   o.logger,
		jobs:     make(map[string]*Job),
	}
}

// Add schedules launch under name and registers its stop task.
func (s *Scheduler) Add(name, spec string, launch Launcher) error {
	if name == "" {
		return errors.New("job name is required")
	}
	if launch == nil {
		return fmt.Errorf("job %s has no launcher", name)
	}
	schedule, err := ParseSpec(spec)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	j := &Job{
		name:     name,
		spec:     spec,
		schedule: schedule,
		launch:   launch,
		logger:   s.logger.With().Str("job", name).Logger(),
	}
	if err := s.registry.Register("stop "+name, s.stopJob(j)); err != nil {
		return fmt.Errorf("failed to register stop task for %s: %w", name, err)
	}

	j.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		// ErrInFlight and ErrJobStopped are already accounted for.
		_ = j.start("cron")
	}))
	s.jobs[name] = j

	s.logger.Info().Str("job", name).Str("spec", spec).Msg("Job scheduled")
	return nil
}

func (s *Scheduler) stopJob(j *Job) lifecycle.CleanupFunc {
	return func(ctx context.Context) error {
		s.cron.Remove(j.entryID)
		return j.stop(ctx)
	}
}

// Trigger fires name now. It returns ErrUnknownJob, ErrInFlight or
// ErrJobStopped without starting anything.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return j.start("manual")
}

// Jobs returns the status of every job, sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.status(s.cron.Entry(j.entryID).Next))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Serve implements suture.Service. It runs the cron loop until ctx is
// cancelled, then waits for cron to return from any firing in progress.
// In-flight units are left to the lifecycle stop tasks.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.Jobs())).Msg("Scheduler started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logs.
func (s *Scheduler) String() string {
	return "scheduler"
}
