// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
job.go - Scheduled Job

A Job owns one in-flight slot. start claims it with CompareAndSwap and hands
the firing to a goroutine; the goroutine releases it once the unit has
reported its Result. Between claim and release exactly one run record is
current, so stop can always find and wait for the unit it must terminate.
*/

//nolint:staticcheck // File documentation, not package doc
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dumpvault/internal/isolation"
	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/metrics"
)

// Launcher starts one execution unit for a firing. ctx carries the run's
// correlation ID and is cancelled when the firing ends.
type Launcher func(ctx context.Context) (isolation.Unit, error)

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	Name       string            `json:"name"`
	Spec       string            `json:"spec"`
	InFlight   bool              `json:"in_flight"`
	Next       time.Time         `json:"next,omitempty"`
	LastStart  time.Time         `json:"last_start,omitempty"`
	LastResult *isolation.Result `json:"last_result,omitempty"`
	Runs       int64             `json:"runs"`
	Skipped    int64             `json:"skipped"`
}

// Job is a cron expression bound to a launcher.
type Job struct {
	name     string
	spec     string
	schedule cron.Schedule
	launch   Launcher
	logger   zerolog.Logger

	entryID  cron.EntryID
	inFlight atomic.Bool
	runs     atomic.Int64
	skipped  atomic.Int64

	mu         sync.Mutex
	current    *run
	stopped    bool
	lastStart  time.Time
	lastResult *isolation.Result
}

// run is one claimed firing.
type run struct {
	id   string
	unit isolation.Unit
	done chan struct{}
}

// start claims the in-flight slot and launches a unit in the background.
// It returns ErrInFlight when a previous firing is still running.
func (j *Job) start(trigger string) error {
	if !j.inFlight.CompareAndSwap(false, true) {
		j.skipped.Add(1)
		metrics.JobSkipped.WithLabelValues(j.name).Inc()
		j.logger.Warn().Str("trigger", trigger).Msg("Previous run still in flight, skipping")
		return ErrInFlight
	}

	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		j.inFlight.Store(false)
		return ErrJobStopped
	}
	r := &run{id: logging.GenerateCorrelationID(), done: make(chan struct{})}
	j.current = r
	j.lastStart = time.Now()
	j.mu.Unlock()

	metrics.JobInFlight.WithLabelValues(j.name).Set(1)
	go j.execute(r, trigger)
	return nil
}

func (j *Job) execute(r *run, trigger string) {
	start := time.Now()
	logger := j.logger.With().Str("run_id", r.id).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.ContextWithCorrelationID(ctx, r.id)
	ctx = logging.ContextWithLogger(ctx, logger)

	result := j.launchAndWait(ctx, r, logger, trigger)
	cancel()

	elapsed := time.Since(start)
	metrics.RecordJobRun(j.name, elapsed, result.Success)
	j.runs.Add(1)

	event := logger.Info()
	if !result.Success {
		event = logger.Error().Str("error", result.Error)
	}
	event.Bool("success", result.Success).
		Int("count", result.Count).
		Dur("duration", elapsed).
		Msg("Job finished")

	j.mu.Lock()
	j.lastResult = &result
	j.current = nil
	j.mu.Unlock()

	metrics.JobInFlight.WithLabelValues(j.name).Set(0)
	j.inFlight.Store(false)
	close(r.done)
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (j *Job) launchAndWait(ctx context.Context, r *run, logger zerolog.Logger, trigger string) (result isolation.Result) {
	defer func() {
		if p := recover(); p != nil {
			result = isolation.Failed(fmt.Errorf("launcher panic: %v", p))
			result.Unit = j.name
		}
	}()

	logger.Info().Str("trigger", trigger).Msg("Job starting")
	unit, err := j.launch(ctx)
	if err != nil {
		result = isolation.Failed(fmt.Errorf("failed to launch %s: %w", j.name, err))
		result.Unit = j.name
		return result
	}

	j.mu.Lock()
	r.unit = unit
	stopped := j.stopped
	j.mu.Unlock()
	if stopped {
		unit.Terminate()
	}

	result, ok := <-unit.Done()
	if !ok {
		result = isolation.Failed(fmt.Errorf("unit %s closed without a result", unit.Name()))
		result.Unit = unit.Name()
	}
	return result
}

// stop removes the job from future firings, terminates the in-flight unit
// and waits for it to finish or for ctx to expire.
func (j *Job) stop(ctx context.Context) error {
	j.mu.Lock()
	j.stopped = true
	r := j.current
	var unit isolation.Unit
	if r != nil {
		unit = r.unit
	}
	j.mu.Unlock()

	if r == nil {
		return nil
	}
	if unit != nil {
		j.logger.Info().Str("run_id", r.id).Str("unit", unit.Name()).Msg("Terminating in-flight unit")
		unit.Terminate()
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job %s did not stop: %w", j.name, ctx.Err())
	}
}

func (j *Job) status(next time.Time) JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	return JobStatus{
		Name:       j.name,
		Spec:       j.spec,
		InFlight:   j.inFlight.Load(),
		Next:       next,
		LastStart:  j.lastStart,
		LastResult: j.lastResult,
		Runs:       j.runs.Load(),
		Skipped:    j.skipped.Load(),
	}
}
