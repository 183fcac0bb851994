// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/metrics"
)

// ErrDrained is returned by Register once the registry has been drained.
var ErrDrained = errors.New("cleanup registry already drained")

// CleanupFunc releases one resource. It should honour ctx's deadline.
type CleanupFunc func(ctx context.Context) error

type cleanupTask struct {
	name string
	fn   CleanupFunc
}

// Registry is an ordered list of cleanup tasks, drained once at shutdown.
type Registry struct {
	mu      sync.Mutex
	tasks   []cleanupTask
	drained bool
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{logger: logging.WithComponent("lifecycle")}
}

// Register appends a task.
func (r *Registry) Register(name string, fn CleanupFunc) error {
	if fn == nil {
		return fmt.Errorf("cleanup task %q has no function", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drained {
		return ErrDrained
	}
	r.tasks = append(r.tasks, cleanupTask{name: name, fn: fn})
	return nil
}

// Pending returns the names of tasks not yet run.
func (r *Registry) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		names[i] = t.name
	}
	return names
}

// Drain runs every task in registration order, waiting for each, and then
// clears the registry. A failing task is logged and does not stop the rest.
// Only the first call does any work.
func (r *Registry) Drain(ctx context.Context) error {
	r.mu.Lock()
	if r.drained {
		r.mu.Unlock()
		return nil
	}
	r.drained = true
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()

	var errs []error
	for _, t := range tasks {
		start := time.Now()
		if err := runTask(ctx, t); err != nil {
			metrics.CleanupTaskFailures.Inc()
			r.logger.Error().Err(err).Str("task", t.name).Msg("Cleanup task failed")
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
			continue
		}
		r.logger.Debug().Str("task", t.name).Dur("duration", time.Since(start)).Msg("Cleanup task completed")
	}
	return errors.Join(errs...)
}

func runTask(ctx context.Context, t cleanupTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.fn(ctx)
}
