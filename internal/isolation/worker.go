// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package isolation

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/tomtom215/dumpvault/internal/logging"
)

// Task is the body of a worker. The count is reported in Result.Count.
type Task func(ctx context.Context) (int, error)

// Worker runs a Task on its own goroutine.
type Worker struct {
	name   string
	cancel context.CancelFunc
	done   chan Result
}

var _ Unit = (*Worker)(nil)

// StartWorker starts task immediately. Cancelling ctx or calling Terminate
// cancels the context passed to task.
func StartWorker(ctx context.Context, name string, task Task) *Worker {
	ctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		name:   name,
		cancel: cancel,
		done:   make(chan Result, 1),
	}

	go func() {
		defer close(w.done)
		defer cancel()

		result := w.run(ctx, task)
		result.Unit = name
		w.done <- result
	}()
	return w
}

func (w *Worker) run(ctx context.Context, task Task) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("worker", w.name).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Worker panicked")
			result = Failed(fmt.Errorf("panic: %v", r))
		}
	}()

	count, err := task(ctx)
	if err != nil {
		return Failed(err)
	}
	return Ok(count)
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.name }

// Done yields the worker's Result.
func (w *Worker) Done() <-chan Result { return w.done }

// Terminate cancels the worker's context.
func (w *Worker) Terminate() { w.cancel() }
