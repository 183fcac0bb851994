// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package isolation

import "fmt"

// Result is the single terminal message of an execution unit.
type Result struct {
	Unit    string `json:"unit,omitempty"`
	Success bool   `json:"success"`
	Count   int    `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok reports success with an item count.
func Ok(count int) Result {
	return Result{Success: true, Count: count}
}

// Failed reports failure.
func Failed(err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{Error: msg}
}

// Err returns nil for a successful result and a *WorkerError otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &WorkerError{Unit: r.Unit, Message: r.Error}
}

// WorkerError reports that an execution unit finished unsuccessfully.
type WorkerError struct {
	Unit    string
	Message string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s failed: %s", e.Unit, e.Message)
}

// Unit is a running execution unit.
type Unit interface {
	Name() string
	// Done yields exactly one Result and is then closed.
	Done() <-chan Result
	// Terminate asks the unit to stop. It does not wait.
	Terminate()
}
