// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package lifecycle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/goccy/go-json"
)

// Report is the diagnostic written when the process fails.
type Report struct {
	Time           time.Time `json:"time"`
	Trigger        string    `json:"trigger"`
	Error          string    `json:"error,omitempty"`
	Stack          string    `json:"stack,omitempty"`
	Goroutines     string    `json:"goroutines,omitempty"`
	PID            int       `json:"pid"`
	Hostname       string    `json:"hostname,omitempty"`
	GoVersion      string    `json:"go_version"`
	AppVersion     string    `json:"app_version,omitempty"`
	Environment    string    `json:"environment,omitempty"`
	PendingCleanup []string  `json:"pending_cleanup"`
}

// newReport fills the process fields of a report.
func newReport(now time.Time, trigger string, err error, stack []byte) *Report {
	r := &Report{
		Time:       now.UTC(),
		Trigger:    trigger,
		Stack:      string(stack),
		Goroutines: goroutineDump(),
		PID:        os.Getpid(),
		GoVersion:  runtime.Version(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	if host, herr := os.Hostname(); herr == nil {
		r.Hostname = host
	}
	return r
}

// WriteReport writes r into dir and returns the file path.
func WriteReport(dir string, r *Report) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	name := fmt.Sprintf("report-%s-%d.json", r.Time.UTC().Format("20060102T150405.000Z"), r.PID)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func goroutineDump() string {
	var buf bytes.Buffer
	if p := pprof.Lookup("goroutine"); p != nil {
		_ = p.WriteTo(&buf, 2) //nolint:errcheck // bytes.Buffer does not fail
	}
	return buf.String()
}
