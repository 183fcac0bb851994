// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
process.go - Child Process Units

The child runs in its own process group (Setpgid) so that a terminal SIGINT
aimed at the parent does not reach it directly, and so that Terminate can
signal the child together with anything it started.

Output Relay:
Each stdout/stderr line is re-emitted through the parent's logger with
child and pid fields. Lines that are JSON objects (the child's own zerolog
output) are embedded verbatim under "child_event" and logged at the child's
level; other lines are logged as plain strings.
*/

//nolint:staticcheck // File documentation, not package doc
package isolation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/tomtom215/dumpvault/internal/logging"
)

// DefaultGracePeriod is how long Terminate waits between SIGTERM and SIGKILL.
const DefaultGracePeriod = 30 * time.Second

// maxLineSize bounds one relayed output line.
const maxLineSize = 1024 * 1024

// Command describes a child process.
type Command struct {
	Name        string // unit name used in logs and results
	Path        string
	Args        []string
	Env         []string // nil inherits the parent environment
	Dir         string
	GracePeriod time.Duration
}

// Process is a running child process.
type Process struct {
	name   string
	pid    int
	grace  time.Duration
	done   chan Result
	exited chan struct{}
	once   sync.Once
}

var _ Unit = (*Process)(nil)

// Spawn starts the command. Cancelling ctx terminates the child.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Spawn(ctx context.Context, c Command, logger zerolog.Logger) (*Process, error) {
	if c.Path == "" {
		return nil, errors.New("command path is required")
	}
	name := c.Name
	if name == "" {
		name = c.Path
	}
	grace := c.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	//nolint:gosec // G204: the scheduler only spawns the dumpvault binary itself
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p := &Process{
		name:   name,
		pid:    cmd.Process.Pid,
		grace:  grace,
		done:   make(chan Result, 1),
		exited: make(chan struct{}),
	}
	childLog := logger.With().Str("child", name).Int("pid", p.pid).Logger()
	childLog.Info().Strs("args", c.Args).Msg("Child process started")

	var relays sync.WaitGroup
	relays.Add(2)
	go relay(&relays, stdout, childLog, "stdout")
	go relay(&relays, stderr, childLog, "stderr")

	go func() {
		// Pipes must be drained before Wait closes them.
		relays.Wait()
		err := cmd.Wait()
		close(p.exited)

		result := Ok(0)
		if err != nil {
			result = Failed(err)
		}
		result.Unit = name
		childLog.Info().Bool("success", result.Success).Str("error", result.Error).Msg("Child process exited")

		p.done <- result
		close(p.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			p.Terminate()
		case <-p.exited:
		}
	}()

	return p, nil
}

// Name returns the unit name.
func (p *Process) Name() string { return p.name }

// PID returns the child's process id, which is also its process group id.
func (p *Process) PID() int { return p.pid }

// Done yields the child's Result once it has exited.
func (p *Process) Done() <-chan Result { return p.done }

// Terminate sends SIGTERM to the child's process group and SIGKILL after
// the grace period if it is still running.
func (p *Process) Terminate() {
	p.once.Do(func() {
		if err := signalGroup(p.pid, unix.SIGTERM); err != nil {
			logging.Warn().Err(err).Str("child", p.name).Int("pid", p.pid).Msg("Failed to send SIGTERM")
		}

		go func() {
			timer := time.NewTimer(p.grace)
			defer timer.Stop()
			select {
			case <-p.exited:
			case <-timer.C:
				logging.Warn().Str("child", p.name).Int("pid", p.pid).Dur("grace", p.grace).
					Msg("Child did not exit in time, sending SIGKILL")
				if err := signalGroup(p.pid, unix.SIGKILL); err != nil {
					logging.Warn().Err(err).Str("child", p.name).Msg("Failed to send SIGKILL")
				}
			}
		}()
	})
}

func signalGroup(pgid int, sig unix.Signal) error {
	err := unix.Kill(-pgid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

type childLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func relay(wg *sync.WaitGroup, r io.Reader, logger zerolog.Logger, stream string) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var parsed childLine
		if line[0] == '{' && json.Unmarshal(line, &parsed) == nil {
			logger.WithLevel(logging.ParseLevel(parsed.Level)).
				Str("stream", stream).
				RawJSON("child_event", line).
				Msg(parsed.Message)
			continue
		}
		logger.Info().Str("stream", stream).Str("line", string(line)).Msg("Child output")
	}
	if err := scanner.Err(); err != nil {
		logger.Warn().Err(err).Str("stream", stream).Msg("Child output relay stopped")
		// Keep the pipe drained so the child never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, r) //nolint:errcheck // best effort
	}
}
