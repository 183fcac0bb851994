// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/dumpvault/internal/config"
	"github.com/tomtom215/dumpvault/internal/cryptostream"
	"github.com/tomtom215/dumpvault/internal/dumpstore"
	"github.com/tomtom215/dumpvault/internal/lifecycle"
	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/scheduler"
)

// skipSetup marks commands that run without configuration.
const skipSetup = "skip-setup"

// exitGrace is how long finish waits for a manager that is already
// shutting down to end the process itself.
const exitGrace = 5 * time.Second

// app carries what PersistentPreRunE built to the command handlers.
type app struct {
	cfg     *config.Config
	manager *lifecycle.Manager
	ctx     context.Context
	cancel  context.CancelFunc
	child   bool // launched by the scheduler of a serve process
}

var (
	cfgFile string
	current = &app{}

	rootCmd = &cobra.Command{
		Use:   "dumpvault",
		Short: "Encrypted SQL Server backups and upload cleanup",
		Long: `dumpvault takes compressed, encrypted and verified SQL Server backups,
restores them on demand, and removes uploaded files that no database row
references any more.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (overrides "+config.ConfigPathEnvVar+")")
}

// Execute runs the command line and hands the outcome to the lifecycle
// manager, which owns process exit once it exists.
func Execute() error {
	err := rootCmd.Execute()
	if current.manager == nil {
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	current.finish(err)
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	if !needsSetup(cmd) {
		return nil
	}
	if cfgFile != "" {
		// Children spawned by serve inherit the environment, not our flags.
		if err := os.Setenv(config.ConfigPathEnvVar, cfgFile); err != nil {
			return fmt.Errorf("failed to set %s: %w", config.ConfigPathEnvVar, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	runID := os.Getenv(scheduler.RunIDEnv)
	child := runID != ""

	logCfg := cfg.Log()
	var sink *logging.Sink
	if child {
		// The parent relays our stderr into its own sink.
		logCfg.Format = "json"
	} else if sinkCfg, ok := cfg.Sink(); ok {
		if sink, err = logging.NewSink(sinkCfg); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logCfg.File = sink
	}
	logging.Init(logCfg)

	registry := lifecycle.NewRegistry()
	manager := lifecycle.NewManager(cfg.LifecycleManager(version), registry)
	if sink != nil {
		manager.AddCloser("log-sink", sink)
	}

	if runID == "" {
		runID = logging.GenerateCorrelationID()
	}
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.ContextWithCorrelationID(ctx, runID)
	ctx = logging.ContextWithLogger(ctx, logging.Logger().With().
		Str("command", cmd.Name()).
		Str("run_id", runID).
		Logger())

	current.cfg = cfg
	current.manager = manager
	current.ctx = ctx
	current.cancel = cancel
	current.child = child

	manager.Watch(ctx)
	if child || cmd.Name() == "serve" {
		cfg.LogSummary(logging.WithComponent("config"))
	}
	return nil
}

// needsSetup is false for commands that only print: version, help and
// shell completion.
func needsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipSetup] == "true" {
			return false
		}
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

// finish ends the process through the lifecycle manager so cleanup tasks
// and closers always run.
func (a *app) finish(err error) {
	defer a.cancel()
	switch {
	case a.manager.Stopping():
		// Interrupted by a signal; the error is the cancellation itself.
		logging.Ctx(a.ctx).Debug().Err(err).Msg("Command ended during shutdown")
	case err != nil:
		logging.Ctx(a.ctx).Error().Err(err).Msg("Command failed")
		a.manager.Fail(err)
	default:
		a.manager.Shutdown("completed", 0)
	}
	// A signal already started shutdown; the manager exits when it is done.
	<-a.manager.Done()
	time.Sleep(exitGrace)
}

// store opens the bundle store configured for this deployment.
func (a *app) store() (*dumpstore.Store, error) {
	return dumpstore.New(a.cfg.Backup.Dir, a.cfg.Backup.MaxBackups,
		dumpstore.WithLogger(logging.WithComponent("dumpstore")))
}

// crypto builds the artifact cipher factory.
func (a *app) crypto() (*cryptostream.Factory, error) {
	opts := []cryptostream.Option{cryptostream.WithKDFParams(a.cfg.KDFParams())}
	if a.cfg.Backup.RequireMAC {
		opts = append(opts, cryptostream.WithRequireMAC())
	}
	return cryptostream.NewFactory(a.cfg.Backup.EncryptionPassword, opts...)
}
