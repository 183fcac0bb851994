// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/ops"
	"github.com/tomtom215/dumpvault/internal/scheduler"
	"github.com/tomtom215/dumpvault/internal/supervisor"
	"github.com/tomtom215/dumpvault/internal/supervisor/services"
)

const (
	backupJob  = "backup"
	cleanupJob = "cleanup"

	opsShutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled backups and cleanup with the ops HTTP server",
	Long: `serve runs until SIGINT or SIGTERM. Backups run on BACKUP_CRON as child
processes, cleanup runs on CLEANUP_CRON as a worker. A firing that arrives
while the previous run of the same job is still going is dropped.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	a := current
	defer a.manager.Recover()
	cfg := a.cfg
	log := logging.Ctx(a.ctx)

	store, err := a.store()
	if err != nil {
		return err
	}

	sched := scheduler.New(a.manager.Registry(),
		scheduler.WithLogger(logging.WithComponent("scheduler")))

	if cfg.Backup.Enabled {
		launch, err := scheduler.ProcessLauncher(backupJob, []string{"backup"}, cfg.Lifecycle.TerminateGrace)
		if err != nil {
			return err
		}
		if err := sched.Add(backupJob, cfg.Backup.Cron, launch); err != nil {
			return fmt.Errorf("failed to schedule backups: %w", err)
		}
	}
	if cfg.Cleanup.Enabled {
		task, err := collectTask(a, false, nil)
		if err != nil {
			return err
		}
		if err := sched.Add(cleanupJob, cfg.Cleanup.Cron, scheduler.WorkerLauncher(cleanupJob, task)); err != nil {
			return fmt.Errorf("failed to schedule cleanup: %w", err)
		}
	}
	if !cfg.Backup.Enabled && !cfg.Cleanup.Enabled {
		log.Warn().Msg("Backups and cleanup are both disabled, only the ops server will run")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Lifecycle.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create supervisor tree: %w", err)
	}
	tree.AddJobService(sched)

	server := &http.Server{
		Handler: ops.NewRouter(ops.Deps{
			Bundles: store,
			Jobs:    sched,
			Version: version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	tree.AddAPIService(services.NewOpsServerService(server, cfg.ListenAddr(), opsShutdownTimeout))

	// Job stop tasks were registered by Add and run first; the tree goes
	// down after every in-flight unit has been terminated.
	treeCtx, stopTree := context.WithCancel(a.ctx)
	treeDone := make(chan struct{})
	if err := a.manager.Registry().Register("stop supervisor", func(ctx context.Context) error {
		stopTree()
		select {
		case <-treeDone:
			tree.LogUnstopped()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}); err != nil {
		stopTree()
		return err
	}

	log.Info().
		Str("version", version).
		Str("ops_addr", cfg.ListenAddr()).
		Bool("backup_enabled", cfg.Backup.Enabled).
		Bool("cleanup_enabled", cfg.Cleanup.Enabled).
		Msg("Starting dumpvault")

	err = tree.Serve(treeCtx)
	close(treeDone)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree stopped: %w", err)
	}
	return nil
}
