// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/dumpvault/internal/collector"
	"github.com/tomtom215/dumpvault/internal/database"
	"github.com/tomtom215/dumpvault/internal/isolation"
	"github.com/tomtom215/dumpvault/internal/logging"
)

var (
	collectDryRun bool

	collectCmd = &cobra.Command{
		Use:   "collect",
		Short: "Remove uploaded files no database row references",
		Long: `collect walks every CLEANUP_SOURCES directory below UPLOADS_DIR, asks the
database which of the files are still referenced and deletes the rest.
With --dry-run nothing is deleted and the orphans are printed instead.`,
		Args: cobra.NoArgs,
		RunE: runCollect,
	}
)

func init() {
	collectCmd.Flags().BoolVar(&collectDryRun, "dry-run", false, "report orphans without deleting them")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, _ []string) error {
	a := current
	defer a.manager.Recover()

	var summary *collector.Summary
	task, err := collectTask(a, collectDryRun, &summary)
	if err != nil {
		return err
	}

	worker := isolation.StartWorker(a.ctx, cleanupJob, task)
	if err := a.manager.Registry().Register("terminate "+cleanupJob, func(ctx context.Context) error {
		worker.Terminate()
		select {
		case <-worker.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}); err != nil {
		worker.Terminate()
		return err
	}

	result := <-worker.Done()
	if err := result.Err(); err != nil {
		return err
	}
	if collectDryRun && summary != nil {
		printOrphans(cmd.OutOrStdout(), summary)
	}
	return nil
}

// collectTask returns a worker task running one collector pass with a
// fresh database connection. When out is non-nil it receives the summary.
func collectTask(a *app, dryRun bool, out **collector.Summary) (isolation.Task, error) {
	cfg, err := a.cfg.Collector(dryRun)
	if err != nil {
		return nil, err
	}
	dbCfg := a.cfg.SQLServer()

	return func(ctx context.Context) (int, error) {
		engine, err := database.Open(ctx, dbCfg, dbCfg.Name)
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := engine.Close(); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Msg("Failed to close database connection")
			}
		}()

		c, err := collector.New(cfg, engine)
		if err != nil {
			return 0, err
		}
		if out == nil {
			return c.Work(ctx)
		}

		summary, err := c.Run(ctx)
		*out = summary
		if err != nil {
			return 0, err
		}
		if dryRun {
			return summary.Orphans, nil
		}
		return summary.Deleted, nil
	}, nil
}

func printOrphans(w io.Writer, s *collector.Summary) {
	for _, p := range s.OrphanPaths {
		fmt.Fprintln(w, p)
	}
	fmt.Fprintf(w, "%d orphans among %d files\n", s.Orphans, s.Scanned)
}
