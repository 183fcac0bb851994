// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/dumpvault/internal/database"
	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/metrics"
)

const (
	DefaultBatchSize   = 1000
	DefaultConcurrency = 8
)

// Config controls one collector.
type Config struct {
	Root             string
	Sources          []Source
	BatchSize        int
	Concurrency      int
	BatchesPerSecond float64 // 0 means unlimited
	DryRun           bool
}

// Summary reports what one run found and did.
type Summary struct {
	Scanned    int
	Referenced int
	Orphans    int
	Deleted    int
	Failed     int

	// OrphanPaths lists the orphans by reference path, sorted.
	OrphanPaths []string
	// Errors holds one wrapped error per failed deletion.
	Errors []error
}

// Collector finds and removes unreferenced uploads.
type Collector struct {
	cfg     Config
	querier database.ReferenceQuerier
	limiter *rate.Limiter
	remove  func(string) error
	logger  zerolog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithRemoveFunc replaces os.Remove for deletions.
func WithRemoveFunc(fn func(string) error) Option {
	return func(c *Collector) {
		c.remove = fn
	}
}

// New validates cfg and creates a Collector.
func New(cfg Config, querier database.ReferenceQuerier, opts ...Option) (*Collector, error) {
	if cfg.Root == "" {
		return nil, errors.New("uploads root is required")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	c := &Collector{
		cfg:     cfg,
		querier: querier,
		remove:  os.Remove,
		logger:  logging.WithComponent("collector"),
	}
	if cfg.BatchesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.BatchesPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run performs one collection pass over every source.
func (c *Collector) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	log := c.logger.With().Str("correlation_id", logging.CorrelationIDFromContext(ctx)).Logger()
	log.Info().Int("sources", len(c.cfg.Sources)).Bool("dry_run", c.cfg.DryRun).Msg("Starting orphan collection")

	summary := &Summary{}
	var runErr error
	for _, src := range c.cfg.Sources {
		if err := c.collect(ctx, src, summary, &log); err != nil {
			runErr = fmt.Errorf("source %s: %w", src, err)
			break
		}
	}
	sort.Strings(summary.OrphanPaths)

	metrics.RecordCollectorRun(summary.Orphans, summary.Deleted, summary.Failed, runErr)
	if runErr != nil {
		return summary, runErr
	}

	log.Info().
		Int("scanned", summary.Scanned).
		Int("referenced", summary.Referenced).
		Int("orphans", summary.Orphans).
		Int("deleted", summary.Deleted).
		Int("failed", summary.Failed).
		Dur("duration", time.Since(start)).
		Msg("Orphan collection completed")
	return summary, nil
}

// Work adapts Run to the worker task signature: the count is the number of
// deleted files (or orphans found, in dry-run mode).
func (c *Collector) Work(ctx context.Context) (int, error) {
	summary, err := c.Run(ctx)
	if err != nil {
		return 0, err
	}
	if c.cfg.DryRun {
		return summary.Orphans, nil
	}
	return summary.Deleted, nil
}

func (c *Collector) collect(ctx context.Context, src Source, summary *Summary, log *zerolog.Logger) error {
	files, err := c.enumerate(src, log)
	if err != nil {
		return err
	}
	summary.Scanned += len(files)

	refs := make([]string, 0, len(files))
	for ref := range files {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	referenced, err := c.referenced(ctx, src, refs)
	if err != nil {
		return err
	}
	summary.Referenced += len(referenced)

	var orphans []string
	for _, ref := range refs {
		if !referenced[ref] {
			orphans = append(orphans, ref)
		}
	}
	summary.Orphans += len(orphans)
	summary.OrphanPaths = append(summary.OrphanPaths, orphans...)

	log.Debug().
		Str("source", src.String()).
		Int("files", len(files)).
		Int("orphans", len(orphans)).
		Msg("Source scanned")

	if c.cfg.DryRun || len(orphans) == 0 {
		return nil
	}
	return c.delete(ctx, files, orphans, summary, log)
}

// enumerate maps reference paths to absolute paths for every regular file
// under the source directory.
func (c *Collector) enumerate(src Source, log *zerolog.Logger) (map[string]string, error) {
	dir := filepath.Join(c.cfg.Root, filepath.FromSlash(src.Dir))
	files := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				log.Warn().Str("dir", dir).Msg("Upload directory does not exist, treating as empty")
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[src.Prefix+filepath.ToSlash(rel)] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", dir, err)
	}
	return files, nil
}

// referenced queries the database batch by batch and returns the union.
func (c *Collector) referenced(ctx context.Context, src Source, refs []string) (map[string]bool, error) {
	found := make(map[string]bool)
	for start := 0; start < len(refs); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(refs))

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hits, err := c.querier.ReferencedPaths(ctx, src.Table, src.Column, refs[start:end])
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			found[h] = true
		}
	}
	return found, nil
}

func (c *Collector) delete(ctx context.Context, files map[string]string, orphans []string, summary *Summary, log *zerolog.Logger) error {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.cfg.Concurrency)

	for _, ref := range orphans {
		if ctx.Err() != nil {
			break
		}
		path := files[ref]
		g.Go(func() error {
			err := c.remove(path)
			if errors.Is(err, fs.ErrNotExist) {
				err = nil
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				wrapped := fmt.Errorf("failed to delete %s: %w", ref, err)
				summary.Failed++
				summary.Errors = append(summary.Errors, wrapped)
				log.Warn().Err(err).Str("path", ref).Msg("Failed to delete orphaned file")
				return nil
			}
			summary.Deleted++
			log.Debug().Str("path", ref).Msg("Deleted orphaned file")
			return nil
		})
	}

	// Per-file goroutines never return an error.
	_ = g.Wait() //nolint:errcheck // always nil
	return ctx.Err()
}
