// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// runBuckets spans a few seconds up to several hours.
var runBuckets = []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200, 14400}

var (
	// Backup and Restore Metrics
	BackupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dumpvault_backup_runs_total",
			Help: "Total number of backup pipeline runs",
		},
		[]string{"outcome"},
	)

	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dumpvault_backup_duration_seconds",
			Help:    "Duration of backup pipeline runs in seconds",
			Buckets: runBuckets,
		},
	)

	BackupArtifactBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dumpvault_backup_artifact_bytes",
			Help: "Size of the most recent encrypted backup artifact",
		},
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dumpvault_backup_last_success_timestamp",
			Help: "Unix timestamp of the last successful backup",
		},
	)

	RestoreRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dumpvault_restore_runs_total",
			Help: "Total number of restore pipeline runs",
		},
		[]string{"outcome"},
	)

	RestoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dumpvault_restore_duration_seconds",
			Help:    "Duration of restore pipeline runs in seconds",
			Buckets: runBuckets,
		},
	)

	// Database Metrics
	DBStatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dumpvault_db_statement_duration_seconds",
			Help:    "Duration of SQL Server statements in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 30, 60, 300, 1800, 3600},
		},
		[]string{"statement"},
	)

	DBStatementErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dumpvault_db_statement_errors_total",
			Help: "Total number of failed SQL Server statements",
		},
		[]string{"statement"},
	)

	// Orphan Collector Metrics
	CollectorRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dumpvault_collector_runs_total",
			Help: "Total number of orphan collector runs",
		},
		[]string{"outcome"},
	)

	OrphansFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dumpvault_orphans_found_total",
			Help: "Total number of unreferenced upload files found",
		},
	)

	OrphansDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dumpvault_orphans_deleted_total",
			Help: "Total number of unreferenced upload files deleted",
		},
	)

	OrphanDeleteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dumpvault_orphan_delete_failures_total",
			Help: "Total number of orphan deletions that failed",
		},
	)

	// Scheduler Metrics
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dumpvault_job_runs_total",
			Help: "Total number of finished scheduled job executions",
		},
		[]string{"job", "outcome"},
	)

	JobSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dumpvault_job_skipped_total",
			Help: "Total number of firings dropped because the job was still running",
		},
		[]string{"job"},
	)

	JobInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dumpvault_job_in_flight",
			Help: "Whether a scheduled job currently has an execution unit running",
		},
		[]string{"job"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dumpvault_job_duration_seconds",
			Help:    "Lifetime of scheduled job execution units in seconds",
			Buckets: runBuckets,
		},
		[]string{"job"},
	)

	// Ops HTTP Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dumpvault_http_requests_total",
			Help: "Total number of ops HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dumpvault_http_request_duration_seconds",
			Help:    "Duration of ops HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Lifecycle Metrics
	CleanupTaskFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dumpvault_cleanup_task_failures_total",
			Help: "Total number of shutdown cleanup tasks that returned an error",
		},
	)
)

// RecordBackup records one backup pipeline run.
func RecordBackup(duration time.Duration, artifactBytes int64, err error) {
	BackupDuration.Observe(duration.Seconds())
	if err != nil {
		BackupRuns.WithLabelValues(outcomeFailure).Inc()
		return
	}
	BackupRuns.WithLabelValues(outcomeSuccess).Inc()
	BackupArtifactBytes.Set(float64(artifactBytes))
	BackupLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordRestore records one restore pipeline run.
func RecordRestore(duration time.Duration, err error) {
	RestoreDuration.Observe(duration.Seconds())
	RestoreRuns.WithLabelValues(outcome(err)).Inc()
}

// RecordCollectorRun records one orphan collector pass.
func RecordCollectorRun(found, deleted, failed int, err error) {
	CollectorRuns.WithLabelValues(outcome(err)).Inc()
	OrphansFound.Add(float64(found))
	OrphansDeleted.Add(float64(deleted))
	OrphanDeleteFailures.Add(float64(failed))
}

// RecordJobRun records a finished scheduled execution.
func RecordJobRun(job string, duration time.Duration, success bool) {
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if success {
		JobRuns.WithLabelValues(job, outcomeSuccess).Inc()
	} else {
		JobRuns.WithLabelValues(job, outcomeFailure).Inc()
	}
}

// RecordAPIRequest records an ops HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return outcomeFailure
	}
	return outcomeSuccess
}
