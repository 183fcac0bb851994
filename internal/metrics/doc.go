// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
Package metrics provides Prometheus metrics for backup, restore, orphan
collection and job scheduling.

# Metrics Endpoint

`dumpvault serve` exposes the default registry at /metrics on the ops
listener:

	curl http://127.0.0.1:9464/metrics

# Available Metrics

Backup and Restore:
  - dumpvault_backup_runs_total: Backup runs (counter)
    Labels: outcome (success, failure)
  - dumpvault_backup_duration_seconds: Backup wall time (histogram)
  - dumpvault_backup_artifact_bytes: Size of the last encrypted artifact (gauge)
  - dumpvault_backup_last_success_timestamp: Unix time of the last success (gauge)
  - dumpvault_restore_runs_total: Restore runs (counter)
    Labels: outcome
  - dumpvault_restore_duration_seconds: Restore wall time (histogram)

Database:
  - dumpvault_db_statement_duration_seconds: Statement time (histogram)
    Labels: statement (backup, verify, restore, reference)
  - dumpvault_db_statement_errors_total: Failed statements (counter)
    Labels: statement

Orphan Collector:
  - dumpvault_collector_runs_total: Collector runs (counter)
    Labels: outcome
  - dumpvault_orphans_found_total / dumpvault_orphans_deleted_total /
    dumpvault_orphan_delete_failures_total (counters)

Scheduler:
  - dumpvault_job_runs_total: Finished job executions (counter)
    Labels: job, outcome
  - dumpvault_job_skipped_total: Firings dropped because the job was in flight (counter)
    Labels: job
  - dumpvault_job_in_flight: 1 while a job's execution unit runs (gauge)
    Labels: job
  - dumpvault_job_duration_seconds: Execution unit lifetime (histogram)
    Labels: job

Ops HTTP:
  - dumpvault_http_requests_total (counter), labels: method, route, status
  - dumpvault_http_request_duration_seconds (histogram), labels: method, route

Lifecycle:
  - dumpvault_cleanup_task_failures_total: Cleanup tasks that returned an error (counter)
*/
package metrics
