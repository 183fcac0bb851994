// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
Package ops serves the operations HTTP endpoints of "dumpvault serve".

# Routes

	GET  /healthz                      liveness and build version
	GET  /metrics                      Prometheus exposition (promhttp)
	GET  /api/v1/bundles               bundles, newest first
	GET  /api/v1/jobs                  scheduler job status
	POST /api/v1/jobs/{name}/trigger   run a job now

Trigger responses:

	202 Accepted   the run was started
	404 Not Found  no job with that name
	409 Conflict   a run of the job is already in flight (dropped, not queued)
	429            trigger rate limit exceeded

The server binds to 127.0.0.1 by default and carries no authentication;
expose it beyond localhost only behind a proxy that does.
*/
package ops
