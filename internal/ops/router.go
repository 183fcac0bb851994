// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package ops

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/tomtom215/dumpvault/internal/dumpstore"
	"github.com/tomtom215/dumpvault/internal/scheduler"
)

// BundleLister is satisfied by *dumpstore.Store.
type BundleLister interface {
	List() ([]*dumpstore.Bundle, error)
}

// JobRunner is satisfied by *scheduler.Scheduler.
type JobRunner interface {
	Trigger(name string) error
	Jobs() []scheduler.JobStatus
}

// Deps are the collaborators the handlers read from.
type Deps struct {
	Bundles BundleLister
	Jobs    JobRunner
	Version string

	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// TriggerLimit caps manual triggers across all jobs. Zero means
	// one per second with a burst of three.
	TriggerLimit rate.Limit
}

// NewRouter builds the ops HTTP handler.
func NewRouter(deps Deps) http.Handler {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	limit := deps.TriggerLimit
	if limit == 0 {
		limit = rate.Every(time.Second)
	}
	h := &handler{
		deps:    deps,
		limiter: rate.NewLimiter(limit, 3),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(Metrics)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/bundles", h.listBundles)
		r.Get("/jobs", h.listJobs)
		r.Post("/jobs/{name}/trigger", h.triggerJob)
	})

	return r
}
