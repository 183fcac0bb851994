// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package ops

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/scheduler"
)

type handler struct {
	deps    Deps
	limiter *rate.Limiter
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// BundleInfo describes one bundle in GET /api/v1/bundles.
type BundleInfo struct {
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	Complete   bool      `json:"complete"`
	Restorable bool      `json:"restorable"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
}

// TriggerResponse is the body of POST /api/v1/jobs/{name}/trigger.
type TriggerResponse struct {
	Job    string `json:"job"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: h.deps.Version})
}

func (h *handler) listBundles(w http.ResponseWriter, r *http.Request) {
	if h.deps.Bundles == nil {
		writeError(w, http.StatusServiceUnavailable, "bundle store not configured")
		return
	}

	bundles, err := h.deps.Bundles.List()
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to list bundles")
		writeError(w, http.StatusInternalServerError, "failed to list bundles")
		return
	}

	out := make([]BundleInfo, 0, len(bundles))
	for _, b := range bundles {
		info := BundleInfo{
			Name:       b.Name,
			CreatedAt:  b.CreatedAt,
			Complete:   b.Complete(),
			Restorable: b.Restorable(),
		}
		if fi, err := os.Stat(b.EncryptedPath()); err == nil {
			info.SizeBytes = fi.Size()
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listJobs(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Jobs == nil {
		writeJSON(w, http.StatusOK, []scheduler.JobStatus{})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Jobs.Jobs())
}

func (h *handler) triggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.deps.Jobs == nil {
		writeError(w, http.StatusNotFound, "scheduler not running")
		return
	}
	if !h.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "trigger rate limit exceeded")
		return
	}

	err := h.deps.Jobs.Trigger(name)
	switch {
	case err == nil:
		logging.Ctx(r.Context()).Info().Str("job", name).Msg("Job triggered manually")
		writeJSON(w, http.StatusAccepted, TriggerResponse{Job: name, Status: "started"})
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scheduler.ErrJobStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("job", name).Msg("Failed to trigger job")
		writeError(w, http.StatusInternalServerError, "failed to trigger job")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
