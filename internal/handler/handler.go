// Package handler exposes the aggregated schema catalog over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/singleflight"

	"github.com/k8schema/k8schema/internal/core"
)

// Handler serves the catalog endpoints off the latest published
// snapshot. All reads are lock-free; the snapshot is immutable.
type Handler struct {
	index   *core.SchemaIndex
	version core.Version
	log     *slog.Logger

	refreshGroup singleflight.Group
}

func New(index *core.SchemaIndex, version core.Version) *Handler {
	return &Handler{
		index:   index,
		version: version,
		log:     slog.Default().With("component", "handler"),
	}
}

// Mount registers all routes on the mux.
func (h *Handler) Mount(mux *http.ServeMux) error {
	mux.HandleFunc("GET /all.json", h.handleAll)
	mux.HandleFunc("GET /_definitions.json", h.handleDefinitions)
	mux.HandleFunc("GET /definitions/{name}", h.handleDefinition)
	mux.HandleFunc("POST /-/refresh", h.handleRefresh)
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	return h.registerMetrics(mux)
}

// registerMetrics installs the Prometheus exporter as the global
// meter provider and mounts the scrape endpoint.
func (h *Handler) registerMetrics(mux *http.ServeMux) error {
	exporter, err := prometheus.New()
	if err != nil {
		return err
	}
	otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(exporter)))
	mux.Handle("GET /metrics", promhttp.Handler())
	return nil
}

// handleAll serves the root catalog document: a oneOf referencing
// every definition in _definitions.json.
func (h *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.index.Current()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "catalog not built yet")
		return
	}
	h.writeSnapshotJSON(w, snap, snap.Schema.Root)
}

// handleDefinitions serves the full definitions map under a single
// top-level "definitions" key.
func (h *Handler) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.index.Current()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "catalog not built yet")
		return
	}
	h.writeSnapshotJSON(w, snap, map[string]any{
		"definitions": snap.Schema.Definitions,
	})
}

// handleDefinition serves one definition by canonical name, e.g.
// /definitions/io.k8s.api.apps.v1.Deployment.
func (h *Handler) handleDefinition(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.index.Current()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "catalog not built yet")
		return
	}
	name := r.PathValue("name")
	def, ok := snap.Schema.Definitions[name]
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown definition: "+name)
		return
	}
	h.writeSnapshotJSON(w, snap, def)
}

// refreshResult is the response body of a successful refresh.
type refreshResult struct {
	Generation  uint64         `json:"generation"`
	BuildID     string         `json:"build_id"`
	Definitions int            `json:"definitions"`
	Warnings    []core.Warning `json:"warnings"`
}

// handleRefresh triggers an immediate rebuild. Concurrent requests
// are coalesced into one cycle; every caller gets that cycle's
// result. A cycle superseded by a newer one reports 409.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	v, err, _ := h.refreshGroup.Do("refresh", func() (any, error) {
		// Detached from the triggering request: a disconnecting
		// client must not cancel the cycle for the coalesced batch.
		return h.index.Rebuild(context.WithoutCancel(r.Context()))
	})
	if err != nil {
		if errors.Is(err, core.ErrRebuildSuperseded) {
			h.writeError(w, http.StatusConflict, "refresh superseded by a newer cycle")
			return
		}
		h.log.Error("refresh failed", "error", err)
		h.writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}

	snap := v.(*core.Snapshot)
	warnings := snap.Schema.Warnings
	if warnings == nil {
		warnings = []core.Warning{}
	}
	h.writeJSON(w, http.StatusOK, refreshResult{
		Generation:  snap.Generation,
		BuildID:     snap.BuildID,
		Definitions: len(snap.Schema.Definitions),
		Warnings:    warnings,
	})
}

// handleHealthz reports 200 once a snapshot has been published and
// 503 before that, so load balancers hold traffic until the catalog
// is ready.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.index.Current()
	if !ok {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "building",
			"version": h.version,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     h.version,
		"generation":  snap.Generation,
		"build_id":    snap.BuildID,
		"built_at":    snap.BuiltAt,
		"definitions": len(snap.Schema.Definitions),
		"warnings":    len(snap.Schema.Warnings),
	})
}

// writeSnapshotJSON writes a catalog payload with provenance headers
// so clients can detect generation changes cheaply.
func (h *Handler) writeSnapshotJSON(w http.ResponseWriter, snap *core.Snapshot, v any) {
	w.Header().Set("X-K8schema-Build", snap.BuildID)
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
