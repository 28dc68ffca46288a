package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

// minOpenAPIV3Version is the first Kubernetes release that serves the
// /openapi/v3 discovery endpoint.
var minOpenAPIV3Version = semver.MustParse("v1.24.0")

// Snapshot is one fully built, immutable aggregation result. Readers
// hold a snapshot for as long as they need; it is never mutated after
// publication.
type Snapshot struct {
	Schema     *AggregatedSchema
	Generation uint64
	BuildID    string
	BuiltAt    time.Time
}

// SchemaIndex holds the most recently aggregated catalog. Snapshots
// are built off to the side and published with a single atomic pointer
// swap, so concurrent readers never observe a partially merged
// document. Only one aggregation cycle runs at a time; a refresh
// arriving while one is in flight supersedes it.
type SchemaIndex struct {
	discovery *DiscoveryUseCase
	schema    *SchemaUseCase
	log       *slog.Logger
	metrics   *cycleMetrics

	current atomic.Pointer[Snapshot]

	mu             sync.Mutex
	generation     uint64
	cycleSeq       uint64
	cancelInflight context.CancelFunc
}

func NewSchemaIndex(discovery *DiscoveryUseCase, schema *SchemaUseCase) *SchemaIndex {
	return &SchemaIndex{
		discovery: discovery,
		schema:    schema,
		log:       slog.Default().With("component", "schema-index"),
		metrics:   newCycleMetrics(),
	}
}

// Current returns the latest published snapshot, or false before the
// first successful cycle.
func (ix *SchemaIndex) Current() (*Snapshot, bool) {
	snap := ix.current.Load()
	return snap, snap != nil
}

// Rebuild runs a full discovery and aggregation cycle and publishes
// the result. If another Rebuild arrives while this one is in flight,
// the in-flight cycle is cancelled and its result discarded
// (ErrRebuildSuperseded) — its data would already be stale. Failed
// cycles never publish; readers keep the previous snapshot.
func (ix *SchemaIndex) Rebuild(ctx context.Context) (*Snapshot, error) {
	ix.mu.Lock()
	if ix.cancelInflight != nil {
		ix.cancelInflight()
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	ix.cycleSeq++
	seq := ix.cycleSeq
	ix.cancelInflight = cancel
	ix.mu.Unlock()
	defer cancel()

	start := time.Now()
	snap, err := ix.build(cycleCtx)

	ix.mu.Lock()
	superseded := seq != ix.cycleSeq
	if !superseded {
		ix.cancelInflight = nil
		if err == nil {
			ix.generation++
			snap.Generation = ix.generation
			ix.current.Store(snap)
		}
	}
	ix.mu.Unlock()

	elapsed := time.Since(start)
	switch {
	case superseded:
		ix.metrics.observeCycle(ctx, elapsed, resultSuperseded)
		return nil, ErrRebuildSuperseded
	case err != nil:
		ix.metrics.observeCycle(ctx, elapsed, resultError)
		return nil, err
	}

	ix.metrics.observeCycle(ctx, elapsed, resultOK)
	ix.metrics.observeCatalog(ctx, len(snap.Schema.Definitions), len(snap.Schema.Warnings))
	ix.log.Info("published snapshot",
		"generation", snap.Generation,
		"buildID", snap.BuildID,
		"definitions", len(snap.Schema.Definitions),
		"warnings", len(snap.Schema.Warnings),
		"elapsed", elapsed,
	)
	return snap, nil
}

func (ix *SchemaIndex) build(ctx context.Context) (*Snapshot, error) {
	if err := ix.checkServerVersion(ctx); err != nil {
		return nil, err
	}

	descriptors, warnings, err := ix.discovery.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover resources: %w", err)
	}

	agg, err := ix.schema.Aggregate(ctx, descriptors)
	if err != nil {
		return nil, fmt.Errorf("aggregate schemas: %w", err)
	}
	agg.Warnings = append(warnings, agg.Warnings...)

	return &Snapshot{
		Schema:  agg,
		BuildID: uuid.New().String(),
		BuiltAt: time.Now().UTC(),
	}, nil
}

// checkServerVersion rejects clusters that predate OpenAPI v3
// discovery. An unreachable or unparseable version endpoint is only
// logged; the cycle will fail on its own later if the cluster really
// is unusable.
func (ix *SchemaIndex) checkServerVersion(ctx context.Context) error {
	info, err := ix.discovery.ServerVersion(ctx)
	if err != nil {
		ix.log.Warn("could not probe server version", "error", err)
		return nil
	}
	v, err := semver.NewVersion(info.GitVersion)
	if err != nil {
		ix.log.Warn("unparseable server version", "gitVersion", info.GitVersion)
		return nil
	}
	if v.LessThan(minOpenAPIV3Version) {
		return fmt.Errorf("server version %s does not serve OpenAPI v3 discovery (requires >= %s)",
			info.GitVersion, minOpenAPIV3Version)
	}
	return nil
}

// StartRefreshLoop rebuilds immediately, then on every interval tick,
// until ctx is cancelled. Cycle failures are logged and the previous
// snapshot stays published.
func (ix *SchemaIndex) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if _, err := ix.Rebuild(ctx); err != nil && ctx.Err() == nil {
		ix.log.Error("initial rebuild failed, serving will start empty", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := ix.Rebuild(ctx); err != nil && ctx.Err() == nil {
				ix.log.Error("scheduled rebuild failed, keeping previous snapshot", "error", err)
			}
		}
	}
}
