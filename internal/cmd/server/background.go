package server

import (
	"context"
	"time"

	"github.com/k8schema/k8schema/internal/core"
)

// refreshListener adapts SchemaIndex.StartRefreshLoop to the
// transport.Listener interface so it participates in the managed
// lifecycle alongside the HTTP server.
type refreshListener struct {
	index    *core.SchemaIndex
	interval time.Duration
}

func (l *refreshListener) Start(ctx context.Context) error {
	l.index.StartRefreshLoop(ctx, l.interval)
	return nil
}

func (l *refreshListener) Stop(_ context.Context) error {
	return nil // loop stops when its context is cancelled
}
