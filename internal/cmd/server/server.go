// Package server implements the long-running catalog runtime: the
// HTTP endpoint plus the periodic refresh loop.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/k8schema/k8schema/internal/core"
	"github.com/k8schema/k8schema/internal/handler"
	"github.com/k8schema/k8schema/internal/transport"
	"github.com/k8schema/k8schema/internal/transport/http"
)

// Config holds the runtime parameters for a Server.
type Config struct {
	Address         string
	AllowedOrigins  []string
	RefreshInterval time.Duration
}

// Server binds the HTTP catalog endpoint and the background refresh
// loop, running them in parallel via transport.Serve.
type Server struct {
	handler *handler.Handler
	index   *core.SchemaIndex
}

func NewServer(handler *handler.Handler, index *core.SchemaIndex) *Server {
	return &Server{handler: handler, index: index}
}

// Run starts the HTTP server and the refresh loop. It blocks until
// ctx is cancelled or an unrecoverable error occurs. The HTTP server
// comes up immediately; until the first refresh cycle publishes a
// snapshot, catalog endpoints report 503.
func (s *Server) Run(ctx context.Context, cfg Config) error {
	httpSrv, err := http.NewServer(
		http.WithAddress(cfg.Address),
		http.WithAllowedOrigins(cfg.AllowedOrigins),
		http.WithMount(s.handler.Mount),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	refresher := &refreshListener{
		index:    s.index,
		interval: cfg.RefreshInterval,
	}

	return transport.Serve(ctx, httpSrv, refresher)
}
