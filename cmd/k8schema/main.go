// Package main is the entry point for the k8schema binary. It
// supports two subcommands:
//
//   - server: serves the aggregated cluster schema catalog over HTTP
//     and refreshes it on an interval
//   - dump:   builds the catalog once and writes it to stdout
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/k8schema/k8schema/internal/cmd"
	"github.com/k8schema/k8schema/internal/cmd/dump"
	"github.com/k8schema/k8schema/internal/cmd/server"
	"github.com/k8schema/k8schema/internal/config"
	"github.com/k8schema/k8schema/internal/core"
	"github.com/k8schema/k8schema/internal/kubeconfig"
	"github.com/k8schema/k8schema/internal/kubernetes"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	// Cancel on SIGINT (Ctrl+C) or SIGTERM (container runtime).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Cobra is configured with SilenceErrors: true, so we
		// print the error here for consistent formatting.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all dependencies and executes the root Cobra command.
func run(ctx context.Context) error {
	rootCmd, cleanup, err := wireCmd()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	return rootCmd.ExecuteContext(ctx)
}

// newCmd is a Wire provider that constructs the root Cobra command and
// registers the server and dump subcommands. The version is captured
// by closures passed to the Wire injectors so that the Injector type
// signatures remain unchanged.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "k8schema",
		Short:         "Aggregated Kubernetes OpenAPI schema catalog for YAML and Helm tooling.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	v := core.Version(version)

	serverCmd, err := cmd.NewServerCommand(conf, func() (*server.Server, func(), error) {
		return wireServer(v, conf)
	})
	if err != nil {
		return nil, err
	}

	dumpCmd, err := cmd.NewDumpCommand(conf, func() (*dump.Dump, func(), error) {
		return wireDump(conf)
	})
	if err != nil {
		return nil, err
	}

	c.AddCommand(serverCmd, dumpCmd)

	return c, nil
}

// provideClusterContext is a Wire provider that resolves the selected
// kubeconfig context into a ready-to-use cluster context. An empty
// path falls back to the standard ~/.kube/config location; an empty
// context name falls back to the file's current-context.
func provideClusterContext(conf *config.Config) (core.ClusterContext, error) {
	path := conf.KubeConfig()
	if path == "" {
		path = clientcmd.RecommendedHomeFile
	}

	resolved, err := kubeconfig.NewResolver(path).Resolve()
	if err != nil {
		return core.ClusterContext{}, err
	}

	return resolved.Context(conf.KubeContext())
}

// provideRetryPolicy is a Wire provider that derives the retry policy
// from configuration, keeping the default backoff shape.
func provideRetryPolicy(conf *config.Config) core.RetryPolicy {
	p := core.DefaultRetryPolicy
	if n := conf.SchemaRetryAttempts(); n > 0 {
		p.Attempts = n
	}
	return p
}

func provideFetchConcurrency(conf *config.Config) core.FetchConcurrency {
	return core.FetchConcurrency(conf.SchemaFetchConcurrency())
}

func provideRequestTimeout(conf *config.Config) kubernetes.RequestTimeout {
	return kubernetes.RequestTimeout(conf.SchemaRequestTimeout())
}
