//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/spf13/cobra"

	"github.com/k8schema/k8schema/internal/cmd/dump"
	"github.com/k8schema/k8schema/internal/cmd/server"
	"github.com/k8schema/k8schema/internal/config"
	"github.com/k8schema/k8schema/internal/core"
	"github.com/k8schema/k8schema/internal/handler"
	"github.com/k8schema/k8schema/internal/kubernetes"
)

func wireCmd() (*cobra.Command, func(), error) {
	panic(wire.Build(
		newCmd,
		config.ProviderSet,
	))
}

func wireServer(version core.Version, conf *config.Config) (*server.Server, func(), error) {
	panic(wire.Build(
		server.NewServer,
		handler.ProviderSet,
		core.ProviderSet,
		kubernetes.ProviderSet,
		provideClusterContext,
		provideRetryPolicy,
		provideFetchConcurrency,
		provideRequestTimeout,
	))
}

func wireDump(conf *config.Config) (*dump.Dump, func(), error) {
	panic(wire.Build(
		dump.NewDump,
		core.ProviderSet,
		kubernetes.ProviderSet,
		provideClusterContext,
		provideRetryPolicy,
		provideFetchConcurrency,
		provideRequestTimeout,
	))
}
