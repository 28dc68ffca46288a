package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k8schema/k8schema/internal/cmd/server"
	"github.com/k8schema/k8schema/internal/config"
)

type ServerInjector func() (*server.Server, func(), error)

func NewServerCommand(conf *config.Config, newServer ServerInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "server",
		Short:   "Serve the aggregated cluster schema catalog over HTTP",
		Example: "k8schema server --address=:8000 --kube-context=minikube",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			// Re-bind so this command's flags win over any sibling
			// command that bound the same keys.
			if err := conf.BindFlags(cmd.Flags(), config.ServerOptions); err != nil {
				return err
			}
			return conf.BindFlags(cmd.Flags(), config.SchemaOptions)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, cleanup, err := newServer()
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}
			defer cleanup()

			cfg := server.Config{
				Address:         conf.ServerAddress(),
				AllowedOrigins:  conf.ServerAllowedOrigins(),
				RefreshInterval: conf.SchemaRefreshInterval(),
			}

			return srv.Run(cmd.Context(), cfg)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.ServerOptions); err != nil {
		return nil, err
	}
	if err := conf.BindFlags(cmd.Flags(), config.SchemaOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}
