package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k8schema/k8schema/internal/cmd/dump"
	"github.com/k8schema/k8schema/internal/config"
)

type DumpInjector func() (*dump.Dump, func(), error)

func NewDumpCommand(conf *config.Config, newDump DumpInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "dump",
		Short:   "Build the schema catalog once and write it to stdout",
		Example: "k8schema dump --kube-config=~/.kube/config > definitions.json",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return conf.BindFlags(cmd.Flags(), config.SchemaOptions)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, cleanup, err := newDump()
			if err != nil {
				return fmt.Errorf("failed to initialize dump: %w", err)
			}
			defer cleanup()

			return d.Run(cmd.Context())
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.SchemaOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}
