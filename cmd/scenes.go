package cmd

import (
	"github.com/lehigh-university-libraries/chronobooth/internal/scenes"
	"github.com/spf13/cobra"
)

func newScenesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "List the scene presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := scenes.Default()
			if err != nil {
				return err
			}
			out, err := catalog.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
