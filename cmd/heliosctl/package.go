package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helios-erp/helios/internal/extensions"
)

var packageOut string

var packageCmd = &cobra.Command{
	Use:   "package <id>",
	Short: "Produce an installable archive from an extension directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		states, err := stateManager(cfg)
		if err != nil {
			return err
		}
		id := args[0]
		state, err := states.State(id)
		if err != nil {
			return err
		}
		dir := states.Path(id, state)
		manifest, err := extensions.LoadManifest(dir)
		if err != nil {
			return err
		}

		out := packageOut
		if out == "" {
			out = fmt.Sprintf("%s-%s.zip", manifest.ID, manifest.Version)
		}
		if err := extensions.PackageArchive(dir, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "packaged %s %s -> %s\n", manifest.ID, manifest.Version, out)
		return nil
	},
}

func init() {
	packageCmd.Flags().StringVarP(&packageOut, "output", "o", "", "archive output path")
}
