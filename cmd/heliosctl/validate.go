package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helios-erp/helios/internal/extensions"
)

var validateCmd = &cobra.Command{
	Use:   "validate <id>",
	Short: "Run manifest, dependency and conflict checks without installing",
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
		validator := extensions.NewValidator(cfg.HostVersion)
		if err := validator.ValidateManifest(manifest); err != nil {
			return err
		}
		warnings, err := validator.ScanSource(dir)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}

		ctx := cmd.Context()
		pool, err := connect(ctx, cfg)
		if err != nil {
			// Conflict detection needs the live schema; the static checks
			// above already passed.
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: conflict check skipped: %v\n", err)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid (conflicts unchecked)\n", manifest.ID, manifest.Version)
			return nil
		}
		defer pool.Close()

		detector := extensions.NewConflictDetector(extensions.NewPgIntrospector(pool), extensions.NewDiskNamespaces(states, id))
		conflictWarnings, err := detector.Check(ctx, manifest, dir)
		if err != nil {
			return err
		}
		for _, w := range conflictWarnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid\n", manifest.ID, manifest.Version)
		return nil
	},
}
