package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helios-erp/helios/internal/extensions"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile filesystem state into the extension registry",
	Long:  "Scans the extensions root and rewrites the stored extension records so\nthe cached is_active flags match the authoritative directory names.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		states, err := stateManager(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo := extensions.NewRepository(pool)

		res, err := extensions.SyncFromDisk(ctx, states, repo)
		if err != nil {
			return err
		}
		for _, s := range res.Skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", s.ExtensionID, s.Err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d extensions, %d active\n", res.Synced, len(res.Active))
		return nil
	},
}
