package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/helios-erp/helios/internal/extensions"
)

var installCmd = &cobra.Command{
	Use:   "install <archive-path>",
	Short: "Run the full install pipeline for an extension archive",
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
		ctx := cmd.Context()
		pool, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		repo := extensions.NewRepository(pool)
		installer := extensions.NewInstaller(extensions.InstallerConfig{
			States:    states,
			Validator: extensions.NewValidator(cfg.HostVersion),
			Conflicts: extensions.NewConflictDetector(extensions.NewPgIntrospector(pool), extensions.NewDiskNamespaces(states)),
			Migrator:  extensions.NewMigrator(pool, logger),
			Repo:      repo,
			Bundled:   extensions.DefaultBundled(),
			Logger:    logger,
		})

		report, err := installer.Install(ctx, args[0])
		for _, w := range report.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
		if err != nil {
			if report.Staged && !report.Installed {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s left staged for inspection\n", report.ExtensionID)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "installed %s (inactive); run 'heliosctl activate %s' and restart the host\n", report.ExtensionID, report.ExtensionID)
		return nil
	},
}
