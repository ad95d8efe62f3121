package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/helios-erp/helios/internal/extensions"
	"github.com/helios-erp/helios/jobs"
)

var activateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Activate an installed extension (takes effect after restart)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transition(cmd, args[0], true)
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Deactivate an extension (takes effect after restart)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transition(cmd, args[0], false)
	},
}

func transition(cmd *cobra.Command, id string, activate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	states, err := stateManager(cfg)
	if err != nil {
		return err
	}
	op := states.Deactivate
	if activate {
		op = states.Activate
	}
	tr, err := op(id)
	if err != nil {
		return err
	}

	// The stored flag is only a cache of the directory name; refreshing it
	// here is best-effort.
	ctx := cmd.Context()
	if pool, err := connect(ctx, cfg); err == nil {
		repo := extensions.NewRepository(pool)
		if err := repo.SetActive(ctx, id, activate); err != nil && err != extensions.ErrNotFound {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: record not updated: %v\n", err)
		}
		pool.Close()
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: record not updated: %v\n", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s", tr.ExtensionID, tr.To)
	if tr.RestartRequired {
		fmt.Fprint(cmd.OutOrStdout(), " (restart required)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

var purgeData bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <id>",
	Short: "Remove an inactive extension, preserving its data by default",
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
		installer := extensions.NewInstaller(extensions.InstallerConfig{
			States:    states,
			Validator: extensions.NewValidator(cfg.HostVersion),
			Conflicts: extensions.NewConflictDetector(extensions.NewPgIntrospector(pool), extensions.NewDiskNamespaces(states)),
			Migrator:  extensions.NewMigrator(pool, logger),
			Repo:      extensions.NewRepository(pool),
			Bundled:   extensions.DefaultBundled(),
			Logger:    logger,
		})

		opts := extensions.UninstallOptions{PurgeData: purgeData}
		if purgeData {
			client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			if err != nil {
				return err
			}
			defer client.Close()
			opts.Purger = client
		}
		if err := installer.Uninstall(ctx, args[0], opts); err != nil {
			return err
		}
		if purgeData {
			fmt.Fprintf(cmd.OutOrStdout(), "uninstalled %s, data purge scheduled\n", args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "uninstalled %s, data tables preserved\n", args[0])
		}
		return nil
	},
}

func init() {
	uninstallCmd.Flags().BoolVar(&purgeData, "purge", false, "drop the extension's data tables via a background job")
}
