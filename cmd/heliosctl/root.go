package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/helios-erp/helios/internal/app"
	"github.com/helios-erp/helios/internal/extensions"
	"github.com/helios-erp/helios/internal/platform/db"
)

// Exit codes reported to the calling shell.
const (
	exitOK         = 0
	exitValidation = 1
	exitConflict   = 2
	exitIO         = 3
)

var extensionsRoot string

var rootCmd = &cobra.Command{
	Use:           "heliosctl",
	Short:         "Manage Helios extensions",
	Long:          "heliosctl scaffolds, packages, validates and installs Helios extensions,\nand drives their lifecycle transitions on the extensions root.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and maps the failure to an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var vErr *extensions.ValidationError
	var cErr *extensions.ConflictError
	var sErr *extensions.StateConflictError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &vErr):
		return exitValidation
	case errors.As(err, &cErr), errors.As(err, &sErr), errors.Is(err, extensions.ErrStillActive):
		return exitConflict
	default:
		return exitIO
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&extensionsRoot, "root", "", "extensions root directory (default: EXTENSIONS_ROOT)")
	rootCmd.AddCommand(createCmd, listCmd, syncCmd, packageCmd, validateCmd, installCmd, activateCmd, deactivateCmd, uninstallCmd)
}

func loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if extensionsRoot != "" {
		cfg.ExtensionsRoot = extensionsRoot
	}
	return cfg, nil
}

func stateManager(cfg *app.Config) (*extensions.StateManager, error) {
	return extensions.NewStateManager(cfg.ExtensionsRoot)
}

func connect(ctx context.Context, cfg *app.Config) (*pgxpool.Pool, error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return pool, nil
}
