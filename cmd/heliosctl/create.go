package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helios-erp/helios/internal/extensions"
)

var createCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Scaffold a new extension skeleton",
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
		dir, err := extensions.Scaffold(states, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (inactive)\n", dir)
		return nil
	},
}
