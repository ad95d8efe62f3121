package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helios-erp/helios/internal/extensions"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List extensions with their lifecycle state",
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
		entries, err := states.Scan()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATE")
		for _, e := range entries {
			if e.State == extensions.StateHidden {
				continue
			}
			name, version := "-", "-"
			if m, err := extensions.LoadManifest(e.Path); err == nil {
				name, version = m.Name, m.Version
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, name, version, e.State)
		}
		return w.Flush()
	},
}
