package cmd

import (
	"fmt"

	"github.com/brogergvhs/readmanga/internal/config"
	"github.com/spf13/cobra"
)

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := config.DefaultStore().ListConfigs()
		if err != nil {
			return fmt.Errorf("cannot read configs directory: %w", err)
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), list)
		}

		tw := newTable(cmd.OutOrStdout(), "LABEL", "PATH", "ACTIVE")
		for _, c := range list {
			active := ""
			if c.Active {
				active = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Label, c.Path, active)
		}

		return tw.Flush()
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
}
