package cmd

import (
	"fmt"

	"github.com/brogergvhs/readmanga/internal/providers/readmanga"
	"github.com/spf13/cobra"
)

var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the readmanga version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "readmanga version:", Version)
		fmt.Fprintln(out, "source version:   ", readmanga.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
