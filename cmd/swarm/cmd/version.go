package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "2.5.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the swarm CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "swarm version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Multi-advisor trading decision pipeline and strategy lab")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
