package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anime-shed/label-inspector-go/internal/transport"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "inspect %s\n", transport.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
