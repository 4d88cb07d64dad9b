package main

import (
	"fmt"

	"github.com/aretw0/palette"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of palette",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "palette version %s\n", palette.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
