package main

import (
	"fmt"

	"github.com/aretw0/palette"
	"github.com/aretw0/palette/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the composer state machine as a Mermaid diagram",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(palette.Transitions(), nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
