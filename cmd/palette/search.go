package main

import (
	"strings"

	"github.com/aretw0/palette/internal/cli"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "List the commands and prompts matching a query",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimPrefix(strings.Join(args, " "), "/")
		return cli.Search(cmd.Context(), runOptions(cmd), query, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
