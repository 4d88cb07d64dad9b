package main

import (
	"github.com/aretw0/palette/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive composer",
	Long: `Reads lines from stdin. A line starting with "/" selects the best matching
command or prompt and asks for its arguments. Type exit to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		return cli.RunSession(opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("headless", false, "Run in headless mode (no banner, prompts or colors)")

	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
