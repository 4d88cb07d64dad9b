package main

import (
	"fmt"
	"os"

	"github.com/aretw0/palette/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "palette",
	Short: "Palette is a slash-command engine for chat composers",
	Long: `Palette resolves "/command" input into local commands, prompt templates
and prompts imported from MCP servers, and streams command output.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runOptions reads the persistent flags shared by every command.
func runOptions(cmd *cobra.Command) cli.RunOptions {
	dir, _ := cmd.Flags().GetString("dir")
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.RunOptions{ConfigPath: configPath, Dir: dir, Debug: debug}
}

func init() {
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the palette project")
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default <dir>/palette.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log to stderr at debug level")
}
