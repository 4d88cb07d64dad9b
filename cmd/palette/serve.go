package main

import (
	"github.com/aretw0/palette/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the execution endpoint",
	Long: `Serves the local commands of the project over HTTP so other palette sessions
can run them remotely. Also exposes /metrics and the OpenAPI document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		return cli.RunServe(runOptions(cmd), port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default server.port)")
}
