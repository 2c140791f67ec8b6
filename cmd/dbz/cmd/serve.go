/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openticks/dbz/pkg/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the conversion HTTP server",
	Long: `Start the HTTP server that converts uploaded DBZ streams to CSV or
newline-delimited JSON and exposes Prometheus metrics.

Examples:
  dbz serve --port 8080
  dbz serve --bind 0.0.0.0 --api-key mysecretkey`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		bind, _ := cmd.Flags().GetString("bind")
		apiKey, _ := cmd.Flags().GetString("api-key")

		if port == 0 {
			port = cfg.Port
		}
		if bind == "" {
			bind = cfg.Bind
		}

		serverConfig := api.ServerConfig{
			Port:           port,
			Bind:           bind,
			APIKey:         apiKey,
			MaxUploadBytes: cfg.Limits.MaxUploadBytes,
			MaxRecords:     cfg.Limits.MaxRecords,
		}
		return api.StartServer(serverConfig, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from config)")
	serveCmd.Flags().String("bind", "", "Address to bind to (default from config)")
	serveCmd.Flags().String("api-key", "", "API key required on conversion endpoints (empty disables auth)")
}
