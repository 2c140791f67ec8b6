/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openticks/dbz/pkg/config"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbz",
	Short: "dbz - Databento Binary Encoding codec",
	Long: `dbz reads and writes DBZ market data files: zstd-compressed streams
of fixed-layout records prefixed with a metadata header. It converts them
to CSV or newline-delimited JSON and can serve conversions over HTTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		if config.ConfigExists(configPath) {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		} else {
			cfg = config.DefaultConfig()
		}
		logger = newLogger(cfg.Logging.Level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")
}
