/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openticks/dbz/pkg/dbz"
	"github.com/openticks/dbz/pkg/textenc"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert FILE",
	Short: "Convert a DBZ file to CSV or JSON",
	Long: `Convert a DBZ file to text, one record per line. Pass "-" to read
from standard input.

Examples:
  dbz convert trades.dbz --encoding csv --header
  dbz convert trades.dbz --encoding json --pretty-symbols -o trades.json
  cat trades.dbz | dbz convert - --encoding json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		encodingName, _ := cmd.Flags().GetString("encoding")
		output, _ := cmd.Flags().GetString("output")
		limit, _ := cmd.Flags().GetUint64("limit")
		opts := textenc.Options{}
		opts.PrettySymbols, _ = cmd.Flags().GetBool("pretty-symbols")
		opts.PrettyTimes, _ = cmd.Flags().GetBool("pretty-times")
		opts.HeaderRow, _ = cmd.Flags().GetBool("header")

		encoding, err := dbz.ParseEncoding(encodingName)
		if err != nil {
			return err
		}

		reader, err := openInput(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		for _, warning := range reader.Warnings() {
			logger.Warn().Str("native", warning.Native).Msg(warning.Message)
		}

		var dst io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			defer f.Close()
			dst = f
		}

		n, err := reader.WriteLimit(dst, encoding, opts, limit)
		if err != nil {
			return fmt.Errorf("conversion failed after %d records: %w", n, err)
		}
		logger.Info().Uint64("records", n).Str("encoding", encoding.String()).Msg("converted")
		return nil
	},
}

func openInput(path string) (*dbz.Reader, error) {
	if path == "-" {
		return dbz.NewReader(os.Stdin)
	}
	return dbz.OpenFile(path)
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringP("encoding", "e", "csv", "Output encoding (csv or json)")
	convertCmd.Flags().StringP("output", "o", "", "Output file (default standard output)")
	convertCmd.Flags().Uint64("limit", 0, "Maximum number of records to convert (0 = all)")
	convertCmd.Flags().Bool("pretty-symbols", false, "Replace instrument ids with resolved symbols")
	convertCmd.Flags().Bool("pretty-times", false, "Render JSON timestamps as ISO-8601 UTC")
	convertCmd.Flags().Bool("header", false, "Emit a CSV header row")
}
