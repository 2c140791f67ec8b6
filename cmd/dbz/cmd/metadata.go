/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openticks/dbz/pkg/metadata"
)

// metadataCmd represents the metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata FILE",
	Short: "Print the metadata header of a DBZ file",
	Long: `Parse and print the metadata header of a DBZ file without decoding
the record body. Pass "-" to read from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		reader, err := openInput(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		meta := reader.Metadata()
		for _, warning := range reader.Warnings() {
			logger.Warn().Str("native", warning.Native).Msg(warning.Message)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "version:      %d\n", meta.Version)
		fmt.Fprintf(out, "dataset:      %s\n", meta.Dataset)
		fmt.Fprintf(out, "schema:       %s\n", meta.Schema)
		fmt.Fprintf(out, "start:        %d\n", meta.Start)
		fmt.Fprintf(out, "end:          %d\n", meta.End)
		if meta.Limit > 0 {
			fmt.Fprintf(out, "limit:        %d\n", meta.Limit)
		}
		if meta.RecordCount == metadata.RecordCountUnknown {
			fmt.Fprintf(out, "record_count: unknown\n")
		} else {
			fmt.Fprintf(out, "record_count: %d\n", meta.RecordCount)
		}
		fmt.Fprintf(out, "compression:  %s\n", meta.Compression)
		fmt.Fprintf(out, "stype_in:     %s\n", meta.STypeIn)
		fmt.Fprintf(out, "stype_out:    %s\n", meta.STypeOut)
		fmt.Fprintf(out, "symbols:      %d\n", len(meta.Symbols))
		fmt.Fprintf(out, "mappings:     %d\n", len(meta.Mappings))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.Flags().Bool("json", false, "Print the full header as JSON")
}
