package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"redfin-data-pipeline/internal/pipeline"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Clean a local market tracker CSV",
	Long:  "Applies the transform stage to a local CSV file and writes the cleaned dataset, without touching any store.",
	RunE:  runTransform,
}

var (
	transformIn  string
	transformOut string
)

func init() {
	transformCmd.Flags().StringVarP(&transformIn, "in", "i", "", "Input CSV file (required)")
	transformCmd.Flags().StringVarP(&transformOut, "out", "o", "", "Output CSV file (required)")
	transformCmd.MarkFlagRequired("in")
	transformCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, _ []string) error {
	in, err := os.Open(transformIn)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	records, stats, err := pipeline.TransformRecords(in)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(transformOut); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	out, err := os.Create(transformOut)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := pipeline.WriteRecords(out, records); err != nil {
		out.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %d rows x %d columns to %s (%d rows dropped)\n",
		stats.RowsWritten, stats.Columns, transformOut, stats.RowsDropped)
	return nil
}
