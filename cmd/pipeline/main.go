// Package main is the entry point of the Redfin data pipeline.
//
// @title Redfin Data Pipeline API
// @version 1.0
// @description Trigger and inspect runs of the Redfin market tracker pipeline.
// @host localhost:8080
// @BasePath /api/v1
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Redfin market tracker pipeline",
	Long: "Fetches the Redfin city market tracker feed, cleans it, uploads the result to the transformed store " +
		"and archives the raw file. Runs once, on a schedule, or behind an HTTP API.",
	SilenceUsage: true,
}

var (
	configFile string
	logLevel   string
	logJSON    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
