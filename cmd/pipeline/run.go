package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run fetch, transform and archive once",
	Long:  "Runs the three stages in order with the configured retry policy and records the run in the run history.",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	runID, err := a.launcher.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", runID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Run %s completed\n", runID)
	return nil
}
