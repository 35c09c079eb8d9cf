package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"redfin-data-pipeline/internal/api"
	"redfin-data-pipeline/internal/api/handler"
	"redfin-data-pipeline/pkg/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API, optionally running on a schedule",
	Long: "Starts the HTTP API for triggering and inspecting runs. With --interval the pipeline also runs " +
		"every interval from the configured start date; missed intervals are not backfilled.",
	RunE: runServe,
}

// a run downloads the whole feed, so HTTP triggers are throttled
const (
	triggerEvery = time.Minute
	triggerBurst = 2
)

var (
	serveAddr     string
	serveInterval string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides listen_addr)")
	serveCmd.Flags().StringVar(&serveInterval, "interval", "", "Run the pipeline every interval, e.g. 24h (overrides interval)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.ListenAddr = serveAddr
	}
	if cmd.Flags().Changed("interval") {
		cfg.Interval = serveInterval
	}
	interval, err := parseInterval(cfg.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", cfg.Interval, err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	r := router.New(logger.Named("http"))
	r.Color = !cfg.LogJSON
	h := handler.NewRunHandler(a.db, a.launcher, logger.Named("api"))
	h.Triggers = rate.NewLimiter(rate.Every(triggerEvery), triggerBurst)
	api.RegisterRoutes(r, h)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Start(gctx, cfg.ListenAddr)
	})
	if interval > 0 {
		spec := cfg.RunSpec()
		g.Go(func() error {
			logger.Info("📅 Schedule enabled", "interval", interval, "start_date", spec.StartDate)
			return a.launcher.Schedule(gctx, interval, spec.StartDate)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
