package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"redfin-data-pipeline/internal/blob"
	"redfin-data-pipeline/internal/config"
	"redfin-data-pipeline/internal/logging"
	"redfin-data-pipeline/internal/pipeline"
	"redfin-data-pipeline/internal/store"
	"redfin-data-pipeline/pkg/utils"
)

// loadConfig layers defaults, the config file, REDFIN_* variables and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := config.Default()
		cfg = &def
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = logJSON
	}

	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) hclog.Logger {
	return logging.New(logging.Options{
		Name:   "pipeline",
		Level:  cfg.LogLevel,
		JSON:   cfg.LogJSON,
		Output: rootCmd.ErrOrStderr(),
	})
}

// app holds everything a run needs.
type app struct {
	cfg      *config.Config
	logger   hclog.Logger
	db       *store.DB
	launcher *pipeline.Launcher
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger hclog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history %s: %w", cfg.DBPath, err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	transformedLoc, err := blob.ParseLocation(cfg.TransformedURI)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid transformed_uri: %w", err)
	}
	rawLoc, err := blob.ParseLocation(cfg.RawURI)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid raw_uri: %w", err)
	}

	opts := blob.Options{
		S3: blob.S3Options{
			Region:       cfg.AWSRegion,
			Endpoint:     cfg.AWSEndpoint,
			AccessKey:    cfg.AWSAccessKey,
			SecretKey:    cfg.AWSSecretKey,
			SessionToken: cfg.AWSSessionToken,
			PathStyle:    cfg.S3ForcePathStyle,
		},
		GCS: blob.GCSOptions{CredentialsFile: cfg.GCPCredentialsFile},
	}

	transformedStore, err := blob.Open(ctx, transformedLoc, opts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open transformed store: %w", err)
	}
	a.closers = append(a.closers, transformedStore.Close)

	rawStore, err := blob.Open(ctx, rawLoc, opts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open raw store: %w", err)
	}
	a.closers = append(a.closers, rawStore.Close)

	spec := cfg.RunSpec()
	notifier := &pipeline.LogNotifier{
		Logger:     logger.Named("notify"),
		Recipients: spec.Email,
		OnRetry:    spec.EmailOnRetry,
		OnFailure:  spec.EmailOnFailure,
	}

	p := pipeline.New(spec.Retry, notifier,
		pipeline.NewFetcher(cfg.SourceURL, utils.NewOutputManager(cfg.DataDir)),
		pipeline.NewTransformer(transformedStore, transformedLoc, spec.StrictUpstream),
		pipeline.NewArchiver(rawStore, rawLoc),
	)
	if cfg.JobTimeout != "" {
		p.Timeout = utils.ParseDuration(cfg.JobTimeout)
	}

	a.launcher = pipeline.NewLauncher(p, spec, db, logger)
	return a, nil
}

// Close waits for background runs and releases stores and the database.
func (a *app) Close() error {
	if a.launcher != nil {
		a.launcher.Wait()
	}
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	return time.ParseDuration(v)
}
