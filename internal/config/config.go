// Package config provides configuration loading and validation for the
// pipeline CLI and API server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"

	"redfin-data-pipeline/internal/model"
)

// DefaultSourceURL is the Redfin city market tracker feed.
const DefaultSourceURL = "https://redfin-public-data.s3.us-west-2.amazonaws.com/redfin_market_tracker/city_market_tracker.tsv000.gz"

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "REDFIN_"

// Config is the full pipeline configuration. Values are layered: Default,
// then an optional JSON file, then the environment, then CLI flags.
type Config struct {
	// Source and storage
	SourceURL      string `json:"source_url" validate:"required,url"`
	DataDir        string `json:"data_dir" validate:"required"`
	TransformedURI string `json:"transformed_uri" validate:"required"`
	RawURI         string `json:"raw_uri" validate:"required"`
	DBPath         string `json:"db_path" validate:"required"`

	// Scheduling surface
	DAGID          string   `json:"dag_id" validate:"required"`
	Owner          string   `json:"owner" validate:"required"`
	StartDate      string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	Retries        int      `json:"retries" validate:"gte=0,lte=10"`
	RetryDelay     string   `json:"retry_delay" validate:"required"`
	Email          []string `json:"email,omitempty" validate:"omitempty,dive,email"`
	EmailOnFailure bool     `json:"email_on_failure"`
	EmailOnRetry   bool     `json:"email_on_retry"`
	Interval       string   `json:"interval,omitempty"` // empty disables the schedule
	JobTimeout     string   `json:"job_timeout,omitempty"`
	StrictUpstream bool     `json:"strict_upstream"`

	// Logging and serving
	LogLevel   string `json:"log_level" validate:"oneof=trace debug info warn error off"`
	LogJSON    bool   `json:"log_json"`
	ListenAddr string `json:"listen_addr" validate:"required"`

	// Cloud credentials; empty values fall back to the SDK default chains
	AWSRegion          string `json:"aws_region,omitempty"`
	AWSEndpoint        string `json:"aws_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKey       string `json:"aws_access_key,omitempty"`
	AWSSecretKey       string `json:"aws_secret_key,omitempty"`
	AWSSessionToken    string `json:"aws_session_token,omitempty"`
	S3ForcePathStyle   bool   `json:"s3_force_path_style,omitempty"`
	GCPCredentialsFile string `json:"gcp_credentials_file,omitempty"`
}

// Default returns the stock settings of redfin_analytics_dag.
func Default() Config {
	return Config{
		SourceURL:      DefaultSourceURL,
		DataDir:        "~/redfin",
		TransformedURI: "s3://redfin-transform-ali-yml",
		RawURI:         "s3://raw-data--redfin-storage-yml",
		DBPath:         "pipeline.db",
		DAGID:          "redfin_analytics_dag",
		Owner:          "airflow",
		StartDate:      "2024-08-19",
		Retries:        model.DefaultRetryPolicy.Retries,
		RetryDelay:     model.DefaultRetryPolicy.Delay.String(),
		Email:          []string{"myemail@domain.com"},
		JobTimeout:     "2h",
		LogLevel:       "info",
		ListenAddr:     ":8080",
		AWSRegion:      "us-east-1",
	}
}

// LoadConfig reads a JSON file over the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from REDFIN_* environment variables.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"SOURCE_URL":           &c.SourceURL,
		"DATA_DIR":             &c.DataDir,
		"TRANSFORMED_URI":      &c.TransformedURI,
		"RAW_URI":              &c.RawURI,
		"DB_PATH":              &c.DBPath,
		"DAG_ID":               &c.DAGID,
		"OWNER":                &c.Owner,
		"START_DATE":           &c.StartDate,
		"RETRY_DELAY":          &c.RetryDelay,
		"INTERVAL":             &c.Interval,
		"JOB_TIMEOUT":          &c.JobTimeout,
		"LOG_LEVEL":            &c.LogLevel,
		"LISTEN_ADDR":          &c.ListenAddr,
		"AWS_REGION":           &c.AWSRegion,
		"AWS_ENDPOINT":         &c.AWSEndpoint,
		"AWS_ACCESS_KEY":       &c.AWSAccessKey,
		"AWS_SECRET_KEY":       &c.AWSSecretKey,
		"AWS_SESSION_TOKEN":    &c.AWSSessionToken,
		"GCP_CREDENTIALS_FILE": &c.GCPCredentialsFile,
	}
	for name, field := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*field = v
		}
	}

	bools := map[string]*bool{
		"EMAIL_ON_FAILURE":    &c.EmailOnFailure,
		"EMAIL_ON_RETRY":      &c.EmailOnRetry,
		"STRICT_UPSTREAM":     &c.StrictUpstream,
		"LOG_JSON":            &c.LogJSON,
		"S3_FORCE_PATH_STYLE": &c.S3ForcePathStyle,
	}
	for name, field := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*field = b
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sRETRIES: %w", EnvPrefix, err)
		}
		c.Retries = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "EMAIL"); ok {
		c.Email = splitList(v)
	}

	return nil
}

// Validate checks field constraints and the duration fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if _, err := time.ParseDuration(c.RetryDelay); err != nil {
		return fmt.Errorf("config error: invalid retry_delay %q: %w", c.RetryDelay, err)
	}
	if c.JobTimeout != "" {
		d, err := time.ParseDuration(c.JobTimeout)
		if err != nil {
			return fmt.Errorf("config error: invalid job_timeout %q: %w", c.JobTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("config error: job_timeout must be positive")
		}
	}
	if c.Interval != "" {
		d, err := time.ParseDuration(c.Interval)
		if err != nil {
			return fmt.Errorf("config error: invalid interval %q: %w", c.Interval, err)
		}
		if d <= 0 {
			return fmt.Errorf("config error: interval must be positive")
		}
	}

	if c.AWSAccessKey != "" && c.AWSSecretKey == "" {
		return fmt.Errorf("config error: aws_access_key set without aws_secret_key")
	}
	if c.AWSAccessKey == "" && c.AWSSecretKey != "" {
		return fmt.Errorf("config error: aws_secret_key set without aws_access_key")
	}

	return nil
}

// ExpandPaths resolves ~ in local paths.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.DataDir, &c.DBPath, &c.GCPCredentialsFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %s: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// RunSpec converts the configuration into the settings stored with each run.
// Call Validate first.
func (c *Config) RunSpec() model.RunSpec {
	delay, _ := time.ParseDuration(c.RetryDelay)
	start, _ := time.Parse("2006-01-02", c.StartDate)

	return model.RunSpec{
		DAGID:          c.DAGID,
		Owner:          c.Owner,
		StartDate:      start,
		Email:          c.Email,
		EmailOnFailure: c.EmailOnFailure,
		EmailOnRetry:   c.EmailOnRetry,
		Retry:          model.RetryPolicy{Retries: c.Retries, Delay: delay},
		SourceURL:      c.SourceURL,
		TransformedURI: c.TransformedURI,
		RawURI:         c.RawURI,
		StrictUpstream: c.StrictUpstream,
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
