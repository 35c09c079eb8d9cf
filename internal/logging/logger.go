// Package logging builds the structured logger shared by the pipeline, the
// API server and the CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options configures New.
type Options struct {
	Name   string
	Level  string // trace, debug, info, warn, error, off
	JSON   bool
	Output io.Writer
}

// New returns an hclog logger. Unknown levels fall back to info.
func New(opts Options) hclog.Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	level := hclog.LevelFromString(strings.ToLower(opts.Level))
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:            opts.Name,
		Level:           level,
		Output:          output,
		JSONFormat:      opts.JSON,
		IncludeLocation: false,
		TimeFormat:      "2006-01-02 15:04:05",
	})
}

// Discard returns a logger that drops everything, for tests.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}
