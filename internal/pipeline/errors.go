package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoUpstreamData is returned when a stage finds no handle from the fetch stage.
var ErrNoUpstreamData = errors.New("no upstream dataset handle")

// FetchError reports that the source feed was unreachable or malformed.
type FetchError struct {
	URL     string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// SchemaError reports required columns absent from the dataset header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ParseError reports a date cell that could not be parsed.
type ParseError struct {
	Column string
	Value  string
	Line   int
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: line %d: column %s: cannot parse %q as a date", e.Line, e.Column, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// TransferError reports a failed upload or removal of an artifact.
type TransferError struct {
	Op          string // "upload", "remove" or "move"
	Path        string
	Destination string
	Cause       error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("transfer error: %s", e.Op)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Destination != "" {
		msg += " to " + e.Destination
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransferError) Unwrap() error {
	return e.Cause
}
