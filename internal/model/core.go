package model

import "time"

// RunSpec holds the scheduling surface of a pipeline run. It is stored with
// every run in the history so a run can be inspected or retried later.
type RunSpec struct {
	DAGID          string      `json:"dag_id"`
	Owner          string      `json:"owner"`
	StartDate      time.Time   `json:"start_date"`
	Email          []string    `json:"email,omitempty"`
	EmailOnFailure bool        `json:"email_on_failure"`
	EmailOnRetry   bool        `json:"email_on_retry"`
	Retry          RetryPolicy `json:"retry"`
	SourceURL      string      `json:"source_url"`
	TransformedURI string      `json:"transformed_uri"` // e.g. s3://bucket/prefix
	RawURI         string      `json:"raw_uri"`
	StrictUpstream bool        `json:"strict_upstream"` // missing upstream handle fails the transform
}

// DatasetHandle references the artifact written by the fetch stage.
// It is valid from the end of the fetch stage until the archive stage
// removes LocalPath from disk.
type DatasetHandle struct {
	LocalPath string `json:"local_path"`
	BaseName  string `json:"base_name"`
}

// Run statuses, in the order a successful run moves through them.
const (
	StatusPending      = "pending"
	StatusRunning      = "running"
	StatusFetching     = "fetching"
	StatusTransforming = "transforming"
	StatusArchiving    = "archiving"
	StatusRetrying     = "retrying"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
)
