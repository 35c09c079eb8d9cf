package model

import "time"

// RetryPolicy is the orchestrator-level retry configuration applied to every
// stage. Retries counts additional attempts after the first one.
type RetryPolicy struct {
	Retries int           `json:"retries"`
	Delay   time.Duration `json:"retry_delay"`
}

// DefaultRetryPolicy retries a failed stage twice, 15 seconds apart.
var DefaultRetryPolicy = RetryPolicy{
	Retries: 2,
	Delay:   15 * time.Second,
}

// MaxAttempts returns the total number of times a stage may execute.
func (p RetryPolicy) MaxAttempts() int {
	if p.Retries < 0 {
		return 1
	}
	return p.Retries + 1
}
