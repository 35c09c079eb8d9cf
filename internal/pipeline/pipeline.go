package pipeline

import (
	"context"
	"time"

	"redfin-data-pipeline/internal/model"
)

// Stage IDs, also the keys of the handoff in RunContext.
const (
	FetchStageID     = "fetch"
	TransformStageID = "transform"
	ArchiveStageID   = "archive"
)

// Stage is one step of the pipeline.
type Stage interface {
	ID() string
	Execute(ctx context.Context, rc *RunContext) error
}

// Pipeline runs its stages in order. A stage runs only after the previous
// one succeeded, and each stage is retried according to Retry.
type Pipeline struct {
	Stages   []Stage
	Retry    model.RetryPolicy
	Notifier Notifier
	// Timeout bounds the whole run; zero means no limit.
	Timeout time.Duration

	// wait blocks for d or until ctx is done. Tests replace it.
	wait func(ctx context.Context, d time.Duration) error
}

// New returns a pipeline running stages in the given order.
func New(policy model.RetryPolicy, notifier Notifier, stages ...Stage) *Pipeline {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Pipeline{
		Stages:   stages,
		Retry:    policy,
		Notifier: notifier,
		wait:     sleepContext,
	}
}

// Run executes every stage for rc. It stops at the first stage that still
// fails once its retries are spent and marks the run failed.
func (p *Pipeline) Run(ctx context.Context, rc *RunContext) (err error) {
	start := time.Now()
	t := newTracker(rc)
	t.register()

	rc.Logger.Info("🚀 Starting pipeline", "dag_id", rc.Spec.DAGID, "stages", len(p.Stages))
	t.status(model.StatusRunning)

	defer func() {
		if err != nil {
			t.status(model.StatusFailed)
			rc.Logger.Error("❌ Pipeline failed", "duration", time.Since(start), "error", err)
			return
		}
		t.status(model.StatusCompleted)
		rc.Logger.Info("🎉 Pipeline completed", "duration", time.Since(start), "outputs", rc.Stages())
	}()

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	for _, stage := range p.Stages {
		if err := p.runStage(ctx, rc, t, stage); err != nil {
			return err
		}
	}
	return nil
}

func stageStatus(stageID string) string {
	switch stageID {
	case FetchStageID:
		return model.StatusFetching
	case TransformStageID:
		return model.StatusTransforming
	case ArchiveStageID:
		return model.StatusArchiving
	default:
		return model.StatusRunning
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
