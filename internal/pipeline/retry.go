package pipeline

import (
	"context"
	"fmt"
	"time"

	"redfin-data-pipeline/internal/model"
)

// runStage executes one stage, retrying failed attempts with a fixed delay
// until the retry policy is spent.
func (p *Pipeline) runStage(ctx context.Context, rc *RunContext, t *tracker, stage Stage) error {
	id := stage.ID()
	maxAttempts := p.Retry.MaxAttempts()
	t.status(stageStatus(id))

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attempts = attempt
		started := time.Now()
		t.stageStarted(id, attempt, started)
		rc.Logger.Debug("Executing stage", "stage", id, "attempt", attempt, "max_attempts", maxAttempts)

		err := stage.Execute(ctx, rc)
		ended := time.Now()
		if err == nil {
			records := rc.RecordCount(id)
			t.stageCompleted(id, attempt, started, ended, records)
			return nil
		}

		lastErr = err
		t.stageFailed(id, attempt, started, ended, err)

		if attempt == maxAttempts {
			break
		}

		rc.Logger.Warn("🔄 Stage failed, scheduling retry",
			"stage", id, "attempt", attempt, "max_attempts", maxAttempts, "retry_in", p.Retry.Delay, "error", err)
		t.status(model.StatusRetrying)
		p.Notifier.NotifyRetry(rc, id, attempt, err)

		if werr := p.wait(ctx, p.Retry.Delay); werr != nil {
			lastErr = fmt.Errorf("%w (while waiting to retry after: %v)", werr, err)
			break
		}
		t.status(stageStatus(id))
	}

	t.failed(id, lastErr)
	p.Notifier.NotifyFailure(rc, id, lastErr)
	return fmt.Errorf("stage %s failed after %d attempts: %w", id, attempts, lastErr)
}
