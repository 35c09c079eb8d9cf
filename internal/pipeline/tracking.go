package pipeline

import (
	"time"

	"redfin-data-pipeline/internal/model"
)

// tracker mirrors run progress into the run history. Every method is a
// no-op without a database; persistence failures are logged and never
// fail the run.
type tracker struct {
	rc *RunContext
}

func newTracker(rc *RunContext) *tracker {
	return &tracker{rc: rc}
}

func (t *tracker) warn(op string, err error) {
	if err != nil {
		t.rc.Logger.Warn("⚠️ Failed to update run history", "op", op, "error", err)
	}
}

// register inserts the run once, so Launch can expose the ID before the
// pipeline starts.
func (t *tracker) register() {
	if t.rc.DB == nil {
		return
	}
	t.rc.mu.Lock()
	registered := t.rc.registered
	t.rc.registered = true
	t.rc.mu.Unlock()
	if registered {
		return
	}
	t.warn("save run", t.rc.DB.SaveRun(t.rc.RunID, t.rc.Spec))
}

func (t *tracker) status(status string) {
	if t.rc.DB == nil {
		return
	}
	t.warn("update status", t.rc.DB.UpdateRunStatus(t.rc.RunID, status))
}

func (t *tracker) log(stage, level, message string, details map[string]interface{}) {
	if t.rc.DB == nil {
		return
	}
	t.warn("save log", t.rc.DB.SavePipelineLog(t.rc.RunID, stage, level, message, details))
}

func (t *tracker) stageStarted(stage string, attempt int, started time.Time) {
	if t.rc.DB == nil {
		return
	}
	t.warn("save progress", t.rc.DB.SaveStageProgress(t.rc.RunID, stage, "started", attempt, &started, nil, 0))
	t.log(stage, "info", "Stage started", map[string]interface{}{"attempt": attempt})
}

func (t *tracker) stageCompleted(stage string, attempt int, started, ended time.Time, records int) {
	t.rc.Logger.Info("📊 Stage completed", "stage", stage, "attempt", attempt, "records", records, "duration", ended.Sub(started))
	if t.rc.DB == nil {
		return
	}
	t.warn("save progress", t.rc.DB.SaveStageProgress(t.rc.RunID, stage, model.StatusCompleted, attempt, &started, &ended, records))
	t.log(stage, "info", "Stage completed", map[string]interface{}{
		"attempt":     attempt,
		"records":     records,
		"duration_ms": ended.Sub(started).Milliseconds(),
	})
}

func (t *tracker) stageFailed(stage string, attempt int, started, ended time.Time, err error) {
	t.rc.Logger.Error("❌ Stage attempt failed", "stage", stage, "attempt", attempt, "error", err)
	if t.rc.DB == nil {
		return
	}
	t.warn("save progress", t.rc.DB.SaveStageProgress(t.rc.RunID, stage, model.StatusFailed, attempt, &started, &ended, 0))
	t.log(stage, "error", "Stage attempt failed", map[string]interface{}{
		"attempt": attempt,
		"error":   err.Error(),
	})
}

// failed records the error that ended the run.
func (t *tracker) failed(stage string, err error) {
	if t.rc.DB == nil || err == nil {
		return
	}
	t.warn("save error", t.rc.DB.SaveRunError(t.rc.RunID, stage, err))
}
