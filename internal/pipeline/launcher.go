package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"redfin-data-pipeline/internal/model"
	"redfin-data-pipeline/internal/store"
)

// Launcher starts runs of a pipeline, either once, in the background for
// the API, or on a fixed schedule. Runs execute one at a time: runs that
// fetch in the same second share an artifact path in the data directory.
type Launcher struct {
	Pipeline *Pipeline
	Spec     model.RunSpec
	DB       *store.DB
	Logger   hclog.Logger

	// Now is the clock used by Schedule.
	Now func() time.Time

	wg    sync.WaitGroup
	runMu sync.Mutex
}

func NewLauncher(p *Pipeline, spec model.RunSpec, db *store.DB, logger hclog.Logger) *Launcher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Launcher{Pipeline: p, Spec: spec, DB: db, Logger: logger, Now: time.Now}
}

func (l *Launcher) newRun() *RunContext {
	rc := NewRunContext(l.Spec, l.Logger, l.DB)
	newTracker(rc).register()
	return rc
}

// run executes rc once no other run is in progress. A run queued behind
// another stays pending.
func (l *Launcher) run(ctx context.Context, rc *RunContext) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.Pipeline.Run(ctx, rc)
}

// RunOnce runs the pipeline and waits for it to finish.
func (l *Launcher) RunOnce(ctx context.Context) (string, error) {
	rc := l.newRun()
	return rc.RunID, l.run(ctx, rc)
}

// Launch registers a run and executes it in the background. The run
// outlives ctx's cancellation; use Wait to block until it is done.
func (l *Launcher) Launch(ctx context.Context) string {
	rc := l.newRun()
	runCtx := context.WithoutCancel(ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.run(runCtx, rc); err != nil {
			rc.Logger.Error("Background run failed", "error", err)
		}
	}()

	rc.Logger.Info("📥 Run submitted")
	return rc.RunID
}

// Wait blocks until every launched run has returned.
func (l *Launcher) Wait() {
	l.wg.Wait()
}

// Schedule runs the pipeline every interval until ctx is done. The first
// run happens at start, or immediately when start has passed. Missed
// intervals are not backfilled.
func (l *Launcher) Schedule(ctx context.Context, interval time.Duration, start time.Time) error {
	if wait := start.Sub(l.Now()); wait > 0 {
		l.Logger.Info("⏳ Waiting for start date", "start_date", start, "wait", wait)
		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		runID, err := l.RunOnce(ctx)
		if err != nil {
			l.Logger.Error("Scheduled run failed", "run_id", runID, "error", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
