package pipeline

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/exp/maps"

	"redfin-data-pipeline/internal/model"
	"redfin-data-pipeline/internal/store"
)

// RunContext is the state of one pipeline run. It is passed to every stage
// and carries the typed handoff between stages, keyed by stage ID.
type RunContext struct {
	RunID  string
	Spec   model.RunSpec
	Logger hclog.Logger
	DB     *store.DB // optional run history

	mu         sync.RWMutex
	handles    map[string]model.DatasetHandle
	records    map[string]int
	registered bool
}

// NewRunContext creates a context with a fresh run ID. db may be nil.
func NewRunContext(spec model.RunSpec, logger hclog.Logger, db *store.DB) *RunContext {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	runID := uuid.New().String()
	return &RunContext{
		RunID:   runID,
		Spec:    spec,
		Logger:  logger.With("run_id", runID),
		DB:      db,
		handles: make(map[string]model.DatasetHandle),
		records: make(map[string]int),
	}
}

// Push publishes the output of a stage.
func (rc *RunContext) Push(stageID string, h model.DatasetHandle) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.handles[stageID] = h
}

// Pull returns the output published by stageID.
func (rc *RunContext) Pull(stageID string) (model.DatasetHandle, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	h, ok := rc.handles[stageID]
	return h, ok
}

// Stages lists the stage IDs that have published output, sorted.
func (rc *RunContext) Stages() []string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	ids := maps.Keys(rc.handles)
	sort.Strings(ids)
	return ids
}

// SetRecordCount records how many rows a stage produced.
func (rc *RunContext) SetRecordCount(stageID string, n int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.records[stageID] = n
}

// RecordCount returns the count set by SetRecordCount, or 0.
func (rc *RunContext) RecordCount(stageID string) int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.records[stageID]
}
