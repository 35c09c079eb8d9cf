package pipeline

import (
	"context"
	"errors"
	"os"

	"redfin-data-pipeline/internal/blob"
)

// Archiver moves the raw artifact into the raw store and removes the local copy.
type Archiver struct {
	Store       blob.Store
	Destination blob.Location
}

func NewArchiver(store blob.Store, destination blob.Location) *Archiver {
	return &Archiver{Store: store, Destination: destination}
}

func (a *Archiver) ID() string { return ArchiveStageID }

func (a *Archiver) Execute(ctx context.Context, rc *RunContext) error {
	logger := rc.Logger.Named(a.ID())

	handle, ok := rc.Pull(FetchStageID)
	if !ok || handle.LocalPath == "" {
		return &TransferError{Op: "move", Destination: a.Destination.String(), Cause: ErrNoUpstreamData}
	}

	logger.Info("➡️ Archiving raw dataset", "path", handle.LocalPath, "destination", a.Destination.String())
	key, err := blob.PutFile(ctx, a.Store, handle.LocalPath, a.Destination)
	if err != nil {
		return &TransferError{Op: "upload", Path: handle.LocalPath, Destination: a.Destination.String(), Cause: err}
	}
	logger.Info("✅ Uploaded raw dataset", "key", key)

	if err := os.Remove(handle.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &TransferError{Op: "remove", Path: handle.LocalPath, Cause: err}
	}
	logger.Info("🧹 Removed local copy", "path", handle.LocalPath)

	rc.SetRecordCount(a.ID(), rc.RecordCount(FetchStageID))
	return nil
}
