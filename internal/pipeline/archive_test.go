package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redfin-data-pipeline/internal/blob"
)

func TestArchiver_Execute(t *testing.T) {
	work := t.TempDir()
	raw := t.TempDir()
	data := sampleCSV(t, sampleRow(nil))
	handle := writeArtifact(t, work, "redfin_data_19082024070509", data)

	rc := newTestRunContext()
	rc.Push(FetchStageID, handle)
	rc.SetRecordCount(FetchStageID, 1)

	dest := blob.Location{Scheme: blob.SchemeFile, Bucket: raw, Prefix: "redfin"}
	require.NoError(t, NewArchiver(blob.NewFSStore(), dest).Execute(context.Background(), rc))

	archived, err := os.ReadFile(filepath.Join(raw, "redfin", "redfin_data_19082024070509.csv"))
	require.NoError(t, err)
	assert.Equal(t, data, archived, "the raw artifact is archived as-is")

	assert.NoFileExists(t, handle.LocalPath)
	assert.Equal(t, 1, rc.RecordCount(ArchiveStageID))
}

func TestArchiver_NoUpstream(t *testing.T) {
	store := newMemStore()
	err := NewArchiver(store, blob.Location{Scheme: blob.SchemeS3, Bucket: "raw"}).Execute(context.Background(), newTestRunContext())

	var transferErr *TransferError
	require.True(t, errors.As(err, &transferErr), "got %v", err)
	assert.ErrorIs(t, err, ErrNoUpstreamData)
	assert.Equal(t, 0, store.putCount())
}

func TestArchiver_UploadFailureKeepsLocalCopy(t *testing.T) {
	handle := writeArtifact(t, t.TempDir(), "redfin_data_1", sampleCSV(t, sampleRow(nil)))
	rc := newTestRunContext()
	rc.Push(FetchStageID, handle)

	store := newMemStore()
	store.err = errors.New("bucket does not exist")
	err := NewArchiver(store, blob.Location{Scheme: blob.SchemeS3, Bucket: "raw"}).Execute(context.Background(), rc)

	var transferErr *TransferError
	require.True(t, errors.As(err, &transferErr))
	assert.Equal(t, "upload", transferErr.Op)
	assert.Equal(t, "s3://raw", transferErr.Destination)
	assert.FileExists(t, handle.LocalPath)
}

func TestArchiver_MissingLocalFile(t *testing.T) {
	rc := newTestRunContext()
	rc.Push(FetchStageID, writeArtifact(t, t.TempDir(), "redfin_data_1", nil))
	handle, _ := rc.Pull(FetchStageID)
	require.NoError(t, os.Remove(handle.LocalPath))

	err := NewArchiver(newMemStore(), blob.Location{Scheme: blob.SchemeS3, Bucket: "raw"}).Execute(context.Background(), rc)

	var transferErr *TransferError
	assert.True(t, errors.As(err, &transferErr))
}
