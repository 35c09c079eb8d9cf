package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// OutputManager owns the local directory where fetched artifacts live
// between the fetch and archive stages.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// ArtifactPath returns <dir>/<baseName>.csv
func (om *OutputManager) ArtifactPath(baseName string) string {
	return filepath.Join(om.BaseOutputDir, filepath.Base(baseName)+".csv")
}

// CreateTempArtifact creates a hidden temp file next to the final artifact so
// it can be renamed into place once fully written.
func (om *OutputManager) CreateTempArtifact(baseName string) (*os.File, error) {
	if err := om.EnsureOutputDirExists(); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(om.BaseOutputDir, "."+filepath.Base(baseName)+"-*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp artifact: %w", err)
	}
	return f, nil
}

// GetFileSize returns the size of a file in bytes
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	if err := os.MkdirAll(om.BaseOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
