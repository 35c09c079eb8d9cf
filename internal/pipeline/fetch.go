package pipeline

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"redfin-data-pipeline/internal/model"
	"redfin-data-pipeline/pkg/utils"
)

// BaseNamePrefix and BaseNameLayout (DDMMYYYYHHMMSS) name each fetched artifact.
const (
	BaseNamePrefix = "redfin_data_"
	BaseNameLayout = "02012006150405"
)

// Fetcher downloads the gzip TSV feed and stores it locally as CSV.
type Fetcher struct {
	URL       string
	Artifacts *utils.OutputManager
	Client    *http.Client
	Now       func() time.Time
}

func NewFetcher(url string, artifacts *utils.OutputManager) *Fetcher {
	return &Fetcher{
		URL:       url,
		Artifacts: artifacts,
		Client:    &http.Client{Timeout: 30 * time.Minute},
		Now:       time.Now,
	}
}

func (f *Fetcher) ID() string { return FetchStageID }

// Execute fetches the feed and publishes the handle for the later stages.
func (f *Fetcher) Execute(ctx context.Context, rc *RunContext) error {
	logger := rc.Logger.Named(f.ID())
	logger.Info("➡️ Starting fetch", "url", f.URL)

	handle, rows, err := f.Fetch(ctx)
	if err != nil {
		return err
	}

	size, _ := f.Artifacts.GetFileSize(handle.LocalPath)
	logger.Info("✅ Fetched dataset", "path", handle.LocalPath, "base_name", handle.BaseName, "rows", rows, "bytes", size)

	rc.Push(f.ID(), handle)
	rc.SetRecordCount(f.ID(), rows)
	return nil
}

// Fetch downloads, decompresses and re-delimits the feed. The artifact is
// renamed into place only once completely written.
func (f *Fetcher) Fetch(ctx context.Context) (model.DatasetHandle, int, error) {
	baseName := BaseNamePrefix + f.Now().Format(BaseNameLayout)
	handle := model.DatasetHandle{
		LocalPath: f.Artifacts.ArtifactPath(baseName),
		BaseName:  baseName,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return handle, 0, &FetchError{URL: f.URL, Message: "invalid URL", Cause: err}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return handle, 0, &FetchError{URL: f.URL, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handle, 0, &FetchError{URL: f.URL, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return handle, 0, &FetchError{URL: f.URL, Message: "body is not gzip encoded", Cause: err}
	}
	defer gz.Close()

	tmp, err := f.Artifacts.CreateTempArtifact(baseName)
	if err != nil {
		return handle, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	rows, err := convertTSV(gz, tmp)
	if err != nil {
		return handle, 0, &FetchError{URL: f.URL, Message: "malformed tab-separated data", Cause: err}
	}

	if err := tmp.Close(); err != nil {
		return handle, 0, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), handle.LocalPath); err != nil {
		return handle, 0, fmt.Errorf("failed to move artifact into place: %w", err)
	}
	committed = true

	return handle, rows, nil
}

// convertTSV copies tab-separated rows from r to w as CSV and returns the
// number of data rows. Short rows are padded with empty (NA) fields; a row
// wider than the header is an error.
func convertTSV(r io.Reader, w io.Writer) (int, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	writer := csv.NewWriter(w)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, errors.New("empty dataset")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	width := len(header)
	if err := writer.Write(header); err != nil {
		return 0, err
	}

	padded := make([]string, width)
	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, err
		}
		if len(record) > width {
			line, _ := reader.FieldPos(0)
			return rows, fmt.Errorf("line %d: expected %d fields, saw %d", line, width, len(record))
		}
		if len(record) < width {
			n := copy(padded, record)
			clear(padded[n:])
			record = padded
		}
		if err := writer.Write(record); err != nil {
			return rows, err
		}
		rows++
	}

	writer.Flush()
	return rows, writer.Error()
}
