package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iancoleman/strcase"

	"redfin-data-pipeline/internal/blob"
	"redfin-data-pipeline/internal/model"
	"redfin-data-pipeline/pkg/utils"
)

// TransformStats summarizes one transform.
type TransformStats struct {
	RowsRead    int `json:"rows_read"`
	RowsDropped int `json:"rows_dropped"`
	RowsWritten int `json:"rows_written"`
	Columns     int `json:"columns"`
}

// Transformer cleans the fetched dataset and uploads it to the transformed store.
type Transformer struct {
	Store       blob.Store
	Destination blob.Location
	// Strict turns a missing upstream handle into ErrNoUpstreamData
	// instead of a logged no-op.
	Strict bool
}

func NewTransformer(store blob.Store, destination blob.Location, strict bool) *Transformer {
	return &Transformer{Store: store, Destination: destination, Strict: strict}
}

func (t *Transformer) ID() string { return TransformStageID }

func (t *Transformer) Execute(ctx context.Context, rc *RunContext) error {
	logger := rc.Logger.Named(t.ID())

	handle, ok := rc.Pull(FetchStageID)
	logger.Debug("Pulled upstream handle", "found", ok, "path", handle.LocalPath, "base_name", handle.BaseName)
	if !ok || handle.LocalPath == "" {
		if t.Strict {
			return fmt.Errorf("transform: %w from stage %s", ErrNoUpstreamData, FetchStageID)
		}
		logger.Warn("No data found for stage, skipping transform", "stage", FetchStageID)
		return nil
	}

	file, err := os.Open(handle.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open dataset %s: %w", handle.LocalPath, err)
	}
	defer file.Close()

	records, stats, err := TransformRecords(file)
	if err != nil {
		return err
	}
	logger.Info("🔄 Transformed dataset", "rows", stats.RowsWritten, "cols", stats.Columns, "dropped", stats.RowsDropped)

	var buf bytes.Buffer
	if err := WriteRecords(&buf, records); err != nil {
		return fmt.Errorf("failed to serialize transformed dataset: %w", err)
	}

	key := t.Destination.Key(handle.BaseName + ".csv")
	if err := t.Store.Put(ctx, t.Destination.Bucket, key, bytes.NewReader(buf.Bytes())); err != nil {
		return &TransferError{Op: "upload", Path: key, Destination: t.Destination.String(), Cause: err}
	}
	logger.Info("✅ Uploaded transformed dataset", "destination", t.Destination.String(), "key", key, "bytes", buf.Len())

	rc.SetRecordCount(t.ID(), stats.RowsWritten)
	return nil
}

// TransformRecords reads a CSV dataset and returns the cleaned records in
// input order. Rows with a missing value in any retained column are dropped;
// an unparseable period date fails the whole transform.
func TransformRecords(r io.Reader) ([]model.CleanRecord, TransformStats, error) {
	stats := TransformStats{Columns: len(model.RetainedColumns) + len(model.DerivedColumns)}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, &SchemaError{Missing: model.RetainedColumns[:]}
	}
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read dataset header: %w", err)
	}

	idx, err := resolveSchema(header)
	if err != nil {
		return nil, stats, err
	}

	records := []model.CleanRecord{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read dataset: %w", err)
		}
		stats.RowsRead++
		line, _ := reader.FieldPos(0)

		values, ok := project(row, idx)
		if !ok {
			stats.RowsDropped++
			continue
		}

		rec, err := buildRecord(values, line)
		if err != nil {
			return nil, stats, err
		}
		records = append(records, rec)
	}

	stats.RowsWritten = len(records)
	return records, stats, nil
}

// WriteRecords serializes records as CSV with a header row.
func WriteRecords(w io.Writer, records []model.CleanRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(model.Header()); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(rec.Row()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// normalizeHeader maps a source header cell to its snake_case column name,
// so PERIOD_BEGIN and period_begin resolve to the same column.
func normalizeHeader(h string) string {
	return strcase.ToSnake(utils.CleanHeader(h))
}

// resolveSchema returns, for each retained column, its position in header.
func resolveSchema(header []string) ([len(model.RetainedColumns)]int, error) {
	var idx [len(model.RetainedColumns)]int

	positions := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	var missing []string
	for i, col := range model.RetainedColumns {
		pos, ok := positions[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		idx[i] = pos
	}
	if len(missing) > 0 {
		return idx, &SchemaError{Missing: missing}
	}
	return idx, nil
}

// project copies the retained cells of row, stripping commas from city.
// It reports false when any retained cell is missing.
func project(row []string, idx [len(model.RetainedColumns)]int) ([len(model.RetainedColumns)]string, bool) {
	var values [len(model.RetainedColumns)]string
	for i, pos := range idx {
		v := row[pos]
		if utils.IsNA(v) {
			return values, false
		}
		if i == cityColumn {
			v = strings.ReplaceAll(v, ",", "")
		}
		values[i] = v
	}
	return values, true
}
