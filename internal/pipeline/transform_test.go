package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redfin-data-pipeline/internal/blob"
	"redfin-data-pipeline/internal/model"
)

func TestTransformRecords_SanFrancisco(t *testing.T) {
	records, stats, err := TransformRecords(bytes.NewReader(sampleCSV(t, sampleRow(nil))))
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "San Francisco CA", rec.City)
	assert.Equal(t, 2024, rec.PeriodBeginYear)
	assert.Equal(t, 2024, rec.PeriodEndYear)
	assert.Equal(t, "Jan", rec.PeriodBeginMonthName)
	assert.Equal(t, "Jan", rec.PeriodEndMonthName)
	assert.Equal(t, "1250000", rec.MedianSalePrice)
	assert.Equal(t, "2024-02-18 14:23:54", rec.LastUpdated)

	row := rec.Row()
	assert.Len(t, row, 28)
	assert.Equal(t, "2024-01-01", row[0])
	assert.Equal(t, "2024-01-31", row[1])

	assert.Equal(t, TransformStats{RowsRead: 1, RowsWritten: 1, Columns: 28}, stats)
}

func TestTransformRecords_DropsRowsWithMissingValues(t *testing.T) {
	input := sampleCSV(t,
		sampleRow(nil),
		sampleRow(map[string]string{"median_sale_price": ""}),
		sampleRow(map[string]string{"median_dom": "NA"}),
		sampleRow(map[string]string{"city": "", "period_begin": "2024-02-01", "period_end": "2024-02-29"}),
		sampleRow(map[string]string{"price_drops": "", "pending_sales": "null", "period_begin": "2024-03-01", "period_end": "2024-03-31"}),
	)

	records, stats, err := TransformRecords(bytes.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2, "only rows complete in every retained column survive")

	assert.Equal(t, "Jan", records[0].PeriodBeginMonthName)
	assert.Equal(t, "Mar", records[1].PeriodBeginMonthName, "nulls in dropped columns do not matter")
	assert.Equal(t, 5, stats.RowsRead)
	assert.Equal(t, 3, stats.RowsDropped)
	assert.Equal(t, 2, stats.RowsWritten)

	for _, rec := range records {
		for i, v := range rec.Row() {
			assert.NotEmpty(t, v, "column %s", model.Header()[i])
		}
	}
}

func TestTransformRecords_StripsCommasFromCityOnly(t *testing.T) {
	input := sampleCSV(t, sampleRow(map[string]string{"city": "Washington, D.C., DC", "state": "District of Columbia, US"}))

	records, _, err := TransformRecords(bytes.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Washington D.C. DC", records[0].City)
	assert.Equal(t, "District of Columbia, US", records[0].State)
}

func TestTransformRecords_DerivedColumns(t *testing.T) {
	tests := []struct {
		begin, end           string
		beginYear, endYear   int
		beginMonth, endMonth string
	}{
		{"2023-12-01", "2023-12-31", 2023, 2023, "Dec", "Dec"},
		{"2023-12-04", "2024-02-25", 2023, 2024, "Dec", "Feb"},
		{"2012-02-01", "2012-04-30", 2012, 2012, "Feb", "Apr"},
		{"2024-06-01 00:00:00", "2024-06-30T00:00:00", 2024, 2024, "Jun", "Jun"},
	}

	for _, tt := range tests {
		t.Run(tt.begin, func(t *testing.T) {
			input := sampleCSV(t, sampleRow(map[string]string{"period_begin": tt.begin, "period_end": tt.end}))
			records, _, err := TransformRecords(bytes.NewReader(input))
			require.NoError(t, err)
			require.Len(t, records, 1)

			rec := records[0]
			assert.Equal(t, tt.beginYear, rec.PeriodBeginYear)
			assert.Equal(t, tt.endYear, rec.PeriodEndYear)
			assert.Equal(t, tt.beginMonth, rec.PeriodBeginMonthName)
			assert.Equal(t, tt.endMonth, rec.PeriodEndMonthName)
			assert.Equal(t, tt.begin[:10], rec.Row()[0])
			assert.Equal(t, tt.end[:10], rec.Row()[1])
		})
	}
}

func TestTransformRecords_MissingColumns(t *testing.T) {
	var header []string
	for _, col := range sourceColumns {
		if col != "median_dom" && col != "inventory" {
			header = append(header, col)
		}
	}
	input := encodeRows(t, ',', header)

	_, _, err := TransformRecords(bytes.NewReader(input))
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, []string{"inventory", "median_dom"}, schemaErr.Missing)
}

func TestTransformRecords_EmptyInput(t *testing.T) {
	_, _, err := TransformRecords(strings.NewReader(""))
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Len(t, schemaErr.Missing, 24)
}

func TestTransformRecords_UnparseableDate(t *testing.T) {
	input := sampleCSV(t,
		sampleRow(nil),
		sampleRow(map[string]string{"period_end": "31/01/2024"}),
	)

	_, _, err := TransformRecords(bytes.NewReader(input))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr), "got %v", err)
	assert.Equal(t, "period_end", parseErr.Column)
	assert.Equal(t, "31/01/2024", parseErr.Value)
	assert.Equal(t, 3, parseErr.Line)
}

func TestTransformRecords_NormalizesHeader(t *testing.T) {
	header := make([]string, len(sourceColumns))
	for i, col := range sourceColumns {
		header[i] = strings.ToUpper(col)
	}
	header[0] = "\ufeff" + header[0]
	input := encodeRows(t, ',', header, sampleRow(nil))

	records, _, err := TransformRecords(bytes.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "San Francisco CA", records[0].City)
}

func TestTransformRecords_HeaderOnly(t *testing.T) {
	records, stats, err := TransformRecords(bytes.NewReader(sampleCSV(t)))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, stats.RowsRead)

	var out bytes.Buffer
	require.NoError(t, WriteRecords(&out, records))
	assert.Equal(t, strings.Join(model.Header(), ",")+"\n", out.String())
}

func TestWriteRecords_OutputProperties(t *testing.T) {
	input := sampleCSV(t,
		sampleRow(nil),
		sampleRow(map[string]string{"city": "Portland, OR", "period_begin": "2023-11-01", "period_end": "2023-11-30"}),
		sampleRow(map[string]string{"homes_sold": "N/A"}),
		sampleRow(map[string]string{"city": "Boise City, ID", "period_begin": "2022-07-01", "period_end": "2022-09-30"}),
	)

	records, _, err := TransformRecords(bytes.NewReader(input))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, WriteRecords(&out, records))
	rows := readCSV(t, out.Bytes())

	require.Len(t, rows, 4)
	assert.Equal(t, model.Header(), rows[0])
	for _, row := range rows[1:] {
		require.Len(t, row, 28)
		assert.NotContains(t, row[7], ",")
		assert.Equal(t, row[0][:4], row[24])
		assert.Equal(t, row[1][:4], row[25])

		begin, err := strconv.Atoi(row[0][5:7])
		require.NoError(t, err)
		end, err := strconv.Atoi(row[1][5:7])
		require.NoError(t, err)
		assert.Equal(t, monthNames[begin-1], row[26])
		assert.Equal(t, monthNames[end-1], row[27])
	}
}

func TestWriteRecords_Deterministic(t *testing.T) {
	input := sampleCSV(t,
		sampleRow(nil),
		sampleRow(map[string]string{"city": "Austin, TX", "median_sale_price": "550000"}),
	)

	render := func() []byte {
		records, _, err := TransformRecords(bytes.NewReader(input))
		require.NoError(t, err)
		var out bytes.Buffer
		require.NoError(t, WriteRecords(&out, records))
		return out.Bytes()
	}

	assert.Equal(t, render(), render())
}

func writeArtifact(t *testing.T, dir, baseName string, data []byte) model.DatasetHandle {
	t.Helper()
	path := filepath.Join(dir, baseName+".csv")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return model.DatasetHandle{LocalPath: path, BaseName: baseName}
}

func TestTransformer_Execute(t *testing.T) {
	rc := newTestRunContext()
	handle := writeArtifact(t, t.TempDir(), "redfin_data_19082024070509", sampleCSV(t,
		sampleRow(nil),
		sampleRow(map[string]string{"median_sale_price": ""}),
	))
	rc.Push(FetchStageID, handle)

	store := newMemStore()
	dest := blob.Location{Scheme: blob.SchemeS3, Bucket: "redfin-transform-ali-yml"}
	tr := NewTransformer(store, dest, false)

	require.NoError(t, tr.Execute(context.Background(), rc))

	data, ok := store.get("redfin-transform-ali-yml/redfin_data_19082024070509.csv")
	require.True(t, ok)
	rows := readCSV(t, data)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 28)
	assert.Equal(t, "San Francisco CA", rows[1][7])
	assert.Equal(t, 1, rc.RecordCount(TransformStageID))

	_, err := os.Stat(handle.LocalPath)
	assert.NoError(t, err, "the local artifact is left for the archive stage")
}

func TestTransformer_ExecuteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	handle := writeArtifact(t, dir, "redfin_data_01012024000000", sampleCSV(t, sampleRow(nil)))
	dest := blob.Location{Scheme: blob.SchemeFile, Bucket: filepath.Join(dir, "transformed"), Prefix: "weekly"}
	tr := NewTransformer(blob.NewFSStore(), dest, false)

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		rc := newTestRunContext()
		rc.Push(FetchStageID, handle)
		require.NoError(t, tr.Execute(context.Background(), rc))

		data, err := os.ReadFile(filepath.Join(dir, "transformed", "weekly", "redfin_data_01012024000000.csv"))
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestTransformer_NoUpstream(t *testing.T) {
	store := newMemStore()
	tr := NewTransformer(store, blob.Location{Scheme: blob.SchemeS3, Bucket: "b"}, false)

	require.NoError(t, tr.Execute(context.Background(), newTestRunContext()))
	assert.Equal(t, 0, store.putCount(), "nothing is uploaded without upstream data")

	tr.Strict = true
	err := tr.Execute(context.Background(), newTestRunContext())
	assert.ErrorIs(t, err, ErrNoUpstreamData)
	assert.Equal(t, 0, store.putCount())
}

func TestTransformer_UploadFailure(t *testing.T) {
	rc := newTestRunContext()
	rc.Push(FetchStageID, writeArtifact(t, t.TempDir(), "redfin_data_1", sampleCSV(t, sampleRow(nil))))

	store := newMemStore()
	store.err = errors.New("access denied")
	tr := NewTransformer(store, blob.Location{Scheme: blob.SchemeS3, Bucket: "b"}, false)

	err := tr.Execute(context.Background(), rc)
	var transferErr *TransferError
	require.True(t, errors.As(err, &transferErr), "got %v", err)
	assert.Equal(t, "upload", transferErr.Op)
	assert.Contains(t, err.Error(), "access denied")
}

func TestTransformer_SchemaErrorFailsStage(t *testing.T) {
	rc := newTestRunContext()
	rc.Push(FetchStageID, writeArtifact(t, t.TempDir(), "redfin_data_1", []byte("city,state\nX,Y\n")))

	store := newMemStore()
	err := NewTransformer(store, blob.Location{Scheme: blob.SchemeS3, Bucket: "b"}, false).Execute(context.Background(), rc)

	var schemaErr *SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, 0, store.putCount())
}

func TestMonthName(t *testing.T) {
	assert.Equal(t, "Jan", MonthName(1))
	assert.Equal(t, "Sep", MonthName(9))
	assert.Equal(t, "Dec", MonthName(12))
}
