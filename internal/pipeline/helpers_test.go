package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"redfin-data-pipeline/internal/logging"
	"redfin-data-pipeline/internal/model"
)

// sourceColumns mirrors the feed layout: the retained columns interleaved
// with columns the transform drops.
var sourceColumns = []string{
	"period_begin", "period_end", "period_duration", "region_type", "region_type_id",
	"table_id", "is_seasonally_adjusted", "region", "city", "state", "state_code",
	"property_type", "property_type_id", "median_sale_price", "median_sale_price_mom",
	"median_list_price", "median_ppsf", "median_list_ppsf", "homes_sold", "pending_sales",
	"inventory", "months_of_supply", "median_dom", "avg_sale_to_list", "sold_above_list",
	"price_drops", "parent_metro_region", "parent_metro_region_metro_code", "last_updated",
}

var sampleValues = map[string]string{
	"period_begin":                   "2024-01-01",
	"period_end":                     "2024-01-31",
	"period_duration":                "30",
	"region_type":                    "place",
	"region_type_id":                 "6",
	"table_id":                       "17151",
	"is_seasonally_adjusted":         "f",
	"region":                         "San Francisco, CA",
	"city":                           "San Francisco, CA",
	"state":                          "California",
	"state_code":                     "CA",
	"property_type":                  "All Residential",
	"property_type_id":               "-1",
	"median_sale_price":              "1250000",
	"median_sale_price_mom":          "0.012",
	"median_list_price":              "1195000",
	"median_ppsf":                    "1003.5",
	"median_list_ppsf":               "980.2",
	"homes_sold":                     "310",
	"pending_sales":                  "",
	"inventory":                      "812",
	"months_of_supply":               "2.6",
	"median_dom":                     "28",
	"avg_sale_to_list":               "1.05",
	"sold_above_list":                "0.61",
	"price_drops":                    "",
	"parent_metro_region":            "San Francisco, CA",
	"parent_metro_region_metro_code": "41884",
	"last_updated":                   "2024-02-18 14:23:54",
}

// sampleRow returns a feed row with overrides applied.
func sampleRow(overrides map[string]string) []string {
	row := make([]string, len(sourceColumns))
	for i, col := range sourceColumns {
		row[i] = sampleValues[col]
		if v, ok := overrides[col]; ok {
			row[i] = v
		}
	}
	return row
}

func encodeRows(t *testing.T, comma rune, header []string, rows ...[]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma
	require.NoError(t, w.Write(header))
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return buf.Bytes()
}

func sampleCSV(t *testing.T, rows ...[]string) []byte {
	return encodeRows(t, ',', sourceColumns, rows...)
}

func gzipTSV(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(encodeRows(t, '\t', sourceColumns, rows...))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func newTestRunContext() *RunContext {
	return NewRunContext(model.RunSpec{DAGID: "redfin_analytics_dag"}, logging.Discard(), nil)
}

// memStore is an in-memory blob.Store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	puts    int
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(ctx context.Context, bucket, key string, body io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.err != nil {
		return s.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[bucket+"/"+key] = data
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}

func (s *memStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// funcStage adapts a function to Stage.
type funcStage struct {
	id string
	fn func(ctx context.Context, rc *RunContext) error
}

func (s funcStage) ID() string { return s.id }

func (s funcStage) Execute(ctx context.Context, rc *RunContext) error { return s.fn(ctx, rc) }

// flakyStage fails its first failures attempts.
func flakyStage(id string, failures int, calls *int) funcStage {
	return funcStage{id: id, fn: func(context.Context, *RunContext) error {
		*calls++
		if *calls <= failures {
			return errors.New("feed temporarily unavailable")
		}
		return nil
	}}
}

// recordingNotifier counts notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	retries  []int
	failures []string
}

func (n *recordingNotifier) NotifyRetry(_ *RunContext, _ string, attempt int, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retries = append(n.retries, attempt)
}

func (n *recordingNotifier) NotifyFailure(_ *RunContext, stage string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, stage)
}
