package modeler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avaldria/reportwatch/internal/pipeline"
)

type fakeViewStore struct {
	results  []pipeline.ExtractionResult
	refs     map[string]ReferenceRow
	stats    OpsStats
	statsErr error
}

func (f *fakeViewStore) ListExtractionResults(ctx context.Context) ([]pipeline.ExtractionResult, error) {
	return f.results, nil
}

func (f *fakeViewStore) ReferenceRows(ctx context.Context) (map[string]ReferenceRow, error) {
	return f.refs, nil
}

func (f *fakeViewStore) OpsStats(ctx context.Context, windowDays int) (OpsStats, error) {
	if f.statsErr != nil {
		return OpsStats{}, f.statsErr
	}
	return f.stats, nil
}

func result(docID, key string, extracted time.Time) pipeline.ExtractionResult {
	return pipeline.ExtractionResult{
		DocID:       docID,
		VersionKey:  key,
		PageCount:   2,
		ExtractedAt: extracted,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestDefaultKeyFunc(t *testing.T) {
	tests := []struct {
		docID string
		want  string
	}{
		{"ua_2024_06", "UA"},
		{"dl-summer", "DL"},
		{"aa", "AA"},
		{"", ""},
		{"_leading", "_LEADING"},
	}
	for _, tt := range tests {
		if got := DefaultKeyFunc(tt.docID); got != tt.want {
			t.Errorf("DefaultKeyFunc(%q) = %q, want %q", tt.docID, got, tt.want)
		}
	}
}

func TestBuildViewOuterJoin(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeViewStore{
		results: []pipeline.ExtractionResult{
			result("ua_2024_06", "k-1", base),
			result("zz_unknown", "k-2", base),
			result("dl-summer", "k-3", base),
		},
		refs: map[string]ReferenceRow{
			"UA": {Key: "UA", Name: "United", Category: "major", Region: "NA"},
			"DL": {Key: "DL", Name: "Delta", Category: "major", Region: "NA"},
		},
		stats: OpsStats{
			AvgDelayMinutes:  floatPtr(12.5),
			CancellationRate: floatPtr(0.02),
			SampleCount:      1000,
		},
	}

	rows, err := New(store, nil, 30).BuildView(context.Background())
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	// Outer join: every result yields exactly one row, matched or not.
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	byDoc := make(map[string]ViewRow)
	for _, r := range rows {
		byDoc[r.DocID] = r
	}

	matched := byDoc["ua_2024_06"]
	if matched.RefName == nil || *matched.RefName != "United" {
		t.Errorf("matched row missing reference columns: %+v", matched)
	}

	unmatched := byDoc["zz_unknown"]
	if unmatched.RefName != nil || unmatched.RefCategory != nil || unmatched.RefRegion != nil {
		t.Errorf("unmatched row must have null reference columns: %+v", unmatched)
	}
	if unmatched.RefKey != "ZZ" {
		t.Errorf("unmatched row keeps its derived key, got %q", unmatched.RefKey)
	}

	// Stats are attached to every row, matched or not.
	for _, r := range rows {
		if r.AvgDelayMinutes == nil || *r.AvgDelayMinutes != 12.5 {
			t.Errorf("row %s missing stats: %+v", r.DocID, r)
		}
		if r.StatsSampleCount != 1000 {
			t.Errorf("row %s sample count = %d", r.DocID, r.StatsSampleCount)
		}
	}
}

func TestBuildViewEmptyStatsWindow(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeViewStore{
		results: []pipeline.ExtractionResult{result("ua_1", "k-1", base)},
		refs:    map[string]ReferenceRow{},
		// No data in the lookback window: nil stats, zero samples.
		stats: OpsStats{},
	}

	rows, err := New(store, nil, 30).BuildView(context.Background())
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("empty stats must not drop rows, got %d", len(rows))
	}
	if rows[0].AvgDelayMinutes != nil || rows[0].CancellationRate != nil {
		t.Errorf("expected null stats columns, got %+v", rows[0])
	}
}

func TestBuildViewOrdering(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeViewStore{
		results: []pipeline.ExtractionResult{
			result("b_doc", "k-3", base),
			result("a_doc", "k-2", base.Add(time.Hour)),
			result("a_doc", "k-1", base),
		},
		refs: map[string]ReferenceRow{},
	}

	rows, err := New(store, nil, 30).BuildView(context.Background())
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	got := []string{rows[0].VersionKey, rows[1].VersionKey, rows[2].VersionKey}
	want := []string{"k-1", "k-2", "k-3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ordering = %v, want %v", got, want)
		}
	}
}

func TestBuildViewCustomKeyFunc(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeViewStore{
		results: []pipeline.ExtractionResult{result("whatever", "k-1", base)},
		refs:    map[string]ReferenceRow{"FIXED": {Key: "FIXED", Name: "n"}},
	}
	keyFn := func(docID string) string { return "FIXED" }

	rows, err := New(store, keyFn, 30).BuildView(context.Background())
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	if rows[0].RefName == nil {
		t.Error("custom key func should have matched the reference row")
	}
}

func TestBuildViewStoreFailure(t *testing.T) {
	store := &fakeViewStore{statsErr: errors.New("relation missing")}
	if _, err := New(store, nil, 30).BuildView(context.Background()); err == nil {
		t.Fatal("expected error when a relation cannot be loaded")
	}
}
