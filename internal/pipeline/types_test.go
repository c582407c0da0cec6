package pipeline

import (
	"testing"
	"time"
)

func TestVersionKey(t *testing.T) {
	t1 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		pathA     string
		timeA     time.Time
		pathB     string
		timeB     time.Time
		wantEqual bool
	}{
		{"same path and mtime", "reports/a.pdf", t1, "reports/a.pdf", t1, true},
		{"same path, new mtime", "reports/a.pdf", t1, "reports/a.pdf", t2, false},
		{"different path, same mtime", "reports/a.pdf", t1, "reports/b.pdf", t1, false},
		{"mtime in different zone", "reports/a.pdf", t1, "reports/a.pdf", t1.In(time.FixedZone("X", 3600)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := VersionKey(tt.pathA, tt.timeA)
			b := VersionKey(tt.pathB, tt.timeB)
			if (a == b) != tt.wantEqual {
				t.Errorf("VersionKey equality = %v, want %v (a=%s b=%s)", a == b, tt.wantEqual, a, b)
			}
		})
	}
}

func TestDocID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.pdf", "a"},
		{"reports/2024/ua_2024_06.pdf", "ua_2024_06"},
		{"no-extension", "no-extension"},
		{"dir/archive.tar.gz", "archive.tar"},
	}
	for _, tt := range tests {
		if got := DocID(tt.path); got != tt.want {
			t.Errorf("DocID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSummaryAdd(t *testing.T) {
	s := Summary{Processed: 1, Skipped: 2}
	s.Add(Summary{Processed: 3, Errors: []Diagnostic{{Kind: DiagExtractionFailed}}})
	if s.Processed != 4 || s.Skipped != 2 || len(s.Errors) != 1 {
		t.Errorf("unexpected summary after Add: %+v", s)
	}
}
