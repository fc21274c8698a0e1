package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/monza-lab/auction-ingest/internal/model"
)

func TestCSVSinkHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	rec := testListing(model.StatusSold)
	rec.FinalPrice = intp(245000)

	s, err := NewCSVSink(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(rec, testMeta(at)); err != nil {
		t.Fatal(err)
	}

	// A second sink on the same file must not repeat the header.
	s2, err := NewCSVSink(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s2.Append(rec, testMeta(at)); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 records", len(rows))
	}
	if rows[0][0] == rows[1][0] {
		t.Error("second row looks like a repeated header")
	}
	if len(rows[1]) != len(rows[0]) {
		t.Errorf("record width %d != header width %d", len(rows[1]), len(rows[0]))
	}
}
