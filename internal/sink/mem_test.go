package sink

import (
	"context"
	"testing"
	"time"

	"github.com/monza-lab/auction-ingest/internal/model"
)

func intp(v int) *int { return &v }

func testMeta(at time.Time) model.ScrapeMeta {
	return model.ScrapeMeta{RunID: "run-1", StartedAt: at}
}

func testListing(status model.Status) *model.CanonicalListing {
	return &model.CanonicalListing{
		Source:   "mock",
		SourceID: "mock-1",
		Title:    "2019 Ferrari 488 GTB",
		Year:     2019,
		Make:     "Ferrari",
		Model:    "488",
		Status:   status,
	}
}

func TestUpsertIdempotent(t *testing.T) {
	t.Parallel()

	w := NewMemWriter()
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	rec := testListing(model.StatusActive)
	rec.CurrentBid = intp(100000)

	res1, err := w.UpsertAll(ctx, rec, testMeta(at))
	if err != nil {
		t.Fatal(err)
	}
	res2, err := w.UpsertAll(ctx, rec, testMeta(at))
	if err != nil {
		t.Fatal(err)
	}
	if res1.ID != res2.ID {
		t.Errorf("ids diverged: %d vs %d", res1.ID, res2.ID)
	}
	if w.Count() != 1 {
		t.Errorf("Count = %d, want 1", w.Count())
	}
}

func TestTerminalStatusGuard(t *testing.T) {
	t.Parallel()

	w := NewMemWriter()
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	sold := testListing(model.StatusSold)
	sold.FinalPrice = intp(245000)
	if _, err := w.UpsertAll(ctx, sold, testMeta(at)); err != nil {
		t.Fatal(err)
	}

	// A stale active observation must not revert the concluded status.
	stale := testListing(model.StatusActive)
	res, err := w.UpsertAll(ctx, stale, testMeta(at.Add(time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	if !res.SkippedTerminal {
		t.Error("SkippedTerminal not set for stale active write")
	}
	if res.Wrote {
		t.Error("Wrote set for a guard skip")
	}
	got := w.Get("mock", "mock-1")
	if got.Status != model.StatusSold {
		t.Errorf("Status = %q, want sold preserved", got.Status)
	}
	if got.FinalPrice == nil || *got.FinalPrice != 245000 {
		t.Errorf("FinalPrice = %v, want 245000 preserved", got.FinalPrice)
	}

	// Terminal-to-terminal updates still apply.
	delisted := testListing(model.StatusDelisted)
	if _, err := w.UpsertAll(ctx, delisted, testMeta(at.Add(2*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if got := w.Get("mock", "mock-1"); got.Status != model.StatusDelisted {
		t.Errorf("Status = %q, want delisted", got.Status)
	}
}

func TestFinalPricePreservedOnUpdate(t *testing.T) {
	t.Parallel()

	w := NewMemWriter()
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	saleDate := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	sold := testListing(model.StatusSold)
	sold.FinalPrice = intp(245000)
	sold.SaleDate = &saleDate
	if _, err := w.UpsertAll(ctx, sold, testMeta(at)); err != nil {
		t.Fatal(err)
	}

	// A later observation without pricing keeps the known values.
	bare := testListing(model.StatusSold)
	if _, err := w.UpsertAll(ctx, bare, testMeta(at.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	got := w.Get("mock", "mock-1")
	if got.FinalPrice == nil || *got.FinalPrice != 245000 {
		t.Errorf("FinalPrice = %v, want preserved", got.FinalPrice)
	}
	if got.SaleDate == nil || !got.SaleDate.Equal(saleDate) {
		t.Errorf("SaleDate = %v, want preserved", got.SaleDate)
	}
}

func TestPhotoDedupeAcrossWrites(t *testing.T) {
	t.Parallel()

	w := NewMemWriter()
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	rec := testListing(model.StatusActive)
	rec.Photos = []string{"https://img/1.jpg", "https://img/2.jpg"}
	if _, err := w.UpsertAll(ctx, rec, testMeta(at)); err != nil {
		t.Fatal(err)
	}

	rec.Photos = []string{"https://img/2.jpg", "https://img/3.jpg"}
	if _, err := w.UpsertAll(ctx, rec, testMeta(at.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	got := w.Photos("mock", "mock-1")
	want := []string{"https://img/1.jpg", "https://img/2.jpg", "https://img/3.jpg"}
	if len(got) != len(want) {
		t.Fatalf("Photos = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Photos[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSnapshotHourBucket(t *testing.T) {
	t.Parallel()

	w := NewMemWriter()
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 10, 5, 0, 0, time.UTC)

	rec := testListing(model.StatusActive)
	rec.CurrentBid = intp(100000)

	// Two writes in the same hour produce one snapshot.
	if _, err := w.UpsertAll(ctx, rec, testMeta(at)); err != nil {
		t.Fatal(err)
	}
	if _, err := w.UpsertAll(ctx, rec, testMeta(at.Add(20*time.Minute))); err != nil {
		t.Fatal(err)
	}
	if got := w.SnapshotCount("mock", "mock-1"); got != 1 {
		t.Errorf("SnapshotCount = %d, want 1 within an hour", got)
	}

	// A write in the next hour adds a second one.
	if _, err := w.UpsertAll(ctx, rec, testMeta(at.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if got := w.SnapshotCount("mock", "mock-1"); got != 2 {
		t.Errorf("SnapshotCount = %d, want 2 across hours", got)
	}
}

func TestSnapshotSkippedWithoutPrice(t *testing.T) {
	t.Parallel()

	w := NewMemWriter()
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	rec := testListing(model.StatusActive)
	if _, err := w.UpsertAll(ctx, rec, testMeta(at)); err != nil {
		t.Fatal(err)
	}
	if got := w.SnapshotCount("mock", "mock-1"); got != 0 {
		t.Errorf("SnapshotCount = %d, want 0 without a price", got)
	}
}
