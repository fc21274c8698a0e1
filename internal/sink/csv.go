package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/monza-lab/auction-ingest/internal/model"
)

// csvCols is the flat export schema for the core record.
var csvCols = []string{
	"source", "source_id", "source_url", "title", "year", "make", "model", "trim",
	"status", "current_bid", "final_price", "currency", "mileage_km",
	"country", "region", "city", "sale_date", "end_time",
	"photos_count", "data_quality_score", "run_id", "scraped_at",
}

// CSVSink appends core records to a CSV file, writing the header once. It is
// an export surface next to the database, not a replacement for it.
type CSVSink struct {
	path string
}

func NewCSVSink(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir: %w", err)
	}
	s := &CSVSink{path: path}
	if err := s.ensureHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVSink) ensureHeader() error {
	fi, err := os.Stat(s.path)
	if err == nil && fi.Size() > 0 {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvCols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Append writes one record. Append-only: the sink never rewrites rows, so
// downstream consumers dedupe on (source, source_id) themselves.
func (s *CSVSink) Append(rec *model.CanonicalListing, meta model.ScrapeMeta) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvRow(rec, meta)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func csvRow(rec *model.CanonicalListing, meta model.ScrapeMeta) []string {
	return []string{
		rec.Source,
		rec.SourceID,
		rec.SourceURL,
		rec.Title,
		strconv.Itoa(rec.Year),
		rec.Make,
		rec.Model,
		rec.Trim,
		string(rec.Status),
		intPtrStr(rec.CurrentBid),
		intPtrStr(rec.FinalPrice),
		rec.OriginalCurrency,
		intPtrStr(rec.MileageKm),
		rec.Country,
		rec.Region,
		rec.City,
		dateStr(rec.SaleDate),
		timeStr(rec.EndTime),
		strconv.Itoa(rec.PhotosCount),
		strconv.Itoa(rec.DataQualityScore),
		meta.RunID,
		meta.StartedAt.UTC().Format(time.RFC3339),
	}
}

func intPtrStr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func dateStr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func timeStr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Path returns the sink's file path.
func (s *CSVSink) Path() string { return s.path }
