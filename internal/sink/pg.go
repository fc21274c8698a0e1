package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/monza-lab/auction-ingest/internal/model"
)

// PGWriter is the Postgres implementation of Writer.
type PGWriter struct {
	pool   *pgxpool.Pool
	schema string
	log    *slog.Logger
}

func NewPGWriter(pool *pgxpool.Pool, schema string, log *slog.Logger) *PGWriter {
	if schema == "" {
		schema = "public"
	}
	if log == nil {
		log = slog.Default()
	}
	return &PGWriter{pool: pool, schema: schema, log: log}
}

// OpenPool connects a pgx pool from a DSN with a bounded connection count.
func OpenPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	cfg.MaxConns = maxConns
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return pool, nil
}

func (w *PGWriter) Close(ctx context.Context) error {
	w.pool.Close()
	return nil
}

// UpsertAll writes one record's facets. Ordering matters: the terminal-status
// guard runs before the core upsert so a stale active observation never
// resurrects a concluded auction, then each secondary facet is an independent
// upsert that logs and continues on failure.
func (w *PGWriter) UpsertAll(ctx context.Context, rec *model.CanonicalListing, meta model.ScrapeMeta) (Result, error) {
	var res Result

	// Terminal-status guard.
	var existingID int64
	var existingStatus string
	err := w.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT id, status FROM %q.listings WHERE source=$1 AND source_id=$2`,
		w.schema,
	), rec.Source, rec.SourceID).Scan(&existingID, &existingStatus)
	switch {
	case err == nil:
		if model.Status(existingStatus).Terminal() && rec.Status == model.StatusActive {
			res.ID = existingID
			res.SkippedTerminal = true
			return res, nil
		}
	case errors.Is(err, pgx.ErrNoRows):
		// first observation
	default:
		return res, fmt.Errorf("guard lookup %s/%s: %w", rec.Source, rec.SourceID, err)
	}

	id, err := w.upsertCore(ctx, rec, meta)
	if err != nil {
		return res, fmt.Errorf("core upsert %s/%s: %w", rec.Source, rec.SourceID, err)
	}
	res.ID = id
	res.Wrote = true

	// Secondary facets: independent upserts, partial failure allowed.
	for name, fn := range map[string]func(context.Context, int64, *model.CanonicalListing, model.ScrapeMeta) error{
		"pricing":    w.upsertPricing,
		"auction":    w.upsertAuction,
		"location":   w.upsertLocation,
		"specs":      w.upsertSpecs,
		"provenance": w.upsertProvenance,
	} {
		if err := fn(ctx, id, rec, meta); err != nil {
			w.log.Error("facet upsert failed",
				"facet", name, "source", rec.Source, "source_id", rec.SourceID, "err", err)
			res.FacetErrors = append(res.FacetErrors, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if err := w.appendPhotos(ctx, id, rec.Photos); err != nil {
		w.log.Error("photo append failed",
			"source", rec.Source, "source_id", rec.SourceID, "err", err)
		res.FacetErrors = append(res.FacetErrors, fmt.Sprintf("photos: %v", err))
	}
	if err := w.insertSnapshot(ctx, id, rec, meta); err != nil {
		w.log.Error("price snapshot failed",
			"source", rec.Source, "source_id", rec.SourceID, "err", err)
		res.FacetErrors = append(res.FacetErrors, fmt.Sprintf("snapshot: %v", err))
	}
	return res, nil
}

// upsertCore writes the core row and returns the store-assigned id. The
// status CASE repeats the guard inside the statement so concurrent writers
// cannot race a terminal status back to active.
func (w *PGWriter) upsertCore(ctx context.Context, rec *model.CanonicalListing, meta model.ScrapeMeta) (int64, error) {
	var id int64
	err := w.pool.QueryRow(ctx, fmt.Sprintf(
		`INSERT INTO %q.listings AS l
		     (source, source_id, source_url, platform, title, year, make, model, trim,
		      body_style, status, data_quality_score, run_id, scraped_at, last_seen)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now())
		 ON CONFLICT (source, source_id) DO UPDATE SET
		   source_url = EXCLUDED.source_url,
		   platform   = EXCLUDED.platform,
		   title      = EXCLUDED.title,
		   year       = EXCLUDED.year,
		   make       = EXCLUDED.make,
		   model      = EXCLUDED.model,
		   trim       = EXCLUDED.trim,
		   body_style = EXCLUDED.body_style,
		   status = CASE
		     WHEN l.status IN ('sold','unsold','delisted') AND EXCLUDED.status = 'active'
		       THEN l.status
		     ELSE EXCLUDED.status
		   END,
		   data_quality_score = EXCLUDED.data_quality_score,
		   run_id     = EXCLUDED.run_id,
		   scraped_at = EXCLUDED.scraped_at,
		   last_seen  = now()
		 RETURNING id`,
		w.schema,
	), rec.Source, rec.SourceID, rec.SourceURL, nullStr(rec.Platform), rec.Title,
		rec.Year, nullStr(rec.Make), nullStr(rec.Model), nullStr(rec.Trim),
		nullStr(rec.BodyStyle), string(rec.Status), rec.DataQualityScore,
		meta.RunID, meta.StartedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		// Re-select by key if the upsert did not echo the id back.
		err = w.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT id FROM %q.listings WHERE source=$1 AND source_id=$2`,
			w.schema,
		), rec.Source, rec.SourceID).Scan(&id)
	}
	return id, err
}

func (w *PGWriter) upsertPricing(ctx context.Context, id int64, rec *model.CanonicalListing, meta model.ScrapeMeta) error {
	_, err := w.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %q.listing_pricing AS p
		     (listing_id, current_bid, bid_count, final_price, currency, raw_price_text, reserve_status, run_id, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		 ON CONFLICT (listing_id) DO UPDATE SET
		   current_bid    = EXCLUDED.current_bid,
		   bid_count      = EXCLUDED.bid_count,
		   final_price    = COALESCE(EXCLUDED.final_price, p.final_price),
		   currency       = COALESCE(EXCLUDED.currency, p.currency),
		   raw_price_text = EXCLUDED.raw_price_text,
		   reserve_status = EXCLUDED.reserve_status,
		   run_id         = EXCLUDED.run_id,
		   updated_at     = now()`,
		w.schema,
	), id, rec.CurrentBid, rec.BidCount, rec.FinalPrice, nullStr(rec.OriginalCurrency),
		nullStr(rec.RawPriceText), nullStr(rec.ReserveStatus), meta.RunID)
	return err
}

func (w *PGWriter) upsertAuction(ctx context.Context, id int64, rec *model.CanonicalListing, meta model.ScrapeMeta) error {
	_, err := w.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %q.listing_auction AS a
		     (listing_id, auction_house, list_date, sale_date, auction_date, start_time, end_time, run_id, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		 ON CONFLICT (listing_id) DO UPDATE SET
		   auction_house = EXCLUDED.auction_house,
		   list_date     = COALESCE(EXCLUDED.list_date, a.list_date),
		   sale_date     = COALESCE(EXCLUDED.sale_date, a.sale_date),
		   auction_date  = COALESCE(EXCLUDED.auction_date, a.auction_date),
		   start_time    = COALESCE(EXCLUDED.start_time, a.start_time),
		   end_time      = COALESCE(EXCLUDED.end_time, a.end_time),
		   run_id        = EXCLUDED.run_id,
		   updated_at    = now()`,
		w.schema,
	), id, nullStr(rec.AuctionHouse), rec.ListDate, rec.SaleDate, rec.AuctionDate,
		rec.StartTime, rec.EndTime, meta.RunID)
	return err
}

func (w *PGWriter) upsertLocation(ctx context.Context, id int64, rec *model.CanonicalListing, meta model.ScrapeMeta) error {
	_, err := w.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %q.listing_location
		     (listing_id, location_text, country, region, city, postal_code, run_id, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		 ON CONFLICT (listing_id) DO UPDATE SET
		   location_text = EXCLUDED.location_text,
		   country       = EXCLUDED.country,
		   region        = EXCLUDED.region,
		   city          = EXCLUDED.city,
		   postal_code   = EXCLUDED.postal_code,
		   run_id        = EXCLUDED.run_id,
		   updated_at    = now()`,
		w.schema,
	), id, nullStr(rec.LocationString), nullStr(rec.Country), nullStr(rec.Region),
		nullStr(rec.City), nullStr(rec.PostalCode), meta.RunID)
	return err
}

func (w *PGWriter) upsertSpecs(ctx context.Context, id int64, rec *model.CanonicalListing, meta model.ScrapeMeta) error {
	_, err := w.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %q.listing_specs AS s
		     (listing_id, mileage_km, vin, exterior_color, interior_color, engine, transmission, run_id, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		 ON CONFLICT (listing_id) DO UPDATE SET
		   mileage_km     = COALESCE(EXCLUDED.mileage_km, s.mileage_km),
		   vin            = COALESCE(EXCLUDED.vin, s.vin),
		   exterior_color = EXCLUDED.exterior_color,
		   interior_color = EXCLUDED.interior_color,
		   engine         = EXCLUDED.engine,
		   transmission   = EXCLUDED.transmission,
		   run_id         = EXCLUDED.run_id,
		   updated_at     = now()`,
		w.schema,
	), id, rec.MileageKm, nullStr(rec.VIN), nullStr(rec.ExteriorColor),
		nullStr(rec.InteriorColor), nullStr(rec.Engine), nullStr(rec.Transmission), meta.RunID)
	return err
}

func (w *PGWriter) upsertProvenance(ctx context.Context, id int64, rec *model.CanonicalListing, meta model.ScrapeMeta) error {
	_, err := w.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %q.listing_provenance AS pr
		     (listing_id, source, source_url, run_id, scraped_at, observations)
		 VALUES ($1,$2,$3,$4,$5,1)
		 ON CONFLICT (listing_id) DO UPDATE SET
		   source_url   = EXCLUDED.source_url,
		   run_id       = EXCLUDED.run_id,
		   scraped_at   = EXCLUDED.scraped_at,
		   observations = pr.observations + 1`,
		w.schema,
	), id, rec.Source, rec.SourceURL, meta.RunID, meta.StartedAt.UTC())
	return err
}

// appendPhotos inserts only URLs not already stored for this row, keeping
// first-seen order via the position column.
func (w *PGWriter) appendPhotos(ctx context.Context, id int64, photos []string) error {
	if len(photos) == 0 {
		return nil
	}
	rows, err := w.pool.Query(ctx, fmt.Sprintf(
		`SELECT url, position FROM %q.listing_photos WHERE listing_id=$1`,
		w.schema,
	), id)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	maxPos := -1
	for rows.Next() {
		var url string
		var pos int
		if err := rows.Scan(&url, &pos); err != nil {
			rows.Close()
			return err
		}
		seen[url] = true
		if pos > maxPos {
			maxPos = pos
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, url := range photos {
		if seen[url] {
			continue
		}
		maxPos++
		if _, err := w.pool.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %q.listing_photos (listing_id, position, url)
			 VALUES ($1,$2,$3)
			 ON CONFLICT (listing_id, url) DO NOTHING`,
			w.schema,
		), id, maxPos, url); err != nil {
			return err
		}
	}
	return nil
}

// insertSnapshot appends one time-bucketed price observation per hour. The
// DO NOTHING keeps the history append-only without duplicate entries within
// the same hour.
func (w *PGWriter) insertSnapshot(ctx context.Context, id int64, rec *model.CanonicalListing, meta model.ScrapeMeta) error {
	price := snapshotPrice(rec)
	if price == nil {
		return nil
	}
	bucket := meta.StartedAt.UTC().Truncate(time.Hour)
	_, err := w.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %q.price_snapshots (listing_id, bucket, price, currency, status, run_id)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (listing_id, bucket) DO NOTHING`,
		w.schema,
	), id, bucket, *price, nullStr(rec.OriginalCurrency), string(rec.Status), meta.RunID)
	return err
}

// nullStr maps empty strings to SQL NULL.
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
