package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureTables creates the multi-table schema if it does not exist. Safe to
// run on every start.
func EnsureTables(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	ddl := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.listings (
			id             BIGSERIAL PRIMARY KEY,
			source         TEXT NOT NULL,
			source_id      TEXT NOT NULL,
			source_url     TEXT NOT NULL,
			platform       TEXT,
			title          TEXT NOT NULL,
			year           INT,
			make           TEXT,
			model          TEXT,
			trim           TEXT,
			body_style     TEXT,
			status         TEXT NOT NULL,
			data_quality_score INT NOT NULL DEFAULT 0,
			run_id         TEXT,
			scraped_at     TIMESTAMPTZ,
			first_seen     TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_seen      TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (source, source_id)
		)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_listings_status ON %q.listings(status)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_listings_make_model ON %q.listings(make, model)`, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.listing_pricing (
			listing_id     BIGINT PRIMARY KEY REFERENCES %q.listings(id) ON DELETE CASCADE,
			current_bid    INT,
			bid_count      INT,
			final_price    INT,
			currency       TEXT,
			raw_price_text TEXT,
			reserve_status TEXT,
			run_id         TEXT,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, schema, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.listing_auction (
			listing_id    BIGINT PRIMARY KEY REFERENCES %q.listings(id) ON DELETE CASCADE,
			auction_house TEXT,
			list_date     DATE,
			sale_date     DATE,
			auction_date  DATE,
			start_time    TIMESTAMPTZ,
			end_time      TIMESTAMPTZ,
			run_id        TEXT,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, schema, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.listing_location (
			listing_id    BIGINT PRIMARY KEY REFERENCES %q.listings(id) ON DELETE CASCADE,
			location_text TEXT,
			country       TEXT,
			region        TEXT,
			city          TEXT,
			postal_code   TEXT,
			run_id        TEXT,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, schema, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.listing_specs (
			listing_id     BIGINT PRIMARY KEY REFERENCES %q.listings(id) ON DELETE CASCADE,
			mileage_km     INT,
			vin            TEXT,
			exterior_color TEXT,
			interior_color TEXT,
			engine         TEXT,
			transmission   TEXT,
			run_id         TEXT,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, schema, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.listing_provenance (
			listing_id   BIGINT PRIMARY KEY REFERENCES %q.listings(id) ON DELETE CASCADE,
			source       TEXT NOT NULL,
			source_url   TEXT NOT NULL,
			run_id       TEXT,
			scraped_at   TIMESTAMPTZ,
			observations INT NOT NULL DEFAULT 1
		)`, schema, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.listing_photos (
			listing_id BIGINT NOT NULL REFERENCES %q.listings(id) ON DELETE CASCADE,
			position   INT NOT NULL,
			url        TEXT NOT NULL,
			PRIMARY KEY (listing_id, url)
		)`, schema, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.price_snapshots (
			listing_id BIGINT NOT NULL REFERENCES %q.listings(id) ON DELETE CASCADE,
			bucket     TIMESTAMPTZ NOT NULL,
			price      INT NOT NULL,
			currency   TEXT,
			status     TEXT NOT NULL,
			run_id     TEXT,
			PRIMARY KEY (listing_id, bucket)
		)`, schema, schema),
	}
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}
