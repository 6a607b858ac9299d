package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"cian-scraper/mapping"
	"cian-scraper/models"
)

// PostgresStore persists freshness records to PostgreSQL, one row per
// listing id, with the same column superset the CSV store uses.
type PostgresStore struct {
	db      *sql.DB
	columns []string
}

// NewPostgresStore opens a connection, runs the schema migration, and
// returns a ready-to-use store.
func NewPostgresStore(dsn string, table *mapping.Table) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db, columns: table.Columns()}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	var cols strings.Builder
	for _, c := range ps.columns {
		fmt.Fprintf(&cols, "\t%q TEXT,\n", c)
	}

	_, err := ps.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS listings (
			listing_id         TEXT PRIMARY KEY,
%s			snapshot_hash      TEXT NOT NULL DEFAULT '',
			first_seen         TIMESTAMPTZ,
			last_seen          TIMESTAMPTZ,
			publication_date   TEXT NOT NULL DEFAULT '',
			unpublished_date   TEXT NOT NULL DEFAULT '',
			last_active        TEXT NOT NULL DEFAULT '',
			image_version      INTEGER NOT NULL DEFAULT 0,
			last_image_refresh TIMESTAMPTZ,
			removed            BOOLEAN NOT NULL DEFAULT FALSE,
			price_changes      JSONB
		);

		CREATE INDEX IF NOT EXISTS idx_listings_removed ON listings(removed);
		CREATE INDEX IF NOT EXISTS idx_listings_last_image_refresh ON listings(last_image_refresh);
	`, cols.String()))
	return err
}

// Load retrieves every stored record.
func (ps *PostgresStore) Load() (map[string]*models.FreshnessRecord, error) {
	quoted := make([]string, len(ps.columns))
	for i, c := range ps.columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}

	rows, err := ps.db.Query(fmt.Sprintf(`
		SELECT listing_id, %s,
		       snapshot_hash, first_seen, last_seen, publication_date,
		       unpublished_date, last_active, image_version,
		       last_image_refresh, removed, price_changes
		FROM listings
		ORDER BY listing_id
	`, strings.Join(quoted, ", ")))
	if err != nil {
		return nil, fmt.Errorf("postgres: load: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.FreshnessRecord)
	for rows.Next() {
		rec := &models.FreshnessRecord{Columns: make(map[string]string)}

		dests := make([]interface{}, 0, len(ps.columns)+12)
		dests = append(dests, &rec.ListingID)

		nullable := make([]sql.NullString, len(ps.columns))
		for i := range nullable {
			dests = append(dests, &nullable[i])
		}

		var firstSeen, lastSeen, lastRefresh sql.NullTime
		var priceChanges sql.NullString
		dests = append(dests,
			&rec.SnapshotHash, &firstSeen, &lastSeen, &rec.PublicationDate,
			&rec.UnpublishedDate, &rec.LastActive, &rec.ImageVersion,
			&lastRefresh, &rec.Removed, &priceChanges,
		)

		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}

		for i, c := range ps.columns {
			if nullable[i].Valid && nullable[i].String != "" {
				rec.Columns[c] = nullable[i].String
			}
		}
		rec.FirstSeen = timeOrZero(firstSeen)
		rec.LastSeen = timeOrZero(lastSeen)
		rec.LastImageRefresh = timeOrZero(lastRefresh)
		if priceChanges.Valid && priceChanges.String != "" {
			if err := json.Unmarshal([]byte(priceChanges.String), &rec.PriceChanges); err != nil {
				return nil, fmt.Errorf("postgres: listing %s: bad price_changes: %w", rec.ListingID, err)
			}
		}
		out[rec.ListingID] = rec
	}
	return out, rows.Err()
}

// Upsert inserts or replaces one record using ON CONFLICT on the primary
// key, so same-id writes serialize inside Postgres.
func (ps *PostgresStore) Upsert(rec *models.FreshnessRecord) error {
	if rec == nil || rec.ListingID == "" {
		return fmt.Errorf("postgres: upsert with empty listing id")
	}

	cols := []string{"listing_id"}
	args := []interface{}{rec.ListingID}
	for _, c := range ps.columns {
		cols = append(cols, fmt.Sprintf("%q", c))
		if v, ok := rec.Columns[c]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}

	var priceChanges interface{}
	if len(rec.PriceChanges) > 0 {
		b, _ := json.Marshal(rec.PriceChanges)
		priceChanges = string(b)
	}
	cols = append(cols,
		"snapshot_hash", "first_seen", "last_seen", "publication_date",
		"unpublished_date", "last_active", "image_version",
		"last_image_refresh", "removed", "price_changes")
	args = append(args,
		rec.SnapshotHash, nullTime(rec.FirstSeen), nullTime(rec.LastSeen),
		rec.PublicationDate, rec.UnpublishedDate, rec.LastActive,
		rec.ImageVersion, nullTime(rec.LastImageRefresh), rec.Removed,
		priceChanges)

	placeholders := make([]string, len(args))
	updates := make([]string, 0, len(cols)-1)
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	for _, c := range cols[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (%s)
		VALUES (%s)
		ON CONFLICT (listing_id) DO UPDATE SET %s
	`, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	_, err := ps.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("postgres: upsert %s: %w", rec.ListingID, err)
	}
	return nil
}

// Flush is a no-op: every Upsert is already durable.
func (ps *PostgresStore) Flush() error { return nil }

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

func timeOrZero(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
