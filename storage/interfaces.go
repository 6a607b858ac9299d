package storage

import "cian-scraper/models"

// ListingStore owns all persisted canonical listing and freshness state.
// Implementations serialize same-id writes internally; callers running
// concurrent read-modify-write cycles must additionally hold the per-id
// lock (see utils.KeyedLock) to avoid lost updates.
type ListingStore interface {
	// Load returns every stored record keyed by listing id.
	Load() (map[string]*models.FreshnessRecord, error)
	// Upsert inserts or replaces the record for its listing id.
	Upsert(rec *models.FreshnessRecord) error
	// Flush makes all pending upserts durable.
	Flush() error
	Close() error
}
