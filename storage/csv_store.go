package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"cian-scraper/mapping"
	"cian-scraper/models"
)

// bookkeepingColumns trail the data columns in every row. Their order is
// part of the on-disk contract.
var bookkeepingColumns = []string{
	"snapshot_hash",
	"first_seen",
	"last_seen",
	"publication_date",
	"unpublished_date",
	"last_active",
	"image_version",
	"last_image_refresh",
	"removed",
	"price_changes",
}

// CSVStore keeps the full corpus as one CSV file: one row per listing id,
// header = listing_id + the table's 48 data columns + bookkeeping columns.
// An empty cell means the column is absent for that listing; the normalizer
// never produces empty-string values, so the encoding is lossless.
// It is safe for concurrent use.
type CSVStore struct {
	mu      sync.RWMutex
	path    string
	columns []string
	records map[string]*models.FreshnessRecord
	dirty   bool
}

// NewCSVStore opens (or creates) the store at path. The mapping table fixes
// the data-column order, which stays stable across runs so diffs and
// appends line up.
func NewCSVStore(path string, table *mapping.Table) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv store: create dir: %w", err)
	}

	s := &CSVStore{
		path:    path,
		columns: table.Columns(),
		records: make(map[string]*models.FreshnessRecord),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVStore) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("csv store: open %q: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("csv store: read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	if _, ok := idx["listing_id"]; !ok {
		return fmt.Errorf("csv store: %q has no listing_id column", s.path)
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("csv store: read row: %w", err)
		}
		rec, err := s.decodeRow(row, idx)
		if err != nil {
			return err
		}
		s.records[rec.ListingID] = rec
	}
	return nil
}

func (s *CSVStore) decodeRow(row []string, idx map[string]int) (*models.FreshnessRecord, error) {
	cell := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	id := cell("listing_id")
	if id == "" {
		return nil, fmt.Errorf("csv store: row with empty listing_id")
	}

	rec := &models.FreshnessRecord{
		ListingID:       id,
		Columns:         make(map[string]string),
		SnapshotHash:    cell("snapshot_hash"),
		PublicationDate: cell("publication_date"),
		UnpublishedDate: cell("unpublished_date"),
		LastActive:      cell("last_active"),
	}
	for _, col := range s.columns {
		if v := cell(col); v != "" {
			rec.Columns[col] = v
		}
	}
	rec.FirstSeen = parseTimeCell(cell("first_seen"))
	rec.LastSeen = parseTimeCell(cell("last_seen"))
	rec.LastImageRefresh = parseTimeCell(cell("last_image_refresh"))
	rec.ImageVersion, _ = strconv.Atoi(cell("image_version"))
	rec.Removed = cell("removed") == "true"

	if pc := cell("price_changes"); pc != "" {
		if err := json.Unmarshal([]byte(pc), &rec.PriceChanges); err != nil {
			return nil, fmt.Errorf("csv store: listing %s: bad price_changes: %w", id, err)
		}
	}
	return rec, nil
}

// Load returns a deep copy of every stored record.
func (s *CSVStore) Load() (map[string]*models.FreshnessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*models.FreshnessRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = rec.Clone()
	}
	return out, nil
}

// Upsert replaces the record for its listing id. Durable once Flush runs.
func (s *CSVStore) Upsert(rec *models.FreshnessRecord) error {
	if rec == nil || rec.ListingID == "" {
		return fmt.Errorf("csv store: upsert with empty listing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ListingID] = rec.Clone()
	s.dirty = true
	return nil
}

// Flush rewrites the file atomically: temp file in the same directory, then
// rename. Rows are ordered by listing id so reruns produce identical files.
func (s *CSVStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".listings-*.csv")
	if err != nil {
		return fmt.Errorf("csv store: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	header := append([]string{"listing_id"}, s.columns...)
	header = append(header, bookkeepingColumns...)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("csv store: write header: %w", err)
	}

	for _, id := range sortedIDs(s.records) {
		if err := w.Write(s.encodeRow(s.records[id])); err != nil {
			tmp.Close()
			return fmt.Errorf("csv store: write row %s: %w", id, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("csv store: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv store: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("csv store: rename: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *CSVStore) encodeRow(rec *models.FreshnessRecord) []string {
	row := make([]string, 0, 1+len(s.columns)+len(bookkeepingColumns))
	row = append(row, rec.ListingID)
	for _, col := range s.columns {
		row = append(row, rec.Columns[col])
	}

	var priceChanges string
	if len(rec.PriceChanges) > 0 {
		// Marshal of this struct slice cannot fail.
		b, _ := json.Marshal(rec.PriceChanges)
		priceChanges = string(b)
	}

	row = append(row,
		rec.SnapshotHash,
		formatTimeCell(rec.FirstSeen),
		formatTimeCell(rec.LastSeen),
		rec.PublicationDate,
		rec.UnpublishedDate,
		rec.LastActive,
		strconv.Itoa(rec.ImageVersion),
		formatTimeCell(rec.LastImageRefresh),
		strconv.FormatBool(rec.Removed),
		priceChanges,
	)
	return row
}

// Close flushes any pending changes.
func (s *CSVStore) Close() error {
	return s.Flush()
}

func sortedIDs(records map[string]*models.FreshnessRecord) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func parseTimeCell(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTimeCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
