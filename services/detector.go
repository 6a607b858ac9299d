package services

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"cian-scraper/models"
	"cian-scraper/utils"
)

// DefaultVisualKeys are the canonical columns whose change makes the stored
// photos suspect. Price and commission changes deliberately stay out.
var DefaultVisualKeys = []string{"renovation", "view", "layout", "balcony"}

// Detector compares fresh canonical listings against their stored snapshots
// and drives the freshness-record lifecycle. It holds no persistent state.
type Detector struct {
	visual map[string]struct{}
	logger *utils.Logger
}

// NewDetector creates a Detector with the given visually relevant key set.
// An empty list falls back to DefaultVisualKeys.
func NewDetector(visualKeys []string, logger *utils.Logger) *Detector {
	if len(visualKeys) == 0 {
		visualKeys = DefaultVisualKeys
	}
	visual := make(map[string]struct{}, len(visualKeys))
	for _, k := range visualKeys {
		visual[strings.TrimSpace(k)] = struct{}{}
	}
	return &Detector{visual: visual, logger: logger}
}

// VisualKeys exposes the configured set for the refresh selector.
func (d *Detector) VisualKeys() map[string]struct{} {
	return d.visual
}

// Detect classifies a listing against its previous snapshot. Equality is
// sparse map equality over (key, value) pairs: an absent key equals an
// absent key, never an empty string.
func (d *Detector) Detect(listing *models.CanonicalListing, prev *models.FreshnessRecord) models.Verdict {
	if prev == nil {
		return models.Verdict{ListingID: listing.ListingID, Kind: models.VerdictNew}
	}

	changed := changedKeys(prev.Columns, listing.Columns)
	if len(changed) == 0 {
		return models.Verdict{ListingID: listing.ListingID, Kind: models.VerdictUnchanged}
	}
	return models.Verdict{
		ListingID:   listing.ListingID,
		Kind:        models.VerdictUpdated,
		ChangedKeys: changed,
	}
}

// Apply advances the freshness record for a NEW, UNCHANGED, or UPDATED
// verdict. It returns a fresh record and never mutates prev. updatedAt is
// the listing's own update time (zero falls back to now).
func (d *Detector) Apply(prev *models.FreshnessRecord, listing *models.CanonicalListing, v models.Verdict, updatedAt, now time.Time) *models.FreshnessRecord {
	if updatedAt.IsZero() {
		updatedAt = now
	}
	stamp := FormatTimestamp(updatedAt)

	if v.Kind == models.VerdictNew || prev == nil {
		rec := &models.FreshnessRecord{
			ListingID:       listing.ListingID,
			Columns:         copyColumns(listing.Columns),
			SnapshotHash:    SnapshotHash(listing.Columns),
			FirstSeen:       now,
			LastSeen:        now,
			PublicationDate: stamp,
			LastActive:      stamp,
		}
		return rec
	}

	rec := prev.Clone()
	rec.LastSeen = now
	rec.LastActive = stamp
	rec.Removed = false
	rec.UnpublishedDate = ""

	if v.Kind == models.VerdictUpdated {
		prevPrice := prev.Columns["offer_price"]
		newPrice := listing.Columns["offer_price"]
		if prevPrice != "" && newPrice != "" && prevPrice != newPrice {
			rec.PriceChanges = append(rec.PriceChanges, models.PriceChange{
				Change:        FormatPriceDelta(newPrice, prevPrice),
				CurrentPrice:  newPrice,
				PreviousPrice: prevPrice,
				Date:          stamp,
			})
			d.logger.Info("[detector] %s: price %s → %s", listing.ListingID, prevPrice, newPrice)
		}
		rec.Columns = copyColumns(listing.Columns)
		rec.SnapshotHash = SnapshotHash(listing.Columns)
	}

	return rec
}

// MarkRemoved transitions a record to removed state, keeping the snapshot.
// The record is retained so a relisted offer is detected as UPDATED rather
// than NEW.
func (d *Detector) MarkRemoved(prev *models.FreshnessRecord, updatedAt, now time.Time) *models.FreshnessRecord {
	rec := prev.Clone()
	if !rec.Removed {
		if updatedAt.IsZero() {
			updatedAt = now
		}
		rec.UnpublishedDate = FormatTimestamp(updatedAt)
	}
	rec.Removed = true
	rec.LastSeen = now
	return rec
}

// SnapshotHash is a stable digest of a sparse column mapping: sorted
// key=value pairs joined and hashed.
func SnapshotHash(columns map[string]string) string {
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(columns[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// changedKeys returns the sorted set of keys whose value was added, removed,
// or changed between two sparse mappings.
func changedKeys(old, new map[string]string) []string {
	var changed []string
	for k, v := range new {
		if ov, ok := old[k]; !ok || ov != v {
			changed = append(changed, k)
		}
	}
	for k := range old {
		if _, ok := new[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func copyColumns(columns map[string]string) map[string]string {
	out := make(map[string]string, len(columns))
	for k, v := range columns {
		out[k] = v
	}
	return out
}
