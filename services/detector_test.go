package services

import (
	"reflect"
	"testing"
	"time"

	"cian-scraper/models"
)

func canonical(id string, pairs ...string) *models.CanonicalListing {
	cols := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		cols[pairs[i]] = pairs[i+1]
	}
	return &models.CanonicalListing{ListingID: id, Columns: cols}
}

func TestDetectNewWhenNoPreviousRecord(t *testing.T) {
	d := NewDetector(nil, newTestLogger())

	v := d.Detect(canonical("1", "offer_price", "55000"), nil)
	if v.Kind != models.VerdictNew {
		t.Errorf("verdict = %v; want new", v.Kind)
	}
}

func TestDetectUnchangedOnIdenticalColumns(t *testing.T) {
	d := NewDetector(nil, newTestLogger())
	now := time.Now()

	listing := canonical("1", "offer_price", "55000", "renovation", "Евроремонт")
	rec := d.Apply(nil, listing, models.Verdict{ListingID: "1", Kind: models.VerdictNew}, time.Time{}, now)

	v := d.Detect(canonical("1", "offer_price", "55000", "renovation", "Евроремонт"), rec)
	if v.Kind != models.VerdictUnchanged {
		t.Errorf("verdict = %v; want unchanged", v.Kind)
	}
	if len(v.ChangedKeys) != 0 {
		t.Errorf("unchanged verdict should carry no changed keys, got %v", v.ChangedKeys)
	}
}

func TestDetectAbsentKeyIsNotEmptyString(t *testing.T) {
	d := NewDetector(nil, newTestLogger())
	now := time.Now()

	rec := d.Apply(nil, canonical("1", "offer_price", "55000"),
		models.Verdict{ListingID: "1", Kind: models.VerdictNew}, time.Time{}, now)

	// A second listing with an extra empty-valued key would not occur
	// (the normalizer drops empties), but an added key must register.
	v := d.Detect(canonical("1", "offer_price", "55000", "view", "Во двор"), rec)
	if v.Kind != models.VerdictUpdated {
		t.Fatalf("verdict = %v; want updated", v.Kind)
	}
	if !reflect.DeepEqual(v.ChangedKeys, []string{"view"}) {
		t.Errorf("changed keys = %v; want [view]", v.ChangedKeys)
	}
}

func TestDetectEnumeratesChangedAddedRemovedKeys(t *testing.T) {
	d := NewDetector(nil, newTestLogger())
	now := time.Now()

	rec := d.Apply(nil, canonical("1", "offer_price", "55000", "balcony", "Есть", "floor", "5/9"),
		models.Verdict{ListingID: "1", Kind: models.VerdictNew}, time.Time{}, now)

	v := d.Detect(canonical("1", "offer_price", "60000", "floor", "5/9", "view", "В парк"), rec)
	if v.Kind != models.VerdictUpdated {
		t.Fatalf("verdict = %v; want updated", v.Kind)
	}
	want := []string{"balcony", "offer_price", "view"}
	if !reflect.DeepEqual(v.ChangedKeys, want) {
		t.Errorf("changed keys = %v; want %v", v.ChangedKeys, want)
	}
}

func TestPriceOnlyChangeIsNotVisual(t *testing.T) {
	d := NewDetector(nil, newTestLogger())
	now := time.Now()

	rec := d.Apply(nil, canonical("1", "offer_price", "55000", "renovation", "Евроремонт"),
		models.Verdict{ListingID: "1", Kind: models.VerdictNew}, time.Time{}, now)

	v := d.Detect(canonical("1", "offer_price", "60000", "renovation", "Евроремонт"), rec)
	if v.Kind != models.VerdictUpdated {
		t.Fatalf("verdict = %v; want updated", v.Kind)
	}
	if v.VisuallyChanged(d.VisualKeys()) {
		t.Error("a price-only change must not trigger image refresh")
	}
}

func TestRenovationChangeIsVisual(t *testing.T) {
	d := NewDetector(nil, newTestLogger())
	now := time.Now()

	rec := d.Apply(nil, canonical("1", "offer_price", "55000", "renovation", "Косметический"),
		models.Verdict{ListingID: "1", Kind: models.VerdictNew}, time.Time{}, now)

	v := d.Detect(canonical("1", "offer_price", "55000", "renovation", "Евроремонт"), rec)
	if !v.VisuallyChanged(d.VisualKeys()) {
		t.Error("a renovation change must trigger image refresh")
	}
}

func TestApplyNewSetsPublicationDate(t *testing.T) {
	d := NewDetector(nil, newTestLogger())
	now := time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2025, time.June, 15, 9, 30, 0, 0, time.UTC)

	rec := d.Apply(nil, canonical("1", "offer_price", "55000"),
		models.Verdict{ListingID: "1", Kind: models.VerdictNew}, updated, now)

	if rec.PublicationDate != "2025-06-15 09:30:00" {
		t.Errorf("publication date = %q", rec.PublicationDate)
	}
	if rec.LastActive != "2025-06-15 09:30:00" {
		t.Errorf("last active = %q", rec.LastActive)
	}
	if rec.SnapshotHash == "" {
		t.Error("snapshot hash should be set")
	}
}

func TestApplyRecordsPriceChangeHistory(t *testing.T) {
	d := NewDetector(nil, newTestLogger())
	now := time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

	rec := d.Apply(nil, canonical("1", "offer_price", "60000"),
		models.Verdict{ListingID: "1", Kind: models.VerdictNew}, time.Time{}, now)

	next := canonical("1", "offer_price", "55000")
	v := d.Detect(next, rec)
	updated := time.Date(2025, time.June, 16, 12, 0, 0, 0, time.UTC)
	rec2 := d.Apply(rec, next, v, updated, now.AddDate(0, 0, 1))

	if len(rec2.PriceChanges) != 1 {
		t.Fatalf("expected 1 price change, got %d", len(rec2.PriceChanges))
	}
	pc := rec2.PriceChanges[0]
	if pc.Change != "-5000" || pc.CurrentPrice != "55000" || pc.PreviousPrice != "60000" {
		t.Errorf("price change = %+v", pc)
	}
	if pc.Date != "2025-06-16 12:00:00" {
		t.Errorf("price change date = %q", pc.Date)
	}

	// Equal price on a later update appends nothing.
	third := canonical("1", "offer_price", "55000", "view", "В парк")
	v3 := d.Detect(third, rec2)
	rec3 := d.Apply(rec2, third, v3, time.Time{}, now.AddDate(0, 0, 2))
	if len(rec3.PriceChanges) != 1 {
		t.Errorf("unchanged price must not append history, got %d entries", len(rec3.PriceChanges))
	}
}

func TestApplyDoesNotMutatePrevious(t *testing.T) {
	d := NewDetector(nil, newTestLogger())
	now := time.Now()

	rec := d.Apply(nil, canonical("1", "offer_price", "55000"),
		models.Verdict{ListingID: "1", Kind: models.VerdictNew}, time.Time{}, now)
	before := SnapshotHash(rec.Columns)

	next := canonical("1", "offer_price", "60000")
	d.Apply(rec, next, d.Detect(next, rec), time.Time{}, now)

	if SnapshotHash(rec.Columns) != before {
		t.Error("Apply mutated the previous record")
	}
}

func TestMarkRemovedSetsUnpublishedDateOnce(t *testing.T) {
	d := NewDetector(nil, newTestLogger())
	now := time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

	rec := d.Apply(nil, canonical("1", "offer_price", "55000"),
		models.Verdict{ListingID: "1", Kind: models.VerdictNew}, time.Time{}, now)

	removed := d.MarkRemoved(rec, time.Time{}, now.AddDate(0, 0, 1))
	if !removed.Removed {
		t.Fatal("record should be removed")
	}
	if removed.UnpublishedDate == "" {
		t.Error("unpublished date should be set on the active→removed transition")
	}

	stamp := removed.UnpublishedDate
	again := d.MarkRemoved(removed, time.Time{}, now.AddDate(0, 0, 2))
	if again.UnpublishedDate != stamp {
		t.Error("re-marking an already removed record must not move the unpublished date")
	}
}

func TestSnapshotHashStableAcrossMapOrder(t *testing.T) {
	a := map[string]string{"floor": "5/9", "offer_price": "55000", "view": "Во двор"}
	b := map[string]string{"view": "Во двор", "offer_price": "55000", "floor": "5/9"}

	if SnapshotHash(a) != SnapshotHash(b) {
		t.Error("hash must not depend on map iteration order")
	}
	if SnapshotHash(a) == SnapshotHash(map[string]string{"floor": "5/9"}) {
		t.Error("different columns must hash differently")
	}
}
