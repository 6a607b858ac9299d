package services

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"cian-scraper/models"
)

func visualSet(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

func TestSelectRespectsQuota(t *testing.T) {
	s := NewRefreshSelector(10, visualSet("renovation"), newTestLogger())

	var verdicts []models.Verdict
	records := make(map[string]*models.FreshnessRecord)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("%03d", i)
		verdicts = append(verdicts, models.Verdict{ListingID: id, Kind: models.VerdictNew})
		records[id] = &models.FreshnessRecord{ListingID: id}
	}

	got := s.Select(verdicts, records)
	if len(got) != 10 {
		t.Fatalf("quota 10 with 100 eligible: got %d ids", len(got))
	}
}

func TestSelectPriorityOrdering(t *testing.T) {
	s := NewRefreshSelector(10, visualSet("renovation"), newTestLogger())

	verdicts := []models.Verdict{
		{ListingID: "stale-1", Kind: models.VerdictUnchanged},
		{ListingID: "upd-visual", Kind: models.VerdictUpdated, ChangedKeys: []string{"renovation"}},
		{ListingID: "upd-price", Kind: models.VerdictUpdated, ChangedKeys: []string{"offer_price"}},
		{ListingID: "new-1", Kind: models.VerdictNew},
	}
	old := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	records := map[string]*models.FreshnessRecord{
		"stale-1":    {ListingID: "stale-1", LastImageRefresh: old},
		"upd-visual": {ListingID: "upd-visual", LastImageRefresh: old.AddDate(0, 1, 0)},
		"upd-price":  {ListingID: "upd-price", LastImageRefresh: old.AddDate(0, 2, 0)},
		"new-1":      {ListingID: "new-1"},
	}

	got := s.Select(verdicts, records)
	// NEW first, then visually updated, then the rest (price-only update
	// included) by oldest image refresh.
	want := []string{"new-1", "upd-visual", "stale-1", "upd-price"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Select = %v; want %v", got, want)
	}
}

func TestSelectPriceOnlyUpdateNotPrioritized(t *testing.T) {
	s := NewRefreshSelector(1, visualSet("renovation"), newTestLogger())

	verdicts := []models.Verdict{
		{ListingID: "upd-price", Kind: models.VerdictUpdated, ChangedKeys: []string{"offer_price"}},
		{ListingID: "upd-visual", Kind: models.VerdictUpdated, ChangedKeys: []string{"renovation"}},
	}
	records := map[string]*models.FreshnessRecord{
		"upd-price":  {ListingID: "upd-price"},
		"upd-visual": {ListingID: "upd-visual"},
	}

	got := s.Select(verdicts, records)
	if !reflect.DeepEqual(got, []string{"upd-visual"}) {
		t.Errorf("Select = %v; want the visual update only", got)
	}
}

func TestSelectSkipsRemovedRecords(t *testing.T) {
	s := NewRefreshSelector(5, visualSet("renovation"), newTestLogger())

	records := map[string]*models.FreshnessRecord{
		"gone":   {ListingID: "gone", Removed: true},
		"active": {ListingID: "active"},
	}

	got := s.Select(nil, records)
	if !reflect.DeepEqual(got, []string{"active"}) {
		t.Errorf("Select = %v; removed listings must not be refreshed", got)
	}
}

func TestSelectOldestRefreshTierRotates(t *testing.T) {
	s := NewRefreshSelector(2, visualSet("renovation"), newTestLogger())

	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	records := map[string]*models.FreshnessRecord{
		"a": {ListingID: "a", LastImageRefresh: base.AddDate(0, 0, 3)},
		"b": {ListingID: "b", LastImageRefresh: base.AddDate(0, 0, 1)},
		"c": {ListingID: "c", LastImageRefresh: base.AddDate(0, 0, 2)},
	}

	got := s.Select(nil, records)
	if !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Select = %v; want oldest refresh first [b c]", got)
	}

	// After b and c refresh, a is next: no listing starves.
	records["b"].LastImageRefresh = base.AddDate(0, 1, 0)
	records["c"].LastImageRefresh = base.AddDate(0, 1, 0)
	got = s.Select(nil, records)
	if len(got) == 0 || got[0] != "a" {
		t.Errorf("Select = %v; want a first after others refreshed", got)
	}
}

func TestSelectZeroQuota(t *testing.T) {
	s := NewRefreshSelector(0, visualSet("renovation"), newTestLogger())

	got := s.Select([]models.Verdict{{ListingID: "1", Kind: models.VerdictNew}},
		map[string]*models.FreshnessRecord{"1": {ListingID: "1"}})
	if got != nil {
		t.Errorf("zero quota should queue nothing, got %v", got)
	}
}
