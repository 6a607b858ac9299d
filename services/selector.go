package services

import (
	"sort"

	"cian-scraper/models"
	"cian-scraper/utils"
)

// RefreshSelector decides which listings get submitted to the external image
// pipeline on this run, bounded by a per-run quota.
type RefreshSelector struct {
	quota  int
	visual map[string]struct{}
	logger *utils.Logger
}

// NewRefreshSelector creates a selector. quota <= 0 means no refreshes are
// queued.
func NewRefreshSelector(quota int, visualKeys map[string]struct{}, logger *utils.Logger) *RefreshSelector {
	return &RefreshSelector{quota: quota, visual: visualKeys, logger: logger}
}

// Select orders eligible listing ids by priority and truncates at quota:
// NEW listings first, then UPDATED listings whose change touched a visually
// relevant key, then remaining active listings by oldest image refresh.
// Ties break on listing id, so repeated runs are deterministic and the
// oldest-refresh tier guarantees every active listing is eventually covered.
func (s *RefreshSelector) Select(verdicts []models.Verdict, records map[string]*models.FreshnessRecord) []string {
	if s.quota <= 0 {
		return nil
	}

	var newIDs, visualIDs []string
	picked := make(map[string]struct{})

	for _, v := range verdicts {
		switch v.Kind {
		case models.VerdictNew:
			newIDs = append(newIDs, v.ListingID)
			picked[v.ListingID] = struct{}{}
		case models.VerdictUpdated:
			if v.VisuallyChanged(s.visual) {
				visualIDs = append(visualIDs, v.ListingID)
				picked[v.ListingID] = struct{}{}
			}
		}
	}
	sort.Strings(newIDs)
	sort.Strings(visualIDs)

	// Third tier: everything active that wasn't already picked, oldest
	// image refresh first.
	var stale []*models.FreshnessRecord
	for id, rec := range records {
		if rec.Removed {
			continue
		}
		if _, ok := picked[id]; ok {
			continue
		}
		stale = append(stale, rec)
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].LastImageRefresh.Equal(stale[j].LastImageRefresh) {
			return stale[i].LastImageRefresh.Before(stale[j].LastImageRefresh)
		}
		return stale[i].ListingID < stale[j].ListingID
	})

	out := make([]string, 0, s.quota)
	for _, tier := range [][]string{newIDs, visualIDs} {
		for _, id := range tier {
			if len(out) == s.quota {
				return out
			}
			out = append(out, id)
		}
	}
	for _, rec := range stale {
		if len(out) == s.quota {
			break
		}
		out = append(out, rec.ListingID)
	}

	s.logger.Info("[selector] queued %d of %d eligible (quota %d)",
		len(out), len(newIDs)+len(visualIDs)+len(stale), s.quota)
	return out
}
