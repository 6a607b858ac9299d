package models

import "time"

// Namespace identifies one of the four field groups a Cian listing page
// exposes as label/value tables.
type Namespace string

const (
	NamespaceRentalTerms Namespace = "rental_terms"
	NamespaceApartment   Namespace = "apartment"
	NamespaceBuilding    Namespace = "building"
	NamespaceFeatures    Namespace = "features"
)

// NamespaceOrder is both the canonical iteration order and the precedence
// order used when two raw labels collide on the same canonical key.
var NamespaceOrder = []Namespace{
	NamespaceRentalTerms,
	NamespaceApartment,
	NamespaceBuilding,
	NamespaceFeatures,
}

// RawField is a single label/value pair as scraped, before any mapping.
// Order within a group is preserved so collision resolution stays
// deterministic across runs.
type RawField struct {
	Label string
	Value string
}

// RawListing holds unprocessed scraped data directly from the browser,
// grouped the way the listing page presents it.
type RawListing struct {
	OfferID         string
	URL             string
	Price           string
	EstimationPrice string
	Description     string
	UpdatedLabel    string // raw Russian time label, e.g. "сегодня, 12:30"
	AddressParts    []string
	ImageURLs       []string
	Unpublished     bool // detail page returned 404 or an unpublished banner
	Groups          map[Namespace][]RawField
	ScrapedAt       time.Time
}

// CanonicalListing is the normalized record. Columns is sparse: only the
// canonical keys present in the raw groups are populated, and empty values
// are never stored.
type CanonicalListing struct {
	ListingID string
	Columns   map[string]string
}

// Equal reports whether two listings carry identical column mappings.
// Absent keys are compared as absent, never as empty strings.
func (c *CanonicalListing) Equal(other *CanonicalListing) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.Columns) != len(other.Columns) {
		return false
	}
	for k, v := range c.Columns {
		ov, ok := other.Columns[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// PriceChange records one observed offer_price transition.
type PriceChange struct {
	Change        string `json:"change"`
	CurrentPrice  string `json:"current_price"`
	PreviousPrice string `json:"previous_price"`
	Date          string `json:"date"`
}

// FreshnessRecord is the per-listing state the store keeps between runs:
// the last canonical snapshot plus image bookkeeping.
type FreshnessRecord struct {
	ListingID        string
	Columns          map[string]string
	SnapshotHash     string
	FirstSeen        time.Time
	LastSeen         time.Time
	PublicationDate  string
	UnpublishedDate  string
	LastActive       string
	ImageVersion     int
	LastImageRefresh time.Time
	Removed          bool
	PriceChanges     []PriceChange
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (r *FreshnessRecord) Clone() *FreshnessRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Columns = make(map[string]string, len(r.Columns))
	for k, v := range r.Columns {
		out.Columns[k] = v
	}
	out.PriceChanges = append([]PriceChange(nil), r.PriceChanges...)
	return &out
}

// VerdictKind classifies one listing against its previous snapshot.
type VerdictKind int

const (
	VerdictNew VerdictKind = iota
	VerdictUnchanged
	VerdictUpdated
	VerdictRemoved
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictNew:
		return "new"
	case VerdictUnchanged:
		return "unchanged"
	case VerdictUpdated:
		return "updated"
	case VerdictRemoved:
		return "removed"
	}
	return "unknown"
}

// Verdict is the change detector's output for one listing.
// ChangedKeys is sorted and covers added, removed, and changed columns.
type Verdict struct {
	ListingID   string
	Kind        VerdictKind
	ChangedKeys []string
}

// VisuallyChanged reports whether any changed key belongs to the configured
// set of visually relevant columns.
func (v Verdict) VisuallyChanged(visual map[string]struct{}) bool {
	for _, k := range v.ChangedKeys {
		if _, ok := visual[k]; ok {
			return true
		}
	}
	return false
}

// UnmappedField identifies a raw label the mapping table could not resolve.
type UnmappedField struct {
	Namespace Namespace
	Label     string
}

// KeyConflict records two raw labels that resolved to the same canonical key
// with disagreeing non-empty values. The kept value follows namespace
// precedence.
type KeyConflict struct {
	Key     string
	Kept    string
	Dropped string
}

// NormalizeResult bundles a canonical listing with its diagnostics.
type NormalizeResult struct {
	Listing   *CanonicalListing
	Unmapped  []UnmappedField
	Conflicts []KeyConflict
	UpdatedAt time.Time // parsed from the raw updated label; zero if absent
}

// RunSummary is the batch report produced by one pipeline pass.
type RunSummary struct {
	RunID              string
	StartedAt          time.Time
	Duration           time.Duration
	Normalized         int
	Skipped            int
	UnmappedFields     int
	Conflicts          int
	New                int
	Updated            int
	Unchanged          int
	Removed            int
	ImageRefreshQueued int
	ImageAccepted      int
	Diagnostics        []string
}
