package services

import (
	"strings"
	"time"

	"cian-scraper/mapping"
	"cian-scraper/models"
	"cian-scraper/utils"
)

// numericKeys are canonical columns whose raw values carry currency or unit
// formatting and get cleaned down to plain numbers.
var numericKeys = map[string]struct{}{
	"security_deposit": {},
	"commission":       {},
	"prepayment":       {},
	"offer_price":      {},
	"estimation_price": {},
	"total_area":       {},
	"living_area":      {},
	"kitchen_area":     {},
	"room_area":        {},
	"ceiling_height":   {},
}

// Normalizer maps raw scraped listings onto the canonical schema.
// It is pure per listing: all state lives in the table passed at
// construction.
type Normalizer struct {
	table  *mapping.Table
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer bound to a validated mapping table.
func NewNormalizer(table *mapping.Table, logger *utils.Logger) *Normalizer {
	return &Normalizer{table: table, logger: logger}
}

// Normalize converts one RawListing into its canonical form. Unmapped labels
// never fail the listing: the field is dropped and reported. Only a
// structurally broken listing (missing offer id) returns an error, and that
// error isolates the listing from the rest of the batch.
func (n *Normalizer) Normalize(raw *models.RawListing) (*models.NormalizeResult, error) {
	if raw == nil {
		return nil, &models.SourceFormatError{Reason: "nil listing"}
	}
	if strings.TrimSpace(raw.OfferID) == "" {
		return nil, &models.SourceFormatError{OfferID: raw.OfferID, Reason: "empty offer id"}
	}

	result := &models.NormalizeResult{
		Listing: &models.CanonicalListing{
			ListingID: strings.TrimSpace(raw.OfferID),
			Columns:   make(map[string]string),
		},
	}

	// Namespace groups in fixed precedence order, pairs in page order.
	for _, ns := range models.NamespaceOrder {
		for _, field := range raw.Groups[ns] {
			key, ok := n.table.Resolve(ns, field.Label)
			if !ok {
				result.Unmapped = append(result.Unmapped, models.UnmappedField{
					Namespace: ns,
					Label:     field.Label,
				})
				n.logger.Debug("[normalizer] %s: %v",
					raw.OfferID, &models.UnmappedFieldError{Namespace: ns, Label: field.Label})
				continue
			}
			n.setColumn(result, key, field.Value)
		}
	}

	n.setCoreColumns(result, raw)

	if raw.UpdatedLabel != "" {
		// Relative labels ("сегодня") resolve against the scrape time, so
		// re-normalizing the same listing stays deterministic.
		ref := raw.ScrapedAt
		if ref.IsZero() {
			ref = time.Now()
		}
		if updated, ok := ParseRussianDate(raw.UpdatedLabel, ref); ok {
			result.UpdatedAt = updated
		} else {
			n.logger.Warn("[normalizer] %s: unparseable updated label %q", raw.OfferID, raw.UpdatedLabel)
		}
	}

	return result, nil
}

// setColumn applies the collision policy: the first namespace in declared
// order wins, a later non-empty value beats an earlier empty one, and
// disagreeing non-empty duplicates keep the earlier value and record a
// conflict. Empty values are treated as absent and never stored, which is
// what makes "later non-empty beats earlier empty" fall out naturally.
func (n *Normalizer) setColumn(result *models.NormalizeResult, key, rawValue string) {
	value := normalizeText(rawValue)
	if _, numeric := numericKeys[key]; numeric && value != "" {
		if parsed, ok := ParseNumericValue(value); ok {
			value = parsed
		}
	}
	if value == "" {
		return
	}

	existing, present := result.Listing.Columns[key]
	if !present {
		result.Listing.Columns[key] = value
		return
	}
	if existing == value {
		return
	}

	result.Conflicts = append(result.Conflicts, models.KeyConflict{
		Key:     key,
		Kept:    existing,
		Dropped: value,
	})
	n.logger.Warn("[normalizer] %s: conflicting values for %s: kept %q, dropped %q",
		result.Listing.ListingID, key, existing, value)
}

func (n *Normalizer) setCoreColumns(result *models.NormalizeResult, raw *models.RawListing) {
	n.setColumn(result, "offer_price", raw.Price)
	n.setColumn(result, "estimation_price", raw.EstimationPrice)

	if desc := normalizeText(raw.Description); desc != "" {
		result.Listing.Columns["description"] = desc
	}
	if url := strings.TrimRight(strings.TrimSpace(raw.URL), "/"); url != "" {
		result.Listing.Columns["url"] = url
	}
	if addr := BuildFullAddress(raw.AddressParts); addr != "" {
		result.Listing.Columns["full_address"] = addr
	}
}

// normalizeText trims and collapses whitespace, flattening newlines so the
// value stays on one CSV row.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
