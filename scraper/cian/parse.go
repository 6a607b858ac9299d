package cian

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cian-scraper/models"
)

// groupTitles maps the listing page's section headings onto namespaces.
var groupTitles = map[string]models.Namespace{
	"Условия сделки": models.NamespaceRentalTerms,
	"Об аренде":      models.NamespaceRentalTerms,
	"О квартире":     models.NamespaceApartment,
	"О доме":         models.NamespaceBuilding,
	"В квартире":     models.NamespaceFeatures,
}

var offerIDRegexp = regexp.MustCompile(`/(\d+)/?$`)

// extractOfferID pulls the numeric offer id off a detail-page URL.
func extractOfferID(pageURL string) string {
	match := offerIDRegexp.FindStringSubmatch(strings.TrimRight(pageURL, "/") + "/")
	if match == nil {
		return ""
	}
	return match[1]
}

// parseSearchPage extracts offer detail-page URLs from a rendered search
// results page.
func parseSearchPage(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	seen := make(map[string]struct{})
	var urls []string

	doc.Find(`a[href*="/rent/flat/"], article[data-name="CardComponent"] a`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		id := extractOfferID(href)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		urls = append(urls, href)
	})

	return urls, nil
}

// parseOfferPage extracts one RawListing from a rendered detail page.
// The four label/value groups keep their on-page order so downstream
// collision handling is deterministic.
func parseOfferPage(html, pageURL string, scrapedAt time.Time) (*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse offer page: %w", err)
	}

	raw := &models.RawListing{
		OfferID:   extractOfferID(pageURL),
		URL:       pageURL,
		Groups:    make(map[models.Namespace][]models.RawField),
		ScrapedAt: scrapedAt,
	}
	if raw.OfferID == "" {
		return nil, &models.SourceFormatError{Reason: fmt.Sprintf("no offer id in url %q", pageURL)}
	}

	raw.Price = firstText(doc,
		`[data-testid="price-amount"]`,
		`span[itemprop="price"]`,
		`[data-name="PriceInfo"]`)
	raw.Description = firstText(doc,
		`[data-name="Description"] p`,
		`[data-id="content-description"]`)
	raw.UpdatedLabel = firstText(doc,
		`[data-name="OfferMetaData"] [data-testid="metadata-updated-date"]`,
		`[data-name="OfferAdded"]`)
	raw.EstimationPrice = firstText(doc, `[data-name="EstimationPrice"]`)

	doc.Find(`[data-name="Geo"] [data-name="AddressItem"], address a`).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			raw.AddressParts = append(raw.AddressParts, text)
		}
	})

	doc.Find(`[data-name="Gallery"] img, [data-name="Thumbs"] img`).Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && strings.HasPrefix(src, "http") {
			raw.ImageURLs = append(raw.ImageURLs, src)
		}
	})

	// The info groups: a section heading followed by label/value rows.
	doc.Find(`[data-name="OfferSummaryInfoGroup"], section`).Each(func(_ int, group *goquery.Selection) {
		title := strings.TrimSpace(group.Find("h2").First().Text())
		ns, ok := groupTitles[title]
		if !ok {
			return
		}
		group.Find(`[data-name="OfferSummaryInfoItem"]`).Each(func(_ int, item *goquery.Selection) {
			ps := item.Find("p")
			if ps.Length() < 2 {
				return
			}
			label := strings.TrimSpace(ps.Eq(0).Text())
			value := strings.TrimSpace(ps.Eq(1).Text())
			if label == "" {
				return
			}
			raw.Groups[ns] = append(raw.Groups[ns], models.RawField{Label: label, Value: value})
		})
	})

	return raw, nil
}

// isNotFoundPage reports whether the rendered page is a 404 or an
// "offer unpublished" placeholder.
func isNotFoundPage(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "страница не найдена") ||
		strings.Contains(lower, "объявление снято с публикации") ||
		strings.Contains(lower, "offer-unpublished")
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
