package cian

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

const baseURL = "https://cian.ru"

// SearchConfig declares the rental search: region, districts, metro
// stations, room counts, and price bounds. Loaded once from YAML.
type SearchConfig struct {
	Region   int    `yaml:"region"`
	District []int  `yaml:"district"`
	Street   []int  `yaml:"street"`
	Metro    []int  `yaml:"metro"`
	Rooms    []int  `yaml:"rooms"`
	MinPrice int    `yaml:"minprice"`
	MaxPrice int    `yaml:"maxprice"`
	OfferTyp string `yaml:"offer_type"`
}

// LoadSearchConfig reads the search declaration from path. A missing file
// returns a zero config, which searches the whole default region.
func LoadSearchConfig(path string) (*SearchConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &SearchConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search config: read %q: %w", path, err)
	}
	var cfg SearchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("search config: parse %q: %w", path, err)
	}
	return &cfg, nil
}

// SearchURL builds the catalog URL for a results page (1-based).
func (c *SearchConfig) SearchURL(page int) string {
	q := url.Values{}
	q.Set("currency", "2")
	q.Set("engine_version", "2")
	q.Set("type", "4")
	q.Set("deal_type", "rent")
	q.Set("sort", "creation_date_desc")

	if c.Region > 0 {
		q.Set("region", fmt.Sprintf("%d", c.Region))
	}
	for i, d := range c.District {
		q.Set(fmt.Sprintf("district[%d]", i), fmt.Sprintf("%d", d))
	}
	for i, st := range c.Street {
		q.Set(fmt.Sprintf("street[%d]", i), fmt.Sprintf("%d", st))
	}
	for i, m := range c.Metro {
		q.Set(fmt.Sprintf("metro[%d]", i), fmt.Sprintf("%d", m))
	}
	for _, r := range c.Rooms {
		q.Set(fmt.Sprintf("room%d", r), "1")
	}
	if c.MinPrice > 0 {
		q.Set("minprice", fmt.Sprintf("%d", c.MinPrice))
	}
	if c.MaxPrice > 0 {
		q.Set("maxprice", fmt.Sprintf("%d", c.MaxPrice))
	}
	if page > 1 {
		q.Set("p", fmt.Sprintf("%d", page))
	}

	return baseURL + "/cat.php?" + q.Encode()
}

// OfferURL builds the detail-page URL for an offer id.
func OfferURL(offerID string) string {
	return fmt.Sprintf("%s/rent/flat/%s/", baseURL, offerID)
}
