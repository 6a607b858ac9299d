package cian

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"cian-scraper/config"
	"cian-scraper/models"
	"cian-scraper/utils"
)

// Scraper drives search-page pagination and detail-page extraction against
// Cian. Anti-bot handling beyond a realistic UA and pacing is out of scope
// here; the operational watchdog and VPN rotation live outside the process.
type Scraper struct {
	cfg     *config.Config
	search  *SearchConfig
	logger  *utils.Logger
	pool    *utils.WorkerPool
	visited *utils.URLSet
	retry   *utils.RetryConfig

	mu       sync.Mutex
	listings []*models.RawListing
}

// New creates a ready-to-use Cian Scraper.
func New(cfg *config.Config, search *SearchConfig, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		search:  search,
		logger:  logger,
		pool:    utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		visited: utils.NewURLSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		listings: make([]*models.RawListing, 0),
	}
}

// Scrape walks the configured number of search pages and fetches every
// unseen offer's detail page. knownIDs lets the caller re-check listings it
// already stores even when they drop out of search results.
func (s *Scraper) Scrape(ctx context.Context, knownIDs []string) ([]*models.RawListing, error) {
	s.logger.Info("[cian] Starting scrape — target: %d search pages", s.cfg.PagesToScrape)

	chromeBin := findChromeBinary(s.cfg.ChromeBin)
	s.logger.Info("[cian] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelSilent()
	allocCtx = silentCtx

	var offerURLs []string
	for page := 1; page <= s.cfg.PagesToScrape; page++ {
		pageURL := s.search.SearchURL(page)
		s.logger.Info("[cian] Scraping search page %d — URL: %s", page, pageURL)

		urls, err := s.scrapeSearchPage(allocCtx, pageURL, page)
		if err != nil {
			s.logger.Error("[cian] Search page %d failed: %v", page, err)
			break
		}
		if len(urls) == 0 {
			s.logger.Warn("[cian] Search page %d returned 0 offers — stopping", page)
			break
		}
		offerURLs = append(offerURLs, urls...)
		time.Sleep(time.Duration(s.cfg.RateLimitMs) * time.Millisecond)
	}

	// Re-check known listings that fell out of search: a 404 there is the
	// unpublished signal the change detector needs.
	inSearch := make(map[string]struct{}, len(offerURLs))
	for _, u := range offerURLs {
		inSearch[extractOfferID(u)] = struct{}{}
	}
	for _, id := range knownIDs {
		if _, ok := inSearch[id]; !ok {
			offerURLs = append(offerURLs, OfferURL(id))
		}
	}

	s.logger.Info("[cian] Fetching %d offer detail pages", len(offerURLs))
	s.scrapeDetailPages(allocCtx, offerURLs)

	s.logger.Info("[cian] Scrape complete — total raw listings: %d", len(s.listings))
	return s.listings, nil
}

// scrapeSearchPage loads one search results page and extracts offer URLs.
func (s *Scraper) scrapeSearchPage(allocCtx context.Context, pageURL string, pageNum int) ([]string, error) {
	var urls []string

	err := s.retry.Do(fmt.Sprintf("search-page-%d", pageNum), func() error {
		html, _, err := s.renderPage(allocCtx, pageURL, 90*time.Second)
		if err != nil {
			return err
		}
		parsed, err := parseSearchPage(html)
		if err != nil {
			return err
		}
		urls = parsed
		return nil
	})

	return urls, err
}

// scrapeDetailPages fans detail-page fetches out over the worker pool.
func (s *Scraper) scrapeDetailPages(allocCtx context.Context, offerURLs []string) {
	for _, offerURL := range offerURLs {
		u := offerURL
		if !s.visited.Add(u) {
			s.logger.Debug("[cian] Skipping duplicate: %s", u)
			continue
		}

		s.pool.Submit(func() {
			raw, err := s.scrapeDetailPage(allocCtx, u)
			if err != nil {
				s.logger.Warn("[cian] Detail page failed for %s: %v", u, err)
				return
			}

			s.mu.Lock()
			s.listings = append(s.listings, raw)
			s.mu.Unlock()
		})
	}
	s.pool.Wait()
}

// scrapeDetailPage renders one offer page and parses it into a RawListing.
// A 404 or unpublished placeholder still yields a listing, flagged
// Unpublished, so the pipeline can mark the stored record removed.
func (s *Scraper) scrapeDetailPage(allocCtx context.Context, pageURL string) (*models.RawListing, error) {
	var raw *models.RawListing

	err := s.retry.Do("detail-page", func() error {
		html, status, err := s.renderPage(allocCtx, pageURL, 60*time.Second)
		if err != nil {
			return err
		}

		if status == http.StatusNotFound || isNotFoundPage(html) {
			id := extractOfferID(pageURL)
			if id == "" {
				return &models.SourceFormatError{Reason: fmt.Sprintf("404 page with no offer id: %s", pageURL)}
			}
			s.logger.Info("[cian] Offer %s is unpublished (404)", id)
			raw = &models.RawListing{
				OfferID:     id,
				URL:         strings.TrimRight(pageURL, "/"),
				Unpublished: true,
				ScrapedAt:   time.Now(),
			}
			return nil
		}

		parsed, err := parseOfferPage(html, pageURL, time.Now())
		if err != nil {
			return err
		}
		raw = parsed
		return nil
	})

	return raw, err
}

// renderPage navigates to a URL in a fresh tab and returns the rendered HTML.
func (s *Scraper) renderPage(allocCtx context.Context, pageURL string, timeout time.Duration) (string, int, error) {
	tabCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	var html string
	var status int

	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(4*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`document.title.includes('404') || document.title.includes('не найдена') ? 404 : 200`, &status),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", 0, fmt.Errorf("chromedp render %s: %w", pageURL, err)
	}
	return html, status, nil
}

// findChromeBinary locates the Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
