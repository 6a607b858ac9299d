// Package pipeline runs one full pass: normalize raw listings, detect
// changes against the store, persist updated freshness records, and queue
// image refreshes. A pass is idempotent: re-running on unchanged input
// yields all-UNCHANGED verdicts and no store mutation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cian-scraper/models"
	"cian-scraper/services"
	"cian-scraper/storage"
	"cian-scraper/utils"
)

// ImageSubmitter is the narrow interface to the external image pipeline.
type ImageSubmitter interface {
	Enabled() bool
	Submit(ctx context.Context, listingIDs []string) (int, error)
}

// Pipeline wires the normalizer, detector, store, and refresh selector.
type Pipeline struct {
	normalizer *services.Normalizer
	detector   *services.Detector
	selector   *services.RefreshSelector
	store      storage.ListingStore
	images     ImageSubmitter
	locks      *utils.KeyedLock
	recMu      sync.Mutex
	pool       *utils.WorkerPool
	logger     *utils.Logger
}

// Options carries the optional knobs; zero values give a sequential run
// with no image submission.
type Options struct {
	Images      ImageSubmitter
	Concurrency int
}

// New assembles a Pipeline around an opened store.
func New(normalizer *services.Normalizer, detector *services.Detector, selector *services.RefreshSelector,
	store storage.ListingStore, opts Options, logger *utils.Logger) *Pipeline {
	p := &Pipeline{
		normalizer: normalizer,
		detector:   detector,
		selector:   selector,
		store:      store,
		images:     opts.Images,
		locks:      utils.NewKeyedLock(),
		logger:     logger,
	}
	if opts.Concurrency > 1 {
		p.pool = utils.NewWorkerPool(opts.Concurrency, 0)
	}
	return p
}

// Run processes one scraped batch. Per-listing failures are isolated and
// reported in the summary; only store access errors abort the run.
func (p *Pipeline) Run(ctx context.Context, raw []*models.RawListing) (*models.RunSummary, error) {
	start := time.Now()
	summary := &models.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: start,
	}

	records, err := p.store.Load()
	if err != nil {
		return nil, fmt.Errorf("pipeline: load store: %w", err)
	}
	p.logger.Info("[pipeline] run %s — %d raw listings against %d stored records",
		summary.RunID, len(raw), len(records))

	type outcome struct {
		verdict     models.Verdict
		unmapped    int
		conflicts   int
		diagnostics []string
		skipped     bool
	}
	outcomes := make([]outcome, len(raw))
	scraped := make(map[string]struct{}, len(raw))

	process := func(i int) {
		r := raw[i]
		out := &outcomes[i]

		if r != nil && r.Unpublished {
			out.verdict = models.Verdict{ListingID: r.OfferID, Kind: models.VerdictRemoved}
			p.applyRemoved(records, r.OfferID, time.Now())
			return
		}

		result, err := p.normalizer.Normalize(r)
		if err != nil {
			var srcErr *models.SourceFormatError
			if errors.As(err, &srcErr) {
				out.skipped = true
				out.diagnostics = append(out.diagnostics, srcErr.Error())
				p.logger.Warn("[pipeline] skipping listing: %v", srcErr)
				return
			}
			out.skipped = true
			out.diagnostics = append(out.diagnostics, err.Error())
			return
		}

		out.unmapped = len(result.Unmapped)
		out.conflicts = len(result.Conflicts)
		for _, u := range result.Unmapped {
			out.diagnostics = append(out.diagnostics,
				fmt.Sprintf("%s: unmapped %s/%s", result.Listing.ListingID, u.Namespace, u.Label))
		}
		for _, c := range result.Conflicts {
			out.diagnostics = append(out.diagnostics,
				fmt.Sprintf("%s: conflict on %s: kept %q, dropped %q",
					result.Listing.ListingID, c.Key, c.Kept, c.Dropped))
		}

		out.verdict = p.applyListing(records, result, time.Now())
	}

	if p.pool != nil {
		for i := range raw {
			i := i
			p.pool.Submit(func() { process(i) })
		}
		p.pool.Wait()
	} else {
		for i := range raw {
			process(i)
		}
	}

	var verdicts []models.Verdict
	for i, out := range outcomes {
		if out.skipped {
			summary.Skipped++
			summary.Diagnostics = append(summary.Diagnostics, out.diagnostics...)
			continue
		}
		if raw[i] != nil && !raw[i].Unpublished {
			summary.Normalized++
			scraped[out.verdict.ListingID] = struct{}{}
		}
		summary.UnmappedFields += out.unmapped
		summary.Conflicts += out.conflicts
		summary.Diagnostics = append(summary.Diagnostics, out.diagnostics...)
		verdicts = append(verdicts, out.verdict)

		switch out.verdict.Kind {
		case models.VerdictNew:
			summary.New++
		case models.VerdictUpdated:
			summary.Updated++
		case models.VerdictUnchanged:
			summary.Unchanged++
		case models.VerdictRemoved:
			summary.Removed++
		}
	}

	// Active records absent from this scrape have disappeared from the
	// source; mark them removed but keep the snapshot.
	for id, rec := range records {
		if rec.Removed {
			continue
		}
		if _, ok := scraped[id]; ok {
			continue
		}
		p.applyRemoved(records, id, time.Now())
		verdicts = append(verdicts, models.Verdict{ListingID: id, Kind: models.VerdictRemoved})
		summary.Removed++
	}

	if err := p.store.Flush(); err != nil {
		return nil, fmt.Errorf("pipeline: flush store: %w", err)
	}

	p.queueImageRefresh(ctx, verdicts, records, summary)

	summary.Duration = time.Since(start)
	return summary, nil
}

// applyListing runs detect + freshness transition + store upsert under the
// listing's key lock, so concurrent workers never race on one id while
// distinct ids proceed in parallel.
func (p *Pipeline) applyListing(records map[string]*models.FreshnessRecord, result *models.NormalizeResult, now time.Time) models.Verdict {
	id := result.Listing.ListingID
	p.locks.Lock(id)
	defer p.locks.Unlock(id)

	prev := p.getRecord(records, id)
	verdict := p.detector.Detect(result.Listing, prev)

	// Idempotence: unchanged input causes no store mutation. A removed
	// record that reappears still needs its lifecycle fields reset.
	if verdict.Kind == models.VerdictUnchanged && !prev.Removed {
		return verdict
	}

	rec := p.detector.Apply(prev, result.Listing, verdict, result.UpdatedAt, now)
	p.setRecord(records, rec)
	if err := p.store.Upsert(rec); err != nil {
		p.logger.Error("[pipeline] upsert %s: %v", id, err)
	}
	return verdict
}

func (p *Pipeline) applyRemoved(records map[string]*models.FreshnessRecord, id string, now time.Time) {
	p.locks.Lock(id)
	defer p.locks.Unlock(id)

	prev := p.getRecord(records, id)
	if prev == nil {
		// Never stored; nothing to mark.
		return
	}
	rec := p.detector.MarkRemoved(prev, time.Time{}, now)
	p.setRecord(records, rec)
	if err := p.store.Upsert(rec); err != nil {
		p.logger.Error("[pipeline] upsert removed %s: %v", id, err)
	}
}

// getRecord and setRecord guard the shared records map itself; the keyed
// lock only scopes the read-modify-write cycle per listing id.
func (p *Pipeline) getRecord(records map[string]*models.FreshnessRecord, id string) *models.FreshnessRecord {
	p.recMu.Lock()
	defer p.recMu.Unlock()
	return records[id]
}

func (p *Pipeline) setRecord(records map[string]*models.FreshnessRecord, rec *models.FreshnessRecord) {
	p.recMu.Lock()
	defer p.recMu.Unlock()
	records[rec.ListingID] = rec
}

// queueImageRefresh picks the refresh batch and hands it to the external
// image pipeline. Submission failures are diagnostics, not run failures.
func (p *Pipeline) queueImageRefresh(ctx context.Context, verdicts []models.Verdict, records map[string]*models.FreshnessRecord, summary *models.RunSummary) {
	ids := p.selector.Select(verdicts, records)
	summary.ImageRefreshQueued = len(ids)
	if len(ids) == 0 || p.images == nil || !p.images.Enabled() {
		return
	}

	accepted, err := p.images.Submit(ctx, ids)
	if err != nil {
		summary.Diagnostics = append(summary.Diagnostics, fmt.Sprintf("image submit: %v", err))
		p.logger.Error("[pipeline] image submit failed: %v", err)
		return
	}
	summary.ImageAccepted = accepted

	now := time.Now()
	for _, id := range ids {
		p.locks.Lock(id)
		if rec := p.getRecord(records, id); rec != nil {
			rec = rec.Clone()
			rec.LastImageRefresh = now
			rec.ImageVersion++
			p.setRecord(records, rec)
			if err := p.store.Upsert(rec); err != nil {
				p.logger.Error("[pipeline] upsert image refresh %s: %v", id, err)
			}
		}
		p.locks.Unlock(id)
	}
	if err := p.store.Flush(); err != nil {
		p.logger.Error("[pipeline] flush after image refresh: %v", err)
	}
}
