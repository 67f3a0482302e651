// Package orchestrator coordinates the incremental multi-source feed.
//
// A feed request follows a fast path and a slow path. The fast path queries
// the index-style sources and a shallow recent window of the preprint
// archive, returns one page immediately and banks the overflow in the feed
// cache. The slow path runs detached: a deep sweep over the full recent
// window replenishes the cache batch by batch, and when the preprint side
// of the cache drains below a low-water mark, consecutive 30-day historical
// windows are swept until it refills. Load-more requests drain the cache
// first and only reach upstream when it runs short.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarstream/paper-feed-service/internal/deepsearch"
	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/feedcache"
	"github.com/scholarstream/paper-feed-service/internal/jobs"
	"github.com/scholarstream/paper-feed-service/internal/normalize"
	"github.com/scholarstream/paper-feed-service/internal/observability"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
)

// Threshold defaults. These started life as tuning constants and carry no
// deeper rationale; they are configurable so deployments can adjust them.
const (
	// DefaultMinViableResults is the fresh-result count below which a
	// feed page is considered degraded.
	DefaultMinViableResults = 5

	// DefaultMinLoadMoreBatch is the smallest load-more batch the cache
	// may serve before a fresh fetch tops it up.
	DefaultMinLoadMoreBatch = 10

	// DefaultPageSize is how many papers one feed page carries.
	DefaultPageSize = 20

	// DefaultPreprintLowWater is the cached-preprint count below which a
	// deep historical sweep is scheduled.
	DefaultPreprintLowWater = 40

	// DefaultFetchLimit is how many records each source is asked for on
	// a fast fetch. Larger than a page so the overflow seeds the cache.
	DefaultFetchLimit = 50

	// DefaultReplenishWindowDays is the recent window a background
	// replenish sweeps after each first page.
	DefaultReplenishWindowDays = 30

	// DefaultMaxDeepSweepsPerJob bounds how many consecutive historical
	// windows one deep-search job may consume before yielding.
	DefaultMaxDeepSweepsPerJob = 3
)

// Config holds the orchestrator thresholds. Zero values fall back to the
// defaults above.
type Config struct {
	MinViableResults    int
	MinLoadMoreBatch    int
	PageSize            int
	PreprintLowWater    int
	FetchLimit          int
	ReplenishWindowDays int
	MaxDeepSweepsPerJob int
}

func (c *Config) applyDefaults() {
	if c.MinViableResults <= 0 {
		c.MinViableResults = DefaultMinViableResults
	}
	if c.MinLoadMoreBatch <= 0 {
		c.MinLoadMoreBatch = DefaultMinLoadMoreBatch
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PreprintLowWater <= 0 {
		c.PreprintLowWater = DefaultPreprintLowWater
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = DefaultFetchLimit
	}
	if c.ReplenishWindowDays <= 0 {
		c.ReplenishWindowDays = DefaultReplenishWindowDays
	}
	if c.MaxDeepSweepsPerJob <= 0 {
		c.MaxDeepSweepsPerJob = DefaultMaxDeepSweepsPerJob
	}
}

// DeepSweeper pages exhaustively through a date-bucketed source, emitting
// matched records batch by batch as pages arrive.
type DeepSweeper interface {
	DeepSweep(ctx context.Context, params papersources.SearchParams, onBatch func([]papersources.RawRecord)) error
}

// Page is one orchestrated feed response.
type Page struct {
	// Papers are the papers to display, already deduplicated, filtered
	// and shuffled.
	Papers []*domain.Paper

	// Message carries a non-fatal note when sources failed or results
	// ran dry. Empty on a clean page.
	Message string

	// ServedFromCache reports whether the response was satisfied without
	// any fresh upstream fetch.
	ServedFromCache bool
}

// Deps are the collaborators the orchestrator composes. Registry,
// Normalizer and Cache are required; Sweeper, Cursors and Jobs may be nil,
// which disables background replenishment and deep search. A nil Metrics
// disables instrumentation.
type Deps struct {
	Registry   *papersources.Registry
	Sweeper    DeepSweeper
	Normalizer *normalize.Normalizer
	Cache      *feedcache.Store
	Cursors    *deepsearch.CursorStore
	Jobs       *jobs.Pool
	Metrics    *observability.Metrics
}

// Orchestrator is the feed state machine. Safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	// shuffle is injectable for deterministic tests.
	shuffle func(n int, swap func(i, j int))

	mu           sync.Mutex
	replenishing map[domain.QueryKey]bool
	deepSweeping map[domain.QueryKey]bool
}

// New creates an orchestrator.
func New(cfg Config, deps Deps, logger zerolog.Logger) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:          cfg,
		deps:         deps,
		logger:       logger.With().Str("component", "orchestrator").Logger(),
		shuffle:      rand.Shuffle,
		replenishing: make(map[domain.QueryKey]bool),
		deepSweeping: make(map[domain.QueryKey]bool),
	}
}

// FetchPage serves the first page of a feed: fast fetch across all enabled
// sources, threshold check, shuffle, slice one page, cache the overflow and
// schedule a background replenish.
//
// Source failures never fail the page. As long as at least one source
// produced records the page is returned with a message naming the failed
// sources; when everything fails or nothing matches, an empty page with a
// message comes back rather than an error.
func (o *Orchestrator) FetchPage(ctx context.Context, key domain.QueryKey, params papersources.SearchParams, rated map[string]bool) (*Page, error) {
	if params.MaxResults <= 0 {
		params.MaxResults = o.cfg.FetchLimit
	}

	fresh, failed := o.fastFetch(ctx, key, params, rated)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := o.pageMessage(len(fresh), failed)

	o.shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })

	page := fresh
	if len(page) > o.cfg.PageSize {
		page = fresh[:o.cfg.PageSize]
		banked := o.deps.Cache.AppendNew(key, fresh[o.cfg.PageSize:])
		o.recordCacheAppended(banked)
		o.logger.Debug().Str("key", key.String()).Int("banked", banked).Msg("cached overflow")
	}
	o.deps.Cache.MarkShown(key, paperIDs(page))

	o.scheduleReplenish(key, params, rated)

	return &Page{Papers: page, Message: msg}, nil
}

// LoadMore serves a follow-up batch, preferring the cache. When the cache
// yields fewer than the minimum batch, a fresh fast fetch tops it up, and
// if that still falls short a bounded sweep of the recent preprint window
// runs synchronously before giving up. A deep historical sweep is scheduled
// whenever the cached preprint partition sits below the low-water mark.
func (o *Orchestrator) LoadMore(ctx context.Context, key domain.QueryKey, params papersources.SearchParams, rated map[string]bool, pageSize int) (*Page, error) {
	if pageSize <= 0 {
		pageSize = o.cfg.PageSize
	}
	if params.MaxResults <= 0 {
		params.MaxResults = o.cfg.FetchLimit
	}

	taken := filterRated(o.deps.Cache.TakeNext(key, pageSize), rated)
	served := &Page{Papers: taken, ServedFromCache: true}

	if len(taken) < o.cfg.MinLoadMoreBatch {
		served.ServedFromCache = false

		fresh, failed := o.fastFetch(ctx, key, params, rated)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		taken = o.topUp(key, taken, fresh, pageSize)

		if len(taken) < o.cfg.MinLoadMoreBatch && o.deps.Sweeper != nil {
			swept := o.sweepRecent(ctx, key, params, rated)
			taken = o.topUp(key, taken, swept, pageSize)
		}

		served.Papers = taken
		served.Message = o.pageMessage(len(taken), failed)
	}

	o.deps.Cache.MarkShown(key, paperIDs(served.Papers))

	if o.preprintsBelowLowWater(key) {
		o.scheduleDeepSearch(key, params, rated)
	}

	return served, nil
}

// fastFetch queries every enabled source concurrently and returns the
// normalized, filtered, first-seen-deduplicated papers plus the names of
// sources that failed. The preprint source applies its own shallow recent
// window when the params carry no date bounds.
func (o *Orchestrator) fastFetch(ctx context.Context, key domain.QueryKey, params papersources.SearchParams, rated map[string]bool) ([]*domain.Paper, []string) {
	results := o.deps.Registry.SearchAll(ctx, params)

	var failed []string
	var records []papersources.RawRecord
	for _, r := range results {
		o.recordFetch(r)
		if r.Error != nil {
			failed = append(failed, string(r.Source))
			qlog := observability.WithQueryContext(o.logger, key.String(), string(r.Source))
			qlog.Warn().Err(r.Error).Msg("source fetch failed")
			continue
		}
		records = append(records, r.Result.Records...)
	}
	sort.Strings(failed)

	papers := o.normalizeCounted(ctx, records)
	return o.dedupFresh(key, papers, rated), failed
}

// normalizeCounted normalizes records and counts the ones that did not
// survive normalization.
func (o *Orchestrator) normalizeCounted(ctx context.Context, records []papersources.RawRecord) []*domain.Paper {
	papers := o.deps.Normalizer.NormalizeAll(ctx, records)
	if o.deps.Metrics != nil && len(records) > len(papers) {
		o.deps.Metrics.RecordPapersDropped(len(records) - len(papers))
	}
	return papers
}

// recordFetch reports one source's fetch outcome.
func (o *Orchestrator) recordFetch(r papersources.SourceResult) {
	m := o.deps.Metrics
	if m == nil {
		return
	}
	if r.Error == nil {
		m.RecordSourceFetch(string(r.Source), len(r.Result.Records), r.Elapsed.Seconds())
		return
	}

	var rateErr *domain.RateLimitError
	switch {
	case errors.As(r.Error, &rateErr) || errors.Is(r.Error, domain.ErrRateLimited):
		m.RecordSourceRateLimited(string(r.Source))
		m.RecordSourceFetchFailed(string(r.Source), "rate_limited", r.Elapsed.Seconds())
	case errors.Is(r.Error, context.DeadlineExceeded):
		m.RecordSourceFetchFailed(string(r.Source), "timeout", r.Elapsed.Seconds())
	default:
		m.RecordSourceFetchFailed(string(r.Source), "error", r.Elapsed.Seconds())
	}
}

func (o *Orchestrator) recordCacheAppended(count int) {
	if o.deps.Metrics != nil && count > 0 {
		o.deps.Metrics.RecordCacheAppended(count)
	}
}

// dedupFresh drops rated, already-shown and repeated papers, keeping the
// first occurrence of each id.
func (o *Orchestrator) dedupFresh(key domain.QueryKey, papers []*domain.Paper, rated map[string]bool) []*domain.Paper {
	seen := make(map[string]bool, len(papers))
	fresh := papers[:0]
	for _, p := range papers {
		if seen[p.ID] || rated[p.ID] || o.deps.Cache.WasShown(key, p.ID) {
			continue
		}
		seen[p.ID] = true
		fresh = append(fresh, p)
	}
	return fresh
}

// topUp extends taken with fresh papers up to pageSize and banks the rest.
func (o *Orchestrator) topUp(key domain.QueryKey, taken, fresh []*domain.Paper, pageSize int) []*domain.Paper {
	have := make(map[string]bool, len(taken))
	for _, p := range taken {
		have[p.ID] = true
	}

	var overflow []*domain.Paper
	for _, p := range fresh {
		if have[p.ID] {
			continue
		}
		if len(taken) < pageSize {
			have[p.ID] = true
			taken = append(taken, p)
			continue
		}
		overflow = append(overflow, p)
	}

	if len(overflow) > 0 {
		o.recordCacheAppended(o.deps.Cache.AppendNew(key, overflow))
	}
	return taken
}

// sweepRecent runs a bounded synchronous sweep of the recent preprint
// window. Used only when cache plus fast fetch cannot fill a minimum
// load-more batch.
func (o *Orchestrator) sweepRecent(ctx context.Context, key domain.QueryKey, params papersources.SearchParams, rated map[string]bool) []*domain.Paper {
	sweepParams := o.recentWindowParams(params)

	var mu sync.Mutex
	var collected []*domain.Paper
	err := o.deps.Sweeper.DeepSweep(ctx, sweepParams, func(batch []papersources.RawRecord) {
		papers := filterRated(o.normalizeCounted(ctx, batch), rated)
		mu.Lock()
		collected = append(collected, papers...)
		mu.Unlock()
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("key", key.String()).Msg("synchronous recent sweep aborted")
	}
	return o.dedupFresh(key, collected, rated)
}

// pageMessage builds the non-fatal message for a degraded page. A page with
// fewer than MinViableResults papers is degraded even when every source
// responded.
func (o *Orchestrator) pageMessage(resultCount int, failedSources []string) string {
	switch {
	case resultCount == 0 && len(failedSources) > 0:
		return fmt.Sprintf("no results: %s did not respond", strings.Join(failedSources, ", "))
	case resultCount == 0:
		return "no results found for this query"
	case len(failedSources) > 0:
		return fmt.Sprintf("results may be incomplete: %s did not respond", strings.Join(failedSources, ", "))
	case resultCount < o.cfg.MinViableResults:
		return "only a few results matched this query"
	default:
		return ""
	}
}

func (o *Orchestrator) preprintsBelowLowWater(key domain.QueryKey) bool {
	counts := o.deps.Cache.RemainingBySource(key)
	return counts[domain.SourceTypeBioRxiv] < o.cfg.PreprintLowWater
}

// recentWindowParams returns params covering the replenish window ending
// today.
func (o *Orchestrator) recentWindowParams(params papersources.SearchParams) papersources.SearchParams {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -(o.cfg.ReplenishWindowDays - 1))
	params.DateFrom = &from
	params.DateTo = &to
	return params
}

func filterRated(papers []*domain.Paper, rated map[string]bool) []*domain.Paper {
	if len(rated) == 0 {
		return papers
	}
	kept := papers[:0]
	for _, p := range papers {
		if rated[p.ID] {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func paperIDs(papers []*domain.Paper) []string {
	ids := make([]string, 0, len(papers))
	for _, p := range papers {
		ids = append(ids, p.ID)
	}
	return ids
}
