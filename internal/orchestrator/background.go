package orchestrator

import (
	"context"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/jobs"
	"github.com/scholarstream/paper-feed-service/internal/observability"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
)

// Background job names, used in logs and job metrics.
const (
	jobReplenish  = "feed_replenish"
	jobDeepSearch = "deep_search"
)

// scheduleReplenish submits a detached sweep of the recent preprint window
// for the query. At most one replenish per key runs at a time; a key whose
// replenish is already in flight is left alone.
func (o *Orchestrator) scheduleReplenish(key domain.QueryKey, params papersources.SearchParams, rated map[string]bool) {
	if o.deps.Sweeper == nil || o.deps.Jobs == nil {
		return
	}

	o.mu.Lock()
	if o.replenishing[key] {
		o.mu.Unlock()
		return
	}
	o.replenishing[key] = true
	o.mu.Unlock()

	ok := o.deps.Jobs.Submit(jobs.Job{
		Name: jobReplenish,
		Key:  key.String(),
		Run: func(ctx context.Context) error {
			defer o.clearReplenishing(key)

			err := o.sweepInto(ctx, key, o.recentWindowParams(params), rated)

			// The replenish outcome decides whether history is needed.
			if o.preprintsBelowLowWater(key) {
				o.scheduleDeepSearch(key, params, rated)
			}
			return err
		},
	})
	o.recordJobSubmit(jobReplenish, ok)
	if !ok {
		o.clearReplenishing(key)
	}
}

// scheduleDeepSearch submits a detached historical sweep for the query.
// The job consumes consecutive backward windows from the cursor store
// until the preprint partition refills or the per-job bound is reached.
func (o *Orchestrator) scheduleDeepSearch(key domain.QueryKey, params papersources.SearchParams, rated map[string]bool) {
	if o.deps.Sweeper == nil || o.deps.Jobs == nil || o.deps.Cursors == nil {
		return
	}

	o.mu.Lock()
	if o.deepSweeping[key] {
		o.mu.Unlock()
		return
	}
	o.deepSweeping[key] = true
	o.mu.Unlock()

	ok := o.deps.Jobs.Submit(jobs.Job{
		Name: jobDeepSearch,
		Key:  key.String(),
		Run: func(ctx context.Context) error {
			defer o.clearDeepSweeping(key)

			logger := observability.WithJobContext(o.logger, jobDeepSearch, key.String())

			for i := 0; i < o.cfg.MaxDeepSweepsPerJob; i++ {
				if !o.preprintsBelowLowWater(key) {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}

				window := o.deps.Cursors.NextWindow(key)
				sweepParams := params
				sweepParams.DateFrom = &window.Start
				sweepParams.DateTo = &window.End

				logger.Debug().
					Time("from", window.Start).
					Time("to", window.End).
					Msg("sweeping historical window")

				if err := o.sweepInto(ctx, key, sweepParams, rated); err != nil {
					return err
				}
			}
			return nil
		},
	})
	o.recordJobSubmit(jobDeepSearch, ok)
	if !ok {
		o.clearDeepSweeping(key)
	}
}

// sweepInto runs one deep sweep and appends each matched batch to the feed
// cache as it arrives, so concurrent load-more calls see new papers before
// the sweep finishes. Rated and already-shown papers never enter the cache.
func (o *Orchestrator) sweepInto(ctx context.Context, key domain.QueryKey, params papersources.SearchParams, rated map[string]bool) error {
	return o.deps.Sweeper.DeepSweep(ctx, params, func(batch []papersources.RawRecord) {
		papers := filterRated(o.normalizeCounted(ctx, batch), rated)
		if len(papers) == 0 {
			return
		}
		added := o.deps.Cache.AppendNew(key, papers)
		o.recordCacheAppended(added)
		if added > 0 {
			o.logger.Debug().Str("key", key.String()).Int("added", added).Msg("replenished cache")
		}
	})
}

func (o *Orchestrator) recordJobSubmit(name string, enqueued bool) {
	if o.deps.Metrics == nil {
		return
	}
	if enqueued {
		o.deps.Metrics.RecordJobEnqueued(name)
	} else {
		o.deps.Metrics.RecordJobDropped(name)
	}
}

func (o *Orchestrator) clearReplenishing(key domain.QueryKey) {
	o.mu.Lock()
	delete(o.replenishing, key)
	o.mu.Unlock()
}

func (o *Orchestrator) clearDeepSweeping(key domain.QueryKey) {
	o.mu.Lock()
	delete(o.deepSweeping, key)
	o.mu.Unlock()
}
