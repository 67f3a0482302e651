package biorxiv

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default bioRxiv API base URL.
	DefaultBaseURL = "https://api.biorxiv.org"

	// DefaultServer selects the preprint server to page through.
	DefaultServer = "biorxiv"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// PageSize is the fixed number of records per cursor step in the
	// details API. Cursors are always multiples of this value.
	PageSize = 100

	// DefaultShallowDays is how many recent days a shallow Search covers
	// when the caller gives no date bounds.
	DefaultShallowDays = 10

	// DefaultShallowConcurrency bounds parallel day fetches on the hot path.
	DefaultShallowConcurrency = 10

	// DefaultDeepConcurrency bounds parallel page fetches in a deep sweep.
	DefaultDeepConcurrency = 15

	// sourceName is the human-readable name for this source.
	sourceName = "bioRxiv"
)

// Config holds configuration for the bioRxiv client.
type Config struct {
	// BaseURL is the bioRxiv API base URL.
	// Defaults to https://api.biorxiv.org
	BaseURL string

	// Server is the preprint server slug ("biorxiv" or "medrxiv").
	// Defaults to "biorxiv".
	Server string

	// Timeout is the request timeout. Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to 5.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed. Defaults to 10.
	BurstSize int

	// ShallowConcurrency bounds parallel day fetches in Search.
	// Defaults to DefaultShallowConcurrency.
	ShallowConcurrency int

	// DeepConcurrency bounds parallel page fetches in DeepSweep.
	// Defaults to DefaultDeepConcurrency.
	DeepConcurrency int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Server == "" {
		c.Server = DefaultServer
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.ShallowConcurrency == 0 {
		c.ShallowConcurrency = DefaultShallowConcurrency
	}
	if c.DeepConcurrency == 0 {
		c.DeepConcurrency = DefaultDeepConcurrency
	}
}

// Client implements the papersources.PaperSource interface for bioRxiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new bioRxiv client with the given configuration.
func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	})

	return NewWithHTTPClient(cfg, httpClient, logger)
}

// NewWithHTTPClient creates a new bioRxiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "biorxiv").Logger(),
		now:        time.Now,
	}
}

// DayPage is one cursor step of one day's preprint listing.
type DayPage struct {
	// Records are the preprints on this page that carried a DOI,
	// already filtered and mapped to raw records.
	Records []papersources.RawRecord

	// Total is the total number of preprints posted on the day,
	// across all cursor steps.
	Total int
}

// FetchDayPage fetches one page of the given day's preprints at the given
// cursor. Cursors must be multiples of PageSize; cursor 0 returns the first
// page along with the day's total.
func (c *Client) FetchDayPage(ctx context.Context, day time.Time, cursor int) (*DayPage, error) {
	dayStr := day.Format("2006-01-02")
	url := fmt.Sprintf("%s/details/%s/%s/%s/%d",
		c.config.BaseURL, c.config.Server, dayStr, dayStr, cursor)

	var resp DetailsResponse
	status, err := c.httpClient.GetJSON(ctx, url, &resp)
	if err != nil {
		if status != 0 {
			return nil, domain.NewExternalAPIError(sourceName, status, err.Error(), err)
		}
		return nil, fmt.Errorf("fetching day %s cursor %d: %w", dayStr, cursor, err)
	}

	total := 0
	if len(resp.Messages) > 0 {
		total = resp.Messages[0].Total.Int()
	}

	records := make([]papersources.RawRecord, 0, len(resp.Collection))
	skipped := 0
	for i := range resp.Collection {
		rec := preprintToRecord(&resp.Collection[i])
		if rec == nil {
			skipped++
			continue
		}
		records = append(records, *rec)
	}
	if skipped > 0 {
		c.logger.Debug().
			Str("day", dayStr).
			Int("skipped", skipped).
			Msg("dropped preprints without DOI")
	}

	return &DayPage{Records: records, Total: total}, nil
}

// Search runs a shallow sweep: cursor 0 for each day of the requested
// window, fetched in parallel with bounded concurrency, then matched
// client-side against the topic and author terms. A failed day is logged
// and skipped; the sweep only fails when every day fails.
//
// When DateFrom/DateTo are nil the window defaults to the last
// DefaultShallowDays days. SortMode and Page are ignored: the API has no
// search ordering, and day granularity replaces pagination.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	start := time.Now()

	days := c.windowDays(params.DateFrom, params.DateTo)

	type dayResult struct {
		page *DayPage
		err  error
	}

	results := make([]dayResult, len(days))
	sem := make(chan struct{}, c.config.ShallowConcurrency)
	var wg sync.WaitGroup

	for i, day := range days {
		wg.Add(1)
		go func(i int, day time.Time) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			page, err := c.FetchDayPage(ctx, day, 0)
			results[i] = dayResult{page: page, err: err}
		}(i, day)
	}
	wg.Wait()

	var records []papersources.RawRecord
	total := 0
	failed := 0
	for i, res := range results {
		if res.err != nil {
			failed++
			c.logger.Warn().
				Err(res.err).
				Str("day", days[i].Format("2006-01-02")).
				Msg("shallow sweep day failed")
			continue
		}
		total += res.page.Total
		records = append(records, res.page.Records...)
	}

	if failed == len(days) && len(days) > 0 {
		return nil, domain.NewExternalAPIError(sourceName, 0, "all days failed in shallow sweep", nil)
	}

	matched := MatchRecords(records, params.Topics, params.Authors)

	return &papersources.SearchResult{
		Records:        matched,
		TotalResults:   total,
		HasMore:        false,
		Source:         domain.SourceTypeBioRxiv,
		SearchDuration: time.Since(start),
	}, nil
}

// DeepSweep exhaustively pages through every day of the window. For each
// day it fetches cursor 0 to learn the total, then fetches all remaining
// cursors in parallel with bounded concurrency. Matched records are pushed
// to onBatch incrementally, one call per fetched page that yielded matches,
// so callers see results before the sweep completes.
//
// Individual page failures are logged and skipped. The returned error is
// non-nil only when the context is done.
func (c *Client) DeepSweep(ctx context.Context, params papersources.SearchParams, onBatch func([]papersources.RawRecord)) error {
	days := c.windowDays(params.DateFrom, params.DateTo)

	emit := func(records []papersources.RawRecord) {
		matched := MatchRecords(records, params.Topics, params.Authors)
		if len(matched) > 0 && onBatch != nil {
			onBatch(matched)
		}
	}

	// First pass: cursor 0 per day, collecting totals.
	type remaining struct {
		day    time.Time
		cursor int
	}
	var pending []remaining

	sem := make(chan struct{}, c.config.DeepConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return err
		}
		wg.Add(1)
		go func(day time.Time) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			page, err := c.FetchDayPage(ctx, day, 0)
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("day", day.Format("2006-01-02")).
					Msg("deep sweep day failed")
				return
			}
			emit(page.Records)

			mu.Lock()
			for cursor := PageSize; cursor < page.Total; cursor += PageSize {
				pending = append(pending, remaining{day: day, cursor: cursor})
			}
			mu.Unlock()
		}(day)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	// Second pass: every remaining cursor of every day.
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		wg.Add(1)
		go func(p remaining) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			page, err := c.FetchDayPage(ctx, p.day, p.cursor)
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("day", p.day.Format("2006-01-02")).
					Int("cursor", p.cursor).
					Msg("deep sweep page failed")
				return
			}
			emit(page.Records)
		}(p)
	}
	wg.Wait()

	return ctx.Err()
}

// GetByID retrieves a preprint by DOI.
func (c *Client) GetByID(ctx context.Context, id string) (*papersources.RawRecord, error) {
	doi := strings.TrimPrefix(id, "biorxiv:")

	url := fmt.Sprintf("%s/details/%s/%s", c.config.BaseURL, c.config.Server, doi)

	var resp DetailsResponse
	status, err := c.httpClient.GetJSON(ctx, url, &resp)
	if err != nil {
		if status != 0 {
			return nil, domain.NewExternalAPIError(sourceName, status, err.Error(), err)
		}
		return nil, fmt.Errorf("fetching preprint %s: %w", doi, err)
	}

	if len(resp.Collection) == 0 {
		return nil, domain.NewNotFoundError("preprint", id)
	}

	// The API returns one entry per version; take the latest.
	rec := preprintToRecord(&resp.Collection[len(resp.Collection)-1])
	if rec == nil {
		return nil, domain.NewNotFoundError("preprint", id)
	}
	return rec, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeBioRxiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// windowDays expands a date window into individual days, oldest first.
// Nil bounds default to the last DefaultShallowDays days ending today.
func (c *Client) windowDays(from, to *time.Time) []time.Time {
	end := c.now().UTC().Truncate(24 * time.Hour)
	if to != nil {
		end = to.UTC().Truncate(24 * time.Hour)
	}

	start := end.AddDate(0, 0, -(DefaultShallowDays - 1))
	if from != nil {
		start = from.UTC().Truncate(24 * time.Hour)
	}

	if start.After(end) {
		return nil
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// MatchRecords filters records to those matching any topic term in title,
// abstract, or category, or any author name in the author list. Matching is
// case-insensitive substring matching. With no terms at all, every record
// matches.
func MatchRecords(records []papersources.RawRecord, topics, authors []string) []papersources.RawRecord {
	if len(topics) == 0 && len(authors) == 0 {
		return records
	}

	matched := make([]papersources.RawRecord, 0, len(records))
	for _, rec := range records {
		if recordMatches(&rec, topics, authors) {
			matched = append(matched, rec)
		}
	}
	return matched
}

func recordMatches(rec *papersources.RawRecord, topics, authors []string) bool {
	haystack := strings.ToLower(rec.Title + " " + rec.Abstract + " " + rec.Venue)
	for _, topic := range topics {
		if topic = strings.ToLower(strings.TrimSpace(topic)); topic == "" {
			continue
		}
		if strings.Contains(haystack, topic) {
			return true
		}
	}

	if len(authors) == 0 {
		return false
	}
	var names strings.Builder
	for _, a := range rec.Authors {
		names.WriteString(strings.ToLower(a.Name))
		names.WriteString(" ")
	}
	authorHaystack := names.String()
	for _, author := range authors {
		author = strings.ToLower(strings.TrimSpace(author))
		if author == "" {
			continue
		}
		// Author strings come as "Last, F."; match on any name part.
		allPartsFound := true
		for _, part := range strings.Fields(strings.ReplaceAll(author, ",", " ")) {
			if !strings.Contains(authorHaystack, part) {
				allPartsFound = false
				break
			}
		}
		if allPartsFound {
			return true
		}
	}
	return false
}

// preprintToRecord maps one preprint onto the common raw record envelope.
// Preprints without a DOI have no stable identity and are dropped.
func preprintToRecord(p *Preprint) *papersources.RawRecord {
	doi := strings.TrimSpace(p.DOI)
	if doi == "" {
		return nil
	}

	year := 0
	if t, err := time.Parse("2006-01-02", p.Date); err == nil {
		year = t.Year()
	}

	url := "https://www.biorxiv.org/content/" + doi
	if p.Version != "" {
		url += "v" + p.Version
	}

	return &papersources.RawRecord{
		SourceID: doi,
		DOI:      strings.ToLower(doi),
		Title:    strings.TrimSpace(p.Title),
		Abstract: strings.TrimSpace(p.Abstract),
		Authors:  splitAuthors(p.Authors),
		Year:     year,
		Date:     p.Date,
		Venue:    sourceName,
		URL:      url,
		Source:   domain.SourceTypeBioRxiv,
	}
}

// splitAuthors splits the API's semicolon-separated author string.
func splitAuthors(s string) []papersources.RawAuthor {
	parts := strings.Split(s, ";")
	authors := make([]papersources.RawAuthor, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		authors = append(authors, papersources.RawAuthor{Name: name})
	}
	return authors
}
