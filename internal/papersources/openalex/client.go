package openalex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// maxPerPage is the OpenAlex API per_page limit.
	maxPerPage = 200

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// openAlexIDPrefix is the URL prefix for OpenAlex IDs.
	openAlexIDPrefix = "https://openalex.org/"

	// selectFields limits work responses to the fields the feed uses.
	selectFields = "id,doi,title,display_name,publication_year,publication_date,type,cited_by_count,authorships,primary_location,ids,abstract_inverted_index"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// Providing an email grants access to higher rate limits.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 10 req/sec (polite pool with email gets higher).
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 10.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	// Defaults to 25, maximum is 200 per OpenAlex API.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
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
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.PaperSource interface for OpenAlex.
// It also resolves author names to OpenAlex author IDs (see resolver.go);
// resolved IDs give precise authorship filters, unresolved names degrade
// to free-text search terms.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "ScholarStream-PaperFeed/1.0 (mailto:" + cfg.Email + ")",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries OpenAlex for works matching the given parameters.
//
// Author names are resolved to OpenAlex author IDs first. Resolved IDs
// become an authorships filter; names that fail to resolve are appended to
// the free-text search query so the request still returns something useful.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	var resolution AuthorResolution
	if len(params.Authors) > 0 {
		// Resolution failure is not fatal; all names degrade to free text.
		var err error
		resolution, err = c.ResolveAuthors(ctx, params.Authors)
		if err != nil {
			resolution = AuthorResolution{Unresolved: params.Authors}
		}
	}

	searchURL, err := c.buildSearchURL(params, resolution)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var searchResp SearchResponse
	status, err := c.httpClient.GetJSON(ctx, searchURL, &searchResp)
	if err != nil {
		if status != 0 {
			return nil, domain.NewExternalAPIError("OpenAlex", status, err.Error(), err)
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}

	records := make([]papersources.RawRecord, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if rec := workToRecord(&searchResp.Results[i]); rec != nil {
			records = append(records, *rec)
		}
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := c.perPage(params.MaxResults)
	hasMore := page*perPage < searchResp.Meta.Count

	return &papersources.SearchResult{
		Records:        records,
		TotalResults:   searchResp.Meta.Count,
		HasMore:        hasMore,
		NextPage:       page + 1,
		Source:         domain.SourceTypeOpenAlex,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a specific work by its OpenAlex ID or DOI.
func (c *Client) GetByID(ctx context.Context, id string) (*papersources.RawRecord, error) {
	fetchURL, err := c.buildGetByIDURL(id)
	if err != nil {
		return nil, fmt.Errorf("building fetch URL: %w", err)
	}

	var work Work
	status, err := c.httpClient.GetJSON(ctx, fetchURL, &work)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, domain.NewNotFoundError("paper", id)
		}
		if status != 0 {
			return nil, domain.NewExternalAPIError("OpenAlex", status, err.Error(), err)
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}

	rec := workToRecord(&work)
	if rec == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return rec, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "OpenAlex"
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func (c *Client) perPage(maxResults int) int {
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > maxPerPage {
		maxResults = maxPerPage
	}
	return maxResults
}

// buildSearchURL constructs the works search URL with query parameters.
func (c *Client) buildSearchURL(params papersources.SearchParams, resolution AuthorResolution) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/works"

	query := url.Values{}

	// Free-text terms: topics joined with OR, plus any unresolved author
	// names appended as plain terms.
	searchTerms := make([]string, 0, len(params.Topics)+len(resolution.Unresolved))
	if len(params.Topics) > 0 {
		searchTerms = append(searchTerms, strings.Join(params.Topics, " OR "))
	}
	searchTerms = append(searchTerms, resolution.Unresolved...)
	searchText := strings.Join(searchTerms, " ")

	var filters []string

	if len(resolution.Resolved) > 0 {
		filters = append(filters, "authorships.author.id:"+strings.Join(resolution.Resolved, "|"))
		// With an authorship filter in place, topic terms work better as
		// a default.search filter than as a bare search param.
		if searchText != "" {
			filters = append(filters, "default.search:"+searchText)
		}
	} else if searchText != "" {
		query.Set("search", searchText)
	}

	if params.DateFrom != nil {
		filters = append(filters, "from_publication_date:"+params.DateFrom.Format("2006-01-02"))
	}
	if params.DateTo != nil {
		filters = append(filters, "to_publication_date:"+params.DateTo.Format("2006-01-02"))
	}

	if len(filters) > 0 {
		query.Set("filter", strings.Join(filters, ","))
	}

	switch params.SortMode {
	case papersources.SortRelevance:
		query.Set("sort", "cited_by_count:desc")
	default:
		query.Set("sort", "publication_date:desc")
	}

	query.Set("select", selectFields)
	query.Set("per_page", strconv.Itoa(c.perPage(params.MaxResults)))

	if params.Page > 1 {
		query.Set("page", strconv.Itoa(params.Page))
	}

	// Add mailto for polite pool
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildGetByIDURL constructs the URL for fetching a work by ID.
func (c *Client) buildGetByIDURL(id string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	// OpenAlex accepts OpenAlex IDs and DOIs in the works path.
	var workID string
	switch {
	case strings.HasPrefix(id, openAlexIDPrefix):
		workID = strings.TrimPrefix(id, openAlexIDPrefix)
	case strings.HasPrefix(id, "W"):
		workID = id
	case strings.HasPrefix(id, doiPrefix):
		workID = id
	case strings.HasPrefix(id, "10."):
		workID = doiPrefix + id
	case strings.HasPrefix(id, "doi:"):
		workID = doiPrefix + strings.TrimPrefix(id, "doi:")
	default:
		workID = id
	}

	// Direct path concatenation; OpenAlex expects the DOI as-is in the
	// path and handles URL decoding on their side.
	baseURL.Path = "/works/" + workID

	if c.config.Email != "" {
		query := url.Values{}
		query.Set("mailto", c.config.Email)
		baseURL.RawQuery = query.Encode()
	}

	return baseURL.String(), nil
}

// workToRecord maps an OpenAlex Work onto the common raw record envelope.
// Returns nil for works with no usable identifier.
func workToRecord(work *Work) *papersources.RawRecord {
	if work == nil {
		return nil
	}

	openAlexID := normalizeOpenAlexID(work.ID)
	if openAlexID == "" && work.IDs.OpenAlex != "" {
		openAlexID = normalizeOpenAlexID(work.IDs.OpenAlex)
	}
	if openAlexID == "" {
		return nil
	}

	doi := normalizeDOI(work.DOI)
	if doi == "" && work.IDs.DOI != "" {
		doi = normalizeDOI(work.IDs.DOI)
	}

	// Prefer display_name; it is usually cleaner than title.
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}

	authors := make([]papersources.RawAuthor, 0, len(work.Authorships))
	for _, authorship := range work.Authorships {
		authors = append(authors, papersources.RawAuthor{
			Name:       authorship.Author.DisplayName,
			ExternalID: normalizeOpenAlexID(authorship.Author.ID),
		})
	}

	var venue string
	if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		venue = work.PrimaryLocation.Source.DisplayName
	}

	recURL := openAlexIDPrefix + openAlexID
	if work.PrimaryLocation != nil && work.PrimaryLocation.LandingPage != "" {
		recURL = work.PrimaryLocation.LandingPage
	} else if doi != "" {
		recURL = doiPrefix + doi
	}

	return &papersources.RawRecord{
		SourceID:         openAlexID,
		DOI:              doi,
		Title:            title,
		AbstractInverted: work.AbstractInvertedIndex,
		Authors:          authors,
		Year:             work.PublicationYear,
		Date:             work.PublicationDate,
		Venue:            venue,
		CitationCount:    work.CitedByCount,
		URL:              recURL,
		Source:           domain.SourceTypeOpenAlex,
	}
}

// normalizeDOI strips the https://doi.org/ prefix from DOIs and returns lowercase.
func normalizeDOI(doi string) string {
	if doi == "" {
		return ""
	}
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

// normalizeOpenAlexID extracts the short ID from full OpenAlex URLs.
func normalizeOpenAlexID(id string) string {
	if id == "" {
		return ""
	}
	id = strings.TrimPrefix(id, openAlexIDPrefix)
	return strings.TrimSpace(id)
}
