package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests (100 req/5 min).
	// With an API key, this can be increased.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum number of results per request.
	DefaultMaxResults = 100

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,externalIds,title,abstract,year,publicationDate,venue,journal,authors,citationCount,url"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	// Authenticated requests have higher rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is the maximum number of results to return per search.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// Client implements the papersources.PaperSource interface for Semantic Scholar.
//
// The Graph API search endpoint has no author filter and no sort parameter;
// author names are appended to the free-text query, and SortMode is ignored
// (results come back in the API's relevance order).
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

// Compile-time check that Client implements papersources.PaperSource.
var _ papersources.PaperSource = (*Client)(nil)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	// Apply defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	// Create HTTP client if not provided
	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Search queries Semantic Scholar for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	start := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Parse the response (limit body to 10MB to prevent resource exhaustion).
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]papersources.RawRecord, 0, len(searchResp.Data))
	for i := range searchResp.Data {
		records = append(records, toRecord(&searchResp.Data[i]))
	}

	// The API only filters by year; tighten to full dates client-side.
	if params.DateFrom != nil || params.DateTo != nil {
		records = filterByDate(records, params.DateFrom, params.DateTo)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}

	return &papersources.SearchResult{
		Records:        records,
		TotalResults:   searchResp.Total,
		HasMore:        searchResp.Next > 0,
		NextPage:       page + 1,
		Source:         domain.SourceTypeSemanticScholar,
		SearchDuration: time.Since(start),
	}, nil
}

// GetByID retrieves a specific paper by its Semantic Scholar ID or other identifier.
func (c *Client) GetByID(ctx context.Context, id string) (*papersources.RawRecord, error) {
	paperURL := fmt.Sprintf("%s/paper/%s?fields=%s", c.config.BaseURL, url.PathEscape(id), paperFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paperURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("paper", id)
	}

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Parse the response (limit body to 10MB to prevent resource exhaustion).
	var paperResult PaperResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&paperResult); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	rec := toRecord(&paperResult)
	return &rec, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	q := searchURL.Query()
	q.Set("query", buildQueryText(params))
	q.Set("fields", paperFields)

	limit := params.MaxResults
	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	q.Set("limit", strconv.Itoa(limit))

	if params.Page > 1 {
		q.Set("offset", strconv.Itoa((params.Page-1)*limit))
	}

	// Year range filter (the API has no full-date filter)
	if params.DateFrom != nil {
		q.Set("year", fmt.Sprintf("%d-", params.DateFrom.Year()))
	}
	if params.DateTo != nil {
		existingYear := q.Get("year")
		if existingYear != "" {
			q.Set("year", fmt.Sprintf("%s%d", existingYear, params.DateTo.Year()))
		} else {
			q.Set("year", fmt.Sprintf("-%d", params.DateTo.Year()))
		}
	}

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// buildQueryText joins topic terms with OR and appends author names as
// plain terms.
func buildQueryText(params papersources.SearchParams) string {
	parts := make([]string, 0, 2)
	if len(params.Topics) > 0 {
		parts = append(parts, strings.Join(params.Topics, " OR "))
	}
	if len(params.Authors) > 0 {
		parts = append(parts, strings.Join(params.Authors, " "))
	}
	return strings.Join(parts, " ")
}

// handleErrorResponse checks for API errors and returns appropriate error types.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read the error body (limit to 1MB to prevent resource exhaustion)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	// Try to parse as JSON error
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message == "" {
			message = string(body)
		}
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
	}

	// Return raw body as error message
	return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
}

// toRecord maps a single API paper result onto the common raw record envelope.
func toRecord(result *PaperResult) papersources.RawRecord {
	authors := make([]papersources.RawAuthor, 0, len(result.Authors))
	for _, a := range result.Authors {
		authors = append(authors, papersources.RawAuthor{
			Name:       a.Name,
			ExternalID: a.AuthorID,
		})
	}

	venue := result.Venue
	if venue == "" && result.Journal != nil {
		venue = result.Journal.Name
	}

	var doi string
	if result.ExternalIDs != nil {
		doi = strings.ToLower(strings.TrimSpace(result.ExternalIDs.DOI))
	}

	recURL := result.URL
	if recURL == "" && result.PaperID != "" {
		recURL = "https://www.semanticscholar.org/paper/" + result.PaperID
	}

	return papersources.RawRecord{
		SourceID:      result.PaperID,
		DOI:           doi,
		Title:         result.Title,
		Abstract:      result.Abstract,
		Authors:       authors,
		Year:          result.Year,
		Date:          result.PublicationDate,
		Venue:         venue,
		CitationCount: result.CitationCount,
		URL:           recURL,
		Source:        domain.SourceTypeSemanticScholar,
	}
}

// filterByDate filters records by publication date.
// This is needed because Semantic Scholar only supports year-based filtering via the API.
func filterByDate(records []papersources.RawRecord, dateFrom, dateTo *time.Time) []papersources.RawRecord {
	if dateFrom == nil && dateTo == nil {
		return records
	}

	filtered := make([]papersources.RawRecord, 0, len(records))
	for _, rec := range records {
		var recDate time.Time
		if rec.Date != "" {
			if t, err := time.Parse("2006-01-02", rec.Date); err == nil {
				recDate = t
			}
		}
		if recDate.IsZero() && rec.Year > 0 {
			// Use January 1 of the publication year as a proxy
			recDate = time.Date(rec.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		if recDate.IsZero() {
			// No date information, include the record
			filtered = append(filtered, rec)
			continue
		}

		if dateFrom != nil && recDate.Before(*dateFrom) {
			continue
		}
		if dateTo != nil && recDate.After(*dateTo) {
			continue
		}

		filtered = append(filtered, rec)
	}

	return filtered
}
