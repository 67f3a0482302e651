// Package feed is the externally-callable surface of the paper feed.
//
// The service resolves what a request is actually asking for (explicit
// topics and authors, a free-text query needing parsing, or the user's
// saved profile), loads the user's rated-paper filter, and delegates the
// fetching state machine to the orchestrator.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/llm"
	"github.com/scholarstream/paper-feed-service/internal/normalize"
	"github.com/scholarstream/paper-feed-service/internal/observability"
	"github.com/scholarstream/paper-feed-service/internal/orchestrator"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
)

// Feeder is the orchestrator surface the service drives.
type Feeder interface {
	FetchPage(ctx context.Context, key domain.QueryKey, params papersources.SearchParams, rated map[string]bool) (*orchestrator.Page, error)
	LoadMore(ctx context.Context, key domain.QueryKey, params papersources.SearchParams, rated map[string]bool, pageSize int) (*orchestrator.Page, error)
}

// QueryParser turns a free-text query into structured terms. Parsing is
// best-effort; the service falls back to a literal interpretation on error.
type QueryParser interface {
	Parse(ctx context.Context, query string) (llm.ParsedQuery, error)
}

// ProfileReader loads a user's saved interests.
type ProfileReader interface {
	LoadProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// FeedbackReader loads the ids of papers a user already rated.
type FeedbackReader interface {
	RatedIDs(ctx context.Context, userID string) (map[string]bool, error)
}

// PaperStore caches normalized paper documents by id.
type PaperStore interface {
	Get(ctx context.Context, id string) (*domain.Paper, error)
	Save(ctx context.Context, paper *domain.Paper) error
	SaveAll(ctx context.Context, papers []*domain.Paper) error
}

// SourceLookup fetches a single record from one upstream source.
type SourceLookup interface {
	Get(sourceType domain.SourceType) papersources.PaperSource
}

// Request describes one feed request after HTTP decoding.
type Request struct {
	// UserID identifies the requester; the anonymous sentinel is valid.
	UserID string

	// Query is a free-text query. Ignored when Topics or Authors are set.
	Query string

	// Topics and Authors are explicit search terms.
	Topics  []string
	Authors []string

	// Recommend asks for terms from the user's saved profile.
	Recommend bool

	// SortMode orders upstream results; page order is still randomized.
	SortMode papersources.SortMode

	// Page is the 1-based feed page. Zero means the first page.
	Page int

	// PageSize overrides the default page size when positive.
	PageSize int
}

// Service composes query resolution, the rated-paper filter and the
// orchestrator into the feed operations the HTTP layer calls.
type Service struct {
	feeder     Feeder
	parser     QueryParser
	profiles   ProfileReader
	feedback   FeedbackReader
	papers     PaperStore
	sources    SourceLookup
	normalizer *normalize.Normalizer
	logger     zerolog.Logger
}

// Deps are the service collaborators. Feeder is required; parser, profile,
// feedback and paper-store collaborators may be nil and degrade to
// literal queries, no recommendations and no rated-paper filtering.
type Deps struct {
	Feeder     Feeder
	Parser     QueryParser
	Profiles   ProfileReader
	Feedback   FeedbackReader
	Papers     PaperStore
	Sources    SourceLookup
	Normalizer *normalize.Normalizer
}

// NewService creates the feed service.
func NewService(deps Deps, logger zerolog.Logger) *Service {
	return &Service{
		feeder:     deps.Feeder,
		parser:     deps.Parser,
		profiles:   deps.Profiles,
		feedback:   deps.Feedback,
		papers:     deps.Papers,
		sources:    deps.Sources,
		normalizer: deps.Normalizer,
		logger:     logger.With().Str("component", "feedservice").Logger(),
	}
}

// GetFeed serves one page of the feed for the request's query.
func (s *Service) GetFeed(ctx context.Context, req Request) (*orchestrator.Page, error) {
	key, params, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	page, err := s.feeder.FetchPage(ctx, key, params, s.ratedIDs(ctx, req.UserID))
	if err != nil {
		return nil, err
	}
	s.cachePage(ctx, page)
	return page, nil
}

// LoadMore serves a follow-up batch for a query whose first page has
// already been requested.
func (s *Service) LoadMore(ctx context.Context, req Request) (*orchestrator.Page, error) {
	key, params, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	page, err := s.feeder.LoadMore(ctx, key, params, s.ratedIDs(ctx, req.UserID), req.PageSize)
	if err != nil {
		return nil, err
	}
	s.cachePage(ctx, page)
	return page, nil
}

// GetPaper re-hydrates one paper by its qualified id: the document cache
// first, the owning upstream source on a miss. Freshly fetched papers are
// written back to the cache best-effort.
func (s *Service) GetPaper(ctx context.Context, id string) (*domain.Paper, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "must not be empty")
	}

	if s.papers != nil {
		paper, err := s.papers.Get(ctx, id)
		if err == nil {
			return paper, nil
		}
	}

	if s.sources == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}
	source := s.sources.Get(sourceForID(id))
	if source == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}

	rec, err := source.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	paper := s.normalizer.Normalize(ctx, *rec)
	if paper == nil {
		return nil, domain.ErrMalformedRecord
	}

	if s.papers != nil {
		if err := s.papers.Save(ctx, paper); err != nil {
			plog := observability.WithPaperContext(s.requestLogger(ctx), paper.ID)
			plog.Warn().Err(err).Msg("paper cache write failed")
		}
	}
	return paper, nil
}

// requestLogger enriches the service logger with the request identity the
// middleware put on the context.
func (s *Service) requestLogger(ctx context.Context) zerolog.Logger {
	rc := observability.RequestContextFromContext(ctx)
	if rc.RequestID == "" && rc.UserID == "" {
		return s.logger
	}
	return observability.WithRequestLogContext(s.logger, rc.RequestID, rc.UserID)
}

// cachePage writes served papers to the document cache so they can be
// re-hydrated by GetPaper later. Best-effort; failures only log.
func (s *Service) cachePage(ctx context.Context, page *orchestrator.Page) {
	if s.papers == nil || page == nil || len(page.Papers) == 0 {
		return
	}
	if err := s.papers.SaveAll(ctx, page.Papers); err != nil {
		rlog := s.requestLogger(ctx)
		rlog.Warn().Err(err).Int("papers", len(page.Papers)).Msg("paper cache write failed")
	}
}

// resolve turns the request into the query key and source search params.
func (s *Service) resolve(ctx context.Context, req Request) (domain.QueryKey, papersources.SearchParams, error) {
	topics := trimmed(req.Topics)
	authors := trimmed(req.Authors)

	params := papersources.SearchParams{
		SortMode:   req.SortMode,
		Page:       req.Page,
		MaxResults: 0,
	}

	switch {
	case len(topics) > 0 || len(authors) > 0:
		// Explicit terms win over everything else.

	case req.Recommend:
		profile, err := s.loadProfile(ctx, req.UserID)
		if err != nil {
			return domain.QueryKey{}, params, err
		}
		topics = trimmed(profile.Topics)
		authors = trimmed(profile.Authors)

	case strings.TrimSpace(req.Query) != "":
		topics, authors, params = s.parseQuery(ctx, req.Query, params)

	default:
		return domain.QueryKey{}, params, domain.NewValidationError("query", "topics, authors, a query or recommend is required")
	}

	if len(topics) == 0 && len(authors) == 0 {
		return domain.QueryKey{}, params, domain.NewValidationError("query", "no usable search terms")
	}

	params.Topics = topics
	params.Authors = authors
	return domain.NewQueryKey(topics, authors, req.Recommend), params, nil
}

// parseQuery runs the LLM parser over a free-text query. On failure or
// when no parser is wired, the query is split on commas and each piece
// becomes a topic.
func (s *Service) parseQuery(ctx context.Context, query string, params papersources.SearchParams) (topics, authors []string, _ papersources.SearchParams) {
	if s.parser != nil {
		parsed, err := s.parser.Parse(ctx, query)
		if err == nil {
			if from, to, ok := yearBounds(parsed.Years); ok {
				params.DateFrom = &from
				params.DateTo = &to
			}
			// Institutions ride along as plain topic terms.
			return trimmed(append(parsed.Keywords, parsed.Institutions...)), trimmed(parsed.Authors), params
		}
		rlog := s.requestLogger(ctx)
		rlog.Warn().Err(err).Msg("query parse failed, using literal terms")
	}
	return trimmed(strings.Split(query, ",")), nil, params
}

func (s *Service) loadProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if s.profiles == nil {
		return nil, domain.NewValidationError("recommend", "recommendations are not available")
	}
	profile, err := s.profiles.LoadProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

// ratedIDs loads the requester's rated-paper filter. Failures degrade to
// an empty filter; a feed with a few repeats beats no feed.
func (s *Service) ratedIDs(ctx context.Context, userID string) map[string]bool {
	if s.feedback == nil || userID == "" || userID == domain.AnonymousUserID {
		return nil
	}
	rated, err := s.feedback.RatedIDs(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("rated ids unavailable")
		return nil
	}
	return rated
}

// sourceForID maps a qualified paper id back to its owning source.
func sourceForID(id string) domain.SourceType {
	switch {
	case strings.HasPrefix(id, "biorxiv:"):
		return domain.SourceTypeBioRxiv
	case strings.HasPrefix(id, "s2:"):
		return domain.SourceTypeSemanticScholar
	default:
		return domain.SourceTypeOpenAlex
	}
}

// yearBounds converts explicit years into an inclusive date range.
func yearBounds(years []int) (from, to time.Time, ok bool) {
	if len(years) == 0 {
		return from, to, false
	}
	minYear, maxYear := years[0], years[0]
	for _, y := range years[1:] {
		if y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}
	from = time.Date(minYear, 1, 1, 0, 0, 0, 0, time.UTC)
	to = time.Date(maxYear, 12, 31, 0, 0, 0, 0, time.UTC)
	return from, to, true
}

func trimmed(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}
