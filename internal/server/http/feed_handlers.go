package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/feed"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
)

// Request limits.
const (
	maxPageSize        = 100
	maxQueryLength     = 1000
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// getFeed handles GET /api/v1/feed.
// The query is resolved from explicit topics/authors params, a free-text
// q= param, or the user's saved profile (recommend=true).
func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, err := s.feedRequestFromQuery(r)
	if err != nil {
		s.recordFeedRequest("feed", "error", start)
		writeDomainError(w, err)
		return
	}

	page, err := s.feed.GetFeed(ctx, req)
	if err != nil {
		s.recordFeedRequest("feed", "error", start)
		writeDomainError(w, err)
		return
	}

	s.recordFeedRequest("feed", "ok", start)
	s.recordPageServed(ctx, req, len(page.Papers), page.Message != "", page.ServedFromCache)
	writeJSON(w, http.StatusOK, feedResponse{
		Papers:  page.Papers,
		Count:   len(page.Papers),
		Message: page.Message,
	})
}

// loadMore handles GET /api/v1/feed/more.
// It serves a follow-up batch for a query whose first page was already
// requested, preferring the cache over fresh fetches.
func (s *Server) loadMore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, err := s.feedRequestFromQuery(r)
	if err != nil {
		s.recordFeedRequest("load_more", "error", start)
		writeDomainError(w, err)
		return
	}

	page, err := s.feed.LoadMore(ctx, req)
	if err != nil {
		s.recordFeedRequest("load_more", "error", start)
		writeDomainError(w, err)
		return
	}

	s.recordFeedRequest("load_more", "ok", start)
	s.recordPageServed(ctx, req, len(page.Papers), page.Message != "", page.ServedFromCache)
	writeJSON(w, http.StatusOK, loadMoreResponse{
		Papers:          page.Papers,
		Count:           len(page.Papers),
		Message:         page.Message,
		ServedFromCache: page.ServedFromCache,
	})
}

// getPaper handles GET /api/v1/papers/{id}.
// Qualified paper IDs carry DOIs with slashes, so the ID is the remainder
// of the path rather than a single segment.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := strings.TrimSpace(chi.URLParam(r, "*"))

	paper, err := s.feed.GetPaper(r.Context(), id)
	if err != nil {
		s.recordFeedRequest("paper", "error", start)
		writeDomainError(w, err)
		return
	}
	s.recordFeedRequest("paper", "ok", start)
	writeJSON(w, http.StatusOK, paper)
}

// feedRequestFromQuery decodes the shared feed query parameters.
func (s *Server) feedRequestFromQuery(r *http.Request) (feed.Request, error) {
	q := r.URL.Query()
	user := userFromContext(r.Context())

	req := feed.Request{
		UserID:    user.ID,
		Query:     strings.TrimSpace(q.Get("q")),
		Topics:    splitTerms(q["topics"]),
		Authors:   splitTerms(q["authors"]),
		Recommend: parseBool(q.Get("recommend")),
	}

	if len(req.Query) > maxQueryLength {
		return feed.Request{}, domain.NewValidationError("q", fmt.Sprintf("must be at most %d characters", maxQueryLength))
	}

	switch sort := q.Get("sort"); sort {
	case "", string(papersources.SortRecency):
		req.SortMode = papersources.SortRecency
	case string(papersources.SortRelevance):
		req.SortMode = papersources.SortRelevance
	default:
		return feed.Request{}, domain.NewValidationError("sort", "must be recency or relevance")
	}

	var err error
	if req.Page, err = parseBoundedInt(q.Get("page"), 0, 1000); err != nil {
		return feed.Request{}, domain.NewValidationError("page", "must be a positive integer")
	}
	if req.PageSize, err = parseBoundedInt(q.Get("page_size"), 0, maxPageSize); err != nil {
		return feed.Request{}, domain.NewValidationError("page_size", fmt.Sprintf("must be between 1 and %d", maxPageSize))
	}

	return req, nil
}

func (s *Server) recordFeedRequest(operation, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordFeedRequest(operation, status, time.Since(start).Seconds())
}

// recordPageServed instruments a served page and emits the activity event.
func (s *Server) recordPageServed(ctx context.Context, req feed.Request, paperCount int, partial, fromCache bool) {
	if s.metrics != nil {
		s.metrics.RecordPageServed(paperCount, partial, fromCache)
	}
	if s.events != nil {
		key := req.Query
		if len(req.Topics) > 0 || len(req.Authors) > 0 || req.Recommend {
			key = domain.NewQueryKey(req.Topics, req.Authors, req.Recommend).String()
		}
		s.events.PublishPageServed(ctx, req.UserID, key, paperCount, partial, fromCache)
	}
}

// splitTerms flattens repeated query params and splits each on commas.
func splitTerms(values []string) []string {
	var out []string
	for _, v := range values {
		for _, term := range strings.Split(v, ",") {
			term = strings.TrimSpace(term)
			if term != "" {
				out = append(out, term)
			}
		}
	}
	return out
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// parseBoundedInt parses an optional positive integer query param.
func parseBoundedInt(v string, def, max int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("out of range: %q", v)
	}
	return n, nil
}

// decodeJSON reads and unmarshals a size-limited JSON request body.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return domain.NewValidationError("body", "failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.NewValidationError("body", "invalid JSON request body")
	}
	return nil
}

// validateRequest runs struct validation and maps the first failure to a
// domain validation error.
func (s *Server) validateRequest(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewValidationError(strings.ToLower(fe.Field()), fmt.Sprintf("failed on %q", fe.Tag()))
	}
	return domain.NewValidationError("body", "validation failed")
}
