package openalex

import (
	"context"
	"net/url"
	"strings"
)

// AuthorResolution is the outcome of resolving author names to OpenAlex IDs.
// Resolved holds author IDs (short form, e.g. "A5023888391"); Unresolved
// holds the names for which no candidate was found, so the caller can fall
// back to free-text matching on them.
type AuthorResolution struct {
	Resolved   []string
	Unresolved []string
}

// ResolveAuthors resolves author names to OpenAlex author IDs via the
// /authors search endpoint, taking the top candidate per name. A name with
// no candidates lands in Unresolved rather than failing the call; a request
// error for one name also degrades that name to Unresolved. The returned
// error is non-nil only when the context is done.
func (c *Client) ResolveAuthors(ctx context.Context, names []string) (AuthorResolution, error) {
	var res AuthorResolution

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if err := ctx.Err(); err != nil {
			return res, err
		}

		id, ok := c.resolveOne(ctx, name)
		if ok {
			res.Resolved = append(res.Resolved, id)
		} else {
			res.Unresolved = append(res.Unresolved, name)
		}
	}

	return res, nil
}

// resolveOne searches for one author name and returns the best candidate ID.
func (c *Client) resolveOne(ctx context.Context, name string) (string, bool) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", false
	}
	baseURL.Path = "/authors"

	query := url.Values{}
	query.Set("search", name)
	query.Set("per_page", "1")
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}
	baseURL.RawQuery = query.Encode()

	var resp AuthorsResponse
	if _, err := c.httpClient.GetJSON(ctx, baseURL.String(), &resp); err != nil {
		return "", false
	}
	if len(resp.Results) == 0 {
		return "", false
	}

	id := normalizeOpenAlexID(resp.Results[0].ID)
	if id == "" {
		return "", false
	}
	return id, true
}
