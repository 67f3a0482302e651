package domain

import (
	"sort"
	"strings"
)

// QueryKey is the normalized identity of a feed query. It is the join key
// between the feed cache and the deep-search cursor store: the same logical
// query always yields the same key, regardless of input casing, whitespace,
// term order, or duplicate terms.
//
// QueryKey is a comparable value type and is safe to use as a map key.
type QueryKey struct {
	key string
}

// NewQueryKey derives a QueryKey from topic terms, author names, and the
// recommendation flag. Normalization: terms are trimmed, lowercased,
// deduplicated, and sorted before being joined, so "Dopamine, reward" and
// "reward,dopamine" address the same cache partition.
func NewQueryKey(topics, authors []string, recommend bool) QueryKey {
	var b strings.Builder
	b.WriteString("topics=")
	b.WriteString(strings.Join(normalizeTerms(topics), ","))
	b.WriteString("|authors=")
	b.WriteString(strings.Join(normalizeTerms(authors), ","))
	if recommend {
		b.WriteString("|rec")
	}
	return QueryKey{key: b.String()}
}

// String returns the canonical string form of the key.
func (k QueryKey) String() string {
	return k.key
}

// IsZero reports whether the key was never derived from a query.
func (k QueryKey) IsZero() bool {
	return k.key == ""
}

// normalizeTerms trims, lowercases, deduplicates, and sorts a term list.
func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
