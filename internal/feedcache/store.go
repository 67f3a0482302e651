// Package feedcache holds the per-query overflow buffers of the feed.
//
// A fetch cycle usually retrieves more papers than one page displays; the
// remainder is parked here keyed by the normalized query, so Load More can
// be served without refetching. Entries also remember every paper ID ever
// handed out for their query, which is what guarantees a paper never
// appears twice in the same feed.
package feedcache

import (
	"math/rand"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// DefaultMaxEntries bounds how many distinct queries keep buffers at once.
// Least recently used queries are evicted wholesale.
const DefaultMaxEntries = 512

// entry is the buffered state of one query.
type entry struct {
	mu sync.Mutex

	// pending are unshown papers in serving order. Papers keep their
	// source attribution so the preprint partition can be sized.
	pending []*domain.Paper

	// seen holds every paper ID that has ever entered this entry,
	// whether still pending or already handed out. Nothing gets in twice.
	seen map[string]bool

	// shown holds the IDs already handed out to the user.
	shown map[string]bool
}

// Store is a bounded, concurrency-safe cache of per-query feed buffers.
type Store struct {
	cache   *lru.Cache[string, *entry]
	logger  zerolog.Logger
	onEvict func()

	// shuffle is injectable for deterministic tests.
	shuffle func(n int, swap func(i, j int))
}

// Option configures a Store.
type Option func(*Store)

// WithEvictionHook registers a callback invoked once per evicted query.
func WithEvictionHook(fn func()) Option {
	return func(s *Store) { s.onEvict = fn }
}

// New creates a Store holding at most maxEntries query buffers.
// maxEntries <= 0 uses DefaultMaxEntries.
func New(maxEntries int, logger zerolog.Logger, opts ...Option) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	s := &Store{
		logger:  logger.With().Str("component", "feedcache").Logger(),
		shuffle: rand.Shuffle,
	}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := lru.NewWithEvict[string, *entry](maxEntries, func(key string, _ *entry) {
		s.logger.Debug().Str("query", key).Msg("evicted feed buffer")
		if s.onEvict != nil {
			s.onEvict()
		}
	})
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// getOrCreate returns the entry for key, creating it if absent.
func (s *Store) getOrCreate(key domain.QueryKey) *entry {
	k := key.String()
	if e, ok := s.cache.Get(k); ok {
		return e
	}
	e := &entry{
		seen:  make(map[string]bool),
		shown: make(map[string]bool),
	}
	// Another goroutine may have added the entry in between; keep the
	// winner so both see the same buffer.
	if prev, ok, _ := s.cache.PeekOrAdd(k, e); ok {
		return prev
	}
	return e
}

// AppendNew adds papers to the query's buffer, skipping papers that are
// already pending or were ever shown for this query. The merged buffer is
// reshuffled after appending so interleaved source batches do not cluster.
// Returns how many papers were actually added.
func (s *Store) AppendNew(key domain.QueryKey, papers []*domain.Paper) int {
	if len(papers) == 0 {
		return 0
	}

	e := s.getOrCreate(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	added := 0
	for _, p := range papers {
		if p == nil || p.ID == "" || e.seen[p.ID] {
			continue
		}
		e.seen[p.ID] = true
		e.pending = append(e.pending, p)
		added++
	}

	if added > 0 {
		s.shuffle(len(e.pending), func(i, j int) {
			e.pending[i], e.pending[j] = e.pending[j], e.pending[i]
		})
	}
	return added
}

// TakeNext removes and returns up to n papers from the buffer, marking them
// shown. Returns fewer than n (possibly none) when the buffer runs dry.
func (s *Store) TakeNext(key domain.QueryKey, n int) []*domain.Paper {
	if n <= 0 {
		return nil
	}

	e, ok := s.cache.Get(key.String())
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if n > len(e.pending) {
		n = len(e.pending)
	}
	taken := e.pending[:n]
	e.pending = e.pending[n:]

	out := make([]*domain.Paper, n)
	copy(out, taken)
	for _, p := range out {
		e.shown[p.ID] = true
	}
	return out
}

// MarkShown records IDs as handed out for this query, so they can never be
// appended again. Used for papers that were served directly from a fresh
// fetch without passing through the buffer.
func (s *Store) MarkShown(key domain.QueryKey, ids []string) {
	if len(ids) == 0 {
		return
	}

	e := s.getOrCreate(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range ids {
		if id == "" {
			continue
		}
		e.seen[id] = true
		e.shown[id] = true
	}
}

// WasShown reports whether the paper ID was already handed out for this query.
func (s *Store) WasShown(key domain.QueryKey, id string) bool {
	e, ok := s.cache.Peek(key.String())
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shown[id]
}

// RemainingCount returns how many unshown papers are buffered for the query.
func (s *Store) RemainingCount(key domain.QueryKey) int {
	e, ok := s.cache.Peek(key.String())
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// RemainingBySource returns the per-source sizes of the unshown buffer.
func (s *Store) RemainingBySource(key domain.QueryKey) map[domain.SourceType]int {
	counts := make(map[domain.SourceType]int)
	e, ok := s.cache.Peek(key.String())
	if !ok {
		return counts
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.pending {
		counts[p.Source]++
	}
	return counts
}

// Len returns how many query buffers are currently cached.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Purge drops every buffer. Intended for tests and shutdown.
func (s *Store) Purge() {
	s.cache.Purge()
}
