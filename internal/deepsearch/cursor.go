// Package deepsearch tracks how far back in time the exhaustive preprint
// sweeps have progressed for each query.
//
// Deep sweeps walk backward through the preprint archive in fixed 30-day
// windows. The cursor store remembers, per normalized query, the start of
// the last searched window, so consecutive sweeps for the same query cover
// strictly older, non-overlapping date ranges.
package deepsearch

import (
	"sync"
	"time"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// WindowDays is the span of one deep-search window.
const WindowDays = 30

// Window is one inclusive date range to sweep.
type Window struct {
	Start time.Time
	End   time.Time
}

// CursorStore hands out consecutive backward windows per query key.
// It is safe for concurrent use; windows for one key are strictly
// sequential even under concurrent callers.
type CursorStore struct {
	mu      sync.Mutex
	cursors map[domain.QueryKey]time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewCursorStore creates an empty cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		cursors: make(map[domain.QueryKey]time.Time),
		now:     time.Now,
	}
}

// NextWindow returns the next unsearched window for the query and advances
// the cursor. The first window for a key ends today and spans WindowDays
// days; every later window ends the day before the previous window started.
func (s *CursorStore) NextWindow(key domain.QueryKey) Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	var end time.Time
	if start, ok := s.cursors[key]; ok {
		end = start.AddDate(0, 0, -1)
	} else {
		end = s.now().UTC().Truncate(24 * time.Hour)
	}

	start := end.AddDate(0, 0, -(WindowDays - 1))
	s.cursors[key] = start

	return Window{Start: start, End: end}
}

// Peek returns the start of the last searched window without advancing,
// and whether the key has any cursor at all.
func (s *CursorStore) Peek(key domain.QueryKey) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, ok := s.cursors[key]
	return start, ok
}

// Reset forgets the cursor for a query, so its next window starts at today
// again. Used when a query's cached feed is rebuilt from scratch.
func (s *CursorStore) Reset(key domain.QueryKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, key)
}
