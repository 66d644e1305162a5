package core

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RouteColors is the palette a display color is drawn from when an
// activity is first fetched. The draw is random; collisions between
// neighboring routes are an accepted cosmetic limitation.
var RouteColors = []string{
	"#e6194b",
	"#3cb44b",
	"#4363d8",
	"#f58231",
	"#911eb4",
	"#42d4f4",
	"#f032e6",
	"#9a6324",
}

// Fetcher paginates the remote activity feed into the RouteIndex.
// Pagination is strictly sequential: page N+1 is only requested after
// page N's response has been fully processed. Failures are logged and
// never surfaced to the caller; pages already in the index are kept.
type Fetcher struct {
	feed  ActivityFeed
	token func() string
	index *RouteIndex
	logf  func(string, ...any)

	fetchMu sync.Mutex // serializes feed requests end to end

	mu      sync.Mutex
	page    int
	loading bool
	rng     *rand.Rand
}

func NewFetcher(feed ActivityFeed, token func() string, index *RouteIndex, logf func(string, ...any)) *Fetcher {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Fetcher{
		feed:  feed,
		token: token,
		index: index,
		logf:  logf,
		page:  1,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// yearBounds covers Jan 1 00:00:00 through Dec 31 23:59:59 of the year
// in local time, as Unix seconds.
func yearBounds(year int) (after, before int64) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(year, time.December, 31, 23, 59, 59, 0, time.Local)
	return start.Unix(), end.Unix()
}

// FetchPage requests one page of the feed, bounded to a single year
// when year is non-zero, and appends the retained activities to the
// index. Activities without path geometry are dropped; the rest get a
// palette color before they enter the index.
func (f *Fetcher) FetchPage(ctx context.Context, page, year int) {
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()

	f.setLoading(true)
	defer f.setLoading(false)

	var before, after int64
	if year != 0 {
		after, before = yearBounds(year)
	}

	activities, err := f.feed.Activities(ctx, f.token(), page, before, after)
	if err != nil {
		f.logf("fetching activities page %d: %v", page, err)
		return
	}

	retained := make([]Activity, 0, len(activities))
	for _, activity := range activities {
		if activity.SummaryPolyline == "" {
			continue
		}
		activity.Color = f.pickColor()
		retained = append(retained, activity)
	}

	f.index.Append(retained)
}

// FetchMore advances the internal page cursor and fetches the next
// page. The cursor starts at 1, the page fetched on first load.
func (f *Fetcher) FetchMore(ctx context.Context) {
	f.mu.Lock()
	next := f.page + 1
	f.mu.Unlock()

	f.FetchPage(ctx, next, 0)

	f.mu.Lock()
	f.page = next
	f.mu.Unlock()
}

func (f *Fetcher) Page() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

func (f *Fetcher) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *Fetcher) setLoading(loading bool) {
	f.mu.Lock()
	f.loading = loading
	f.mu.Unlock()
}

func (f *Fetcher) pickColor() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return RouteColors[f.rng.Intn(len(RouteColors))]
}
