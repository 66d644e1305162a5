package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stanleypliu/routemapper/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	mu        sync.Mutex
	pages     map[int][]core.Activity
	err       error
	gotToken  string
	gotPage   int
	gotBefore int64
	gotAfter  int64
	calls     int
}

func (f *stubFeed) Activities(ctx context.Context, accessToken string, page int, before, after int64) ([]core.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.gotToken = accessToken
	f.gotPage = page
	f.gotBefore = before
	f.gotAfter = after

	if f.err != nil {
		return nil, f.err
	}
	return f.pages[page], nil
}

func staticToken() string { return "test_access_token" }

func TestFetchPage_FiltersGeometryAndAssignsColors(t *testing.T) {
	feed := &stubFeed{pages: map[int][]core.Activity{
		1: {
			{ID: 1, StartDate: "2023-05-01T10:00:00Z", SummaryPolyline: "_ibE_ibE"},
			{ID: 2, StartDate: "2023-05-02T10:00:00Z"},
			{ID: 3, StartDate: "2022-05-03T10:00:00Z", SummaryPolyline: "_ibE_ibE"},
			{ID: 4, StartDate: "2023-05-04T10:00:00Z"},
			{ID: 5, StartDate: "2023-05-05T10:00:00Z", SummaryPolyline: "_ibE_ibE"},
		},
	}}
	index := core.NewRouteIndex()
	fetcher := core.NewFetcher(feed, staticToken, index, nil)

	fetcher.FetchPage(context.Background(), 1, 0)

	assert.Equal(t, 3, index.Len())
	assert.Equal(t, "test_access_token", feed.gotToken)
	assert.Zero(t, feed.gotBefore)
	assert.Zero(t, feed.gotAfter)

	for _, activity := range index.Activities() {
		assert.Contains(t, core.RouteColors, activity.Color)
	}

	years := index.Years()
	require.Len(t, years, 2)
	assert.Equal(t, 2023, years[0].Year)
	assert.Equal(t, 2022, years[1].Year)
}

func TestFetchPage_YearBounds(t *testing.T) {
	feed := &stubFeed{pages: map[int][]core.Activity{}}
	fetcher := core.NewFetcher(feed, staticToken, core.NewRouteIndex(), nil)

	fetcher.FetchPage(context.Background(), 1, 2022)

	wantAfter := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.Local).Unix()
	wantBefore := time.Date(2022, time.December, 31, 23, 59, 59, 0, time.Local).Unix()
	assert.Equal(t, wantAfter, feed.gotAfter)
	assert.Equal(t, wantBefore, feed.gotBefore)
}

func TestFetchPage_FailureKeepsEarlierPages(t *testing.T) {
	feed := &stubFeed{pages: map[int][]core.Activity{
		1: {{ID: 1, StartDate: "2023-05-01T10:00:00Z", SummaryPolyline: "_ibE_ibE"}},
	}}
	index := core.NewRouteIndex()

	var logged []string
	logf := func(format string, args ...any) {
		logged = append(logged, format)
	}
	fetcher := core.NewFetcher(feed, staticToken, index, logf)

	fetcher.FetchPage(context.Background(), 1, 0)
	require.Equal(t, 1, index.Len())

	feed.err = core.ErrActivityFetch
	fetcher.FetchMore(context.Background())

	assert.Equal(t, 1, index.Len())
	assert.False(t, fetcher.Loading())
	assert.NotEmpty(t, logged)
}

func TestFetchMore_AdvancesCursorSequentially(t *testing.T) {
	feed := &stubFeed{pages: map[int][]core.Activity{
		1: {{ID: 1, StartDate: "2023-05-01T10:00:00Z", SummaryPolyline: "_ibE_ibE"}},
		2: {{ID: 2, StartDate: "2023-06-01T10:00:00Z", SummaryPolyline: "_ibE_ibE"}},
		3: {{ID: 3, StartDate: "2023-07-01T10:00:00Z", SummaryPolyline: "_ibE_ibE"}},
	}}
	index := core.NewRouteIndex()
	fetcher := core.NewFetcher(feed, staticToken, index, nil)

	assert.Equal(t, 1, fetcher.Page())

	fetcher.FetchPage(context.Background(), 1, 0)
	fetcher.FetchMore(context.Background())
	fetcher.FetchMore(context.Background())

	assert.Equal(t, 3, fetcher.Page())
	assert.Equal(t, 3, feed.calls)

	// Arrival order across pages is preserved.
	activities := index.Activities()
	require.Len(t, activities, 3)
	assert.Equal(t, int64(1), activities[0].ID)
	assert.Equal(t, int64(2), activities[1].ID)
	assert.Equal(t, int64(3), activities[2].ID)
}
