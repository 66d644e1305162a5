package core

import (
	"strconv"
	"sync"
	"time"
)

// RouteIndex is the in-memory collection of fetched activities,
// insertion order = arrival order across pages. Only activities with
// path geometry are ever entered; an activity without a summary
// polyline is dropped at the door. Records are never mutated after
// insertion.
type RouteIndex struct {
	mu         sync.RWMutex
	activities []Activity
	years      []YearFilter
}

func NewRouteIndex() *RouteIndex {
	return &RouteIndex{}
}

// activityYear attributes an activity to the local calendar year of its
// start date, matching the year bounds used for server-side filtering.
func activityYear(startDate string) (int, bool) {
	t, err := time.Parse(time.RFC3339, startDate)
	if err != nil {
		return 0, false
	}
	return t.Local().Year(), true
}

// Append adds activities in arrival order, dropping any without path
// geometry, and unions newly seen years into the filter with default
// checked = true. Existing filter entries are never overwritten.
func (ri *RouteIndex) Append(activities []Activity) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	for _, activity := range activities {
		if activity.SummaryPolyline == "" {
			continue
		}
		ri.activities = append(ri.activities, activity)

		year, ok := activityYear(activity.StartDate)
		if !ok {
			continue
		}
		if !ri.hasYear(year) {
			ri.years = append(ri.years, YearFilter{Year: year, Checked: true})
		}
	}
}

func (ri *RouteIndex) hasYear(year int) bool {
	for _, entry := range ri.years {
		if entry.Year == year {
			return true
		}
	}
	return false
}

func (ri *RouteIndex) Len() int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return len(ri.activities)
}

// Activities returns a copy of the full index in insertion order.
func (ri *RouteIndex) Activities() []Activity {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	out := make([]Activity, len(ri.activities))
	copy(out, ri.activities)
	return out
}

// Years returns a copy of the year filter entries in first-seen order.
func (ri *RouteIndex) Years() []YearFilter {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	out := make([]YearFilter, len(ri.years))
	copy(out, ri.years)
	return out
}

// ToggleYear flips only that year's checked flag. Entries are never
// removed, even when their activities are excluded from view. Returns
// false if the year has never been seen.
func (ri *RouteIndex) ToggleYear(year int) bool {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	for i := range ri.years {
		if ri.years[i].Year == year {
			ri.years[i].Checked = !ri.years[i].Checked
			return true
		}
	}
	return false
}

// Visible returns exactly those activities whose start-year filter
// entry is checked, preserving index order.
func (ri *RouteIndex) Visible() []Activity {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	checked := make(map[int]bool, len(ri.years))
	for _, entry := range ri.years {
		if entry.Checked {
			checked[entry.Year] = true
		}
	}

	visible := make([]Activity, 0, len(ri.activities))
	for _, activity := range ri.activities {
		year, ok := activityYear(activity.StartDate)
		if ok && checked[year] {
			visible = append(visible, activity)
		}
	}
	return visible
}

// ByLayerID looks up the activity whose stable id matches a rendered
// layer identifier. Ids are used directly as layer ids, so the mapping
// holds under pagination and filter reordering.
func (ri *RouteIndex) ByLayerID(layerID string) (Activity, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	for _, activity := range ri.activities {
		if strconv.FormatInt(activity.ID, 10) == layerID {
			return activity, true
		}
	}
	return Activity{}, false
}
