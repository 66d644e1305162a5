package core

import (
	"math"
	"sync"
	"time"
)

const (
	CursorDefault = "auto"
	CursorPointer = "pointer"
)

// speedDisplayFactor converts the feed's native m/s into km/h.
const speedDisplayFactor = 3.6

// Resolver maps pointer events on the rendered map back to activity
// records. Selection state is transient UI state and is never
// persisted.
type Resolver struct {
	index *RouteIndex

	mu       sync.Mutex
	selected *SelectedActivity
	cursor   string
}

func NewResolver(index *RouteIndex) *Resolver {
	return &Resolver{
		index:  index,
		cursor: CursorDefault,
	}
}

// Click resolves a pointer click. layerIDs are the hit-tested layer
// identifiers, topmost first. A hit selects the matching activity
// together with the click coordinate; no hits, or a hit on an unknown
// layer, clears the selection. Display formatting happens here, at
// selection time, so the stored record stays in feed-native units.
func (r *Resolver) Click(layerIDs []string, lng, lat float64) *SelectedActivity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(layerIDs) == 0 {
		r.selected = nil
		return nil
	}

	activity, ok := r.index.ByLayerID(layerIDs[0])
	if !ok {
		r.selected = nil
		return nil
	}

	r.selected = &SelectedActivity{
		ID:               activity.ID,
		Name:             activity.Name,
		Distance:         activity.Distance,
		AverageSpeed:     displaySpeed(activity.AverageSpeed),
		MaxSpeed:         displaySpeed(activity.MaxSpeed),
		AverageHeartrate: activity.AverageHeartrate,
		StartDate:        formatDateTime(activity.StartDate),
		KudosCount:       activity.KudosCount,
		Color:            activity.Color,
		Lng:              lng,
		Lat:              lat,
	}

	selected := *r.selected
	return &selected
}

// PointerChange toggles the cursor affordance between pointer and
// default on layer enter/leave. Two states, no intermediate.
func (r *Resolver) PointerChange() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor == CursorPointer {
		r.cursor = CursorDefault
	} else {
		r.cursor = CursorPointer
	}
	return r.cursor
}

func (r *Resolver) Cursor() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Selected returns the activity currently under the popup, if any.
func (r *Resolver) Selected() *SelectedActivity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selected == nil {
		return nil
	}
	selected := *r.selected
	return &selected
}

func (r *Resolver) ClosePopup() {
	r.mu.Lock()
	r.selected = nil
	r.mu.Unlock()
}

func displaySpeed(metersPerSecond float64) int {
	return int(math.Round(metersPerSecond * speedDisplayFactor))
}

// formatDateTime reformats the feed's RFC 3339 start date for display.
// Unparseable input is shown as-is.
func formatDateTime(startDate string) string {
	t, err := time.Parse(time.RFC3339, startDate)
	if err != nil {
		return startDate
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}
