package core_test

import (
	"testing"

	"github.com/stanleypliu/routemapper/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mid-year dates keep the local-year attribution stable regardless of
// the machine's timezone.
func rideFixtures() []core.Activity {
	return []core.Activity{
		{ID: 101, Name: "Morning Ride", StartDate: "2022-06-15T08:30:00Z", SummaryPolyline: "_ibE_ibE", Color: "#e6194b"},
		{ID: 102, Name: "Lunch Ride", StartDate: "2023-07-01T12:00:00Z", SummaryPolyline: "_ibE_ibE", Color: "#3cb44b"},
		{ID: 103, Name: "Evening Ride", StartDate: "2023-08-20T18:45:00Z", SummaryPolyline: "_ibE_ibE", Color: "#4363d8"},
	}
}

func TestRouteIndex_DropsActivitiesWithoutGeometry(t *testing.T) {
	index := core.NewRouteIndex()

	index.Append([]core.Activity{
		{ID: 1, StartDate: "2023-06-01T10:00:00Z", SummaryPolyline: "_ibE_ibE"},
		{ID: 2, StartDate: "2023-06-02T10:00:00Z", SummaryPolyline: ""},
		{ID: 3, StartDate: "2023-06-03T10:00:00Z", SummaryPolyline: "_ibE_ibE"},
	})

	assert.Equal(t, 2, index.Len())
	for _, activity := range index.Activities() {
		assert.NotEmpty(t, activity.SummaryPolyline)
	}
}

func TestRouteIndex_YearFilterUnion(t *testing.T) {
	index := core.NewRouteIndex()
	index.Append(rideFixtures())

	years := index.Years()
	require.Len(t, years, 2)
	assert.Equal(t, core.YearFilter{Year: 2022, Checked: true}, years[0])
	assert.Equal(t, core.YearFilter{Year: 2023, Checked: true}, years[1])

	// A later page with an already-seen year must not reset its state.
	require.True(t, index.ToggleYear(2022))
	index.Append([]core.Activity{
		{ID: 104, StartDate: "2022-09-10T09:00:00Z", SummaryPolyline: "_ibE_ibE"},
	})

	years = index.Years()
	require.Len(t, years, 2)
	assert.False(t, years[0].Checked)
}

func TestRouteIndex_ToggleYear(t *testing.T) {
	index := core.NewRouteIndex()
	index.Append(rideFixtures())

	require.True(t, index.ToggleYear(2023))
	years := index.Years()
	assert.True(t, years[0].Checked)  // 2022 untouched
	assert.False(t, years[1].Checked) // 2023 flipped

	// Toggling twice restores the original state.
	require.True(t, index.ToggleYear(2023))
	assert.True(t, index.Years()[1].Checked)

	assert.False(t, index.ToggleYear(1999))
}

func TestRouteIndex_VisibleSubset(t *testing.T) {
	index := core.NewRouteIndex()
	index.Append(rideFixtures())

	visible := index.Visible()
	require.Len(t, visible, 3)
	assert.Equal(t, int64(101), visible[0].ID)
	assert.Equal(t, int64(102), visible[1].ID)
	assert.Equal(t, int64(103), visible[2].ID)

	index.ToggleYear(2023)
	visible = index.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, int64(101), visible[0].ID)
}

func TestRouteIndex_AllYearsUncheckedYieldsEmptySubset(t *testing.T) {
	index := core.NewRouteIndex()
	index.Append(rideFixtures())

	index.ToggleYear(2022)
	index.ToggleYear(2023)

	assert.Empty(t, index.Visible())
	assert.Equal(t, 3, index.Len())
	assert.Len(t, index.Years(), 2) // entries are never removed
}

func TestRouteIndex_ByLayerID(t *testing.T) {
	index := core.NewRouteIndex()
	index.Append(rideFixtures())

	activity, ok := index.ByLayerID("102")
	require.True(t, ok)
	assert.Equal(t, "Lunch Ride", activity.Name)

	_, ok = index.ByLayerID("999")
	assert.False(t, ok)
}

func TestRouteIndex_ActivitiesReturnsCopy(t *testing.T) {
	index := core.NewRouteIndex()
	index.Append(rideFixtures())

	activities := index.Activities()
	activities[0].Name = "mutated"

	fresh := index.Activities()
	assert.Equal(t, "Morning Ride", fresh[0].Name)
}
