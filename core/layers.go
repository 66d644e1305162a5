package core

import (
	"strconv"

	"github.com/twpayne/go-polyline"
)

const routeLineWidth = 3

// BuildLayers converts activities into the named line sources/layers
// the map widget renders. Each layer is keyed by the activity's stable
// id. The summary polyline encodes lat,lng pairs; the widget wants
// lon,lat, so coordinates are flipped while decoding. Routes whose
// geometry fails to decode are skipped.
func BuildLayers(activities []Activity) []RouteLayer {
	layers := make([]RouteLayer, 0, len(activities))

	for _, activity := range activities {
		coords, _, err := polyline.DecodeCoords([]byte(activity.SummaryPolyline))
		if err != nil || len(coords) == 0 {
			continue
		}

		line := make([][2]float64, len(coords))
		for i, c := range coords {
			line[i] = [2]float64{c[1], c[0]}
		}

		layers = append(layers, RouteLayer{
			ID:          strconv.FormatInt(activity.ID, 10),
			Coordinates: line,
			Color:       activity.Color,
			Width:       routeLineWidth,
		})
	}

	return layers
}
