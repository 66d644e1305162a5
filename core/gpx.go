package core

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/twpayne/go-polyline"
)

// BuildGPX renders a route's decoded path geometry as a GPX 1.1 track.
func BuildGPX(activity *Activity) (string, error) {
	coords, _, err := polyline.DecodeCoords([]byte(activity.SummaryPolyline))
	if err != nil {
		return "", fmt.Errorf("decoding route geometry: %w", err)
	}
	if len(coords) == 0 {
		return "", fmt.Errorf("route %d has no geometry", activity.ID)
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<gpx version="1.1" creator="RouteMapper">`)
	sb.WriteString(`<trk><name>`)
	xml.EscapeText(&sb, []byte(activity.Name))
	sb.WriteString(`</name><trkseg>`)

	for _, c := range coords {
		sb.WriteString(fmt.Sprintf(`<trkpt lat="%f" lon="%f"></trkpt>`, c[0], c[1]))
	}

	sb.WriteString(`</trkseg></trk></gpx>`)
	return sb.String(), nil
}
