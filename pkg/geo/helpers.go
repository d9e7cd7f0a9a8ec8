package geo

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// containsPoint checks if a geometry contains a point.
func containsPoint(geom orb.Geometry, point orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, point)
	case orb.MultiPolygon:
		for _, poly := range g {
			if planar.PolygonContains(poly, point) {
				return true
			}
		}
	}
	return false
}

// nearestOnGeometry returns the boundary point of geom closest to point,
// measured in degrees. ok is false for geometries without rings.
func nearestOnGeometry(point orb.Point, geom orb.Geometry) (nearest orb.Point, dist float64, ok bool) {
	dist = math.MaxFloat64
	visit := func(poly orb.Polygon) {
		for _, ring := range poly {
			for i := 0; i < len(ring)-1; i++ {
				c := closestOnSegment(point, ring[i], ring[i+1])
				if d := planar.Distance(point, c); d < dist {
					dist, nearest, ok = d, c, true
				}
			}
		}
	}

	switch g := geom.(type) {
	case orb.Polygon:
		visit(g)
	case orb.MultiPolygon:
		for _, poly := range g {
			visit(poly)
		}
	}
	return nearest, dist, ok
}

// closestOnSegment projects p onto segment ab.
func closestOnSegment(p, a, b orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	if dx == 0 && dy == 0 {
		return a
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	switch {
	case t < 0:
		return a
	case t > 1:
		return b
	}
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// getStringProp safely extracts a string property from GeoJSON properties.
func getStringProp(props geojson.Properties, key string) string {
	if val, ok := props[key]; ok {
		switch v := val.(type) {
		case string:
			return strings.TrimSpace(v)
		case json.Number:
			return string(v)
		}
	}
	return ""
}

// featureName picks the display name of a Natural Earth country feature.
func featureName(props geojson.Properties) string {
	for _, key := range []string{"NAME", "ADMIN", "NAME_LONG", "name"} {
		if v := getStringProp(props, key); v != "" {
			return v
		}
	}
	return ""
}

// getISOCode extracts the ISO country code, falling back to ISO_A2_EH if ISO_A2 is -99.
// Natural Earth data has -99 for some territories (e.g., France, Kosovo).
func getISOCode(props geojson.Properties) string {
	code := getStringProp(props, "ISO_A2")
	if code == "" || code == "-99" {
		code = getStringProp(props, "ISO_A2_EH")
	}
	if code == "-99" {
		return ""
	}
	return code
}
