// Command shp2geojson converts a Natural Earth countries shapefile into the
// GeoJSON file used to resolve map clicks to countries.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

const defaultFields = "NAME,ADMIN,NAME_LONG,ISO_A2,ISO_A2_EH"

func main() {
	inputPath := flag.String("input", "", "Path to input .shp file")
	outputPath := flag.String("output", "data/countries.geojson", "Path to output .geojson file")
	fields := flag.String("fields", defaultFields, "Comma separated attributes to keep (empty keeps all)")
	tolerance := flag.Float64("tolerance", 0, "Douglas-Peucker simplification threshold in degrees (0 disables)")
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		log.Fatal("Input path is required")
	}

	if err := run(*inputPath, *outputPath, parseFields(*fields), *tolerance); err != nil {
		log.Fatal(err)
	}
}

func parseFields(s string) map[string]bool {
	keep := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			keep[f] = true
		}
	}
	return keep
}

func run(inputPath, outputPath string, keep map[string]bool, tolerance float64) error {
	shape, err := shp.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = f.String()
	}

	fc := geojson.NewFeatureCollection()
	skipped := 0

	for shape.Next() {
		n, p := shape.Shape()

		poly, ok := p.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		geometry := convertPolygon(poly)
		if geometry == nil {
			skipped++
			continue
		}
		if tolerance > 0 {
			geometry = simplify.DouglasPeucker(tolerance).Simplify(geometry)
		}

		f := geojson.NewFeature(geometry)
		for i, name := range fieldNames {
			if len(keep) > 0 && !keep[name] {
				continue
			}
			f.Properties[name] = cleanAttribute(shape.ReadAttribute(n, i))
		}
		fc.Append(f)
	}

	if err := shape.Err(); err != nil {
		return fmt.Errorf("error iterating shapes: %w", err)
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Printf("Converted %d countries to %s (%d shapes skipped)\n", len(fc.Features), outputPath, skipped)
	return nil
}

// cleanAttribute strips the NUL and space padding of DBF values.
func cleanAttribute(v string) string {
	return strings.TrimSpace(strings.TrimRight(v, "\x00"))
}

// convertPolygon groups shapefile parts into polygons. Outer rings are
// clockwise; counter-clockwise rings are holes of the preceding outer ring.
func convertPolygon(s *shp.Polygon) orb.Geometry {
	var mp orb.MultiPolygon

	for i := 0; i < int(s.NumParts); i++ {
		start := s.Parts[i]
		end := s.NumPoints
		if i < int(s.NumParts)-1 {
			end = s.Parts[i+1]
		}

		var ring orb.Ring
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		if len(ring) < 4 {
			continue
		}

		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}

	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}
