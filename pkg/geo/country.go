package geo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Zone constants
const (
	ZoneLand  = "land"
	ZoneCoast = "coast" // at sea, snapped to the nearest coast
	ZoneSea   = "sea"
)

const maxCacheEntries = 4096

// ErrNoCountry is returned for clicks too far from any country.
var ErrNoCountry = errors.New("no country at this location")

// CountryResult represents the result of a country lookup.
type CountryResult struct {
	CountryCode string  `json:"code"` // ISO 3166-1 Alpha-2, may be empty
	CountryName string  `json:"name"`
	Zone        string  `json:"zone"`
	DistanceM   float64 `json:"distance_m"` // Distance to nearest coast in meters (0 on land)
}

type country struct {
	code  string
	name  string
	geom  orb.Geometry
	bound orb.Bound
}

// CountryService resolves map clicks to country names using GeoJSON polygons.
type CountryService struct {
	countries []country
	byName    map[string]string // lower-case name -> display name
	maxSnapM  float64

	mu    sync.RWMutex
	cache map[string]CountryResult
}

// NewCountryService loads country boundaries from a GeoJSON file.
// Clicks at sea within maxSnapM meters of a coast resolve to that country.
func NewCountryService(geojsonPath string, maxSnapM float64) (*CountryService, error) {
	data, err := os.ReadFile(geojsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read countries GeoJSON: %w", err)
	}
	return NewCountryServiceFromData(data, maxSnapM)
}

// NewCountryServiceFromData parses a GeoJSON feature collection.
func NewCountryServiceFromData(data []byte, maxSnapM float64) (*CountryService, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse countries GeoJSON: %w", err)
	}

	s := &CountryService{
		byName:   make(map[string]string),
		maxSnapM: maxSnapM,
		cache:    make(map[string]CountryResult),
	}
	for _, f := range fc.Features {
		name := featureName(f.Properties)
		if name == "" || f.Geometry == nil {
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		s.countries = append(s.countries, country{
			code:  getISOCode(f.Properties),
			name:  name,
			geom:  f.Geometry,
			bound: f.Geometry.Bound(),
		})
		s.byName[strings.ToLower(name)] = name
	}
	if len(s.countries) == 0 {
		return nil, fmt.Errorf("countries GeoJSON has no named polygon features")
	}

	slog.Info("CountryService: Loaded country boundaries", "countries", len(s.countries))
	return s, nil
}

// Count returns the number of loaded countries.
func (s *CountryService) Count() int { return len(s.countries) }

// Names returns all country names, sorted.
func (s *CountryService) Names() []string {
	names := make([]string, 0, len(s.byName))
	for _, n := range s.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Canonical returns the display name matching name case-insensitively.
func (s *CountryService) Canonical(name string) (string, bool) {
	n, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// Locate returns the country at the given coordinates.
// Results are cached using ~1km (0.01 degree) quantization.
func (s *CountryService) Locate(lat, lon float64) (CountryResult, error) {
	if err := (Point{Lat: lat, Lon: lon}).Validate(); err != nil {
		return CountryResult{}, err
	}

	key := fmt.Sprintf("%.2f,%.2f", lat, lon)
	s.mu.RLock()
	result, ok := s.cache[key]
	s.mu.RUnlock()
	if !ok {
		result = s.lookup(lat, lon)
		s.mu.Lock()
		if len(s.cache) >= maxCacheEntries {
			s.cache = make(map[string]CountryResult)
		}
		s.cache[key] = result
		s.mu.Unlock()
	}

	if result.Zone == ZoneSea {
		return result, ErrNoCountry
	}
	return result, nil
}

// ResetCache clears all entries from the cache.
func (s *CountryService) ResetCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]CountryResult)
}

func (s *CountryService) cached() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// lookup performs the point-in-polygon test and, at sea, the coast snap.
func (s *CountryService) lookup(lat, lon float64) CountryResult {
	point := Point{Lat: lat, Lon: lon}.Orb()

	for _, c := range s.countries {
		if c.bound.Contains(point) && containsPoint(c.geom, point) {
			return CountryResult{CountryCode: c.code, CountryName: c.name, Zone: ZoneLand}
		}
	}

	var (
		best     *country
		bestDeg  float64
		bestNear orb.Point
	)
	for i := range s.countries {
		near, d, ok := nearestOnGeometry(point, s.countries[i].geom)
		if ok && (best == nil || d < bestDeg) {
			best, bestDeg, bestNear = &s.countries[i], d, near
		}
	}
	if best == nil {
		return CountryResult{Zone: ZoneSea}
	}

	meters := Distance(Point{Lat: lat, Lon: lon}, Point{Lat: bestNear[1], Lon: bestNear[0]})
	if meters > s.maxSnapM {
		return CountryResult{Zone: ZoneSea, DistanceM: meters}
	}
	return CountryResult{
		CountryCode: best.code,
		CountryName: best.name,
		Zone:        ZoneCoast,
		DistanceM:   meters,
	}
}
