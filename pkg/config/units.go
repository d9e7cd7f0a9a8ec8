package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Common durations.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

var durationUnits = map[string]float64{
	"ns": float64(time.Nanosecond),
	"us": float64(time.Microsecond),
	"µs": float64(time.Microsecond),
	"ms": float64(time.Millisecond),
	"s":  float64(time.Second),
	"m":  float64(time.Minute),
	"h":  float64(time.Hour),
	"d":  float64(Day),
	"w":  float64(Week),
}

var distanceUnits = map[string]float64{
	"m":  1,
	"km": 1000,
	"nm": 1852,
	"ft": 0.3048,
}

var quantityRe = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([a-zµ]*)`)

// sumUnits adds up number+unit runs such as "2d12h" or "1km250m". A bare
// number is multiplied by bare; bare == 0 makes the unit mandatory.
func sumUnits(s string, units map[string]float64, bare float64) (float64, error) {
	rest := strings.TrimSpace(s)
	if rest == "" {
		return 0, nil
	}

	var total float64
	for rest != "" {
		m := quantityRe.FindStringSubmatch(rest)
		if m == nil {
			return 0, fmt.Errorf("invalid quantity %q", s)
		}
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in %q: %w", s, err)
		}

		mult, ok := units[m[2]]
		if m[2] == "" {
			mult, ok = bare, bare != 0
		}
		if !ok {
			return 0, fmt.Errorf("unknown unit %q in %q", m[2], s)
		}

		total += val * mult
		rest = strings.TrimSpace(rest[len(m[0]):])
	}
	return total, nil
}

// Duration is a time.Duration that also accepts d and w in YAML.
type Duration time.Duration

// ParseDuration parses "16ms", "1h30m", "30d" or "2w".
func ParseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "0" {
		return 0, nil
	}
	ns, err := sumUnits(s, durationUnits, 0)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	return time.Duration(ns), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Distance is a length in meters.
type Distance float64

// ParseDistance parses "12nm", "1.5km", "300m", "1000ft" or a bare number
// of meters.
func ParseDistance(s string) (float64, error) {
	m, err := sumUnits(s, distanceUnits, 1)
	if err != nil {
		return 0, fmt.Errorf("distance: %w", err)
	}
	return m, nil
}

// Meters returns the distance in meters.
func (d Distance) Meters() float64 {
	return float64(d)
}

func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if value.Tag == "!!int" || value.Tag == "!!float" {
		if err := value.Decode(&f); err != nil {
			return err
		}
		*d = Distance(f)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	f, err := ParseDistance(s)
	if err != nil {
		return err
	}
	*d = Distance(f)
	return nil
}

func (d Distance) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%gm", float64(d)), nil
}
