package weather

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidLocation is returned for malformed "City,CC" identifiers.
var ErrInvalidLocation = errors.New("invalid city id")

// LocalTimeLayout is the wall clock format reported on observations.
const LocalTimeLayout = "03:04 PM"

// Location represents a city for which we fetch observations.
// City/Country must be provided.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// ParseLocation parses a "City,CC" identifier.
func ParseLocation(id string) (Location, error) {
	city, country, ok := strings.Cut(id, ",")
	city = strings.TrimSpace(city)
	country = strings.ToUpper(strings.TrimSpace(country))
	if !ok || city == "" || country == "" {
		return Location{}, fmt.Errorf("%w %q: expected \"City,CC\"", ErrInvalidLocation, id)
	}
	return Location{City: city, Country: country}, nil
}

// Observation is a normalized weather reading for one city at one reference instant.
type Observation struct {
	City           string    `json:"city"`
	Country        string    `json:"country"`
	TemperatureC   float64   `json:"temperatureC"`
	DewPointC      float64   `json:"dewPointC"`
	HumidityPct    float64   `json:"humidityPercent"`
	LocalTime      string    `json:"localTime"`
	ObservedAt     time.Time `json:"observedAt"` // always UTC
	UTCOffsetHours int       `json:"utcOffsetHours"`

	// Providers contributing to this observation.
	Providers []string `json:"providers,omitempty"`
}

// FormatLocalTime renders an instant as wall clock time at a whole-hour UTC offset.
func FormatLocalTime(ts time.Time, offsetHours int) string {
	return ts.In(time.FixedZone("", offsetHours*3600)).Format(LocalTimeLayout)
}
