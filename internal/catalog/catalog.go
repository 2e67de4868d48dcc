// Package catalog holds the bundled list of cities offered for comparison.
package catalog

import (
	"fmt"
	"strings"

	"github.com/i474232898/humidity-comfort/internal/weather"
)

// City is a selectable catalog entry.
type City struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	DisplayName string `json:"displayName"`
	Popular     bool   `json:"popular"`
}

// Location returns the weather location of the city.
func (c City) Location() weather.Location {
	return weather.Location{City: c.Name, Country: c.Country}
}

var seed = []City{
	newCity("London", "GB"),
	newCity("New York", "US"),
	newCity("Tokyo", "JP"),
	newCity("Singapore", "SG"),
	newCity("Dubai", "AE"),
	newCity("Hong Kong", "HK"),
	newCity("Mumbai", "IN"),
	newCity("Sydney", "AU"),
	newCity("Istanbul", "TR"),
	newCity("Konya", "TR"),
	newCity("Paris", "FR"),
	newCity("Le Havre", "FR"),
	newCity("Riyadh", "SA"),
	newCity("Munich", "DE"),
	newCity("Kuching", "MY"),
}

func newCity(name, country string) City {
	return City{
		ID:          name + "," + country,
		Name:        name,
		Country:     country,
		DisplayName: name + ", " + country,
		Popular:     true,
	}
}

// Catalog is a static, ordered city list.
type Catalog struct {
	cities []City
}

// New returns the bundled catalog.
func New() *Catalog {
	return &Catalog{cities: seed}
}

// List returns the cities in display order.
func (c *Catalog) List() []City {
	out := make([]City, len(c.cities))
	copy(out, c.cities)
	return out
}

// Lookup finds a city by id ("Name,CC"), ignoring case and surrounding space.
func (c *Catalog) Lookup(id string) (City, bool) {
	norm := normalize(id)
	for _, city := range c.cities {
		if normalize(city.ID) == norm {
			return city, true
		}
	}
	return City{}, false
}

// Resolve maps a city id to a location. Ids outside the catalog are accepted
// in "City,CC" form.
func (c *Catalog) Resolve(id string) (weather.Location, error) {
	if city, ok := c.Lookup(id); ok {
		return city.Location(), nil
	}
	loc, err := weather.ParseLocation(id)
	if err != nil {
		return weather.Location{}, fmt.Errorf("resolve city: %w", err)
	}
	return loc, nil
}

func normalize(id string) string {
	city, country, _ := strings.Cut(id, ",")
	return strings.ToLower(strings.TrimSpace(city)) + "," + strings.ToLower(strings.TrimSpace(country))
}
